package app

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"booktrader/internal/config"
	"booktrader/internal/errs"
	"booktrader/internal/indicator"
	"booktrader/internal/market"
	"booktrader/internal/marketdata"
	"booktrader/internal/performance"
	"booktrader/internal/position"
	"booktrader/internal/schedule"
	"booktrader/internal/store"
	"booktrader/internal/strategy"
)

// components 为一次回放装配出的策略上下文及其组件。
type components struct {
	strategy  *strategy.Strategy
	pipeline  *indicator.Pipeline
	recorder  *performance.Recorder
	positions *position.Manager
}

func buildStrategy(cfg *config.Config, logger *zap.Logger) (*components, error) {
	sched, err := schedule.Parse(cfg.Schedule.Timezone, cfg.Schedule.Intervals, cfg.Schedule.ExitBeforeClose)
	if err != nil {
		return nil, err
	}
	logger.Info("交易时段",
		zap.String("timezone", sched.Location().String()),
		zap.Stringers("intervals", sched.Intervals()),
		zap.Duration("exit_before_close", cfg.Schedule.ExitBeforeClose),
	)

	book := market.NewBook(market.ThresholdGap{
		MaxInterval:  cfg.Gap.MaxInterval,
		MaxPriceJump: cfg.Gap.MaxPriceJump,
	})

	pipeline := indicator.NewPipeline(book, logger.Named("indicator"))
	for _, ic := range cfg.Strategy.Indicators {
		ind, err := indicator.New(indicator.Spec{Name: ic.Name, Type: ic.Type, Period: ic.Period})
		if err != nil {
			return nil, err
		}
		if err := pipeline.Register(ind); err != nil {
			return nil, err
		}
	}

	decider, err := strategy.NewAgreementDecider(cfg.Strategy.Agreement...)
	if err != nil {
		return nil, fmt.Errorf("app: %w: %w", errs.ErrConfiguration, err)
	}

	recorder := performance.NewRecorder(cfg.Backtest.BarSize)
	positions := position.NewManager(position.Config{
		InitialEquity: cfg.Backtest.InitialEquity,
		Multiplier:    cfg.Backtest.Multiplier,
		Commission:    cfg.Backtest.Commission,
	}, logger.Named("position"))

	strat, err := strategy.New(strategy.Config{
		Name:               cfg.Strategy.Name,
		Quantity:           cfg.Strategy.Quantity,
		FlattenOffSchedule: cfg.Strategy.FlattenOffSchedule,
	}, strategy.Components{
		Book:        book,
		Indicators:  pipeline,
		Performance: recorder,
		Schedule:    sched,
		Positions:   positions,
		Decider:     decider,
	}, logger.Named("strategy"))
	if err != nil {
		return nil, err
	}

	return &components{
		strategy:  strat,
		pipeline:  pipeline,
		recorder:  recorder,
		positions: positions,
	}, nil
}

func buildSource(cfg *config.Config, st *store.Store, logger *zap.Logger) (marketdata.Source, error) {
	window := marketdata.Window{From: cfg.Backtest.From, To: cfg.Backtest.To}
	switch strings.ToLower(cfg.Backtest.Source) {
	case config.SourceSQLite:
		return marketdata.NewSQLiteSource(st, cfg.Backtest.Instrument, window, logger.Named("marketdata"))
	default:
		loc, err := loadLocation(cfg.Backtest.Timezone)
		if err != nil {
			return nil, err
		}
		return marketdata.NewFileSource(cfg.Backtest.Files, loc, window, logger.Named("marketdata"))
	}
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("app: %w: 时区 %q 无效: %w", errs.ErrConfiguration, name, err)
	}
	return loc, nil
}
