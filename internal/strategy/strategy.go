// Package strategy 组合行情簿、指标管线、记录器与交易时段，构成回放驱动所需的策略上下文。
package strategy

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"booktrader/internal/market"
	"booktrader/internal/position"
)

// Config 定义策略参数。
type Config struct {
	Name     string
	Quantity int64 // 每次开仓的合约数量
	// FlattenOffSchedule 为 true 时，不可交易时刻会被动平掉已有持仓。
	FlattenOffSchedule bool
}

// Components 为策略依赖的组件。
type Components struct {
	Book        MarketBook
	Indicators  IndicatorPipeline
	Performance PerformanceRecorder
	Schedule    TradingSchedule
	Positions   *position.Manager
	Decider     Decider
}

// Strategy 为回放中的策略上下文，只能由回放线程访问。
type Strategy struct {
	cfg Config

	book        MarketBook
	indicators  IndicatorPipeline
	performance PerformanceRecorder
	schedule    TradingSchedule
	positions   *position.Manager
	decider     Decider

	decisions []Decision
	logger    *zap.Logger
}

// New 构建策略上下文。
func New(cfg Config, c Components, logger *zap.Logger) (*Strategy, error) {
	if c.Book == nil {
		return nil, errors.New("strategy: market book 不能为空")
	}
	if c.Indicators == nil {
		return nil, errors.New("strategy: indicator pipeline 不能为空")
	}
	if c.Performance == nil {
		return nil, errors.New("strategy: performance recorder 不能为空")
	}
	if c.Schedule == nil {
		return nil, errors.New("strategy: trading schedule 不能为空")
	}
	if c.Decider == nil {
		return nil, errors.New("strategy: decider 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if c.Positions == nil {
		c.Positions = position.NewManager(position.Config{}, logger)
	}
	if cfg.Quantity <= 0 {
		cfg.Quantity = 1
	}
	if cfg.Name == "" {
		cfg.Name = "strategy"
	}

	return &Strategy{
		cfg:         cfg,
		book:        c.Book,
		indicators:  c.Indicators,
		performance: c.Performance,
		schedule:    c.Schedule,
		positions:   c.Positions,
		decider:     c.Decider,
		logger:      logger.With(zap.String("strategy", cfg.Name)),
	}, nil
}

func (s *Strategy) Name() string                            { return s.cfg.Name }
func (s *Strategy) Market() MarketBook                      { return s.book }
func (s *Strategy) IndicatorManager() IndicatorPipeline     { return s.indicators }
func (s *Strategy) PerformanceManager() PerformanceRecorder { return s.performance }
func (s *Strategy) TradingSchedule() TradingSchedule        { return s.schedule }

// Positions 返回持仓管理器。
func (s *Strategy) Positions() *position.Manager {
	return s.positions
}

// ProcessInstant 对当前时刻做出决策并调整持仓。
// 指标未全部有效时决策为 NONE；不可交易时刻不会产生方向性决策。
func (s *Strategy) ProcessInstant(eligible bool) error {
	snap, ok := s.book.Current()
	if !ok {
		return errors.New("strategy: 行情簿尚无快照")
	}

	decision := DecisionNone
	if s.indicators.HasValidIndicators() {
		decision = s.decider.Decide(s.prior(), s.indicators.Values(), eligible)
	}
	if !eligible && decision != DecisionNone {
		s.logger.Warn("不可交易时刻的决策被忽略",
			zap.Time("time", snap.Time),
			zap.Stringer("decision", decision),
		)
		decision = DecisionNone
	}
	s.decisions = append(s.decisions, decision)

	switch decision {
	case DecisionLong:
		s.positions.SetTarget(s.cfg.Quantity, snap.Price, snap.Time)
	case DecisionShort:
		s.positions.SetTarget(-s.cfg.Quantity, snap.Price, snap.Time)
	case DecisionFlat:
		s.positions.SetTarget(0, snap.Price, snap.Time)
	}
	if !eligible && s.cfg.FlattenOffSchedule {
		if fill, traded := s.positions.SetTarget(0, snap.Price, snap.Time); traded {
			s.logger.Debug("非交易时段平仓",
				zap.Time("time", snap.Time),
				zap.Int64("quantity", fill.Quantity),
			)
		}
	}

	return s.markToMarket(snap)
}

// ClosePosition 以当前价格平掉持仓，并在决策序列中追加 FLAT。
func (s *Strategy) ClosePosition() error {
	snap, ok := s.book.Current()
	if !ok {
		return errors.New("strategy: 行情簿尚无快照")
	}
	s.decisions = append(s.decisions, DecisionFlat)
	if fill, traded := s.positions.SetTarget(0, snap.Price, snap.Time); traded {
		s.logger.Info("回放结束平仓",
			zap.Time("time", snap.Time),
			zap.Int64("quantity", fill.Quantity),
			zap.Float64("price", fill.Price),
		)
	}
	return s.markToMarket(snap)
}

// Decisions 返回决策序列的副本。
func (s *Strategy) Decisions() []Decision {
	return append([]Decision(nil), s.decisions...)
}

// Summary 返回当前持仓概览。
func (s *Strategy) Summary() position.Summary {
	snap, ok := s.book.Current()
	if !ok {
		return position.EmptySummary()
	}
	return s.positions.Summary(snap.Time)
}

func (s *Strategy) prior() Decision {
	if n := len(s.decisions); n > 0 {
		return s.decisions[n-1]
	}
	return DecisionNone
}

func (s *Strategy) markToMarket(snap market.Snapshot) error {
	equity := s.positions.MarkToMarket(snap.Price)
	rec, ok := s.performance.(equityRecorder)
	if !ok {
		return nil
	}
	if err := rec.RecordEquity(snap.Time, equity); err != nil {
		return fmt.Errorf("strategy: 记录权益失败 %s: %w", snap, err)
	}
	return nil
}
