// Package app 根据配置装配并运行一次回测。
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booktrader/internal/backtest"
	"booktrader/internal/config"
	"booktrader/internal/marketdata"
	"booktrader/internal/metrics"
	"booktrader/internal/monitor"
	"booktrader/internal/performance"
	"booktrader/internal/store"
	"booktrader/internal/strategy"
)

// App 聚合核心依赖并驱动回测生命周期。
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	metrics *metrics.Metrics
}

// Report 为一次回测的结果。
type Report struct {
	RunID     string
	Result    backtest.Result
	Metrics   performance.Metrics
	Decisions []strategy.Decision
	Chart     performance.Chart
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: metrics.NewMetrics(nil),
	}
}

// Run 加载历史数据并完成一次回放，ctx 结束时回放在下一次进度检查时取消。
func (a *App) Run(ctx context.Context) (Report, error) {
	runID := uuid.NewString()
	logger := a.logger.With(zap.String("run_id", runID))
	report := Report{RunID: runID}

	svc, err := monitor.NewService(a.store, logger.Named("monitor"))
	if err != nil {
		return report, err
	}
	svc = svc.ForRun(runID)

	parts, err := buildStrategy(a.cfg, logger)
	if err != nil {
		return report, err
	}
	source, err := buildSource(a.cfg, a.store, logger)
	if err != nil {
		return report, err
	}
	snapshots, err := source.Load(ctx)
	if err != nil {
		svc.RecordError(ctx, "加载历史数据失败", err, nil)
		return report, err
	}

	progress := backtest.NewProgress(a.metrics.ProgressPercent, logger.Named("progress"))
	stopWatch := context.AfterFunc(ctx, progress.Cancel)
	defer stopWatch()

	if a.cfg.Monitor.Enabled {
		serverCtx, stopServer := context.WithCancel(context.Background())
		defer stopServer()
		if err := startMonitorServer(serverCtx, monitorDeps{
			service:  svc,
			progress: progress,
			metrics:  a.metrics,
		}, a.cfg.Monitor.Port, logger.Named("http")); err != nil {
			return report, err
		}
	}

	engine, err := backtest.NewEngine(backtest.Config{
		ProgressEvery: a.cfg.Backtest.ProgressEvery,
		Label:         fmt.Sprintf("Backtesting %s...", a.cfg.Strategy.Name),
	}, parts.strategy, progress, svc, logger.Named("backtest"))
	if err != nil {
		return report, err
	}

	svc.RecordStart(ctx, monitor.RunStartedPayload{
		Strategy:   a.cfg.Strategy.Name,
		Snapshots:  len(snapshots),
		From:       snapshots[0].Time,
		To:         snapshots[len(snapshots)-1].Time,
		Indicators: parts.pipeline.Indicators(),
	})

	startedAt := time.Now().UTC()
	// 取消后 ctx 已结束，收尾写库使用独立的 context。
	persistCtx := context.WithoutCancel(ctx)

	result, err := engine.Execute(ctx, snapshots)
	report.Result = result
	a.metrics.ObserveRun(string(result.Status), result.Processed, result.Duration)
	if err != nil {
		svc.RecordError(persistCtx, "回放失败", err, map[string]interface{}{"processed": result.Processed})
		return report, err
	}

	report.Decisions = parts.strategy.Decisions()
	report.Chart = parts.recorder.Chart()
	report.Metrics = performance.Calculate(
		parts.positions.InitialEquity(),
		parts.recorder.EquityCurve(),
		parts.positions.ClosedPnl(),
		performance.PeriodsPerYear(a.cfg.Backtest.BarSize),
	)
	for _, d := range report.Decisions {
		a.metrics.DecisionsTotal.WithLabelValues(d.String()).Inc()
	}
	a.metrics.FillsTotal.Add(float64(len(parts.positions.Fills())))
	if result.Status == backtest.StatusCompleted {
		a.metrics.NetProfit.Set(report.Metrics.NetProfit)
	}

	if err := svc.RecordRun(persistCtx, monitor.Run{
		ID:        runID,
		Strategy:  a.cfg.Strategy.Name,
		Status:    string(result.Status),
		Processed: result.Processed,
		Total:     result.Total,
		StartedAt: startedAt,
		Duration:  result.Duration,
		Metrics:   report.Metrics,
	}); err != nil {
		return report, err
	}

	logger.Info("回测结束",
		zap.String("status", string(result.Status)),
		zap.Int("processed", result.Processed),
		zap.Float64("net_profit", report.Metrics.NetProfit),
		zap.Float64("max_drawdown", report.Metrics.MaxDrawdown),
		zap.Float64("sharpe", report.Metrics.SharpeRatio),
		zap.Float64("profit_factor", report.Metrics.ProfitFactor),
		zap.Int("closed_trades", report.Metrics.ClosedTrades),
	)
	return report, nil
}

// Import 将 CSV 历史文件导入 SQLite，供 source=sqlite 的回测使用。
func (a *App) Import(ctx context.Context, files []string) (int, error) {
	loc, err := loadLocation(a.cfg.Backtest.Timezone)
	if err != nil {
		return 0, err
	}
	fileSource, err := marketdata.NewFileSource(files, loc, marketdata.Window{}, a.logger.Named("marketdata"))
	if err != nil {
		return 0, err
	}
	snapshots, err := fileSource.Load(ctx)
	if err != nil {
		return 0, err
	}
	target, err := marketdata.NewSQLiteSource(a.store, a.cfg.Backtest.Instrument, marketdata.Window{}, a.logger.Named("marketdata"))
	if err != nil {
		return 0, err
	}
	if err := target.Save(ctx, snapshots); err != nil {
		return 0, err
	}
	return len(snapshots), nil
}
