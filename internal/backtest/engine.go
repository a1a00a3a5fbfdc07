// Package backtest 按时间顺序回放快照序列并驱动策略。
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"booktrader/internal/errs"
	"booktrader/internal/market"
)

// Status 表示回放结束状态。
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Result 汇总一次回放。
type Result struct {
	Status    Status        `json:"status"`
	Processed int           `json:"processed"`
	Total     int           `json:"total"`
	Duration  time.Duration `json:"duration"`
}

// Engine 单线程回放快照序列，负责交易资格判定、进度上报与收尾。
type Engine struct {
	cfg      Config
	strategy Strategy
	progress ProgressSink
	events   EventSink
	logger   *zap.Logger
}

// NewEngine 构建回放引擎。
func NewEngine(cfg Config, strat Strategy, progress ProgressSink, events EventSink, logger *zap.Logger) (*Engine, error) {
	if strat == nil {
		return nil, errors.New("backtest: strategy 不能为空")
	}
	if progress == nil {
		return nil, errors.New("backtest: progress sink 不能为空")
	}
	if events == nil {
		return nil, errors.New("backtest: event sink 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg.normalize(),
		strategy: strat,
		progress: progress,
		events:   events,
		logger:   logger,
	}, nil
}

// Execute 回放整个快照序列。
// 序列非法时在任何状态修改前返回 ErrDataLoad；取消不是错误，通过 Result.Status 区分。
func (e *Engine) Execute(ctx context.Context, snapshots []market.Snapshot) (Result, error) {
	if err := market.ValidateSequence(snapshots); err != nil {
		return Result{}, fmt.Errorf("backtest: %w: %w", errs.ErrDataLoad, err)
	}

	began := time.Now()
	n := len(snapshots)
	result := Result{Status: StatusCompleted, Total: n}

	book := e.strategy.Market()
	indicators := e.strategy.IndicatorManager()
	performance := e.strategy.PerformanceManager()
	schedule := e.strategy.TradingSchedule()

	e.logger.Info("开始回放",
		zap.Int("snapshots", n),
		zap.Time("from", snapshots[0].Time),
		zap.Time("to", snapshots[n-1].Time),
	)

	for i, snap := range snapshots {
		book.SetSnapshot(snap)
		if err := performance.RecordMarket(snap); err != nil {
			return e.abort(result, began, i, err)
		}
		if err := indicators.Update(); err != nil {
			return e.abort(result, began, i, err)
		}

		eligible := schedule.Contains(snap.Time) && (i == n-1 || !book.IsGapping(snapshots[i+1]))
		if err := e.strategy.ProcessInstant(eligible); err != nil {
			return e.abort(result, began, i, err)
		}
		if indicators.HasValidIndicators() {
			if err := performance.RecordIndicators(indicators.Values(), snap.Time); err != nil {
				return e.abort(result, began, i, err)
			}
		}
		result.Processed = i + 1

		if i%e.cfg.ProgressEvery == 0 {
			e.progress.SetProgress(i, n, e.cfg.Label)
			if e.cancelled(ctx) {
				return e.cancel(result, began), nil
			}
		}
	}

	// 两次进度检查之间发生的取消同样不进行平仓与通知。
	if e.cancelled(ctx) {
		return e.cancel(result, began), nil
	}

	if err := e.strategy.ClosePosition(); err != nil {
		return e.abort(result, began, n-1, err)
	}

	event := Event{
		Kind:      EventStrategyUpdate,
		Time:      snapshots[n-1].Time,
		Processed: result.Processed,
	}
	if r, ok := e.strategy.(reporter); ok {
		summary := r.Summary()
		event.Strategy = r.Name()
		event.Summary = &summary
	}
	if err := e.events.Notify(ctx, event); err != nil {
		return e.abort(result, began, n-1, fmt.Errorf("通知回放完成失败: %w", err))
	}

	result.Duration = time.Since(began)
	e.logger.Info("回放完成",
		zap.Int("processed", result.Processed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (e *Engine) cancelled(ctx context.Context) bool {
	return e.progress.Cancelled() || ctx.Err() != nil
}

func (e *Engine) cancel(result Result, began time.Time) Result {
	result.Status = StatusCancelled
	result.Duration = time.Since(began)
	e.logger.Info("回放已取消",
		zap.Int("processed", result.Processed),
		zap.Int("total", result.Total),
	)
	return result
}

func (e *Engine) abort(result Result, began time.Time, index int, err error) (Result, error) {
	result.Status = StatusFailed
	result.Duration = time.Since(began)
	e.logger.Error("回放中止", zap.Int("index", index), zap.Error(err))
	return result, fmt.Errorf("backtest: 第 %d 个快照处理失败: %w", index, err)
}
