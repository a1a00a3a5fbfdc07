package backtest

import (
	"context"
	"errors"
	"time"

	"booktrader/internal/position"
	"booktrader/internal/strategy"
)

// ProgressSink 接收回放进度并提供取消标志，可被其他 goroutine 并发访问。
type ProgressSink interface {
	SetProgress(done, total int, label string)
	Cancelled() bool
}

// EventSink 接收回放完成通知。
type EventSink interface {
	Notify(ctx context.Context, event Event) error
}

// EventSinkFunc 允许使用函数作为事件接收者。
type EventSinkFunc func(ctx context.Context, event Event) error

func (f EventSinkFunc) Notify(ctx context.Context, event Event) error {
	if f == nil {
		return errors.New("backtest: 事件函数未实现")
	}
	return f(ctx, event)
}

// Strategy 为回放驱动消费的策略上下文。
type Strategy interface {
	Market() strategy.MarketBook
	IndicatorManager() strategy.IndicatorPipeline
	PerformanceManager() strategy.PerformanceRecorder
	TradingSchedule() strategy.TradingSchedule
	ProcessInstant(eligible bool) error
	ClosePosition() error
}

// reporter 为可选能力，实现后完成事件会携带策略名称与持仓概览。
type reporter interface {
	Name() string
	Summary() position.Summary
}

// EventKind 表示事件类型。
type EventKind string

const (
	EventStrategyUpdate EventKind = "strategy_update"
)

// Event 为回放完成后发出的通知，发出时策略状态已全部落定。
type Event struct {
	Kind      EventKind         `json:"kind"`
	Strategy  string            `json:"strategy,omitempty"`
	Time      time.Time         `json:"time"` // 最后一个快照的时间
	Processed int               `json:"processed"`
	Summary   *position.Summary `json:"summary,omitempty"`
}
