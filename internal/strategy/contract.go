package strategy

import (
	"time"

	"booktrader/internal/indicator"
	"booktrader/internal/market"
)

// MarketBook 为回放驱动可见的行情簿。
type MarketBook interface {
	SetSnapshot(s market.Snapshot)
	Current() (market.Snapshot, bool)
	IsGapping(next market.Snapshot) bool
}

// IndicatorPipeline 为回放驱动可见的指标管线。
type IndicatorPipeline interface {
	Update() error
	HasValidIndicators() bool
	Values() indicator.Values
}

// PerformanceRecorder 为两阶段记录器：决策前记录行情，决策后记录有效指标。
type PerformanceRecorder interface {
	RecordMarket(s market.Snapshot) error
	RecordIndicators(values indicator.Values, instant time.Time) error
}

// TradingSchedule 判断某一时刻是否处于交易时段。
type TradingSchedule interface {
	Contains(t time.Time) bool
}

// equityRecorder 为可选能力，记录器实现后每个时刻都会写入权益。
type equityRecorder interface {
	RecordEquity(instant time.Time, equity float64) error
}
