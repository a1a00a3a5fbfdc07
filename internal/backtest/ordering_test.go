package backtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrader/internal/indicator"
	"booktrader/internal/market"
	"booktrader/internal/strategy"
)

// tracer 同时充当策略上下文的全部组件，按顺序记录调用。
type tracer struct {
	calls   []string
	current market.Snapshot
	valid   func(time.Time) bool
}

func (tr *tracer) log(format string, args ...any) {
	tr.calls = append(tr.calls, fmt.Sprintf(format, args...))
}

func (tr *tracer) second() int { return int(tr.current.Time.Sub(t0) / time.Second) }

func (tr *tracer) SetSnapshot(s market.Snapshot) {
	tr.current = s
	tr.log("set@%d", tr.second())
}

func (tr *tracer) Update() error {
	tr.log("update@%d", tr.second())
	return nil
}

func (tr *tracer) RecordMarket(market.Snapshot) error {
	tr.log("market@%d", tr.second())
	return nil
}

func (tr *tracer) ProcessInstant(bool) error {
	tr.log("process@%d", tr.second())
	return nil
}

func (tr *tracer) ClosePosition() error {
	tr.log("close")
	return nil
}

func (tr *tracer) Current() (market.Snapshot, bool) { return tr.current, true }
func (tr *tracer) IsGapping(market.Snapshot) bool   { return false }
func (tr *tracer) HasValidIndicators() bool         { return tr.valid(tr.current.Time) }
func (tr *tracer) Values() indicator.Values         { return nil }
func (tr *tracer) Contains(time.Time) bool          { return true }

func (tr *tracer) RecordIndicators(_ indicator.Values, instant time.Time) error {
	tr.log("indicators@%d", int(instant.Sub(t0)/time.Second))
	return nil
}

func (tr *tracer) Market() strategy.MarketBook                      { return tr }
func (tr *tracer) IndicatorManager() strategy.IndicatorPipeline     { return tr }
func (tr *tracer) PerformanceManager() strategy.PerformanceRecorder { return tr }
func (tr *tracer) TradingSchedule() strategy.TradingSchedule        { return tr }

func TestExecute_CallOrdering(t *testing.T) {
	tr := &tracer{valid: func(ts time.Time) bool { return !ts.Before(t0.Add(time.Second)) }}
	events := make(ChanSink, 1)
	engine, err := NewEngine(Config{}, tr, quietProgress(), events, nil)
	require.NoError(t, err)

	_, err = engine.Execute(context.Background(), series(0, 1, 2))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"set@0", "market@0", "update@0", "process@0",
		"set@1", "market@1", "update@1", "process@1", "indicators@1",
		"set@2", "market@2", "update@2", "process@2", "indicators@2",
		"close",
	}, tr.calls)
	assert.Len(t, events, 1)
}
