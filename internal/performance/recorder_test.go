package performance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrader/internal/indicator"
	"booktrader/internal/market"
)

var base = time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)

func snapAt(offset time.Duration, price float64) market.Snapshot {
	return market.Snapshot{Time: base.Add(offset), Price: price, Balance: 5, Volume: 10}
}

func TestRecorder_RawSeriesWithoutBarSize(t *testing.T) {
	r := NewRecorder(0)
	require.NoError(t, r.RecordMarket(snapAt(0, 100)))
	require.NoError(t, r.RecordMarket(snapAt(time.Second, 101)))

	bars := r.MarketBars()
	require.Len(t, bars, 2)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 101.0, bars[1].Open)
	assert.Equal(t, 2, r.MarketCount())
}

func TestRecorder_AggregatesBars(t *testing.T) {
	r := NewRecorder(time.Minute)
	for i, price := range []float64{100, 103, 99, 101} {
		require.NoError(t, r.RecordMarket(snapAt(time.Duration(i)*10*time.Second, price)))
	}
	require.NoError(t, r.RecordMarket(snapAt(time.Minute, 102)))

	bars := r.MarketBars()
	require.Len(t, bars, 2)
	assert.Equal(t, Bar{Time: base, Open: 100, High: 103, Low: 99, Close: 101}, bars[0].Bar)
	assert.Equal(t, base.Add(time.Minute), bars[1].Time)
	assert.Equal(t, 5, r.MarketCount())
}

func TestRecorder_RejectsOutOfOrderMarket(t *testing.T) {
	r := NewRecorder(0)
	require.NoError(t, r.RecordMarket(snapAt(time.Second, 100)))
	assert.Error(t, r.RecordMarket(snapAt(time.Second, 100)))
	assert.Error(t, r.RecordMarket(snapAt(0, 100)))
	assert.Equal(t, 1, r.MarketCount())
}

func TestRecorder_Indicators(t *testing.T) {
	r := NewRecorder(0)
	values := indicator.Values{{Name: "roc", Value: 1.5, Valid: true}, {Name: "bal", Value: -2, Valid: true}}
	require.NoError(t, r.RecordIndicators(values, base))
	require.NoError(t, r.RecordIndicators(values, base.Add(time.Second)))

	assert.Equal(t, []string{"roc", "bal"}, r.IndicatorNames())
	assert.Len(t, r.IndicatorBars("roc"), 2)
	assert.Equal(t, -2.0, r.IndicatorBars("bal")[1].Close)
	assert.Equal(t, 2, r.IndicatorCount())

	assert.Error(t, r.RecordIndicators(values, base), "indicator series is append-only")
}

func TestRecorder_RejectsWarmingIndicators(t *testing.T) {
	r := NewRecorder(0)
	values := indicator.Values{{Name: "roc", Value: math.NaN()}}
	assert.Error(t, r.RecordIndicators(values, base))
	assert.Zero(t, r.IndicatorCount())
}

func TestRecorder_Equity(t *testing.T) {
	r := NewRecorder(time.Minute)
	assert.Error(t, r.RecordEquity(base, 1000), "no market bar yet")

	require.NoError(t, r.RecordMarket(snapAt(0, 100)))
	require.NoError(t, r.RecordEquity(base, 1000))
	require.NoError(t, r.RecordMarket(snapAt(30*time.Second, 100)))
	require.NoError(t, r.RecordEquity(base.Add(30*time.Second), 1010))
	require.NoError(t, r.RecordMarket(snapAt(time.Minute, 100)))

	assert.Equal(t, []float64{1010, 1010}, r.EquityCurve(), "new bar carries last equity forward")
}

func TestCalculate(t *testing.T) {
	m := Calculate(100, []float64{110, 99, 121}, []float64{10, -11, 22}, 0)

	assert.InDelta(t, 21, m.NetProfit, 1e-9)
	assert.InDelta(t, 0.21, m.TotalReturn, 1e-9)
	assert.InDelta(t, 0.1, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 32.0/11.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.WinRate, 1e-9)
	assert.Equal(t, 3, m.ClosedTrades)
	assert.False(t, math.IsNaN(m.SharpeRatio))
}

func TestCalculate_Empty(t *testing.T) {
	assert.Equal(t, Metrics{}, Calculate(100, nil, nil, 0))
}

func TestPeriodsPerYear(t *testing.T) {
	assert.InDelta(t, 365*24, PeriodsPerYear(time.Hour), 1e-9)
	assert.Zero(t, PeriodsPerYear(0))
}

func TestRecorder_Chart(t *testing.T) {
	r := NewRecorder(time.Minute)
	require.NoError(t, r.RecordMarket(snapAt(0, 100)))
	require.NoError(t, r.RecordIndicators(indicator.Values{{Name: "roc", Value: 1, Valid: true}}, base))
	require.NoError(t, r.RecordMarket(snapAt(time.Minute, 101)))
	require.NoError(t, r.RecordIndicators(indicator.Values{{Name: "roc", Value: -1, Valid: true}}, base.Add(time.Minute)))

	chart := r.Chart()
	assert.Equal(t, time.Minute, chart.BarSize)
	assert.Len(t, chart.Market, 2)
	assert.Equal(t, []string{"roc"}, chart.Order)
	require.Len(t, chart.Indicators["roc"], 2)
	assert.Equal(t, -1.0, chart.Indicators["roc"][1].Close)
}
