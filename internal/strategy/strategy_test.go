package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrader/internal/indicator"
	"booktrader/internal/market"
	"booktrader/internal/performance"
	"booktrader/internal/position"
)

var start = time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC)

type allDay struct{}

func (allDay) Contains(time.Time) bool { return true }

// priceSign 在价格高于100时为正，低于100时为负。
func priceSign(id string, lookback int) indicator.Indicator {
	return indicator.Func{
		ID:      id,
		MinSize: lookback,
		Fn: func(h indicator.History) (float64, error) {
			return indicator.Last(h.Price) - 100, nil
		},
	}
}

type fixture struct {
	book     *market.Book
	pipeline *indicator.Pipeline
	recorder *performance.Recorder
	strategy *Strategy
}

func newFixture(t *testing.T, cfg Config, lookback int) *fixture {
	t.Helper()
	book := market.NewBook(nil)
	pipeline := indicator.NewPipeline(book, nil)
	require.NoError(t, pipeline.Register(priceSign("sign", lookback)))
	recorder := performance.NewRecorder(0)

	s, err := New(cfg, Components{
		Book:        book,
		Indicators:  pipeline,
		Performance: recorder,
		Schedule:    allDay{},
		Positions:   position.NewManager(position.Config{InitialEquity: 1000}, nil),
		Decider:     AgreementDecider{},
	}, nil)
	require.NoError(t, err)
	return &fixture{book: book, pipeline: pipeline, recorder: recorder, strategy: s}
}

func (f *fixture) step(t *testing.T, i int, price float64, eligible bool) {
	t.Helper()
	snap := market.Snapshot{Time: start.Add(time.Duration(i) * time.Second), Price: price}
	f.book.SetSnapshot(snap)
	require.NoError(t, f.recorder.RecordMarket(snap))
	require.NoError(t, f.pipeline.Update())
	require.NoError(t, f.strategy.ProcessInstant(eligible))
}

func TestNew_RequiresComponents(t *testing.T) {
	_, err := New(Config{}, Components{}, nil)
	assert.Error(t, err)
}

func TestProcessInstant_FollowsDecider(t *testing.T) {
	f := newFixture(t, Config{Quantity: 2}, 1)

	f.step(t, 0, 101, true)
	assert.Equal(t, int64(2), f.strategy.Positions().Position().Quantity)

	f.step(t, 1, 100, true)
	assert.Equal(t, int64(2), f.strategy.Positions().Position().Quantity, "NONE holds")

	f.step(t, 2, 98, true)
	assert.Equal(t, int64(-2), f.strategy.Positions().Position().Quantity)

	assert.Equal(t, []Decision{DecisionLong, DecisionNone, DecisionShort}, f.strategy.Decisions())
}

func TestProcessInstant_WarmingIndicatorsYieldNone(t *testing.T) {
	f := newFixture(t, Config{}, 3)
	f.step(t, 0, 105, true)
	f.step(t, 1, 105, true)
	f.step(t, 2, 105, true)

	assert.Equal(t, []Decision{DecisionNone, DecisionNone, DecisionLong}, f.strategy.Decisions())
}

func TestProcessInstant_IneligibleNeverTrades(t *testing.T) {
	always := DeciderFunc(func(Decision, indicator.Values, bool) Decision { return DecisionLong })
	book := market.NewBook(nil)
	pipeline := indicator.NewPipeline(book, nil)
	recorder := performance.NewRecorder(0)
	s, err := New(Config{}, Components{
		Book: book, Indicators: pipeline, Performance: recorder,
		Schedule: allDay{}, Decider: always,
	}, nil)
	require.NoError(t, err)

	snap := market.Snapshot{Time: start, Price: 100}
	book.SetSnapshot(snap)
	require.NoError(t, recorder.RecordMarket(snap))
	require.NoError(t, pipeline.Update())
	require.NoError(t, s.ProcessInstant(false))

	assert.Equal(t, []Decision{DecisionNone}, s.Decisions())
	assert.Zero(t, s.Positions().Position().Quantity)
}

func TestProcessInstant_FlattenOffSchedule(t *testing.T) {
	f := newFixture(t, Config{FlattenOffSchedule: true}, 1)
	f.step(t, 0, 101, true)
	require.Equal(t, int64(1), f.strategy.Positions().Position().Quantity)

	f.step(t, 1, 102, false)
	assert.Zero(t, f.strategy.Positions().Position().Quantity)

	g := newFixture(t, Config{}, 1)
	g.step(t, 0, 101, true)
	g.step(t, 1, 102, false)
	assert.Equal(t, int64(1), g.strategy.Positions().Position().Quantity)
}

func TestClosePosition(t *testing.T) {
	f := newFixture(t, Config{}, 1)
	f.step(t, 0, 101, true)
	f.step(t, 1, 103, true)

	require.NoError(t, f.strategy.ClosePosition())
	assert.Equal(t, []Decision{DecisionLong, DecisionLong, DecisionFlat}, f.strategy.Decisions())

	summary := f.strategy.Summary()
	assert.Equal(t, position.SideFlat, summary.Side)
	assert.InDelta(t, 2, summary.NetProfit, 1e-9)
	assert.Equal(t, []float64{1000, 1002}, f.recorder.EquityCurve())
}

func TestClosePosition_WithoutSnapshot(t *testing.T) {
	f := newFixture(t, Config{}, 1)
	assert.Error(t, f.strategy.ClosePosition())
	assert.Error(t, f.strategy.ProcessInstant(true))
}
