// Package performance 累积回放过程中的行情、指标与权益序列。
package performance

import (
	"fmt"
	"time"

	"booktrader/internal/indicator"
	"booktrader/internal/market"
)

// Bar 为按固定周期聚合的 OHLC 数据。
type Bar struct {
	Time  time.Time `json:"time"` // 周期起点
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

func newBar(start time.Time, value float64) Bar {
	return Bar{Time: start, Open: value, High: value, Low: value, Close: value}
}

func (b *Bar) update(value float64) {
	b.High = max(b.High, value)
	b.Low = min(b.Low, value)
	b.Close = value
}

// MarketBar 为行情聚合周期，附带盘口与权益收盘值。
type MarketBar struct {
	Bar
	Balance float64 `json:"balance"`
	Volume  int64   `json:"volume"`
	Equity  float64 `json:"equity"`
}

// Recorder 以两个阶段记录序列：决策前记录行情，决策后在指标有效时记录指标。
// 两类序列均只追加，时间必须严格递增。
type Recorder struct {
	barSize time.Duration

	market     []MarketBar
	lastMarket time.Time

	indicators    map[string][]Bar
	order         []string
	lastIndicator time.Time

	marketCount    int
	indicatorCount int
}

// NewRecorder 创建 Recorder，barSize<=0 时每个时刻独立成为一根 bar。
func NewRecorder(barSize time.Duration) *Recorder {
	return &Recorder{
		barSize:    barSize,
		indicators: make(map[string][]Bar),
	}
}

// RecordMarket 记录某一时刻的行情。
func (r *Recorder) RecordMarket(s market.Snapshot) error {
	if r.marketCount > 0 && !s.Time.After(r.lastMarket) {
		return fmt.Errorf("performance: 行情时间 %s 未晚于上次记录 %s",
			s.Time.Format(time.RFC3339Nano), r.lastMarket.Format(time.RFC3339Nano))
	}
	r.lastMarket = s.Time
	r.marketCount++

	start := r.barStart(s.Time)
	if n := len(r.market); n > 0 && r.market[n-1].Time.Equal(start) {
		bar := &r.market[n-1]
		bar.update(s.Price)
		bar.Balance = s.Balance
		bar.Volume = s.Volume
		return nil
	}

	equity := 0.0
	if n := len(r.market); n > 0 {
		equity = r.market[n-1].Equity
	}
	r.market = append(r.market, MarketBar{
		Bar:     newBar(start, s.Price),
		Balance: s.Balance,
		Volume:  s.Volume,
		Equity:  equity,
	})
	return nil
}

// RecordIndicators 记录某一时刻的有效指标值。
func (r *Recorder) RecordIndicators(values indicator.Values, instant time.Time) error {
	if r.indicatorCount > 0 && !instant.After(r.lastIndicator) {
		return fmt.Errorf("performance: 指标时间 %s 未晚于上次记录 %s",
			instant.Format(time.RFC3339Nano), r.lastIndicator.Format(time.RFC3339Nano))
	}
	for _, v := range values {
		if !v.Valid {
			return fmt.Errorf("performance: 指标 %s 在 %s 尚未有效", v.Name, instant.Format(time.RFC3339Nano))
		}
	}
	r.lastIndicator = instant
	r.indicatorCount++

	start := r.barStart(instant)
	for _, v := range values {
		series, seen := r.indicators[v.Name]
		if !seen {
			r.order = append(r.order, v.Name)
		}
		if n := len(series); n > 0 && series[n-1].Time.Equal(start) {
			series[n-1].update(v.Value)
			continue
		}
		r.indicators[v.Name] = append(series, newBar(start, v.Value))
	}
	return nil
}

// RecordEquity 更新当前行情周期的权益收盘值。
func (r *Recorder) RecordEquity(instant time.Time, equity float64) error {
	n := len(r.market)
	if n == 0 || instant.Before(r.lastMarket) {
		return fmt.Errorf("performance: 权益时间 %s 无对应行情", instant.Format(time.RFC3339Nano))
	}
	r.market[n-1].Equity = equity
	return nil
}

// Chart 为可导出的图表数据。
type Chart struct {
	BarSize    time.Duration    `json:"bar_size"`
	Market     []MarketBar      `json:"market"`
	Indicators map[string][]Bar `json:"indicators"`
	Order      []string         `json:"order"`
}

// Chart 汇总行情与各指标的周期序列。
func (r *Recorder) Chart() Chart {
	names := r.IndicatorNames()
	indicators := make(map[string][]Bar, len(names))
	for _, name := range names {
		indicators[name] = r.IndicatorBars(name)
	}
	return Chart{
		BarSize:    r.barSize,
		Market:     r.MarketBars(),
		Indicators: indicators,
		Order:      names,
	}
}

// MarketBars 返回行情周期的副本。
func (r *Recorder) MarketBars() []MarketBar {
	return append([]MarketBar(nil), r.market...)
}

// IndicatorBars 返回指定指标的周期序列副本。
func (r *Recorder) IndicatorBars(name string) []Bar {
	return append([]Bar(nil), r.indicators[name]...)
}

// IndicatorNames 按首次记录顺序返回指标名称。
func (r *Recorder) IndicatorNames() []string {
	return append([]string(nil), r.order...)
}

// MarketCount 返回已记录的行情时刻数量。
func (r *Recorder) MarketCount() int {
	return r.marketCount
}

// IndicatorCount 返回已记录的指标时刻数量。
func (r *Recorder) IndicatorCount() int {
	return r.indicatorCount
}

// EquityCurve 返回按周期收盘的权益序列。
func (r *Recorder) EquityCurve() []float64 {
	curve := make([]float64, len(r.market))
	for i, bar := range r.market {
		curve[i] = bar.Equity
	}
	return curve
}

func (r *Recorder) barStart(t time.Time) time.Time {
	if r.barSize <= 0 {
		return t
	}
	return t.Truncate(r.barSize)
}
