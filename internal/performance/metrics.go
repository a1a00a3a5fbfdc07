package performance

import (
	"math"
	"time"
)

// Metrics 记录回测绩效指标。
type Metrics struct {
	NetProfit    float64 `json:"net_profit"`
	TotalReturn  float64 `json:"total_return"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	ProfitFactor float64 `json:"profit_factor"`
	WinRate      float64 `json:"win_rate"`
	ClosedTrades int     `json:"closed_trades"`
}

// PeriodsPerYear 将周期长度换算为年化系数所需的周期数量。
func PeriodsPerYear(barSize time.Duration) float64 {
	if barSize <= 0 {
		return 0
	}
	return float64(365*24*time.Hour) / float64(barSize)
}

// Calculate 根据初始净值、权益曲线与逐笔实现盈亏计算绩效。
// periodsPerYear<=0 时夏普比率不做年化。
func Calculate(initial float64, equity []float64, closed []float64, periodsPerYear float64) Metrics {
	var m Metrics
	if len(equity) == 0 {
		return m
	}

	final := equity[len(equity)-1]
	m.NetProfit = final - initial
	if initial > 0 {
		m.TotalReturn = final/initial - 1
	}
	m.MaxDrawdown = computeDrawdown(append([]float64{initial}, equity...))
	m.SharpeRatio = computeSharpe(returns(initial, equity), periodsPerYear)

	var gross, loss float64
	wins := 0
	for _, pnl := range closed {
		if pnl > 0 {
			gross += pnl
			wins++
		} else {
			loss -= pnl
		}
	}
	m.ClosedTrades = len(closed)
	if len(closed) > 0 {
		m.WinRate = float64(wins) / float64(len(closed))
	}
	if loss > 0 {
		m.ProfitFactor = gross / loss
	}
	return m
}

func returns(initial float64, equity []float64) []float64 {
	out := make([]float64, 0, len(equity))
	prev := initial
	for _, v := range equity {
		if prev != 0 {
			out = append(out, v/prev-1)
		}
		prev = v
	}
	return out
}

func computeDrawdown(equity []float64) float64 {
	var peak float64
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return math.Abs(maxDD)
}

func computeSharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	if len(returns) > 1 {
		variance /= float64(len(returns) - 1)
	}

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	if periodsPerYear <= 0 {
		return mean / std
	}
	return (mean / std) * math.Sqrt(periodsPerYear)
}
