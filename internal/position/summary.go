package position

import "time"

// Summary 为某一时刻的持仓概览，用于事件与报告输出。
type Summary struct {
	Side          string    `json:"side"`
	Quantity      int64     `json:"quantity"`
	AvgFillPrice  float64   `json:"avg_fill_price"`
	MarketPrice   float64   `json:"market_price"`
	UnrealizedPnl float64   `json:"unrealized_pnl"`
	RealizedPnl   float64   `json:"realized_pnl"`
	Commissions   float64   `json:"commissions"`
	NetProfit     float64   `json:"net_profit"`
	Equity        float64   `json:"equity"`
	Trades        int       `json:"trades"`
	PositionAge   float64   `json:"position_age_minutes"`
	Timestamp     time.Time `json:"timestamp"`
}

// EmptySummary 返回空仓概览。
func EmptySummary() Summary {
	return Summary{Side: SideFlat}
}
