// Package position 模拟回测中的持仓、成交与盈亏。
package position

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	SideLong  = "LONG"
	SideShort = "SHORT"
	SideFlat  = "FLAT"
)

// Config 控制模拟成交参数。
type Config struct {
	InitialEquity float64 // 初始净值
	Multiplier    float64 // 合约乘数，<=0 时按1处理
	Commission    float64 // 每单位数量的手续费
}

// Fill 记录一次模拟成交。
type Fill struct {
	Time     time.Time `json:"time"`
	Quantity int64     `json:"quantity"` // 带符号的成交数量
	Price    float64   `json:"price"`
	Position int64     `json:"position"` // 成交后的持仓
	Realized float64   `json:"realized"` // 本次成交实现的盈亏（未扣手续费）
}

// Position 为带符号的持仓数量与平均成交价。
type Position struct {
	Quantity     int64
	AvgFillPrice float64
}

// Manager 根据目标持仓模拟成交，并按最新价格计算权益。
type Manager struct {
	initialEquity decimal.Decimal
	multiplier    decimal.Decimal
	commission    decimal.Decimal

	quantity    int64
	avgFill     decimal.Decimal
	realized    decimal.Decimal
	commissions decimal.Decimal
	openedAt    time.Time

	fills     []Fill
	closedPnl []float64
	lastPrice decimal.Decimal

	logger *zap.Logger
}

// NewManager 创建持仓管理器。
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = 100000
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1
	}
	if cfg.Commission < 0 {
		cfg.Commission = 0
	}
	return &Manager{
		initialEquity: decimal.NewFromFloat(cfg.InitialEquity),
		multiplier:    decimal.NewFromFloat(cfg.Multiplier),
		commission:    decimal.NewFromFloat(cfg.Commission),
		logger:        logger,
	}
}

// SetTarget 以 price 成交至目标持仓，持仓无变化时返回 false。
func (m *Manager) SetTarget(target int64, price float64, ts time.Time) (Fill, bool) {
	delta := target - m.quantity
	if delta == 0 {
		return Fill{}, false
	}

	px := decimal.NewFromFloat(price)
	realized := decimal.Zero

	if m.quantity != 0 && sign(delta) != sign(m.quantity) {
		closing := min(abs(delta), abs(m.quantity))
		realized = px.Sub(m.avgFill).
			Mul(decimal.NewFromInt(closing * sign(m.quantity))).
			Mul(m.multiplier)
		m.realized = m.realized.Add(realized)
		m.closedPnl = append(m.closedPnl, realized.InexactFloat64())
		m.quantity -= closing * sign(m.quantity)
		if m.quantity == 0 {
			m.avgFill = decimal.Zero
			m.openedAt = time.Time{}
		}
		if remaining := abs(delta) - closing; remaining > 0 {
			m.quantity = remaining * sign(delta)
			m.avgFill = px
			m.openedAt = ts
		}
	} else {
		held := decimal.NewFromInt(abs(m.quantity))
		added := decimal.NewFromInt(abs(delta))
		m.avgFill = m.avgFill.Mul(held).Add(px.Mul(added)).Div(held.Add(added))
		if m.quantity == 0 {
			m.openedAt = ts
		}
		m.quantity = target
	}

	m.commissions = m.commissions.Add(m.commission.Mul(decimal.NewFromInt(abs(delta))))
	m.lastPrice = px

	fill := Fill{
		Time:     ts,
		Quantity: delta,
		Price:    price,
		Position: m.quantity,
		Realized: realized.InexactFloat64(),
	}
	m.fills = append(m.fills, fill)

	m.logger.Debug("模拟成交",
		zap.Time("time", ts),
		zap.Int64("quantity", delta),
		zap.Float64("price", price),
		zap.Int64("position", m.quantity),
	)
	return fill, true
}

// MarkToMarket 以最新价格计算权益，price<=0 时沿用上一价格。
func (m *Manager) MarkToMarket(price float64) float64 {
	if price > 0 {
		m.lastPrice = decimal.NewFromFloat(price)
	}
	return m.equityAt(m.lastPrice).InexactFloat64()
}

// Position 返回当前持仓。
func (m *Manager) Position() Position {
	return Position{Quantity: m.quantity, AvgFillPrice: m.avgFill.InexactFloat64()}
}

// Summary 返回按最新价格估值的持仓概览。
func (m *Manager) Summary(ts time.Time) Summary {
	side := SideFlat
	if m.quantity > 0 {
		side = SideLong
	} else if m.quantity < 0 {
		side = SideShort
	}

	var age float64
	if !m.openedAt.IsZero() && !ts.IsZero() {
		age = ts.Sub(m.openedAt).Minutes()
	}

	unrealized := m.unrealized(m.lastPrice)
	return Summary{
		Side:          side,
		Quantity:      m.quantity,
		AvgFillPrice:  m.avgFill.InexactFloat64(),
		MarketPrice:   m.lastPrice.InexactFloat64(),
		UnrealizedPnl: unrealized.InexactFloat64(),
		RealizedPnl:   m.realized.InexactFloat64(),
		Commissions:   m.commissions.InexactFloat64(),
		NetProfit:     m.realized.Add(unrealized).Sub(m.commissions).InexactFloat64(),
		Equity:        m.equityAt(m.lastPrice).InexactFloat64(),
		Trades:        len(m.fills),
		PositionAge:   age,
		Timestamp:     ts,
	}
}

// InitialEquity 返回初始净值。
func (m *Manager) InitialEquity() float64 {
	return m.initialEquity.InexactFloat64()
}

// Fills 返回全部成交记录的副本。
func (m *Manager) Fills() []Fill {
	return append([]Fill(nil), m.fills...)
}

// ClosedPnl 返回每次减仓或平仓实现的盈亏。
func (m *Manager) ClosedPnl() []float64 {
	return append([]float64(nil), m.closedPnl...)
}

func (m *Manager) unrealized(price decimal.Decimal) decimal.Decimal {
	if m.quantity == 0 {
		return decimal.Zero
	}
	return price.Sub(m.avgFill).Mul(decimal.NewFromInt(m.quantity)).Mul(m.multiplier)
}

func (m *Manager) equityAt(price decimal.Decimal) decimal.Decimal {
	return m.initialEquity.Add(m.realized).Add(m.unrealized(price)).Sub(m.commissions)
}

func sign(v int64) int64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
