package indicator

import (
	"fmt"
	"strings"

	talib "github.com/markcheno/go-talib"

	"booktrader/internal/errs"
)

// Indicator 根据累积的行情序列计算单个标量值。
// 实现只能读取 History，不得依赖其他指标的结果。
type Indicator interface {
	Name() string
	// Lookback 返回指标有效所需的最少快照数量。
	Lookback() int
	Calculate(h History) (float64, error)
}

// windowed 由只需要最近若干快照的指标实现，用于限制历史保留长度。
type windowed interface {
	Window() int
}

// Indicator types supported by New.
const (
	TypeRateOfChange  = "roc"
	TypeBalanceEMA    = "balance_ema"
	TypeRSI           = "rsi"
	TypePriceVelocity = "price_velocity"
)

// Spec 描述一个可由配置创建的指标。
type Spec struct {
	Name   string `mapstructure:"name"`
	Type   string `mapstructure:"type"`
	Period int    `mapstructure:"period"`
}

// New 根据 Spec 创建指标。
func New(spec Spec) (Indicator, error) {
	typ := strings.ToLower(strings.TrimSpace(spec.Type))
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = fmt.Sprintf("%s-%d", typ, spec.Period)
	}
	if spec.Period < 1 {
		return nil, fmt.Errorf("indicator: %w: %s 的周期必须大于0，当前 %d", errs.ErrConfiguration, name, spec.Period)
	}

	switch typ {
	case TypeRateOfChange:
		return &rateOfChange{name: name, period: spec.Period}, nil
	case TypeBalanceEMA:
		return &balanceEMA{name: name, period: spec.Period}, nil
	case TypeRSI:
		if spec.Period < 2 {
			return nil, fmt.Errorf("indicator: %w: %s 的 RSI 周期至少为2", errs.ErrConfiguration, name)
		}
		return &centeredRSI{name: name, period: spec.Period}, nil
	case TypePriceVelocity:
		return &priceVelocity{name: name, period: spec.Period}, nil
	default:
		return nil, fmt.Errorf("indicator: %w: 未知指标类型 %q", errs.ErrConfiguration, spec.Type)
	}
}

// Func 以函数实现 Indicator，便于注册自定义指标。
type Func struct {
	ID      string
	MinSize int
	// Span 限制计算所需的历史长度，0 表示需要完整历史。
	Span int
	Fn   func(h History) (float64, error)
}

func (f Func) Name() string  { return f.ID }
func (f Func) Lookback() int { return f.MinSize }
func (f Func) Window() int   { return f.Span }

func (f Func) Calculate(h History) (float64, error) {
	if f.Fn == nil {
		return 0, fmt.Errorf("指标 %s 未实现计算函数", f.ID)
	}
	return f.Fn(h)
}

// rateOfChange 为价格变化率（百分比）。
type rateOfChange struct {
	name   string
	period int
}

func (r *rateOfChange) Name() string  { return r.name }
func (r *rateOfChange) Lookback() int { return r.period + 1 }
func (r *rateOfChange) Window() int   { return r.period + 1 }

func (r *rateOfChange) Calculate(h History) (float64, error) {
	return Last(talib.Roc(SliceTail(h.Price, r.period+1), r.period)), nil
}

// balanceEMA 为盘口多空比的指数均线。
type balanceEMA struct {
	name   string
	period int
}

func (b *balanceEMA) Name() string  { return b.name }
func (b *balanceEMA) Lookback() int { return b.period }
func (b *balanceEMA) Window() int   { return emaWindow(b.period) }

func (b *balanceEMA) Calculate(h History) (float64, error) {
	return Last(talib.Ema(SliceTail(h.Balance, b.Window()), b.period)), nil
}

// centeredRSI 为以50为中心的 RSI，正值代表多头动能。
type centeredRSI struct {
	name   string
	period int
}

func (r *centeredRSI) Name() string  { return r.name }
func (r *centeredRSI) Lookback() int { return r.period + 1 }
func (r *centeredRSI) Window() int   { return emaWindow(r.period) + 1 }

func (r *centeredRSI) Calculate(h History) (float64, error) {
	tail := SliceTail(h.Price, r.Window())
	// 窗口内价格无变化时 talib 输出0，此时视为中性。
	if flat(tail) {
		return 0, nil
	}
	return Last(talib.Rsi(tail, r.period)) - 50, nil
}

// priceVelocity 为价格相对其指数均线的偏离。
type priceVelocity struct {
	name   string
	period int
}

func (p *priceVelocity) Name() string  { return p.name }
func (p *priceVelocity) Lookback() int { return p.period }
func (p *priceVelocity) Window() int   { return emaWindow(p.period) }

func (p *priceVelocity) Calculate(h History) (float64, error) {
	tail := SliceTail(h.Price, p.Window())
	return Last(tail) - Last(talib.Ema(tail, p.period)), nil
}

func flat(values []float64) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// emaWindow 为指数类指标保留的历史长度，超过该长度的样本权重可以忽略。
func emaWindow(period int) int {
	return period * 4
}
