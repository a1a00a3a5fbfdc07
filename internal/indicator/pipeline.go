package indicator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"booktrader/internal/errs"
	"booktrader/internal/market"
)

// SnapshotReader 提供当前时刻的快照，通常为 market.Book。
type SnapshotReader interface {
	Current() (market.Snapshot, bool)
}

// Value 为某一时刻单个指标的计算结果。
type Value struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Values 为按注册顺序排列的指标结果。
type Values []Value

// Get 按名称查找指标结果。
func (v Values) Get(name string) (Value, bool) {
	for _, item := range v {
		if item.Name == name {
			return item, true
		}
	}
	return Value{}, false
}

// Pipeline 维护注册的指标，并在每个时刻基于累积历史重新计算。
type Pipeline struct {
	book       SnapshotReader
	indicators []Indicator
	values     Values
	history    History
	retain     int
	lastTime   time.Time
	logger     *zap.Logger
}

// NewPipeline 创建指标管线。
func NewPipeline(book SnapshotReader, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		book:   book,
		logger: logger,
	}
}

// Register 按顺序注册指标，名称必须唯一。
func (p *Pipeline) Register(ind Indicator) error {
	if ind == nil {
		return fmt.Errorf("indicator: %w: 指标不能为空", errs.ErrConfiguration)
	}
	if _, exists := p.values.Get(ind.Name()); exists {
		return fmt.Errorf("indicator: %w: 指标名称重复 %q", errs.ErrConfiguration, ind.Name())
	}

	p.indicators = append(p.indicators, ind)
	p.values = append(p.values, Value{Name: ind.Name(), Value: math.NaN()})
	p.retain = retention(p.indicators)

	p.logger.Debug("注册指标",
		zap.String("name", ind.Name()),
		zap.Int("lookback", ind.Lookback()),
		zap.Int("retain", p.retain),
	)
	return nil
}

// Indicators 返回已注册指标的名称。
func (p *Pipeline) Indicators() []string {
	names := make([]string, len(p.indicators))
	for i, ind := range p.indicators {
		names[i] = ind.Name()
	}
	return names
}

// Update 将当前快照加入历史并重新计算全部指标。
func (p *Pipeline) Update() error {
	snapshot, ok := p.book.Current()
	if !ok {
		return errors.New("indicator: 盘口尚无快照")
	}
	if p.history.Len() == 0 || snapshot.Time.After(p.lastTime) {
		p.history.append(snapshot)
		p.lastTime = snapshot.Time
	}

	if p.retain > 0 && p.history.Len() > 2*p.retain {
		p.history.trim(p.retain)
	}

	size := p.history.Len()
	for i, ind := range p.indicators {
		if size < max(ind.Lookback(), 1) {
			p.values[i] = Value{Name: ind.Name(), Value: math.NaN()}
			continue
		}
		value, err := ind.Calculate(p.history)
		if err != nil {
			return fmt.Errorf("indicator: %w: %s 计算失败: %w", errs.ErrIndicator, ind.Name(), err)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("indicator: %w: %s 在 %s 得到非有限值 %v",
				errs.ErrIndicator, ind.Name(), snapshot.Time.Format(time.RFC3339Nano), value)
		}
		p.values[i] = Value{Name: ind.Name(), Value: value, Valid: true}
	}
	return nil
}

// HasValidIndicators 当且仅当每个指标都有足够历史时返回 true。
func (p *Pipeline) HasValidIndicators() bool {
	for _, v := range p.values {
		if !v.Valid {
			return false
		}
	}
	return true
}

// Values 返回当前指标结果的副本。
func (p *Pipeline) Values() Values {
	return append(Values(nil), p.values...)
}

// retention 返回需要保留的最大历史长度，0 表示不裁剪。
func retention(indicators []Indicator) int {
	longest := 0
	for _, ind := range indicators {
		w, ok := ind.(windowed)
		if !ok || w.Window() <= 0 {
			return 0
		}
		longest = max(longest, ind.Lookback(), w.Window())
	}
	return longest
}
