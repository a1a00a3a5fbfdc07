package strategy

import (
	"errors"

	"booktrader/internal/indicator"
)

// Decision 为单个时刻的交易方向。
type Decision int

const (
	DecisionNone Decision = iota
	DecisionLong
	DecisionShort
	DecisionFlat
)

func (d Decision) String() string {
	switch d {
	case DecisionLong:
		return "LONG"
	case DecisionShort:
		return "SHORT"
	case DecisionFlat:
		return "FLAT"
	default:
		return "NONE"
	}
}

// MarshalText 以名称形式序列化决策。
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Decider 根据上一决策、当前指标值与可交易标志给出新的决策。
type Decider interface {
	Decide(prior Decision, values indicator.Values, eligible bool) Decision
}

// DeciderFunc 允许使用函数作为决策器。
type DeciderFunc func(prior Decision, values indicator.Values, eligible bool) Decision

func (f DeciderFunc) Decide(prior Decision, values indicator.Values, eligible bool) Decision {
	if f == nil {
		return DecisionNone
	}
	return f(prior, values, eligible)
}

// AgreementDecider 在所选指标同号时给出方向：全部为正做多，全部为负做空，否则保持。
// Names 为空时使用全部指标。
type AgreementDecider struct {
	Names []string
}

// NewAgreementDecider 创建 AgreementDecider，指定名称时不能为空字符串。
func NewAgreementDecider(names ...string) (AgreementDecider, error) {
	for _, name := range names {
		if name == "" {
			return AgreementDecider{}, errors.New("strategy: 指标名称不能为空")
		}
	}
	return AgreementDecider{Names: names}, nil
}

func (a AgreementDecider) Decide(_ Decision, values indicator.Values, eligible bool) Decision {
	if !eligible {
		return DecisionNone
	}
	selected, ok := a.selected(values)
	if !ok || len(selected) == 0 {
		return DecisionNone
	}

	positive, negative := 0, 0
	for _, v := range selected {
		switch {
		case v > 0:
			positive++
		case v < 0:
			negative++
		}
	}
	switch {
	case positive == len(selected):
		return DecisionLong
	case negative == len(selected):
		return DecisionShort
	default:
		return DecisionNone
	}
}

func (a AgreementDecider) selected(values indicator.Values) ([]float64, bool) {
	if len(a.Names) == 0 {
		out := make([]float64, 0, len(values))
		for _, v := range values {
			if !v.Valid {
				return nil, false
			}
			out = append(out, v.Value)
		}
		return out, true
	}
	out := make([]float64, 0, len(a.Names))
	for _, name := range a.Names {
		v, found := values.Get(name)
		if !found || !v.Valid {
			return nil, false
		}
		out = append(out, v.Value)
	}
	return out, true
}
