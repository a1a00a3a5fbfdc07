package indicator

import (
	"math"
	"time"

	"booktrader/internal/market"
)

// History 将回放至今的快照拆分为便于指标计算的序列，按时间升序排列。
type History struct {
	Times   []time.Time
	Price   []float64
	Balance []float64
	Volume  []float64
}

// Len 返回序列长度。
func (h History) Len() int {
	return len(h.Price)
}

func (h *History) append(s market.Snapshot) {
	h.Times = append(h.Times, s.Time)
	h.Price = append(h.Price, s.Price)
	h.Balance = append(h.Balance, s.Balance)
	h.Volume = append(h.Volume, float64(s.Volume))
}

// trim 仅保留末尾 n 个元素，复用底层数组以避免无限增长。
func (h *History) trim(n int) {
	if n <= 0 || h.Len() <= n {
		return
	}
	drop := h.Len() - n
	h.Times = append(h.Times[:0], h.Times[drop:]...)
	h.Price = append(h.Price[:0], h.Price[drop:]...)
	h.Balance = append(h.Balance[:0], h.Balance[drop:]...)
	h.Volume = append(h.Volume[:0], h.Volume[drop:]...)
}

// Last 返回序列最后一个值，若为空则返回 NaN。
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// SliceTail 返回序列末尾 n 个值，不足时返回全部。
func SliceTail(values []float64, n int) []float64 {
	if n <= 0 || len(values) == 0 {
		return nil
	}
	if len(values) <= n {
		dst := make([]float64, len(values))
		copy(dst, values)
		return dst
	}
	dst := make([]float64, n)
	copy(dst, values[len(values)-n:])
	return dst
}
