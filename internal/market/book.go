package market

import (
	"math"
	"time"
)

// GapDetector 判断从当前快照到下一快照之间是否存在行情断档。
type GapDetector interface {
	IsGapping(current, next Snapshot) bool
}

// GapDetectorFunc 允许使用函数作为断档判定。
type GapDetectorFunc func(current, next Snapshot) bool

func (f GapDetectorFunc) IsGapping(current, next Snapshot) bool {
	if f == nil {
		return false
	}
	return f(current, next)
}

// ThresholdGap 基于时间间隔与价格跳变判定断档，零值阈值表示不检查该项。
type ThresholdGap struct {
	MaxInterval  time.Duration // 相邻快照允许的最大时间间隔
	MaxPriceJump float64       // 相邻快照允许的最大相对价格变化，例如 0.02
}

func (g ThresholdGap) IsGapping(current, next Snapshot) bool {
	if g.MaxInterval > 0 && next.Time.Sub(current.Time) > g.MaxInterval {
		return true
	}
	if g.MaxPriceJump > 0 && current.Price > 0 {
		jump := math.Abs(next.Price/current.Price - 1)
		if jump > g.MaxPriceJump {
			return true
		}
	}
	return false
}

// Book 持有当前快照，仅由回放驱动通过 SetSnapshot 修改。
type Book struct {
	gap     GapDetector
	current Snapshot
	count   int
}

// NewBook 创建 Book，gap 为空时永不判定断档。
func NewBook(gap GapDetector) *Book {
	if gap == nil {
		gap = GapDetectorFunc(nil)
	}
	return &Book{gap: gap}
}

// SetSnapshot 推进到新的快照。
func (b *Book) SetSnapshot(s Snapshot) {
	b.current = s
	b.count++
}

// Current 返回当前快照，尚未设置时 ok 为 false。
func (b *Book) Current() (Snapshot, bool) {
	return b.current, b.count > 0
}

// IsGapping 判断当前快照与 next 之间是否断档，尚无当前快照时返回 false。
func (b *Book) IsGapping(next Snapshot) bool {
	if b.count == 0 {
		return false
	}
	return b.gap.IsGapping(b.current, next)
}
