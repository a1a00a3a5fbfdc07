package backtest

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Progress 为线程安全的进度与取消标志，回放线程写入，信号处理或 HTTP 接口读取并取消。
type Progress struct {
	done      atomic.Int64
	total     atomic.Int64
	cancelled atomic.Bool
	label     atomic.Value

	gauge  prometheus.Gauge
	logger *zap.Logger
}

// ProgressSnapshot 为某一时刻的进度读数。
type ProgressSnapshot struct {
	Done      int     `json:"done"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Label     string  `json:"label"`
	Cancelled bool    `json:"cancelled"`
}

// NewProgress 创建进度对象，gauge 可为空。
func NewProgress(gauge prometheus.Gauge, logger *zap.Logger) *Progress {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Progress{gauge: gauge, logger: logger}
	p.label.Store("")
	return p
}

func (p *Progress) SetProgress(done, total int, label string) {
	p.done.Store(int64(done))
	p.total.Store(int64(total))
	p.label.Store(label)

	snap := p.Snapshot()
	if p.gauge != nil {
		p.gauge.Set(snap.Percent)
	}
	p.logger.Info(label,
		zap.Int("done", done),
		zap.Int("total", total),
		zap.Float64("percent", snap.Percent),
	)
}

func (p *Progress) Cancelled() bool {
	return p.cancelled.Load()
}

// Cancel 请求回放在下一次检查时停止。
func (p *Progress) Cancel() {
	if p.cancelled.CompareAndSwap(false, true) {
		p.logger.Info("已请求取消回放")
	}
}

// Snapshot 返回当前进度读数。
func (p *Progress) Snapshot() ProgressSnapshot {
	done := int(p.done.Load())
	total := int(p.total.Load())
	label, _ := p.label.Load().(string)

	var percent float64
	if total > 0 {
		percent = float64(done) / float64(total) * 100
	}
	return ProgressSnapshot{
		Done:      done,
		Total:     total,
		Percent:   percent,
		Label:     label,
		Cancelled: p.cancelled.Load(),
	}
}
