// Package marketdata 从持久化历史中加载快照序列。
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"booktrader/internal/errs"
	"booktrader/internal/market"
)

// Source 提供完整、按时间排序的快照序列。
type Source interface {
	Load(ctx context.Context) ([]market.Snapshot, error)
}

// Window 限定加载的时间范围，零值表示不限。
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// SliceSource 以固定序列提供快照。
type SliceSource struct {
	snapshots []market.Snapshot
}

func NewSliceSource(snapshots []market.Snapshot) *SliceSource {
	return &SliceSource{snapshots: snapshots}
}

func (s *SliceSource) Load(ctx context.Context) ([]market.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := market.ValidateSequence(s.snapshots); err != nil {
		return nil, fmt.Errorf("marketdata: %w: %w", errs.ErrDataLoad, err)
	}
	return append([]market.Snapshot(nil), s.snapshots...), nil
}

// merge 合并多个序列并按时间排序。时间相同且内容一致的快照只保留一个，内容冲突时返回错误。
func merge(parts [][]market.Snapshot, window Window) ([]market.Snapshot, error) {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	all := make([]market.Snapshot, 0, total)
	for _, p := range parts {
		for _, s := range p {
			if window.contains(s.Time) {
				all = append(all, s)
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Time.Before(all[j].Time) })

	out := all[:0]
	for _, s := range all {
		if n := len(out); n > 0 && out[n-1].Time.Equal(s.Time) {
			if !sameSnapshot(out[n-1], s) {
				return nil, fmt.Errorf("时间 %s 存在冲突的快照: [%s] 与 [%s]",
					s.Time.Format(time.RFC3339Nano), out[n-1], s)
			}
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func sameSnapshot(a, b market.Snapshot) bool {
	return a.Time.Equal(b.Time) && a.Price == b.Price && a.Balance == b.Balance && a.Volume == b.Volume
}
