package market

import (
	"fmt"
	"time"
)

// Snapshot 代表某一时刻的盘口状态，生成后不可修改。
type Snapshot struct {
	Time    time.Time // 快照时间
	Price   float64   // 买一卖一中间价
	Balance float64   // 盘口深度多空比，位于 [-100,100]
	Volume  int64     // 累计成交量
}

// String 返回快照的可读形式，用于日志输出。
func (s Snapshot) String() string {
	return fmt.Sprintf("%s price=%.5f balance=%.2f volume=%d",
		s.Time.UTC().Format(time.RFC3339Nano), s.Price, s.Balance, s.Volume)
}

// ValidateSequence 校验快照序列非空且时间严格递增。
func ValidateSequence(snapshots []Snapshot) error {
	if len(snapshots) == 0 {
		return fmt.Errorf("快照序列为空")
	}
	for i := 1; i < len(snapshots); i++ {
		if !snapshots[i].Time.After(snapshots[i-1].Time) {
			return fmt.Errorf("快照时间未严格递增: index=%d prev=%s curr=%s",
				i, snapshots[i-1].Time.Format(time.RFC3339Nano), snapshots[i].Time.Format(time.RFC3339Nano))
		}
	}
	return nil
}
