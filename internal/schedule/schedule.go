// Package schedule 定义允许交易的日内时段。
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"booktrader/internal/errs"
)

const secondsPerDay = 24 * 3600

// Interval 描述一个日内交易时段 [Start, End)，以当日零点起的秒数表示。
// Start 大于 End 时表示跨越午夜的时段。
type Interval struct {
	Start int
	End   int
	// ExitBefore 表示距离时段结束多久之前停止交易，用于收盘前平仓。
	ExitBefore time.Duration
}

// String 以 HH:MM-HH:MM 形式输出。
func (iv Interval) String() string {
	return fmt.Sprintf("%s-%s", clock(iv.Start), clock(iv.End))
}

func (iv Interval) length() int {
	if iv.End > iv.Start {
		return iv.End - iv.Start
	}
	return secondsPerDay - iv.Start + iv.End
}

// contains 判断 sod（当日秒数）是否处于时段有效部分。
func (iv Interval) contains(sod int) bool {
	offset := sod - iv.Start
	if offset < 0 {
		offset += secondsPerDay
	}
	return offset < iv.length()-int(iv.ExitBefore/time.Second)
}

// Schedule 为有序且互不重叠的交易时段集合，Contains 无副作用。
type Schedule struct {
	location  *time.Location
	intervals []Interval
}

// New 校验并创建交易时段，intervals 为空表示全天可交易。
func New(location *time.Location, intervals []Interval) (*Schedule, error) {
	if location == nil {
		location = time.UTC
	}

	var err error
	sorted := append([]Interval(nil), intervals...)
	for _, iv := range sorted {
		if iv.Start < 0 || iv.Start >= secondsPerDay || iv.End < 0 || iv.End >= secondsPerDay {
			err = multierr.Append(err, fmt.Errorf("时段 %s 超出一天范围", iv))
			continue
		}
		if iv.Start == iv.End {
			err = multierr.Append(err, fmt.Errorf("时段 %s 长度为0", iv))
			continue
		}
		if iv.ExitBefore < 0 {
			err = multierr.Append(err, fmt.Errorf("时段 %s 的 exit_before 不能为负", iv))
			continue
		}
		if int(iv.ExitBefore/time.Second) >= iv.length() {
			err = multierr.Append(err, fmt.Errorf("时段 %s 的 exit_before %s 不短于时段本身", iv, iv.ExitBefore))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("schedule: %w: %w", errs.ErrConfiguration, err)
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	if overlapErr := checkDisjoint(sorted); overlapErr != nil {
		return nil, fmt.Errorf("schedule: %w: %w", errs.ErrConfiguration, overlapErr)
	}

	return &Schedule{location: location, intervals: sorted}, nil
}

// Parse 根据 "HH:MM-HH:MM" 形式的描述构建交易时段。
func Parse(timezone string, specs []string, exitBefore time.Duration) (*Schedule, error) {
	location := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("schedule: %w: 无法加载时区 %q: %w", errs.ErrConfiguration, tz, err)
		}
		location = loc
	}

	var err error
	intervals := make([]Interval, 0, len(specs))
	for _, spec := range specs {
		iv, parseErr := parseInterval(spec)
		if parseErr != nil {
			err = multierr.Append(err, parseErr)
			continue
		}
		iv.ExitBefore = exitBefore
		intervals = append(intervals, iv)
	}
	if err != nil {
		return nil, fmt.Errorf("schedule: %w: %w", errs.ErrConfiguration, err)
	}

	return New(location, intervals)
}

// Contains 判断时刻 t 是否处于任一交易时段内。
func (s *Schedule) Contains(t time.Time) bool {
	if s == nil || len(s.intervals) == 0 {
		return true
	}
	local := t.In(s.location)
	sod := local.Hour()*3600 + local.Minute()*60 + local.Second()
	for _, iv := range s.intervals {
		if iv.contains(sod) {
			return true
		}
	}
	return false
}

// Intervals 返回排序后的时段副本。
func (s *Schedule) Intervals() []Interval {
	return append([]Interval(nil), s.intervals...)
}

// Location 返回时段所使用的时区。
func (s *Schedule) Location() *time.Location {
	return s.location
}

type segment struct {
	start, end int
	owner      Interval
}

// checkDisjoint 将跨午夜时段拆分后按起点扫描，检查是否重叠。
func checkDisjoint(intervals []Interval) error {
	segments := make([]segment, 0, len(intervals)*2)
	for _, iv := range intervals {
		if iv.End > iv.Start {
			segments = append(segments, segment{iv.Start, iv.End, iv})
			continue
		}
		segments = append(segments, segment{iv.Start, secondsPerDay, iv}, segment{0, iv.End, iv})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].start < segments[j].start })
	for i := 1; i < len(segments); i++ {
		if segments[i].start < segments[i-1].end {
			return fmt.Errorf("时段 %s 与 %s 重叠", segments[i-1].owner, segments[i].owner)
		}
	}
	return nil
}

func parseInterval(spec string) (Interval, error) {
	parts := strings.Split(strings.TrimSpace(spec), "-")
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("时段 %q 格式应为 HH:MM-HH:MM", spec)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return Interval{}, fmt.Errorf("时段 %q: %w", spec, err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return Interval{}, fmt.Errorf("时段 %q: %w", spec, err)
	}
	return Interval{Start: start, End: end}, nil
}

func parseClock(value string) (int, error) {
	hm := strings.Split(strings.TrimSpace(value), ":")
	if len(hm) != 2 {
		return 0, fmt.Errorf("无法解析时间 %q", value)
	}
	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("小时非法: %q", value)
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("分钟非法: %q", value)
	}
	return hour*3600 + minute*60, nil
}

func clock(sod int) string {
	return fmt.Sprintf("%02d:%02d", sod/3600, sod%3600/60)
}
