package schedule

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrader/internal/errs"
)

func utc(hour, minute int) time.Time {
	return time.Date(2024, 3, 4, hour, minute, 0, 0, time.UTC)
}

func TestSchedule_EmptyContainsEverything(t *testing.T) {
	s, err := New(nil, nil)
	require.NoError(t, err)
	assert.True(t, s.Contains(utc(3, 0)))
	assert.True(t, s.Contains(utc(23, 59)))
}

func TestParse_ContainsHalfOpenInterval(t *testing.T) {
	s, err := Parse("UTC", []string{"09:30-16:00"}, 0)
	require.NoError(t, err)

	assert.False(t, s.Contains(utc(9, 29)))
	assert.True(t, s.Contains(utc(9, 30)))
	assert.True(t, s.Contains(utc(15, 59)))
	assert.False(t, s.Contains(utc(16, 0)))
}

func TestParse_ExitBeforeClose(t *testing.T) {
	s, err := Parse("UTC", []string{"02:05-11:00"}, 5*time.Minute)
	require.NoError(t, err)

	assert.True(t, s.Contains(utc(10, 54)))
	assert.False(t, s.Contains(utc(10, 55)), "last five minutes are excluded")
}

func TestParse_OvernightInterval(t *testing.T) {
	s, err := Parse("UTC", []string{"22:00-02:00"}, 0)
	require.NoError(t, err)

	assert.True(t, s.Contains(utc(23, 0)))
	assert.True(t, s.Contains(utc(1, 59)))
	assert.False(t, s.Contains(utc(2, 0)))
	assert.False(t, s.Contains(utc(21, 59)))
}

func TestParse_UsesLocation(t *testing.T) {
	s, err := Parse("America/New_York", []string{"09:30-16:00"}, 0)
	require.NoError(t, err)

	// 2024-03-04 是美东标准时间 UTC-5
	assert.True(t, s.Contains(utc(14, 30)))
	assert.False(t, s.Contains(utc(9, 30)))
}

func TestParse_SortsIntervals(t *testing.T) {
	s, err := Parse("", []string{"13:00-15:00", "09:00-11:00"}, 0)
	require.NoError(t, err)

	ivs := s.Intervals()
	require.Len(t, ivs, 2)
	assert.Equal(t, "09:00-11:00", ivs[0].String())
	assert.Equal(t, "13:00-15:00", ivs[1].String())
}

func TestParse_ConfigurationErrors(t *testing.T) {
	cases := map[string]struct {
		tz         string
		specs      []string
		exitBefore time.Duration
	}{
		"bad format":       {specs: []string{"0930-1600"}},
		"bad hour":         {specs: []string{"25:00-26:00"}},
		"empty interval":   {specs: []string{"10:00-10:00"}},
		"overlap":          {specs: []string{"09:00-12:00", "11:00-13:00"}},
		"overnight clash":  {specs: []string{"22:00-03:00", "01:00-04:00"}},
		"exit too long":    {specs: []string{"09:00-09:30"}, exitBefore: time.Hour},
		"unknown timezone": {tz: "Mars/Olympus", specs: []string{"09:00-10:00"}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tc.tz, tc.specs, tc.exitBefore)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrConfiguration), "got %v", err)
		})
	}
}

func TestParse_AdjacentIntervalsAreDisjoint(t *testing.T) {
	_, err := Parse("", []string{"09:00-12:00", "12:00-13:00"}, 0)
	assert.NoError(t, err)
}
