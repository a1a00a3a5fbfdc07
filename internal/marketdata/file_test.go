package marketdata

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrader/internal/errs"
	"booktrader/internal/market"
)

func TestFileSource_MergesAndDeduplicates(t *testing.T) {
	src, err := NewFileSource([]string{
		filepath.Join("testdata", "es_b.csv"),
		filepath.Join("testdata", "es_a.csv"),
	}, nil, Window{}, nil)
	require.NoError(t, err)

	snaps, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 5)
	require.NoError(t, market.ValidateSequence(snaps))

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.True(t, snaps[0].Time.Equal(time.Date(2024, 6, 3, 9, 30, 0, 0, ny)))
	assert.True(t, snaps[3].Time.Equal(time.Date(2024, 6, 3, 9, 30, 3, 500e6, ny)))
	assert.Equal(t, market.Snapshot{Time: snaps[1].Time, Price: 5300.5, Balance: 12, Volume: 140}, snaps[1])
}

func TestFileSource_Window(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	window := Window{
		From: time.Date(2024, 6, 3, 9, 30, 1, 0, ny),
		To:   time.Date(2024, 6, 3, 9, 30, 2, 0, ny),
	}
	src, err := NewFileSource([]string{filepath.Join("testdata", "es_a.csv")}, nil, window, nil)
	require.NoError(t, err)

	snaps, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestFileSource_Errors(t *testing.T) {
	_, err := NewFileSource(nil, nil, Window{}, nil)
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	src, err := NewFileSource([]string{filepath.Join("testdata", "bad.csv")}, nil, Window{}, nil)
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, errs.ErrDataLoad)

	src, err = NewFileSource([]string{filepath.Join("testdata", "missing.csv")}, nil, Window{}, nil)
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, errs.ErrDataLoad)

	future := Window{From: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	src, err = NewFileSource([]string{filepath.Join("testdata", "es_a.csv")}, nil, future, nil)
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, errs.ErrDataLoad, "empty after filtering")
}

func TestFileSource_RejectsConflictingDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conflict.csv")
	data := "060324,093000,10,5300.25,100\n060324,093000,10,5301.00,100\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	src, err := NewFileSource([]string{path}, nil, Window{}, nil)
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, errs.ErrDataLoad)
	assert.ErrorContains(t, err, "冲突")
}

func TestFileSource_DropsIdenticalDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repeat.csv")
	data := "060324,093000,10,5300.25,100\n060324,093000,10,5300.25,100\n060324,093001,11,5300.50,120\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	src, err := NewFileSource([]string{path}, nil, Window{}, nil)
	require.NoError(t, err)
	snaps, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestParseCSV_RejectsOutOfRangeBalance(t *testing.T) {
	_, err := ParseCSV(context.Background(), strings.NewReader("060324,093000,101,10,1\n"), nil)
	assert.ErrorContains(t, err, "balance")
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	snaps := []market.Snapshot{
		{Time: time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC), Price: 1.0842, Balance: -12.5, Volume: 7},
		{Time: time.Date(2024, 1, 2, 15, 0, 1, 250e6, time.UTC), Price: 1.0843, Balance: 3, Volume: 9},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, snaps, time.UTC))

	got, err := ParseCSV(context.Background(), &buf, time.Local)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range snaps {
		assert.True(t, snaps[i].Time.Equal(got[i].Time))
		assert.Equal(t, snaps[i].Price, got[i].Price)
		assert.Equal(t, snaps[i].Balance, got[i].Balance)
	}
}

func TestSliceSource(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	src := NewSliceSource([]market.Snapshot{{Time: base.Add(time.Second)}, {Time: base}})
	_, err := src.Load(context.Background())
	assert.ErrorIs(t, err, errs.ErrDataLoad)

	src = NewSliceSource([]market.Snapshot{{Time: base}, {Time: base.Add(time.Second)}})
	snaps, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}
