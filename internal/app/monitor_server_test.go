package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrader/internal/backtest"
	"booktrader/internal/metrics"
	"booktrader/internal/monitor"
)

func TestMonitorHandler(t *testing.T) {
	svc, err := monitor.NewService(newStore(t), nil)
	require.NoError(t, err)
	progress := backtest.NewProgress(nil, nil)
	progress.SetProgress(50, 200, "Backtesting...")

	handler := newMonitorHandler(monitorDeps{
		service:  svc,
		progress: progress,
		metrics:  metrics.NewMetrics(nil),
	}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap backtest.ProgressSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.InDelta(t, 25, snap.Percent, 1e-9)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cancel", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.False(t, progress.Cancelled())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cancel", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, progress.Cancelled())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?limit=5", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "booktrader_progress_percent")
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 200, parseLimit("", 200))
	assert.Equal(t, 200, parseLimit("abc", 200))
	assert.Equal(t, 10, parseLimit("10", 200))
	assert.Equal(t, 1000, parseLimit("5000", 200))
}
