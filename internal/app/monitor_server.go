package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"booktrader/internal/backtest"
	"booktrader/internal/metrics"
	"booktrader/internal/monitor"
)

type monitorDeps struct {
	service  *monitor.Service
	progress *backtest.Progress
	metrics  *metrics.Metrics
}

func newMonitorHandler(deps monitorDeps, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Warn("写入监控响应失败", zap.Error(err))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		eventType := monitor.EventType("")
		if typ := strings.TrimSpace(q.Get("type")); typ != "" {
			eventType = monitor.EventType(strings.ToLower(typ))
		}

		events, err := deps.service.ListEvents(r.Context(), eventType, parseLimit(q.Get("limit"), 200))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, events)
	})
	mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := deps.service.ListRuns(r.Context(), parseLimit(r.URL.Query().Get("limit"), 50))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, runs)
	})
	mux.HandleFunc("/progress", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.progress.Snapshot())
	})
	mux.HandleFunc("/cancel", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		deps.progress.Cancel()
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, deps.progress.Snapshot())
	})
	if deps.metrics != nil {
		mux.Handle("/metrics", deps.metrics.Handler())
	}
	return mux
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	if v > 1000 {
		v = 1000
	}
	return v
}

func startMonitorServer(ctx context.Context, deps monitorDeps, port int, logger *zap.Logger) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMonitorHandler(deps, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("关闭监控服务失败", zap.Error(err))
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("监控服务异常", zap.Error(err))
		}
	}()

	logger.Info("监控接口已启动", zap.String("addr", addr))
	return nil
}
