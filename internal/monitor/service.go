// Package monitor 将回放事件与运行结果持久化到 SQLite。
package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"booktrader/internal/backtest"
	"booktrader/internal/store"
)

// Service 负责持久化监控事件与回放结果。
type Service struct {
	store  *store.Store
	db     *sql.DB
	runID  string
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:  store,
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL DEFAULT '',
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
CREATE TABLE IF NOT EXISTS backtest_runs (
	id TEXT PRIMARY KEY,
	strategy TEXT NOT NULL,
	status TEXT NOT NULL,
	processed INTEGER NOT NULL,
	total INTEGER NOT NULL,
	started_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	metrics TEXT NOT NULL
);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// ForRun 返回绑定到指定回放的服务副本，之后写入的事件会带上该 run_id。
func (s *Service) ForRun(runID string) *Service {
	clone := *s
	clone.runID = runID
	clone.logger = s.logger.With(zap.String("run_id", runID))
	return &clone
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RunID == "" {
		event.RunID = s.runID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (run_id, event_type, payload, created_at) VALUES (?, ?, ?, ?)`,
		event.RunID, string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// Notify 持久化回放完成事件。
func (s *Service) Notify(ctx context.Context, event backtest.Event) error {
	return s.Record(ctx, Event{
		Type:      EventType(event.Kind),
		Timestamp: time.Now().UTC(),
		Payload:   event,
	})
}

// RecordStart 记录回放开始。
func (s *Service) RecordStart(ctx context.Context, payload RunStartedPayload) {
	if err := s.Record(ctx, Event{Type: EventRunStarted, Payload: payload}); err != nil {
		s.logger.Warn("记录回放开始事件失败", zap.Error(err))
	}
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Error:   err.Error(),
		Context: ctxMap,
	}
	if recErr := s.Record(ctx, Event{
		Type:    EventError,
		Payload: payload,
	}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// RecordRun 保存回放结果并写入 run_finished 事件。
func (s *Service) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("monitor: run id 不能为空")
	}
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("monitor: 序列化绩效失败: %w", err)
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("monitor: 序列化回放失败: %w", err)
	}

	return s.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO backtest_runs (id, strategy, status, processed, total, started_at, duration_ms, metrics)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.Strategy, run.Status, run.Processed, run.Total,
			run.StartedAt.UTC().Format(time.RFC3339Nano), run.Duration.Milliseconds(), string(metrics),
		)
		if err != nil {
			return fmt.Errorf("monitor: 写入回放结果失败: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO monitor_events (run_id, event_type, payload, created_at) VALUES (?, ?, ?, ?)`,
			run.ID, string(EventRunFinished), string(payload), time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("monitor: 写入事件失败: %w", err)
		}
		return nil
	})
}

// ListRuns 按开始时间倒序返回最近的回放。
func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, strategy, status, processed, total, started_at, duration_ms, metrics
		 FROM backtest_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询回放失败: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run      Run
			started  string
			duration int64
			metrics  string
		)
		if err := rows.Scan(&run.ID, &run.Strategy, &run.Status, &run.Processed, &run.Total,
			&started, &duration, &metrics); err != nil {
			return nil, fmt.Errorf("monitor: 解析回放失败: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, started); parseErr == nil {
			run.StartedAt = ts
		}
		run.Duration = time.Duration(duration) * time.Millisecond
		if err := json.Unmarshal([]byte(metrics), &run.Metrics); err != nil {
			return nil, fmt.Errorf("monitor: 解析绩效失败: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取回放失败: %w", err)
	}
	return runs, nil
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT run_id, event_type, payload, created_at FROM monitor_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			runID   string
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&runID, &typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339Nano, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			RunID:     runID,
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}
