package monitor

import (
	"time"

	"booktrader/internal/performance"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventStrategyUpdate EventType = "strategy_update"
	EventRunFinished    EventType = "run_finished"
	EventError          EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	RunID     string      `json:"run_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Run 记录一次回放的结果。
type Run struct {
	ID        string              `json:"id"`
	Strategy  string              `json:"strategy"`
	Status    string              `json:"status"`
	Processed int                 `json:"processed"`
	Total     int                 `json:"total"`
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration"`
	Metrics   performance.Metrics `json:"metrics"`
}

// RunStartedPayload 记录回放参数。
type RunStartedPayload struct {
	Strategy   string    `json:"strategy"`
	Snapshots  int       `json:"snapshots"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Indicators []string  `json:"indicators"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
