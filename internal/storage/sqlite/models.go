package sqlite

import "time"

// AttemptRecord is one extraction attempt as kept in the audit log
type AttemptRecord struct {
	ID         int64     `json:"id"`
	AttemptID  string    `json:"attempt_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Source     string    `json:"source"` // "http" or "session"
	TradeHint  string    `json:"trade_hint"`
	Transcript string    `json:"transcript"`
	Outcome    string    `json:"outcome"` // "success", "validation", "gateway" or "parse"
	Error      string    `json:"error,omitempty"`
	JobTitle   string    `json:"job_title,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
