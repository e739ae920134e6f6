package models

// ExtractionCompleted is published when a transcript was turned into a quote draft.
type ExtractionCompleted struct {
	EventType  string           `json:"eventType"`
	AttemptID  string           `json:"attemptId"`
	SessionID  string           `json:"sessionId,omitempty"`
	Source     string           `json:"source"`
	TradeHint  TradeType        `json:"tradeHint"`
	Result     ExtractionResult `json:"result"`
	DurationMs int64            `json:"durationMs"`
	Timestamp  int64            `json:"timestamp"`
}

// ExtractionFailed is published when an extraction attempt ended without a result.
type ExtractionFailed struct {
	EventType  string    `json:"eventType"`
	AttemptID  string    `json:"attemptId"`
	SessionID  string    `json:"sessionId,omitempty"`
	Source     string    `json:"source"`
	TradeHint  TradeType `json:"tradeHint"`
	ErrorKind  string    `json:"errorKind"`
	Error      string    `json:"error"`
	Transcript string    `json:"transcript"`
	DurationMs int64     `json:"durationMs"`
	Timestamp  int64     `json:"timestamp"`
}
