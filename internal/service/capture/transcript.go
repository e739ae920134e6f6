package capture

import (
	"strings"
	"sync"
	"time"
)

// Segment is one recognized piece of speech.
type Segment struct {
	Seq   int
	Text  string
	Final bool
	At    time.Time
}

// Transcript is the append-only, ordered record of one recording.
// The canonical text is the space-joined concatenation of final segments.
type Transcript struct {
	mu       sync.RWMutex
	segments []Segment
	frozen   bool
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append records a segment in arrival order.
// Returns false once the transcript is frozen.
func (t *Transcript) Append(text string, final bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return false
	}
	t.segments = append(t.segments, Segment{
		Seq:   len(t.segments) + 1,
		Text:  text,
		Final: final,
		At:    time.Now(),
	})
	return true
}

// Final returns the concatenation of all final segments.
func (t *Transcript) Final() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.finalLocked()
}

// Live returns the final text followed by any interim text heard since the last final.
func (t *Transcript) Live() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	final := t.finalLocked()
	if n := len(t.segments); n > 0 && !t.segments[n-1].Final {
		interim := strings.TrimSpace(t.segments[n-1].Text)
		if interim == "" {
			return final
		}
		if final == "" {
			return interim
		}
		return final + " " + interim
	}
	return final
}

func (t *Transcript) finalLocked() string {
	parts := make([]string, 0, len(t.segments))
	for _, s := range t.segments {
		if !s.Final {
			continue
		}
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Segments returns a copy of all segments.
func (t *Transcript) Segments() []Segment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Segment(nil), t.segments...)
}

// Len returns the number of segments recorded.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.segments)
}

// Freeze makes the transcript read-only. Idempotent.
func (t *Transcript) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

// Frozen reports whether the transcript is read-only.
func (t *Transcript) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}
