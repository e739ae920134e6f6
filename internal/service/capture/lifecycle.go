// Package capture owns one recording: its lifecycle, its transcript and the
// limits applied while a speech engine is feeding it.
package capture

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a recording.
type State int

const (
	// StateIdle - No recording. The only state a recording can start from.
	StateIdle State = iota
	// StateRecording - The engine is listening and segments are applied.
	StateRecording
	// StateStopping - Stop was requested; trailing finals are still applied.
	StateStopping
	// StateStopped - The engine ended and the transcript is frozen.
	StateStopped
	// StateErrored - The recording failed. Terminal until Reset.
	StateErrored
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	case StateErrored:
		return "ERRORED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (STOPPED or ERRORED).
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateErrored
}

// IsActive returns true while segments are still accepted.
func (s State) IsActive() bool {
	return s == StateRecording || s == StateStopping
}

// Errors for invalid state transitions.
var (
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNotIdle          = errors.New("recording must be reset before starting again")
	ErrNotRecording     = errors.New("not recording")
)

// Lifecycle manages the state machine for a single recording.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE → RECORDING → STOPPING → STOPPED
//	          │            │
//	          │            └── Fail() ──→ ERRORED
//	          ├── Finish() (natural end) ──→ STOPPED
//	          └── Fail() ──→ ERRORED
//
//	STOPPED | ERRORED ── Reset() ──→ IDLE
//
// Rules:
//   - RequestStop only acts in RECORDING; a second stop is a no-op
//   - Finish and Fail each win at most once per recording
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a new lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsActive returns true if segments are still accepted.
func (l *Lifecycle) IsActive() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsActive()
}

// Begin transitions IDLE to RECORDING.
func (l *Lifecycle) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateIdle:
		l.state = StateRecording
		return nil
	case StateRecording, StateStopping:
		return ErrAlreadyRecording
	default:
		return ErrNotIdle
	}
}

// RequestStop transitions RECORDING to STOPPING.
// Returns false, changing nothing, from any other state.
func (l *Lifecycle) RequestStop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateRecording {
		return false
	}
	l.state = StateStopping
	return true
}

// Finish transitions an active recording to STOPPED.
// Returns false if the recording already ended.
func (l *Lifecycle) Finish() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.state.IsActive() {
		return false
	}
	l.state = StateStopped
	return true
}

// Fail transitions an active recording to ERRORED.
// Returns false if the recording already ended.
func (l *Lifecycle) Fail() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.state.IsActive() {
		return false
	}
	l.state = StateErrored
	return true
}

// Reset returns the lifecycle to IDLE from any state. Idempotent.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateIdle
}
