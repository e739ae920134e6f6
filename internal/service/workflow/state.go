// Package workflow sequences a voice quote: permission, recording, extraction.
// Its state is an explicit value advanced by the pure Transition function.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"tradietalk-voice-service/internal/models"
	"tradietalk-voice-service/internal/service/stt"
)

// Phase is the observable stage of a voice quote.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequestingPermission
	PhaseRecording
	PhaseProcessing
	PhaseReady
	PhaseError
)

var phaseNames = map[Phase]string{
	PhaseIdle:                 "idle",
	PhaseRequestingPermission: "requesting_permission",
	PhaseRecording:            "recording",
	PhaseProcessing:           "processing",
	PhaseReady:                "ready",
	PhaseError:                "error",
}

func (p Phase) String() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Busy reports whether an attempt is in flight.
func (p Phase) Busy() bool {
	return p == PhaseRequestingPermission || p == PhaseRecording || p == PhaseProcessing
}

// State is a snapshot of one orchestrator.
//
// Result stays set after the Ready result has been handed to the Observer,
// so clients that join or poll late still see the final draft. It is cleared
// by reset, which a new start from Ready requires.
type State struct {
	Phase      Phase
	SessionID  string
	Attempt    string
	TradeHint  models.TradeType
	Transcript string
	Result     *models.ExtractionResult
	Err        error
}

// EventType names what happened to an attempt.
type EventType int

const (
	EventStart EventType = iota
	EventPermissionGranted
	EventPermissionDenied
	EventTranscript
	EventCaptureEnded
	EventCaptureFailed
	EventExtracted
	EventExtractionFailed
	EventReset
)

var eventNames = [...]string{
	"start", "permission_granted", "permission_denied", "transcript",
	"capture_ended", "capture_failed", "extracted", "extraction_failed", "reset",
}

func (e EventType) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("unknown(%d)", int(e))
}

// Event drives a transition. Attempt must match the state's attempt for
// every event except Start and Reset.
type Event struct {
	Type      EventType
	Attempt   string
	TradeHint models.TradeType
	Text      string
	Result    *models.ExtractionResult
	Err       error
}

// Errors for rejected transitions.
var (
	ErrBusy              = errors.New("a voice quote is already in progress")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrStaleAttempt      = errors.New("event belongs to an earlier attempt")
)

// Transition returns the state after e. s is never modified.
func Transition(s State, e Event) (State, error) {
	switch e.Type {
	case EventStart:
		if s.Phase.Busy() {
			return s, ErrBusy
		}
		if s.Phase != PhaseIdle {
			return s, fmt.Errorf("%w: start from %s requires reset", ErrInvalidTransition, s.Phase)
		}
		hint := e.TradeHint
		if hint == "" {
			hint = models.TradeGeneral
		}
		return State{
			Phase:     PhaseRequestingPermission,
			SessionID: s.SessionID,
			Attempt:   e.Attempt,
			TradeHint: hint,
		}, nil

	case EventReset:
		return State{Phase: PhaseIdle, SessionID: s.SessionID}, nil
	}

	if e.Attempt != s.Attempt {
		return s, ErrStaleAttempt
	}

	next := s
	switch {
	case e.Type == EventPermissionGranted && s.Phase == PhaseRequestingPermission:
		next.Phase = PhaseRecording

	case e.Type == EventPermissionDenied && s.Phase == PhaseRequestingPermission:
		next.Phase = PhaseError
		next.Err = e.Err

	case e.Type == EventTranscript && s.Phase == PhaseRecording:
		next.Transcript = e.Text

	case e.Type == EventCaptureEnded && s.Phase == PhaseRecording:
		next.Transcript = e.Text
		if strings.TrimSpace(e.Text) == "" {
			next.Phase = PhaseError
			next.Err = &stt.CaptureError{Code: stt.CodeNoSpeech}
			break
		}
		next.Phase = PhaseProcessing

	case e.Type == EventCaptureFailed && (s.Phase == PhaseRequestingPermission || s.Phase == PhaseRecording):
		if e.Text != "" {
			next.Transcript = e.Text
		}
		next.Phase = PhaseError
		next.Err = e.Err

	case e.Type == EventExtracted && s.Phase == PhaseProcessing:
		if e.Result == nil {
			return s, fmt.Errorf("%w: extracted without a result", ErrInvalidTransition)
		}
		next.Phase = PhaseReady
		next.Result = e.Result

	case e.Type == EventExtractionFailed && s.Phase == PhaseProcessing:
		next.Phase = PhaseError
		next.Err = e.Err

	default:
		return s, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, e.Type, s.Phase)
	}
	return next, nil
}
