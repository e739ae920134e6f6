package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradietalk-voice-service/internal/observability/logging"
	"tradietalk-voice-service/internal/observability/metrics"
	"tradietalk-voice-service/internal/service/stt"
)

// Limits defines safety guardrails for a recording.
// These prevent unbounded resource usage and ensure backpressure.
type Limits struct {
	MaxAudioBytes int64         // Max audio accepted per recording
	MaxDuration   time.Duration // Max recording duration
	MaxSegments   int           // Max interim + final segments per recording
	StopGrace     time.Duration // How long to wait for the engine to end after stop
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 5 * 1024 * 1024, // 5MB (~5 minutes at 8kHz 16-bit mono)
		MaxDuration:   5 * time.Minute,
		MaxSegments:   500,
		StopGrace:     5 * time.Second,
	}
}

// Listener receives the observable outcome of a recording.
type Listener interface {
	// OnTranscript is called with the live transcript after every segment.
	OnTranscript(live string)

	// OnCaptureEnd is called once when recording ended normally, with the final transcript.
	OnCaptureEnd(final string)

	// OnCaptureError is called once when recording failed, with the transcript heard so far.
	OnCaptureError(err error, live string)
}

// Session manages one recording.
// It implements stt.Callback to receive segments from the engine.
// Uses an explicit lifecycle state machine so each recording ends exactly once.
type Session struct {
	id         string
	provider   string
	recognizer stt.Recognizer
	listener   Listener
	limits     Limits
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	lifecycle  *Lifecycle
	transcript *Transcript

	mu         sync.Mutex
	startedAt  time.Time
	audioBytes int64
	timers     []*time.Timer
}

// NewSession creates a recording session with default limits.
func NewSession(id, provider string, rec stt.Recognizer, listener Listener) *Session {
	return NewSessionWithLimits(id, provider, rec, listener, DefaultLimits())
}

// NewSessionWithLimits creates a recording session with custom limits.
func NewSessionWithLimits(id, provider string, rec stt.Recognizer, listener Listener, limits Limits) *Session {
	return &Session{
		id:         id,
		provider:   provider,
		recognizer: rec,
		listener:   listener,
		limits:     limits,
		metrics:    metrics.DefaultMetrics,
		logger:     logging.WithCapture(id, provider),
		lifecycle:  NewLifecycle(),
		transcript: NewTranscript(),
	}
}

// Start begins recording with an empty transcript.
func (s *Session) Start(ctx context.Context) error {
	if err := s.lifecycle.Begin(); err != nil {
		return err
	}

	s.mu.Lock()
	s.transcript = NewTranscript()
	s.startedAt = time.Now()
	s.audioBytes = 0
	if s.limits.MaxDuration > 0 {
		s.timers = append(s.timers, time.AfterFunc(s.limits.MaxDuration, func() {
			s.exceed("duration", fmt.Sprintf("max duration exceeded: %v", s.limits.MaxDuration))
		}))
	}
	s.mu.Unlock()

	if err := s.recognizer.Start(ctx, s); err != nil {
		s.stopTimers()
		s.lifecycle.Fail()
		s.transcript.Freeze()
		return captureError(err)
	}

	s.logger.Info().Msg("Recording started")
	return nil
}

// SendAudio forwards audio bytes to the engine.
// Returns error if the audio limit is exceeded (the recording fails).
func (s *Session) SendAudio(ctx context.Context, audio []byte) error {
	if !s.lifecycle.IsActive() {
		return ErrNotRecording
	}

	s.mu.Lock()
	s.audioBytes += int64(len(audio))
	current := s.audioBytes
	s.mu.Unlock()
	s.metrics.RecordAudioReceived(len(audio))

	if s.limits.MaxAudioBytes > 0 && current > s.limits.MaxAudioBytes {
		reason := fmt.Sprintf("max audio bytes exceeded: %d > %d", current, s.limits.MaxAudioBytes)
		s.exceed("audio_bytes", reason)
		return fmt.Errorf("recording limit exceeded: %s", reason)
	}

	return s.recognizer.SendAudio(ctx, audio)
}

// Stop requests a graceful end. Trailing finals are still applied.
// Returns false, doing nothing, unless the session is recording.
func (s *Session) Stop() bool {
	if !s.lifecycle.RequestStop() {
		s.logger.Debug().Str("state", s.lifecycle.State().String()).Msg("Stop ignored")
		return false
	}

	if err := s.recognizer.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Engine close failed, finishing recording")
		s.OnEnd()
		return true
	}

	if s.limits.StopGrace > 0 {
		s.mu.Lock()
		s.timers = append(s.timers, time.AfterFunc(s.limits.StopGrace, func() {
			if s.lifecycle.State() == StateStopping {
				s.logger.Warn().Dur("grace", s.limits.StopGrace).Msg("Engine did not end after stop, finishing recording")
				s.OnEnd()
			}
		}))
		s.mu.Unlock()
	}
	return true
}

// Abort ends the recording without notifying the listener.
func (s *Session) Abort() {
	if s.lifecycle.Fail() {
		s.stopTimers()
		s.transcript.Freeze()
		_ = s.recognizer.Close()
		s.logger.Info().Msg("Recording aborted")
	}
}

// Reset aborts any active recording and returns the session to IDLE so it can record again.
func (s *Session) Reset() {
	s.Abort()
	s.lifecycle.Reset()
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.lifecycle.State()
}

// Transcript returns the transcript of the current recording.
func (s *Session) Transcript() *Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// Metrics holds current recording usage.
type Metrics struct {
	AudioBytes int64
	Segments   int
	Duration   time.Duration
}

// GetMetrics returns current recording usage for observability.
func (s *Session) GetMetrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Metrics{
		AudioBytes: s.audioBytes,
		Segments:   s.transcript.Len(),
		Duration:   time.Since(s.startedAt),
	}
}

// --- stt.Callback implementation ---

// OnPartial is called when an interim segment is received.
func (s *Session) OnPartial(text string) {
	if !s.apply(text, false) {
		return
	}
	s.metrics.RecordPartialSegment()
}

// OnFinal is called when a final segment is received.
func (s *Session) OnFinal(text string, confidence float64) {
	if !s.apply(text, true) {
		return
	}
	s.metrics.RecordFinalSegment()
	s.logger.Debug().Float64("confidence", confidence).Msg("Final segment")
}

// OnEnd is called when the engine has stopped. The transcript is frozen and
// handed to the listener.
func (s *Session) OnEnd() {
	if !s.lifecycle.Finish() {
		return
	}
	s.stopTimers()
	t := s.Transcript()
	t.Freeze()
	final := t.Final()

	s.logger.Info().
		Int("segments", t.Len()).
		Int("finalLength", len(final)).
		Msg("Recording ended")

	s.listener.OnCaptureEnd(final)
}

// OnError is called when the engine fails. No final transcript is delivered.
func (s *Session) OnError(err error) {
	s.fail(captureError(err))
}

func (s *Session) apply(text string, final bool) bool {
	if !s.lifecycle.IsActive() {
		s.logger.Debug().Bool("final", final).Str("state", s.lifecycle.State().String()).Msg("Segment ignored")
		return false
	}

	t := s.Transcript()
	if !t.Append(text, final) {
		return false
	}

	if s.limits.MaxSegments > 0 && t.Len() > s.limits.MaxSegments {
		s.exceed("segments", fmt.Sprintf("max segments exceeded: %d > %d", t.Len(), s.limits.MaxSegments))
		return false
	}

	s.listener.OnTranscript(t.Live())
	return true
}

func (s *Session) exceed(limitType, reason string) {
	if !s.lifecycle.IsActive() {
		return
	}
	s.metrics.RecordLimitExceeded(limitType)
	_ = s.recognizer.Close()
	s.fail(&stt.CaptureError{Code: stt.CodeLimitExceeded, Err: errors.New(reason)})
}

func (s *Session) fail(err *stt.CaptureError) {
	if !s.lifecycle.Fail() {
		return
	}
	s.stopTimers()
	t := s.Transcript()
	t.Freeze()

	s.metrics.RecordCaptureError(s.provider, err.Code)
	s.logger.Warn().Err(err).Str("code", err.Code).Msg("Recording failed")

	s.listener.OnCaptureError(err, t.Live())
}

func (s *Session) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// captureError keeps an engine CaptureError as is and tags anything else as unknown.
func captureError(err error) *stt.CaptureError {
	var cErr *stt.CaptureError
	if errors.As(err, &cErr) {
		return cErr
	}
	return &stt.CaptureError{Code: stt.CodeUnknown, Err: err}
}
