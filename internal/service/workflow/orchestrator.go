package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tradietalk-voice-service/internal/models"
	"tradietalk-voice-service/internal/observability/logging"
	"tradietalk-voice-service/internal/observability/metrics"
	"tradietalk-voice-service/internal/service/capture"
	"tradietalk-voice-service/internal/service/extraction"
	"tradietalk-voice-service/internal/service/permission"
	"tradietalk-voice-service/internal/service/stt"
)

// Extractor turns a final transcript into a quote draft.
type Extractor interface {
	Extract(ctx context.Context, in extraction.Input) (models.ExtractionResult, error)
}

// Observer receives every state change and each Ready result.
// Calls are made in transition order and must not call back into the Orchestrator.
type Observer interface {
	OnStateChange(s State)
	OnResult(r models.ExtractionResult)
}

// Deps wires an Orchestrator.
type Deps struct {
	SessionID string
	Gate      permission.Gate
	Speech    stt.Availability
	Link      stt.ClientLink
	Extractor Extractor
	Observer  Observer
	Limits    capture.Limits
}

// Orchestrator runs at most one voice quote attempt at a time for one client.
type Orchestrator struct {
	sessionID  string
	gate       permission.Gate
	provider   string
	recognizer stt.Recognizer
	speechErr  error
	extractor  Extractor
	observer   Observer
	limits     capture.Limits
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	mu        sync.Mutex
	state     State
	capture   *capture.Session
	cancel    context.CancelFunc
	startedAt time.Time
}

// New creates an orchestrator. The recognizer is created once here and
// restarted for every recording.
func New(ctx context.Context, d Deps) *Orchestrator {
	if d.SessionID == "" {
		d.SessionID = uuid.NewString()
	}
	o := &Orchestrator{
		sessionID: d.SessionID,
		gate:      d.Gate,
		provider:  d.Speech.Provider(),
		extractor: d.Extractor,
		observer:  d.Observer,
		limits:    d.Limits,
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithSession(d.SessionID),
		state:     State{Phase: PhaseIdle, SessionID: d.SessionID},
	}
	o.recognizer, o.speechErr = d.Speech.New(ctx, d.Link)
	if o.speechErr != nil {
		o.logger.Warn().Err(o.speechErr).Str("reason", d.Speech.Reason()).Msg("Speech recognition unavailable")
	}
	return o
}

// SessionID returns the client session this orchestrator belongs to.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Sink returns the recognizer when its segments are relayed by the client, or nil.
func (o *Orchestrator) Sink() stt.SegmentSink {
	sink, _ := o.recognizer.(stt.SegmentSink)
	return sink
}

// StartVoiceQuote begins an attempt: permission, then recording.
// Returns ErrBusy while another attempt is in flight.
func (o *Orchestrator) StartVoiceQuote(ctx context.Context, hint models.TradeType) error {
	attempt := uuid.NewString()

	o.mu.Lock()
	next, err := Transition(o.state, Event{Type: EventStart, Attempt: attempt, TradeHint: hint})
	if err != nil {
		o.mu.Unlock()
		return err
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.startedAt = time.Now()
	o.setLocked(next)
	o.mu.Unlock()

	o.metrics.RecordSessionStart()
	go o.run(attemptCtx, attempt, next.TradeHint)
	return nil
}

// StopRecording requests the end of recording. Extraction follows once the
// engine delivers its last segment. Returns false outside Recording or when
// a stop was already requested.
func (o *Orchestrator) StopRecording() bool {
	o.mu.Lock()
	sess, phase := o.capture, o.state.Phase
	o.mu.Unlock()

	if phase != PhaseRecording || sess == nil {
		return false
	}
	return sess.Stop()
}

// SendAudio forwards client audio to the recording, if any.
func (o *Orchestrator) SendAudio(ctx context.Context, audio []byte) error {
	o.mu.Lock()
	sess := o.capture
	o.mu.Unlock()

	if sess == nil {
		return capture.ErrNotRecording
	}
	return sess.SendAudio(ctx, audio)
}

// Reset abandons any attempt in flight and returns to Idle with the transcript cleared.
// A gateway call in flight is cancelled and any late result is ignored.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	sess := o.capture
	o.capture = nil
	next, _ := Transition(o.state, Event{Type: EventReset})
	o.setLocked(next)
	o.mu.Unlock()

	if sess != nil {
		sess.Abort()
	}
}

// Close resets and releases the recognizer.
func (o *Orchestrator) Close() {
	o.Reset()
	if o.recognizer != nil {
		_ = o.recognizer.Close()
	}
}

func (o *Orchestrator) run(ctx context.Context, attempt string, hint models.TradeType) {
	logger := logging.WithAttempt(o.sessionID, attempt)

	if o.recognizer == nil {
		o.apply(Event{Type: EventCaptureFailed, Attempt: attempt, Err: o.speechErr})
		return
	}

	decision, err := o.gate.RequestAccess(ctx)
	if ctx.Err() != nil || errors.Is(err, permission.ErrPromptSuperseded) {
		return
	}
	o.metrics.RecordPermission(decision == permission.Granted)
	if decision != permission.Granted {
		var denied *permission.DeniedError
		if !errors.As(err, &denied) {
			reason := "denied"
			if err != nil {
				reason = err.Error()
			}
			err = &permission.DeniedError{Reason: reason}
		}
		logger.Info().Err(err).Msg("Microphone access denied")
		o.apply(Event{Type: EventPermissionDenied, Attempt: attempt, Err: err})
		return
	}

	sess := capture.NewSessionWithLimits(o.sessionID, o.provider, o.recognizer,
		&attemptListener{o: o, ctx: ctx, attempt: attempt, hint: hint}, o.limits)

	o.mu.Lock()
	next, err := Transition(o.state, Event{Type: EventPermissionGranted, Attempt: attempt})
	if err != nil {
		o.mu.Unlock()
		return
	}
	o.capture = sess
	o.setLocked(next)
	o.mu.Unlock()

	if err := sess.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("Recording failed to start")
		o.apply(Event{Type: EventCaptureFailed, Attempt: attempt, Err: err})
	}
}

func (o *Orchestrator) process(ctx context.Context, attempt string, hint models.TradeType, transcript string) {
	result, err := o.extractor.Extract(ctx, extraction.Input{
		Transcript: transcript,
		TradeHint:  hint,
		Source:     extraction.SourceSession,
		SessionID:  o.sessionID,
		AttemptID:  attempt,
	})
	if ctx.Err() != nil {
		logger := logging.WithAttempt(o.sessionID, attempt)
		logger.Info().Msg("Extraction result discarded after reset")
		return
	}
	if err != nil {
		o.apply(Event{Type: EventExtractionFailed, Attempt: attempt, Err: err})
		return
	}

	if _, ok := o.apply(Event{Type: EventExtracted, Attempt: attempt, Result: &result}); ok && o.observer != nil {
		o.observer.OnResult(result)
	}
}

// apply advances the state. Events from earlier attempts are dropped.
func (o *Orchestrator) apply(e Event) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, err := Transition(o.state, e)
	if err != nil {
		o.logger.Debug().Err(err).Str("event", e.Type.String()).Str("phase", o.state.Phase.String()).Msg("Event ignored")
		return o.state, false
	}
	if o.state.Phase.Busy() && !next.Phase.Busy() {
		o.capture = nil
		if o.cancel != nil {
			o.cancel()
			o.cancel = nil
		}
	}
	o.setLocked(next)
	return next, true
}

func (o *Orchestrator) setLocked(next State) {
	prev := o.state
	o.state = next
	if prev.Phase != next.Phase {
		o.metrics.RecordTransition(prev.Phase.String(), next.Phase.String())
		if prev.Phase.Busy() && !next.Phase.Busy() {
			o.metrics.RecordSessionEnd(time.Since(o.startedAt).Seconds())
		}
		ev := o.logger.Info().
			Str("attempt", next.Attempt).
			Str("from", prev.Phase.String()).
			Str("to", next.Phase.String())
		if next.Err != nil {
			ev = ev.Err(next.Err).Str("errorKind", KindOf(next.Err))
		}
		ev.Msg("Phase changed")
	}
	if o.observer != nil {
		o.observer.OnStateChange(next)
	}
}

// attemptListener binds recording callbacks to the attempt that started them.
type attemptListener struct {
	o       *Orchestrator
	ctx     context.Context
	attempt string
	hint    models.TradeType
}

func (l *attemptListener) OnTranscript(live string) {
	l.o.apply(Event{Type: EventTranscript, Attempt: l.attempt, Text: live})
}

func (l *attemptListener) OnCaptureEnd(final string) {
	next, ok := l.o.apply(Event{Type: EventCaptureEnded, Attempt: l.attempt, Text: final})
	if ok && next.Phase == PhaseProcessing {
		go l.o.process(l.ctx, l.attempt, l.hint, next.Transcript)
	}
}

func (l *attemptListener) OnCaptureError(err error, live string) {
	l.o.apply(Event{Type: EventCaptureFailed, Attempt: l.attempt, Err: err, Text: live})
}
