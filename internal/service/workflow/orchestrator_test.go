package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tradietalk-voice-service/internal/models"
	"tradietalk-voice-service/internal/service/capture"
	"tradietalk-voice-service/internal/service/extraction"
	"tradietalk-voice-service/internal/service/llm"
	"tradietalk-voice-service/internal/service/llm/mock"
	"tradietalk-voice-service/internal/service/permission"
	"tradietalk-voice-service/internal/service/stt"
	"tradietalk-voice-service/internal/service/stt/relay"
)

// testLink implements stt.ClientLink for testing
type testLink struct {
	mu       sync.Mutex
	commands []stt.RecognitionCommand
}

func (l *testLink) SendRecognition(cmd stt.RecognitionCommand) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commands = append(l.commands, cmd)
	return nil
}

func (l *testLink) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.commands))
	for i, c := range l.commands {
		out[i] = c.Action
	}
	return out
}

// testObserver implements Observer for testing
type testObserver struct {
	mu      sync.Mutex
	phases  []Phase
	results []models.ExtractionResult
}

func (o *testObserver) OnStateChange(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n := len(o.phases); n == 0 || o.phases[n-1] != s.Phase {
		o.phases = append(o.phases, s.Phase)
	}
}

func (o *testObserver) OnResult(r models.ExtractionResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, r)
}

func (o *testObserver) resultCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.results)
}

type fixture struct {
	orch    *Orchestrator
	link    *testLink
	obs     *testObserver
	gateway *mock.Gateway
}

func newFixture(t *testing.T, gate permission.Gate, gateway *mock.Gateway) *fixture {
	t.Helper()
	link := &testLink{}
	obs := &testObserver{}
	orch := New(context.Background(), Deps{
		SessionID: "sess-1",
		Gate:      gate,
		Speech:    stt.Available("relay", relay.Factory(relay.Config{LanguageCode: "en-AU", InterimResults: true})),
		Link:      link,
		Extractor: extraction.NewService(gateway),
		Observer:  obs,
		Limits:    capture.Limits{StopGrace: time.Second},
	})
	t.Cleanup(orch.Close)
	return &fixture{orch: orch, link: link, obs: obs, gateway: gateway}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (f *fixture) waitPhase(t *testing.T, p Phase) State {
	t.Helper()
	waitFor(t, "phase "+p.String(), func() bool { return f.orch.State().Phase == p })
	return f.orch.State()
}

// record starts a quote and waits until the client has been told to listen.
func (f *fixture) record(t *testing.T, hint models.TradeType) {
	t.Helper()
	if err := f.orch.StartVoiceQuote(context.Background(), hint); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "recognition start", func() bool { return len(f.link.actions()) >= 1 })
}

func TestOrchestrator_ConcreteSlabScenario(t *testing.T) {
	f := newFixture(t, permission.AllowAll(), mock.New())
	f.record(t, models.TradeGeneral)

	sink := f.orch.Sink()
	sink.HandleSegment("I need a quote for a 6 by", false, 0)
	sink.HandleSegment("I need a quote for a 6 by 4 meter concrete slab", true, 0.93)
	sink.HandleSegment("for Sarah Johnson's backyard in Melbourne", true, 0.91)

	if live := f.orch.State().Transcript; !strings.Contains(live, "concrete slab for Sarah") {
		t.Errorf("expected live transcript while recording, got %q", live)
	}

	if !f.orch.StopRecording() {
		t.Fatal("expected stop to be accepted")
	}
	sink.HandleEnded()

	s := f.waitPhase(t, PhaseReady)
	r := s.Result
	if r == nil {
		t.Fatal("expected a result in Ready")
	}
	if r.TradeType != models.TradeConcrete {
		t.Errorf("expected CONCRETE, got %s", r.TradeType)
	}
	if r.Measurements.Length == nil || *r.Measurements.Length != 6 || r.Measurements.Width == nil || *r.Measurements.Width != 4 {
		t.Errorf("unexpected measurements %+v", r.Measurements)
	}
	if r.Measurements.Unit == nil || *r.Measurements.Unit != models.UnitMeters {
		t.Errorf("expected meters, got %v", r.Measurements.Unit)
	}
	if r.ClientName == nil || *r.ClientName != "Sarah Johnson" {
		t.Errorf("unexpected client name %v", r.ClientName)
	}
	if r.Location == nil || !strings.Contains(*r.Location, "Melbourne") {
		t.Errorf("unexpected location %v", r.Location)
	}
	want := "I need a quote for a 6 by 4 meter concrete slab for Sarah Johnson's backyard in Melbourne"
	if r.OriginalText != want {
		t.Errorf("originalText = %q, want %q", r.OriginalText, want)
	}

	waitFor(t, "result handoff", func() bool { return f.obs.resultCount() == 1 })
	if got := f.link.actions(); len(got) != 2 || got[0] != "start" || got[1] != "stop" {
		t.Errorf("unexpected recognition commands %v", got)
	}

	f.obs.mu.Lock()
	defer f.obs.mu.Unlock()
	wantPhases := []Phase{PhaseRequestingPermission, PhaseRecording, PhaseProcessing, PhaseReady}
	if len(f.obs.phases) != len(wantPhases) {
		t.Fatalf("unexpected phases %v", f.obs.phases)
	}
	for i, p := range wantPhases {
		if f.obs.phases[i] != p {
			t.Errorf("phase %d = %s, want %s", i, f.obs.phases[i], p)
		}
	}
}

func TestOrchestrator_DoubleStopIsNoOp(t *testing.T) {
	f := newFixture(t, permission.AllowAll(), mock.New())
	f.record(t, models.TradeConcrete)
	f.orch.Sink().HandleSegment("pour a 6 by 4 metre slab", true, 0.9)

	first := f.orch.StopRecording()
	second := f.orch.StopRecording()
	f.orch.Sink().HandleEnded()
	f.waitPhase(t, PhaseReady)

	if !first || second {
		t.Errorf("expected stop results true/false, got %v/%v", first, second)
	}
	if f.gateway.Calls() != 1 {
		t.Errorf("expected exactly one extraction, got %d gateway calls", f.gateway.Calls())
	}
	if got := f.link.actions(); len(got) != 2 {
		t.Errorf("expected a single stop command, got %v", got)
	}
}

func TestOrchestrator_GatewayError_ThenReset(t *testing.T) {
	f := newFixture(t, permission.AllowAll(), mock.Failing(&llm.GatewayError{StatusCode: 500}))
	f.record(t, models.TradeGeneral)
	f.orch.Sink().HandleSegment("paint the fence", true, 0.9)
	f.orch.StopRecording()
	f.orch.Sink().HandleEnded()

	s := f.waitPhase(t, PhaseError)

	var gwErr *llm.GatewayError
	if !errors.As(s.Err, &gwErr) || gwErr.StatusCode != 500 {
		t.Errorf("expected GatewayError 500, got %v", s.Err)
	}
	if s.Transcript != "paint the fence" {
		t.Errorf("expected transcript to remain visible, got %q", s.Transcript)
	}
	if UserMessage(s.Err) != "Failed to process voice input. Please try again." {
		t.Errorf("unexpected user message %q", UserMessage(s.Err))
	}

	f.orch.Reset()
	s = f.orch.State()
	if s.Phase != PhaseIdle || s.Transcript != "" || s.Err != nil {
		t.Errorf("expected clean idle state after reset, got %+v", s)
	}
}

func TestOrchestrator_NonJSONIsParseError(t *testing.T) {
	f := newFixture(t, permission.AllowAll(), mock.Returning("Sure! Here is the quote you asked for."))
	f.record(t, models.TradeGeneral)
	f.orch.Sink().HandleSegment("tile the ensuite", true, 0.9)
	f.orch.StopRecording()
	f.orch.Sink().HandleEnded()

	s := f.waitPhase(t, PhaseError)

	if KindOf(s.Err) != KindParse {
		t.Errorf("expected parse error, got %s (%v)", KindOf(s.Err), s.Err)
	}
	if f.obs.resultCount() != 0 {
		t.Error("no result may be handed off after a parse error")
	}
}

func TestOrchestrator_PermissionDenied(t *testing.T) {
	f := newFixture(t, permission.Static{Reason: "NotAllowedError"}, mock.New())
	if err := f.orch.StartVoiceQuote(context.Background(), models.TradeGeneral); err != nil {
		t.Fatalf("start: %v", err)
	}

	s := f.waitPhase(t, PhaseError)

	if KindOf(s.Err) != KindPermission {
		t.Errorf("expected permission error, got %v", s.Err)
	}
	if len(f.link.actions()) != 0 {
		t.Error("recognition must not start without permission")
	}
	if err := f.orch.StartVoiceQuote(context.Background(), models.TradeGeneral); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected start from Error to require reset, got %v", err)
	}
}

func TestOrchestrator_SpeechUnavailable(t *testing.T) {
	obs := &testObserver{}
	orch := New(context.Background(), Deps{
		Gate:      permission.AllowAll(),
		Speech:    stt.Unavailable("relay", "no engine"),
		Extractor: extraction.NewService(mock.New()),
		Observer:  obs,
	})
	defer orch.Close()

	orch.StartVoiceQuote(context.Background(), models.TradeGeneral)
	waitFor(t, "error", func() bool { return orch.State().Phase == PhaseError })

	if got := UserMessage(orch.State().Err); got != "Speech recognition is not supported in this browser" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestOrchestrator_Busy(t *testing.T) {
	f := newFixture(t, permission.AllowAll(), mock.New())
	f.record(t, models.TradeGeneral)

	if err := f.orch.StartVoiceQuote(context.Background(), models.TradeGeneral); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestOrchestrator_CaptureError(t *testing.T) {
	f := newFixture(t, permission.AllowAll(), mock.New())
	f.record(t, models.TradeGeneral)
	f.orch.Sink().HandleSegment("half a sentence", false, 0)
	f.orch.Sink().HandleError(stt.CodeNoSpeech)

	s := f.waitPhase(t, PhaseError)

	if UserMessage(s.Err) != "Speech recognition error: no-speech" {
		t.Errorf("unexpected message %q", UserMessage(s.Err))
	}
	if s.Transcript != "half a sentence" {
		t.Errorf("expected heard text to remain visible, got %q", s.Transcript)
	}
	if f.gateway.Calls() != 0 {
		t.Error("gateway must not be called after a capture error")
	}
}

func TestOrchestrator_EmptyTranscriptNeverReachesGateway(t *testing.T) {
	f := newFixture(t, permission.AllowAll(), mock.New())
	f.record(t, models.TradeGeneral)
	f.orch.StopRecording()
	f.orch.Sink().HandleEnded()

	s := f.waitPhase(t, PhaseError)

	if KindOf(s.Err) != KindCapture {
		t.Errorf("expected capture error, got %v", s.Err)
	}
	if f.gateway.Calls() != 0 {
		t.Errorf("expected no gateway call, got %d", f.gateway.Calls())
	}
}

func TestOrchestrator_ResetDuringProcessingDiscardsResult(t *testing.T) {
	entered := make(chan struct{})
	gateway := mock.NewWithResponder(func(ctx context.Context, p llm.Prompt) (string, error) {
		close(entered)
		<-ctx.Done()
		return "", ctx.Err()
	})
	f := newFixture(t, permission.AllowAll(), gateway)
	f.record(t, models.TradeGeneral)
	f.orch.Sink().HandleSegment("deck for the back yard", true, 0.9)
	f.orch.StopRecording()
	f.orch.Sink().HandleEnded()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("extraction never started")
	}
	f.orch.Reset()
	time.Sleep(20 * time.Millisecond)

	if s := f.orch.State(); s.Phase != PhaseIdle {
		t.Errorf("expected Idle after reset, got %s", s.Phase)
	}
	if f.obs.resultCount() != 0 {
		t.Error("expected no result after reset")
	}
}

func TestOrchestrator_NewAttemptAfterReset(t *testing.T) {
	f := newFixture(t, permission.AllowAll(), mock.New())
	f.record(t, models.TradeGeneral)
	f.orch.Reset()

	if err := f.orch.StartVoiceQuote(context.Background(), models.TradePlumbing); err != nil {
		t.Fatalf("expected a new attempt after reset, got %v", err)
	}
	waitFor(t, "second recognition start", func() bool {
		a := f.link.actions()
		return len(a) > 0 && a[len(a)-1] == "start"
	})
	if s := f.orch.State(); s.TradeHint != models.TradePlumbing {
		t.Errorf("expected PLUMBING hint, got %s", s.TradeHint)
	}
}

// silentPrompter implements permission.Prompter and leaves every request unanswered
type silentPrompter struct {
	mu   sync.Mutex
	sent int
}

func (p *silentPrompter) SendPermissionRequest() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent++
	return nil
}

func (p *silentPrompter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

func TestOrchestrator_RestartWhilePromptPending(t *testing.T) {
	prompter := &silentPrompter{}
	gate := permission.NewPrompt(prompter, 0)
	f := newFixture(t, gate, mock.New())

	const rounds = 20
	for i := 1; i <= rounds; i++ {
		if err := f.orch.StartVoiceQuote(context.Background(), models.TradeGeneral); err != nil {
			t.Fatalf("round %d: start: %v", i, err)
		}
		waitFor(t, "permission request", func() bool { return prompter.count() == i })
		if s := f.orch.State(); s.Phase != PhaseRequestingPermission {
			t.Fatalf("round %d: expected RequestingPermission, got %s (%v)", i, s.Phase, s.Err)
		}
		f.orch.Reset()
	}

	if err := f.orch.StartVoiceQuote(context.Background(), models.TradeGeneral); err != nil {
		t.Fatalf("final start: %v", err)
	}
	waitFor(t, "final permission request", func() bool { return prompter.count() == rounds+1 })
	if !gate.Resolve(true, "") {
		t.Fatal("expected the latest request to accept the answer")
	}
	f.waitPhase(t, PhaseRecording)

	f.obs.mu.Lock()
	defer f.obs.mu.Unlock()
	for _, p := range f.obs.phases {
		if p == PhaseError {
			t.Fatalf("restart must never surface an error, phases: %v", f.obs.phases)
		}
	}
}
