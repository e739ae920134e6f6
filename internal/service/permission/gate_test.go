package permission

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// testPrompter implements Prompter for testing
type testPrompter struct {
	sent   atomic.Int32
	err    error
	onSend func()
}

func (p *testPrompter) SendPermissionRequest() error {
	p.sent.Add(1)
	if p.onSend != nil {
		go p.onSend()
	}
	return p.err
}

func TestPrompt_Granted(t *testing.T) {
	tp := &testPrompter{}
	gate := NewPrompt(tp, time.Second)
	tp.onSend = func() { gate.Resolve(true, "") }

	d, err := gate.RequestAccess(context.Background())

	if err != nil || d != Granted {
		t.Fatalf("expected granted, got %v, %v", d, err)
	}
	if tp.sent.Load() != 1 {
		t.Errorf("expected one access request, got %d", tp.sent.Load())
	}
}

func TestPrompt_Denied(t *testing.T) {
	tp := &testPrompter{}
	gate := NewPrompt(tp, time.Second)
	tp.onSend = func() { gate.Resolve(false, "NotAllowedError") }

	d, err := gate.RequestAccess(context.Background())

	var denied *DeniedError
	if d != Denied || !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v, %v", d, err)
	}
	if denied.Reason != "NotAllowedError" {
		t.Errorf("unexpected reason %q", denied.Reason)
	}
}

func TestPrompt_Timeout(t *testing.T) {
	gate := NewPrompt(&testPrompter{}, 20*time.Millisecond)

	d, err := gate.RequestAccess(context.Background())

	var denied *DeniedError
	if d != Denied || !errors.As(err, &denied) {
		t.Errorf("expected DeniedError on timeout, got %v, %v", d, err)
	}
}

func TestPrompt_ContextCancelled(t *testing.T) {
	gate := NewPrompt(&testPrompter{}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := gate.RequestAccess(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPrompt_SendFailure(t *testing.T) {
	sendErr := errors.New("socket closed")
	gate := NewPrompt(&testPrompter{err: sendErr}, time.Second)

	if _, err := gate.RequestAccess(context.Background()); !errors.Is(err, sendErr) {
		t.Errorf("expected send error, got %v", err)
	}
}

func TestPrompt_ResolveWithoutRequest(t *testing.T) {
	gate := NewPrompt(&testPrompter{}, time.Second)

	if gate.Resolve(true, "") {
		t.Error("expected Resolve without a pending request to be ignored")
	}
}

func TestPrompt_OneAnswerPerRequest(t *testing.T) {
	tp := &testPrompter{}
	gate := NewPrompt(tp, time.Second)
	results := make(chan bool, 2)
	tp.onSend = func() {
		results <- gate.Resolve(false, "first")
		results <- gate.Resolve(true, "second")
	}

	d, err := gate.RequestAccess(context.Background())

	if d != Denied || err == nil {
		t.Fatalf("expected the first answer to win, got %v, %v", d, err)
	}
	if !<-results || <-results {
		t.Error("expected only the first Resolve to be accepted")
	}
}

func waitPending(t *testing.T, gate *Prompt) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		gate.mu.Lock()
		waiting := gate.pending != nil
		gate.mu.Unlock()
		if waiting {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("request never became pending")
		}
		time.Sleep(time.Millisecond)
	}
}

// answerFromSecondRequest grants once a second request has been sent, leaving
// the first one unanswered.
func answerFromSecondRequest(tp *testPrompter, gate *Prompt) func() {
	return func() {
		if tp.sent.Load() >= 2 {
			gate.Resolve(true, "")
		}
	}
}

func TestPrompt_NewRequestSupersedesPending(t *testing.T) {
	tp := &testPrompter{}
	gate := NewPrompt(tp, 0)
	tp.onSend = answerFromSecondRequest(tp, gate)
	firstErr := make(chan error, 1)
	go func() {
		_, err := gate.RequestAccess(context.Background())
		firstErr <- err
	}()
	waitPending(t, gate)

	d, err := gate.RequestAccess(context.Background())
	if err != nil || d != Granted {
		t.Fatalf("expected the newer request to be granted, got %v, %v", d, err)
	}

	select {
	case err := <-firstErr:
		if !errors.Is(err, ErrPromptSuperseded) {
			t.Errorf("expected ErrPromptSuperseded for the older request, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("older request was never released")
	}
	if tp.sent.Load() != 2 {
		t.Errorf("expected two access requests, got %d", tp.sent.Load())
	}
}

func TestPrompt_RequestAfterCancelledRequest(t *testing.T) {
	for i := 0; i < 50; i++ {
		tp := &testPrompter{}
		gate := NewPrompt(tp, 0)
		tp.onSend = answerFromSecondRequest(tp, gate)

		ctx, cancel := context.WithCancel(context.Background())
		firstDone := make(chan struct{})
		go func() {
			gate.RequestAccess(ctx)
			close(firstDone)
		}()
		waitPending(t, gate)

		// The cancelled request may still be unwinding when the next one arrives.
		cancel()
		d, err := gate.RequestAccess(context.Background())
		if err != nil || d != Granted {
			t.Fatalf("iteration %d: expected granted after a cancelled request, got %v, %v", i, d, err)
		}
		<-firstDone
	}
}

func TestStatic(t *testing.T) {
	if d, err := AllowAll().RequestAccess(context.Background()); d != Granted || err != nil {
		t.Errorf("expected granted, got %v, %v", d, err)
	}

	d, err := Static{Reason: "disabled"}.RequestAccess(context.Background())
	var denied *DeniedError
	if d != Denied || !errors.As(err, &denied) {
		t.Errorf("expected DeniedError, got %v, %v", d, err)
	}
	if denied.Error() != "microphone access denied: disabled" {
		t.Errorf("unexpected message %q", denied.Error())
	}
}
