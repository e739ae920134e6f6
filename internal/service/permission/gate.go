// Package permission decides whether a voice session may use the microphone
// before any recording starts.
package permission

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Decision is the outcome of an access request.
type Decision int

const (
	Denied Decision = iota
	Granted
)

func (d Decision) String() string {
	if d == Granted {
		return "granted"
	}
	return "denied"
}

// Gate must grant access before capture starts. A denial is final for the attempt.
type Gate interface {
	RequestAccess(ctx context.Context) (Decision, error)
}

// DeniedError reports that microphone access was refused.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	if e.Reason == "" {
		return "microphone access denied"
	}
	return "microphone access denied: " + e.Reason
}

// ErrPromptSuperseded is returned to a waiting request when a newer request
// replaces it before the client answered.
var ErrPromptSuperseded = errors.New("permission prompt superseded by a newer request")

// Prompter asks the client to open and release its microphone.
type Prompter interface {
	SendPermissionRequest() error
}

type answer struct {
	granted bool
	reason  string
}

type waiter struct {
	answer     chan answer
	superseded chan struct{}
}

// Prompt is a Gate answered by the client that holds the microphone.
// The client opens the device, releases it immediately and reports the result
// through Resolve. At most one request waits at a time: a new request replaces
// the waiting one, whose caller gets ErrPromptSuperseded.
type Prompt struct {
	prompter Prompter
	timeout  time.Duration

	mu      sync.Mutex
	pending *waiter
}

// NewPrompt creates a client-answered gate. A zero timeout waits for ctx only.
func NewPrompt(p Prompter, timeout time.Duration) *Prompt {
	return &Prompt{prompter: p, timeout: timeout}
}

// RequestAccess sends the access request and waits for exactly one answer.
func (p *Prompt) RequestAccess(ctx context.Context) (Decision, error) {
	w := &waiter{answer: make(chan answer, 1), superseded: make(chan struct{})}

	p.mu.Lock()
	if p.pending != nil {
		close(p.pending.superseded)
		log.Debug().Msg("Pending permission prompt replaced by a new request")
	}
	p.pending = w
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.pending == w {
			p.pending = nil
		}
		p.mu.Unlock()
	}()

	if err := p.prompter.SendPermissionRequest(); err != nil {
		return Denied, err
	}

	var timeout <-chan time.Time
	if p.timeout > 0 {
		t := time.NewTimer(p.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case a := <-w.answer:
		if !a.granted {
			return Denied, &DeniedError{Reason: a.reason}
		}
		return Granted, nil
	case <-w.superseded:
		return Denied, ErrPromptSuperseded
	case <-timeout:
		return Denied, &DeniedError{Reason: "no answer from client"}
	case <-ctx.Done():
		return Denied, ctx.Err()
	}
}

// Resolve delivers the client's answer to the most recent request. It returns
// false when no request is waiting.
func (p *Prompt) Resolve(granted bool, reason string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		log.Debug().Bool("granted", granted).Msg("Permission answer ignored, no prompt pending")
		return false
	}
	select {
	case p.pending.answer <- answer{granted: granted, reason: reason}:
		p.pending = nil
		return true
	default:
		return false
	}
}

// Static is a Gate with a fixed answer, used for server-side engines and tests.
type Static struct {
	Allow  bool
	Reason string
}

// AllowAll grants every request.
func AllowAll() Static {
	return Static{Allow: true}
}

// RequestAccess returns the configured answer.
func (s Static) RequestAccess(ctx context.Context) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Denied, err
	}
	if !s.Allow {
		return Denied, &DeniedError{Reason: s.Reason}
	}
	return Granted, nil
}
