package stt

import "context"

// Availability is the result of probing the platform for a recognition engine.
// It is either Available with a factory or Unavailable with a reason.
type Availability struct {
	provider string
	factory  Factory
	reason   string
}

// Available wraps a working engine.
func Available(provider string, f Factory) Availability {
	return Availability{provider: provider, factory: f}
}

// Unavailable records why no engine can be used.
func Unavailable(provider, reason string) Availability {
	return Availability{provider: provider, reason: reason}
}

// OK reports whether an engine is available.
func (a Availability) OK() bool { return a.factory != nil }

// Provider names the probed engine.
func (a Availability) Provider() string { return a.provider }

// Reason explains an Unavailable result.
func (a Availability) Reason() string { return a.reason }

// New creates a recognizer, or a not-supported CaptureError when unavailable.
func (a Availability) New(ctx context.Context, link ClientLink) (Recognizer, error) {
	if a.factory == nil {
		return nil, &CaptureError{Code: CodeNotSupported}
	}
	return a.factory(ctx, link)
}
