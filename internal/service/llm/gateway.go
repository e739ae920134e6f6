// Package llm defines the interface for completion gateways used to extract quotes.
package llm

import (
	"context"
	"fmt"
)

// Prompt is the two-message instruction sent to the model.
type Prompt struct {
	System string
	User   string
}

// Gateway sends one prompt to a completion endpoint and returns the model's raw text.
// Implementations hold no state between calls and never retry.
type Gateway interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// GatewayError is a transport failure or a non-success response from the endpoint.
type GatewayError struct {
	StatusCode int  // 0 when no response was received
	Timeout    bool // the call exceeded its deadline
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("llm gateway timeout: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("LLM API error: %d", e.StatusCode)
	default:
		return fmt.Sprintf("llm gateway transport error: %v", e.Err)
	}
}

func (e *GatewayError) Unwrap() error { return e.Err }

// EnvelopeError means the endpoint answered 2xx but the body was not a usable completion.
type EnvelopeError struct {
	Reason string
	Err    error
}

func (e *EnvelopeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed completion envelope: %s: %v", e.Reason, e.Err)
	}
	return "malformed completion envelope: " + e.Reason
}

func (e *EnvelopeError) Unwrap() error { return e.Err }
