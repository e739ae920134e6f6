// Package stt defines the interface for speech recognition engines.
package stt

import (
	"context"
	"fmt"
)

// Callback receives recognition results from the engine.
type Callback interface {
	// OnPartial is called when an interim transcript segment is received.
	OnPartial(text string)

	// OnFinal is called when a segment is finalized.
	OnFinal(text string, confidence float64)

	// OnEnd is called once when the engine has stopped and will deliver nothing more.
	OnEnd()

	// OnError is called when recognition fails. No OnEnd follows an error.
	OnError(err error)
}

// Recognizer is one continuous, interim-enabled recognition session.
// A Recognizer may be started again after it has ended.
type Recognizer interface {
	// Start begins recognition and delivers results to cb.
	Start(ctx context.Context, cb Callback) error

	// SendAudio feeds audio to engines that consume server-side audio.
	// Engines that capture on the client ignore it.
	SendAudio(ctx context.Context, audio []byte) error

	// Close requests a graceful stop. Pending finals are still delivered before OnEnd.
	Close() error
}

// RecognitionCommand asks a client-side engine to start or stop recognizing.
type RecognitionCommand struct {
	Action         string `json:"action"` // start | stop
	Lang           string `json:"lang,omitempty"`
	Continuous     bool   `json:"continuous,omitempty"`
	InterimResults bool   `json:"interimResults,omitempty"`
}

// ClientLink is the connection to the client a voice session belongs to.
// Server-side engines ignore it.
type ClientLink interface {
	SendRecognition(cmd RecognitionCommand) error
}

// SegmentSink is implemented by recognizers whose results are produced by the
// client and relayed back over the session connection.
type SegmentSink interface {
	HandleSegment(text string, final bool, confidence float64)
	HandleEnded()
	HandleError(code string)
}

// Factory creates a recognizer for one voice session.
type Factory func(ctx context.Context, link ClientLink) (Recognizer, error)

// Engine-specific error codes carried by CaptureError.
const (
	CodeNoSpeech           = "no-speech"
	CodeAborted            = "aborted"
	CodeAudioCapture       = "audio-capture"
	CodeNetwork            = "network"
	CodeNotAllowed         = "not-allowed"
	CodeServiceNotAllowed  = "service-not-allowed"
	CodeLanguageNotAllowed = "language-not-supported"
	CodeNotSupported       = "not-supported"
	CodeLimitExceeded      = "limit-exceeded"
	CodeUnknown            = "unknown"
)

// CaptureError is a recognition failure with the engine's error code.
type CaptureError struct {
	Code string
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("speech recognition error: %s: %v", e.Code, e.Err)
	}
	return "speech recognition error: " + e.Code
}

func (e *CaptureError) Unwrap() error { return e.Err }
