// Package relay provides a recognizer backed by the client's own speech engine.
// The server asks the client to start or stop recognition and receives the
// segments it recognizes over the session connection.
package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"tradietalk-voice-service/internal/service/stt"
)

// Config holds the settings sent to the client engine.
type Config struct {
	LanguageCode   string
	InterimResults bool
}

// ErrNoClient is returned when a relay recognizer has no client connection.
var ErrNoClient = errors.New("relay recognizer has no client link")

// Factory returns an stt.Factory binding each recognizer to its session's client.
func Factory(cfg Config) stt.Factory {
	return func(_ context.Context, link stt.ClientLink) (stt.Recognizer, error) {
		if link == nil {
			return nil, ErrNoClient
		}
		return New(link, cfg), nil
	}
}

// Adapter implements stt.Recognizer and stt.SegmentSink.
type Adapter struct {
	link stt.ClientLink
	cfg  Config

	mu     sync.Mutex
	cb     stt.Callback
	active bool
}

// New creates a relay recognizer for one client.
func New(link stt.ClientLink, cfg Config) *Adapter {
	return &Adapter{link: link, cfg: cfg}
}

// Start asks the client to begin continuous recognition.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	a.cb = cb
	a.active = true
	a.mu.Unlock()

	err := a.link.SendRecognition(stt.RecognitionCommand{
		Action:         "start",
		Lang:           a.cfg.LanguageCode,
		Continuous:     true,
		InterimResults: a.cfg.InterimResults,
	})
	if err != nil {
		a.mu.Lock()
		a.active = false
		a.mu.Unlock()
		return &stt.CaptureError{Code: stt.CodeNetwork, Err: err}
	}
	return nil
}

// SendAudio is a no-op: audio never leaves the client.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	return nil
}

// Close asks the client to stop. The client reports trailing finals, then ended.
func (a *Adapter) Close() error {
	a.mu.Lock()
	active := a.active
	a.mu.Unlock()

	if !active {
		return nil
	}
	return a.link.SendRecognition(stt.RecognitionCommand{Action: "stop"})
}

// HandleSegment delivers a segment recognized by the client.
func (a *Adapter) HandleSegment(text string, final bool, confidence float64) {
	cb := a.callback()
	if cb == nil {
		log.Debug().Str("sttProvider", "relay").Msg("Segment ignored, recognition not active")
		return
	}
	if final {
		cb.OnFinal(text, confidence)
	} else {
		cb.OnPartial(text)
	}
}

// HandleEnded reports that the client engine stopped.
func (a *Adapter) HandleEnded() {
	if cb := a.finish(); cb != nil {
		cb.OnEnd()
	}
}

// HandleError reports a client engine failure with its error code.
func (a *Adapter) HandleError(code string) {
	if code == "" {
		code = stt.CodeUnknown
	}
	if cb := a.finish(); cb != nil {
		cb.OnError(&stt.CaptureError{Code: code})
	}
}

func (a *Adapter) callback() stt.Callback {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return nil
	}
	return a.cb
}

func (a *Adapter) finish() stt.Callback {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return nil
	}
	a.active = false
	return a.cb
}
