// Package mock provides a mock speech recognizer for running without a real engine.
// It simulates progressive interim segments, one final per segment, and a natural
// end of recognition once its script is exhausted.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradietalk-voice-service/internal/service/stt"
)

// Segment is one recognized phrase with its progressive interim transcripts.
type Segment struct {
	Partials   []string
	Final      string
	Confidence float64
}

// Script is what the mock "hears" during one recording.
type Script struct {
	Segments  []Segment
	ErrorCode string // if set, recognition fails with this code instead of ending
}

// DefaultScripts are tradie dictations the mock cycles through.
var DefaultScripts = []Script{
	{Segments: []Segment{
		{
			Partials:   []string{"I need a quote", "I need a quote for a 6 by 4"},
			Final:      "I need a quote for a 6 by 4 meter concrete slab",
			Confidence: 0.93,
		},
		{
			Partials:   []string{"for Sarah Johnson's", "for Sarah Johnson's backyard"},
			Final:      "for Sarah Johnson's backyard in Melbourne",
			Confidence: 0.91,
		},
	}},
	{Segments: []Segment{
		{
			Partials:   []string{"Retile the main", "Retile the main bathroom floor"},
			Final:      "Retile the main bathroom floor about 8 square metres",
			Confidence: 0.9,
		},
		{
			Partials:   []string{"client is Tom Nguyen"},
			Final:      "client is Tom Nguyen in Geelong, no rush",
			Confidence: 0.88,
		},
	}},
	{Segments: []Segment{
		{
			Partials:   []string{"Burst hot water", "Burst hot water pipe under the"},
			Final:      "Burst hot water pipe under the kitchen sink",
			Confidence: 0.95,
		},
		{
			Partials:   []string{"customer is Priya Sharma", "customer is Priya Sharma in Parramatta"},
			Final:      "customer is Priya Sharma in Parramatta, needs it fixed straight away",
			Confidence: 0.92,
		},
	}},
	{Segments: []Segment{
		{
			Partials:   []string{"Repaint the exterior", "Repaint the exterior of a three bedroom"},
			Final:      "Repaint the exterior of a three bedroom weatherboard house in Ballarat",
			Confidence: 0.94,
		},
		{
			Partials:   []string{"estimate about"},
			Final:      "estimate about 40 hours",
			Confidence: 0.97,
		},
	}},
}

var (
	scriptCounter int
	counterMu     sync.Mutex
)

// ErrAlreadyStarted is returned when Start is called on a running recognizer.
var ErrAlreadyStarted = errors.New("mock recognizer already started")

type eventKind int

const (
	evPartial eventKind = iota
	evFinal
	evEnd
	evError
)

type event struct {
	kind       eventKind
	text       string
	confidence float64
	err        error
}

// Adapter implements stt.Recognizer with scripted responses.
// Each audio frame advances the script by one interim or final segment.
type Adapter struct {
	mu       sync.Mutex
	script   Script
	delay    time.Duration
	autoplay time.Duration // if set, the script also advances on a ticker
	cb       stt.Callback
	events   chan event
	seg      int  // current segment
	partial  int  // next partial within the segment
	started  bool // a session is open
	done     bool // end or error has been queued
}

// New creates a mock recognizer, cycling through DefaultScripts.
func New() *Adapter {
	counterMu.Lock()
	idx := scriptCounter % len(DefaultScripts)
	scriptCounter++
	counterMu.Unlock()

	return NewWithScript(DefaultScripts[idx], 50*time.Millisecond)
}

// NewWithScript creates a mock recognizer that plays s, pausing delay before each callback.
func NewWithScript(s Script, delay time.Duration) *Adapter {
	return &Adapter{script: s, delay: delay}
}

// Factory returns an stt.Factory producing mock recognizers.
// With autoplay > 0 the script advances without any audio, one step per tick.
func Factory(autoplay time.Duration) stt.Factory {
	return func(context.Context, stt.ClientLink) (stt.Recognizer, error) {
		a := New()
		a.autoplay = autoplay
		return a, nil
	}
}

// Start opens a new session. A finished recognizer can be started again.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started && !a.done {
		return ErrAlreadyStarted
	}
	a.cb = cb
	a.seg, a.partial = 0, 0
	a.started, a.done = true, false
	a.events = make(chan event, 256)

	go a.run(ctx, a.events, cb, a.delay)
	if a.autoplay > 0 {
		go a.tick(ctx, a.autoplay)
	}
	return nil
}

func (a *Adapter) tick(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !a.step() {
				return
			}
		}
	}
}

// run delivers queued events in order until the queue is closed or ctx ends.
func (a *Adapter) run(ctx context.Context, events <-chan event, cb stt.Callback, delay time.Duration) {
	for ev := range events {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		} else if ctx.Err() != nil {
			return
		}

		switch ev.kind {
		case evPartial:
			cb.OnPartial(ev.text)
		case evFinal:
			cb.OnFinal(ev.text, ev.confidence)
		case evEnd:
			cb.OnEnd()
		case evError:
			cb.OnError(ev.err)
		}
	}
}

// SendAudio advances the script by one step per frame.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.step()
	return nil
}

// step queues the next scripted event. It reports false once the session is over.
func (a *Adapter) step() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started || a.done || a.cb == nil {
		return false
	}

	if a.seg >= len(a.script.Segments) {
		a.finishLocked()
		return false
	}

	s := a.script.Segments[a.seg]
	if a.partial < len(s.Partials) {
		a.events <- event{kind: evPartial, text: s.Partials[a.partial]}
		a.partial++
		return true
	}

	a.events <- event{kind: evFinal, text: s.Final, confidence: s.Confidence}
	a.seg++
	a.partial = 0
	return true
}

// Close stops recognition. A segment that was being heard is finalized first.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started || a.done {
		return nil
	}

	if a.seg < len(a.script.Segments) && a.partial > 0 {
		s := a.script.Segments[a.seg]
		a.events <- event{kind: evFinal, text: s.Final, confidence: s.Confidence}
		a.seg++
		a.partial = 0
	}
	a.events <- event{kind: evEnd}
	a.done = true
	close(a.events)
	return nil
}

func (a *Adapter) finishLocked() {
	if a.script.ErrorCode != "" {
		a.events <- event{kind: evError, err: &stt.CaptureError{Code: a.script.ErrorCode}}
	} else {
		a.events <- event{kind: evEnd}
	}
	a.done = true
	close(a.events)
}
