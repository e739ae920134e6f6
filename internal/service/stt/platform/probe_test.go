package platform

import (
	"context"
	"errors"
	"io"
	"testing"

	"tradietalk-voice-service/internal/config"
	"tradietalk-voice-service/internal/service/stt"
	"tradietalk-voice-service/internal/service/stt/google"
)

type nullLink struct{}

func (nullLink) SendRecognition(stt.RecognitionCommand) error { return nil }

func TestProbe_Providers(t *testing.T) {
	tests := []struct {
		provider string
		ok       bool
	}{
		{ProviderRelay, true},
		{ProviderMock, true},
		{"whisper", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			avail, closer := Probe(context.Background(), config.STTConfig{Provider: tt.provider, LanguageCode: "en-AU"})
			defer closer.Close()

			if avail.OK() != tt.ok {
				t.Fatalf("OK() = %v, want %v (reason %q)", avail.OK(), tt.ok, avail.Reason())
			}
			if !tt.ok && avail.Reason() == "" {
				t.Error("expected a reason for an unavailable engine")
			}
			if tt.ok {
				rec, err := avail.New(context.Background(), nullLink{})
				if err != nil || rec == nil {
					t.Errorf("expected recognizer, got %v, %v", rec, err)
				}
			}
		})
	}
}

func TestProbe_Unavailable_NotSupported(t *testing.T) {
	avail, _ := Probe(context.Background(), config.STTConfig{Provider: "whisper"})

	_, err := avail.New(context.Background(), nullLink{})

	var cErr *stt.CaptureError
	if !errors.As(err, &cErr) || cErr.Code != stt.CodeNotSupported {
		t.Errorf("expected not-supported capture error, got %v", err)
	}
}

func TestProbe_GoogleDialFailure(t *testing.T) {
	orig := dialGoogle
	defer func() { dialGoogle = orig }()

	var got google.Config
	dialGoogle = func(_ context.Context, cfg google.Config) (stt.Factory, io.Closer, error) {
		got = cfg
		return nil, nil, errors.New("no credentials")
	}

	avail, closer := Probe(context.Background(), config.STTConfig{
		Provider:     ProviderGoogle,
		LanguageCode: "en-AU",
		SampleRateHz: 16000,
	})

	if avail.OK() {
		t.Fatal("expected google to be unavailable")
	}
	if avail.Reason() != "no credentials" {
		t.Errorf("unexpected reason %q", avail.Reason())
	}
	if closer == nil {
		t.Error("expected non-nil closer")
	}
	if got.LanguageCode != "en-AU" || got.SampleRateHz != 16000 {
		t.Errorf("config not passed through: %+v", got)
	}
}
