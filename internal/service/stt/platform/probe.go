// Package platform probes, once at startup, which speech engine this deployment can use.
package platform

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"

	"tradietalk-voice-service/internal/config"
	"tradietalk-voice-service/internal/service/stt"
	"tradietalk-voice-service/internal/service/stt/google"
	"tradietalk-voice-service/internal/service/stt/mock"
	"tradietalk-voice-service/internal/service/stt/relay"
)

// Provider names.
const (
	ProviderRelay  = "relay"
	ProviderGoogle = "google"
	ProviderMock   = "mock"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// dialGoogle is replaced in tests.
var dialGoogle = func(ctx context.Context, cfg google.Config) (stt.Factory, io.Closer, error) {
	e, err := google.NewEngine(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return e.Factory(), e, nil
}

// Probe resolves the configured provider into an Availability.
// The returned closer releases engine resources and is never nil.
func Probe(ctx context.Context, cfg config.STTConfig) (stt.Availability, io.Closer) {
	logger := log.With().Str("component", "stt-probe").Str("sttProvider", cfg.Provider).Logger()

	switch cfg.Provider {
	case ProviderRelay:
		logger.Info().Str("languageCode", cfg.LanguageCode).Msg("Speech recognition relayed to client engine")
		return stt.Available(ProviderRelay, relay.Factory(relay.Config{
			LanguageCode:   cfg.LanguageCode,
			InterimResults: cfg.InterimResults,
		})), nopCloser{}

	case ProviderGoogle:
		f, closer, err := dialGoogle(ctx, google.Config{
			LanguageCode:    cfg.LanguageCode,
			SampleRateHz:    int32(cfg.SampleRateHz),
			InterimResults:  cfg.InterimResults,
			AudioEncoding:   cfg.AudioEncoding,
			NoSpeechTimeout: cfg.NoSpeechTimeout,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Google Speech client unavailable")
			return stt.Unavailable(ProviderGoogle, err.Error()), nopCloser{}
		}
		logger.Info().Msg("Using Google Speech-to-Text")
		return stt.Available(ProviderGoogle, f), closer

	case ProviderMock:
		logger.Info().Dur("autoplay", cfg.MockAutoplay).Msg("Using mock speech recognizer")
		return stt.Available(ProviderMock, mock.Factory(cfg.MockAutoplay)), nopCloser{}

	default:
		logger.Warn().Msg("Unknown speech provider")
		return stt.Unavailable(cfg.Provider, "unknown speech provider "+cfg.Provider), nopCloser{}
	}
}
