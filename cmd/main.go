package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"tradietalk-voice-service/internal/app"
	"tradietalk-voice-service/internal/config"
	"tradietalk-voice-service/internal/events"
	httpapi "tradietalk-voice-service/internal/http"
	"tradietalk-voice-service/internal/observability"
	"tradietalk-voice-service/internal/service/capture"
	"tradietalk-voice-service/internal/service/extraction"
	"tradietalk-voice-service/internal/service/llm"
	"tradietalk-voice-service/internal/service/llm/mock"
	"tradietalk-voice-service/internal/service/llm/openai"
	"tradietalk-voice-service/internal/service/stt/platform"
	"tradietalk-voice-service/internal/storage/sqlite"
)

func main() {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := config.Load()
	application := app.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create Kafka publisher with separate topics for completed and failed extractions
	publisher := events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicCompleted: cfg.Kafka.TopicCompleted,
		TopicFailed:    cfg.Kafka.TopicFailed,
		Principal:      cfg.Kafka.Principal,
	})
	defer publisher.Close()

	observers := []extraction.Observer{publisher}
	var attempts httpapi.AttemptLister
	if cfg.Audit.Enabled {
		store, err := sqlite.Open(cfg.Audit.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Audit.Path).Msg("Failed to open audit store")
		}
		defer store.Close()
		observers = append(observers, store)
		attempts = store
	}

	extractor := extraction.NewService(newGateway(cfg.LLM), observers...)

	speech, speechCloser := platform.Probe(ctx, cfg.STT)
	defer speechCloser.Close()
	if !speech.OK() {
		log.Warn().Str("provider", speech.Provider()).Str("reason", speech.Reason()).Msg("Speech recognition unavailable, voice sessions will report not-supported")
	}

	router := httpapi.NewRouter(application, httpapi.Deps{
		Extractor: extractor,
		Speech:    speech,
		Limits: capture.Limits{
			MaxAudioBytes: cfg.Session.MaxAudioBytes,
			MaxDuration:   cfg.Session.MaxDuration,
			MaxSegments:   cfg.Session.MaxSegments,
			StopGrace:     cfg.Session.StopGrace,
		},
		PermissionTimeout: cfg.Session.PermissionTimeout,
		Attempts:          attempts,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	obs := observability.NewServer(":"+cfg.Service.MetricsPort, application.Ready)
	obs.Start()

	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application failed to start")
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("TradieTalk voice service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
			stop()
		}
	}()

	<-ctx.Done()

	application.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown failed")
	}
	log.Info().Msg("TradieTalk voice service stopped")
}

func newGateway(cfg config.LLMConfig) llm.Gateway {
	switch cfg.Provider {
	case "mock":
		log.Info().Msg("Using heuristic mock LLM gateway")
		return mock.New()
	default:
		if cfg.APIKey == "" {
			log.Warn().Msg("ABACUSAI_API_KEY is not set, gateway calls will be rejected")
		}
		log.Info().Str("baseURL", cfg.BaseURL).Str("model", cfg.Model).Msg("Using OpenAI-compatible LLM gateway")
		return openai.New(openai.Config{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	}
}
