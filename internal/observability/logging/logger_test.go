package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom("svc", "DEBUG", "console")
	if cfg.Level != "debug" || cfg.Format != "console" || cfg.Service != "svc" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	cfg = ConfigFrom("", "", "")
	if cfg.Level != "info" || cfg.Format != "json" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestInit_ServiceAndContextFields(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	cfg := ConfigFrom("tradietalk-voice-service", "info", "json")
	cfg.Output = &buf
	Init(cfg)

	logger := WithAttempt("sess-1", "att-1")
	logger.Info().Msg("hello")
	logger.Debug().Msg("filtered")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one JSON entry, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "tradietalk-voice-service" || entry["sessionId"] != "sess-1" || entry["attemptId"] != "att-1" {
		t.Errorf("missing fields in %v", entry)
	}
}

func TestInit_InvalidLevelFallsBackToInfo(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	Init(Config{Level: "chatty", Format: "json", Output: &buf})

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", zerolog.GlobalLevel())
	}
}
