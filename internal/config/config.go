// Package config loads service configuration from an optional TOML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig       `toml:"service"`
	LLM           LLMConfig           `toml:"llm"`
	STT           STTConfig           `toml:"stt"`
	Session       SessionConfig       `toml:"session"`
	Kafka         KafkaConfig         `toml:"kafka"`
	Audit         AuditConfig         `toml:"audit"`
	Observability ObservabilityConfig `toml:"observability"`
}

// ServiceConfig holds process identity and listen ports.
type ServiceConfig struct {
	Name        string `toml:"name"`
	Principal   string `toml:"principal"`
	HTTPPort    string `toml:"http_port"`
	MetricsPort string `toml:"metrics_port"`
	Env         string `toml:"env"`
}

// LLMConfig configures the extraction gateway.
type LLMConfig struct {
	Provider    string        `toml:"provider"` // openai, mock
	BaseURL     string        `toml:"base_url"`
	APIKey      string        `toml:"api_key"`
	Model       string        `toml:"model"`
	MaxTokens   int64         `toml:"max_tokens"`
	Temperature float64       `toml:"temperature"`
	Timeout     time.Duration `toml:"timeout"`
}

// STTConfig configures speech recognition.
type STTConfig struct {
	Provider        string        `toml:"provider"` // relay, google, mock
	LanguageCode    string        `toml:"language_code"`
	SampleRateHz    int           `toml:"sample_rate_hz"`
	AudioEncoding   string        `toml:"audio_encoding"`
	InterimResults  bool          `toml:"interim_results"`
	NoSpeechTimeout time.Duration `toml:"no_speech_timeout"`
	MockAutoplay    time.Duration `toml:"mock_autoplay"`
}

// SessionConfig bounds a single recording.
type SessionConfig struct {
	MaxAudioBytes     int64         `toml:"max_audio_bytes"`
	MaxDuration       time.Duration `toml:"max_duration"`
	MaxSegments       int           `toml:"max_segments"`
	StopGrace         time.Duration `toml:"stop_grace"`
	PermissionTimeout time.Duration `toml:"permission_timeout"`
}

// KafkaConfig configures extraction event handoff.
type KafkaConfig struct {
	Enabled        bool     `toml:"enabled"`
	Brokers        []string `toml:"brokers"`
	TopicCompleted string   `toml:"topic_completed"`
	TopicFailed    string   `toml:"topic_failed"`
	Principal      string   `toml:"principal"`
}

// AuditConfig configures the extraction attempt log.
type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "tradietalk-voice-service",
			Principal:   "svc-tradietalk-voice",
			HTTPPort:    "8080",
			MetricsPort: "9090",
			Env:         "prod",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			BaseURL:     "https://apps.abacus.ai/v1/",
			Model:       "gpt-4.1-mini",
			MaxTokens:   1500,
			Temperature: 0.1,
			Timeout:     60 * time.Second,
		},
		STT: STTConfig{
			Provider:        "relay",
			LanguageCode:    "en-AU",
			SampleRateHz:    8000,
			AudioEncoding:   "LINEAR16",
			InterimResults:  true,
			NoSpeechTimeout: 8 * time.Second,
			MockAutoplay:    300 * time.Millisecond,
		},
		Session: SessionConfig{
			MaxAudioBytes:     5 * 1024 * 1024,
			MaxDuration:       5 * time.Minute,
			MaxSegments:       500,
			StopGrace:         5 * time.Second,
			PermissionTimeout: 30 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			TopicCompleted: "tradietalk.extraction.completed.v1",
			TopicFailed:    "tradietalk.extraction.failed.v1",
		},
		Audit: AuditConfig{
			Path: "tradietalk-audit.db",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load reads CONFIG_FILE (if set) and applies environment overrides.
// An unreadable file is logged and ignored.
func Load() *Config {
	cfg, err := LoadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Warn().Err(err).Msg("Config file ignored, using defaults and environment")
		cfg = Defaults()
		applyEnv(cfg)
	}
	return cfg
}

// LoadFile decodes path over the defaults, then applies environment overrides.
// An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	s := &cfg.Service
	s.Name = envOrDefault("SERVICE_NAME", s.Name)
	s.Principal = envOrDefault("SERVICE_PRINCIPAL", s.Principal)
	s.HTTPPort = envOrDefault("HTTP_PORT", s.HTTPPort)
	s.MetricsPort = envOrDefault("METRICS_PORT", s.MetricsPort)
	s.Env = envOrDefault("ENV", s.Env)

	l := &cfg.LLM
	l.Provider = envOrDefault("LLM_PROVIDER", l.Provider)
	l.BaseURL = envOrDefault("LLM_BASE_URL", l.BaseURL)
	l.APIKey = envOrDefault("ABACUSAI_API_KEY", l.APIKey)
	l.Model = envOrDefault("LLM_MODEL", l.Model)
	l.MaxTokens = envOrDefaultInt64("LLM_MAX_TOKENS", l.MaxTokens)
	l.Temperature = envOrDefaultFloat("LLM_TEMPERATURE", l.Temperature)
	l.Timeout = envOrDefaultDuration("LLM_TIMEOUT", l.Timeout)

	st := &cfg.STT
	st.Provider = envOrDefault("STT_PROVIDER", st.Provider)
	st.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", st.LanguageCode)
	st.SampleRateHz = envOrDefaultInt("STT_SAMPLE_RATE_HZ", st.SampleRateHz)
	st.AudioEncoding = envOrDefault("STT_AUDIO_ENCODING", st.AudioEncoding)
	st.InterimResults = envOrDefaultBool("STT_INTERIM_RESULTS", st.InterimResults)
	st.NoSpeechTimeout = envOrDefaultDuration("STT_NO_SPEECH_TIMEOUT", st.NoSpeechTimeout)
	st.MockAutoplay = envOrDefaultDuration("STT_MOCK_AUTOPLAY", st.MockAutoplay)

	se := &cfg.Session
	se.MaxAudioBytes = envOrDefaultInt64("SESSION_MAX_AUDIO_BYTES", se.MaxAudioBytes)
	se.MaxDuration = envOrDefaultDuration("SESSION_MAX_DURATION", se.MaxDuration)
	se.MaxSegments = envOrDefaultInt("SESSION_MAX_SEGMENTS", se.MaxSegments)
	se.StopGrace = envOrDefaultDuration("SESSION_STOP_GRACE", se.StopGrace)
	se.PermissionTimeout = envOrDefaultDuration("SESSION_PERMISSION_TIMEOUT", se.PermissionTimeout)

	k := &cfg.Kafka
	k.Enabled = envOrDefaultBool("KAFKA_ENABLED", k.Enabled)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		k.Brokers = splitList(v)
	}
	k.TopicCompleted = envOrDefault("KAFKA_TOPIC_COMPLETED", k.TopicCompleted)
	k.TopicFailed = envOrDefault("KAFKA_TOPIC_FAILED", k.TopicFailed)
	k.Principal = envOrDefault("KAFKA_PRINCIPAL", k.Principal)
	if k.Principal == "" {
		k.Principal = s.Principal
	}

	a := &cfg.Audit
	a.Enabled = envOrDefaultBool("AUDIT_ENABLED", a.Enabled)
	a.Path = envOrDefault("AUDIT_PATH", a.Path)

	o := &cfg.Observability
	o.LogLevel = envOrDefault("LOG_LEVEL", o.LogLevel)
	o.LogFormat = envOrDefault("LOG_FORMAT", o.LogFormat)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
