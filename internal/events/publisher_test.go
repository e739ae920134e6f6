package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradietalk-voice-service/internal/models"
	"tradietalk-voice-service/internal/service/extraction"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerCompleted != nil {
				t.Error("expected nil completed writer when disabled")
			}
			if p.writerFailed != nil {
				t.Error("expected nil failed writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:        false,
		Brokers:        []string{"localhost:9092"},
		TopicCompleted: "test.completed",
		TopicFailed:    "test.failed",
		Principal:      "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicCompleted != "test.completed" {
		t.Errorf("expected topic completed 'test.completed', got %s", p.topicCompleted)
	}
	if p.topicFailed != "test.failed" {
		t.Errorf("expected topic failed 'test.failed', got %s", p.topicFailed)
	}
}

func sampleResult() models.ExtractionResult {
	return models.ExtractionResult{
		JobTitle:            "Concrete slab",
		JobDescription:      "Pour a 6 by 4 metre slab",
		TradeType:           models.TradeConcrete,
		Urgency:             models.UrgencyStandard,
		Materials:           []string{"concrete"},
		SpecialRequirements: []string{},
		OriginalText:        "six by four slab",
		ProcessedAt:         time.Now(),
		Confidence:          models.ConfidencePlaceholder,
	}
}

func TestPublisher_PublishCompleted_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicCompleted: "test.completed"})

	err := p.PublishCompleted(context.Background(), "sess-1", models.ExtractionCompleted{
		EventType: EventExtractionCompleted,
		AttemptID: "a1",
		Source:    extraction.SourceHTTP,
		Result:    sampleResult(),
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishFailed_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicFailed: "test.failed"})

	err := p.PublishFailed(context.Background(), "sess-1", models.ExtractionFailed{
		EventType: EventExtractionFailed,
		AttemptID: "a1",
		ErrorKind: extraction.OutcomeGateway,
		Error:     "status 500",
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_RejectsIncompleteEvents(t *testing.T) {
	p := New(&Config{Enabled: false})
	ctx := context.Background()

	incomplete := sampleResult()
	incomplete.JobTitle = ""
	if err := p.PublishCompleted(ctx, "k", models.ExtractionCompleted{AttemptID: "a1", Result: incomplete}); err == nil {
		t.Error("expected schema error for empty jobTitle")
	}
	if err := p.PublishCompleted(ctx, "k", models.ExtractionCompleted{Result: sampleResult()}); err == nil {
		t.Error("expected schema error for missing attemptId")
	}
	if err := p.PublishFailed(ctx, "k", models.ExtractionFailed{AttemptID: "a1"}); err == nil {
		t.Error("expected schema error for missing errorKind")
	}
}

func TestPublisher_Publish_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Create an unmarshalable value (channel)
	err := p.publish(context.Background(), nil, "test", "test.event", "test-key", make(chan int))

	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_OnExtraction(t *testing.T) {
	p := New(&Config{Enabled: false})
	result := sampleResult()
	req := models.ExtractionRequest{Transcript: "six by four slab", TradeHint: models.TradeConcrete}

	tests := []struct {
		name string
		o    extraction.Outcome
	}{
		{"success", extraction.Outcome{AttemptID: "a1", SessionID: "s1", Source: extraction.SourceSession, Request: req, Result: &result, Kind: extraction.OutcomeSuccess}},
		{"gateway", extraction.Outcome{AttemptID: "a2", Source: extraction.SourceHTTP, Request: req, Kind: extraction.OutcomeGateway, Err: errors.New("status 500")}},
		{"validation", extraction.Outcome{AttemptID: "a3", Source: extraction.SourceHTTP, Kind: extraction.OutcomeValidation, Err: errors.New("empty")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Must not panic; a cancelled caller context does not block the handoff.
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			p.OnExtraction(ctx, tt.o)
		})
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.Close()
	if err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilPublisher(t *testing.T) {
	p := &Publisher{
		writerCompleted: nil,
		writerFailed:    nil,
	}

	err := p.Close()
	if err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
