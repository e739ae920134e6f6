// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"tradietalk-voice-service/internal/models"
	"tradietalk-voice-service/internal/observability/metrics"
	"tradietalk-voice-service/internal/schema"
	"tradietalk-voice-service/internal/service/extraction"
)

// Event types carried in the eventType field and header.
const (
	EventExtractionCompleted = "quote.extraction.completed"
	EventExtractionFailed    = "quote.extraction.failed"
)

// publishTimeout bounds a write that outlives the attempt's own context.
const publishTimeout = 10 * time.Second

// Publisher publishes extraction events to separate Kafka topics.
// Completed extractions feed the quote-draft populator; failures feed diagnostics.
type Publisher struct {
	writerCompleted *kafka.Writer
	writerFailed    *kafka.Writer
	principal       string
	topicCompleted  string
	topicFailed     string
	enabled         bool
	validator       *schema.Validator
	metrics         *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicCompleted string
	TopicFailed    string
	Principal      string
	Enabled        bool
}

// New creates a new Kafka event publisher with separate topics for completed and failed extractions.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics
	v := schema.New()

	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled:   false,
			validator: v,
			metrics:   m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:      cfg.Principal,
			topicCompleted: cfg.TopicCompleted,
			topicFailed:    cfg.TopicFailed,
			enabled:        false,
			validator:      v,
			metrics:        m,
		}
	}

	// Create a custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicCompleted", cfg.TopicCompleted).
		Str("topicFailed", cfg.TopicFailed).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerCompleted: newWriter(cfg.TopicCompleted),
		writerFailed:    newWriter(cfg.TopicFailed),
		principal:       cfg.Principal,
		topicCompleted:  cfg.TopicCompleted,
		topicFailed:     cfg.TopicFailed,
		enabled:         true,
		validator:       v,
		metrics:         m,
	}
}

// PublishCompleted publishes a completed extraction to the completed topic.
func (p *Publisher) PublishCompleted(ctx context.Context, key string, event models.ExtractionCompleted) error {
	if err := p.validator.Validate(event); err != nil {
		log.Error().Err(err).Str("attemptId", event.AttemptID).Msg("Completed event failed schema validation")
		return err
	}
	return p.publish(ctx, p.writerCompleted, p.topicCompleted, EventExtractionCompleted, key, event)
}

// PublishFailed publishes a failed extraction to the failed topic.
func (p *Publisher) PublishFailed(ctx context.Context, key string, event models.ExtractionFailed) error {
	if err := p.validator.Validate(event); err != nil {
		log.Error().Err(err).Str("attemptId", event.AttemptID).Msg("Failed event failed schema validation")
		return err
	}
	return p.publish(ctx, p.writerFailed, p.topicFailed, EventExtractionFailed, key, event)
}

// OnExtraction implements extraction.Observer. Validation rejections are not
// published: the transcript never reached the model.
func (p *Publisher) OnExtraction(ctx context.Context, o extraction.Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	key := o.SessionID
	if key == "" {
		key = o.AttemptID
	}
	now := time.Now().UnixMilli()

	var err error
	switch {
	case o.Result != nil:
		err = p.PublishCompleted(ctx, key, models.ExtractionCompleted{
			EventType:  EventExtractionCompleted,
			AttemptID:  o.AttemptID,
			SessionID:  o.SessionID,
			Source:     o.Source,
			TradeHint:  o.Request.TradeHint,
			Result:     *o.Result,
			DurationMs: o.Duration.Milliseconds(),
			Timestamp:  now,
		})
	case o.Kind == extraction.OutcomeValidation:
		return
	default:
		errMsg := ""
		if o.Err != nil {
			errMsg = o.Err.Error()
		}
		err = p.PublishFailed(ctx, key, models.ExtractionFailed{
			EventType:  EventExtractionFailed,
			AttemptID:  o.AttemptID,
			SessionID:  o.SessionID,
			Source:     o.Source,
			TradeHint:  o.Request.TradeHint,
			ErrorKind:  o.Kind,
			Error:      errMsg,
			Transcript: o.Request.Transcript,
			DurationMs: o.Duration.Milliseconds(),
			Timestamp:  now,
		})
	}
	if err != nil {
		log.Warn().Err(err).Str("attemptId", o.AttemptID).Msg("Extraction event not published")
	}
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	// Log the event
	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerCompleted != nil {
		if e := p.writerCompleted.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing completed writer")
			err = e
		}
	}
	if p.writerFailed != nil {
		if e := p.writerFailed.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing failed writer")
			err = e
		}
	}
	return err
}
