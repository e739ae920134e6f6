package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tradietalk-voice-service/internal/models"
	"tradietalk-voice-service/internal/observability/metrics"
	"tradietalk-voice-service/internal/service/llm"
)

// Sources of an extraction attempt.
const (
	SourceHTTP    = "http"
	SourceSession = "session"
)

// Outcome kinds reported to observers and metrics.
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation"
	OutcomeGateway    = "gateway"
	OutcomeParse      = "parse"
)

// Input is one extraction attempt as submitted by a caller.
type Input struct {
	Transcript string
	TradeHint  models.TradeType
	Source     string
	SessionID  string
	AttemptID  string // generated when empty
}

// Outcome describes a finished attempt. Exactly one of Result and Err is set.
type Outcome struct {
	AttemptID string
	SessionID string
	Source    string
	Request   models.ExtractionRequest
	Result    *models.ExtractionResult
	Kind      string
	Err       error
	Duration  time.Duration
}

// Observer is notified after every attempt, successful or not.
type Observer interface {
	OnExtraction(ctx context.Context, o Outcome)
}

// Service runs validate, build, gateway call and normalize for one transcript.
// It holds no per-attempt state and is safe for concurrent use.
type Service struct {
	gateway    llm.Gateway
	normalizer *Normalizer
	observers  []Observer
	metrics    *metrics.Metrics
}

// NewService creates an extraction service.
func NewService(gateway llm.Gateway, observers ...Observer) *Service {
	return NewServiceWithNormalizer(gateway, NewNormalizer(), observers...)
}

// NewServiceWithNormalizer creates an extraction service with a custom normalizer.
func NewServiceWithNormalizer(gateway llm.Gateway, n *Normalizer, observers ...Observer) *Service {
	return &Service{
		gateway:    gateway,
		normalizer: n,
		observers:  observers,
		metrics:    metrics.DefaultMetrics,
	}
}

// Extract returns a complete result or one of *ValidationError, *llm.GatewayError or *ParseError.
// The gateway is never called for an empty transcript.
func (s *Service) Extract(ctx context.Context, in Input) (models.ExtractionResult, error) {
	start := time.Now()
	attemptID := in.AttemptID
	if attemptID == "" {
		attemptID = uuid.NewString()
	}
	logger := log.With().
		Str("attemptId", attemptID).
		Str("sessionId", in.SessionID).
		Str("source", in.Source).
		Logger()

	req, err := NewRequest(in.Transcript, in.TradeHint)
	if err != nil {
		s.finish(ctx, Outcome{
			AttemptID: attemptID, SessionID: in.SessionID, Source: in.Source,
			Request: models.ExtractionRequest{Transcript: in.Transcript, TradeHint: in.TradeHint},
			Kind:    OutcomeValidation, Err: err, Duration: time.Since(start),
		})
		logger.Info().Err(err).Str("errorKind", OutcomeValidation).Msg("Extraction rejected")
		return models.ExtractionResult{}, err
	}

	raw, err := s.gateway.Complete(ctx, BuildPrompt(req))
	if err != nil {
		var envErr *llm.EnvelopeError
		var gwErr *llm.GatewayError
		switch {
		case errors.As(err, &envErr):
			err = &ParseError{Reason: "completion envelope", Err: err}
		case !errors.As(err, &gwErr):
			err = &llm.GatewayError{Err: err}
		}
		kind := KindOf(err)
		s.finish(ctx, Outcome{
			AttemptID: attemptID, SessionID: in.SessionID, Source: in.Source,
			Request: req, Kind: kind, Err: err, Duration: time.Since(start),
		})
		logger.Error().Err(err).Str("errorKind", kind).Dur("duration", time.Since(start)).Msg("Extraction failed")
		return models.ExtractionResult{}, err
	}

	result, err := s.normalizer.Normalize(raw, req)
	if err != nil {
		s.finish(ctx, Outcome{
			AttemptID: attemptID, SessionID: in.SessionID, Source: in.Source,
			Request: req, Kind: OutcomeParse, Err: err, Duration: time.Since(start),
		})
		logger.Error().
			Err(err).
			Str("errorKind", OutcomeParse).
			Int("rawBytes", len(raw)).
			Dur("duration", time.Since(start)).
			Msg("Extraction failed")
		return models.ExtractionResult{}, err
	}

	s.finish(ctx, Outcome{
		AttemptID: attemptID, SessionID: in.SessionID, Source: in.Source,
		Request: req, Result: &result, Kind: OutcomeSuccess, Duration: time.Since(start),
	})
	logger.Info().
		Str("tradeType", string(result.TradeType)).
		Dur("duration", time.Since(start)).
		Msg("Extraction completed")
	return result, nil
}

// KindOf classifies an error returned by Extract. Unknown errors yield "".
func KindOf(err error) string {
	var (
		vErr *ValidationError
		pErr *ParseError
		gErr *llm.GatewayError
	)
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &vErr):
		return OutcomeValidation
	case errors.As(err, &pErr):
		return OutcomeParse
	case errors.As(err, &gErr):
		return OutcomeGateway
	default:
		return ""
	}
}

func (s *Service) finish(ctx context.Context, o Outcome) {
	s.metrics.RecordExtraction(o.Source, o.Kind, o.Duration.Seconds())
	for _, obs := range s.observers {
		obs.OnExtraction(ctx, o)
	}
}
