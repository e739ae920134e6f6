// Package openai provides an llm.Gateway for OpenAI-compatible chat completion endpoints.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog/log"

	"tradietalk-voice-service/internal/observability/metrics"
	"tradietalk-voice-service/internal/service/llm"
)

const providerName = "openai"

// Config holds the completion endpoint settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration // 0 disables the deadline
}

// Gateway implements llm.Gateway against a chat completions endpoint.
type Gateway struct {
	client  openai.Client
	cfg     Config
	metrics *metrics.Metrics
}

// New creates a gateway. Retries are disabled: a failed call is reported once to the caller.
func New(cfg Config) *Gateway {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	log.Info().
		Str("baseURL", cfg.BaseURL).
		Str("model", cfg.Model).
		Dur("timeout", cfg.Timeout).
		Msg("LLM gateway initialized")

	return &Gateway{
		client:  openai.NewClient(opts...),
		cfg:     cfg,
		metrics: metrics.DefaultMetrics,
	}
}

// Complete posts the prompt and returns choices[0].message.content.
func (g *Gateway) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	start := time.Now()

	callCtx := ctx
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		MaxTokens:   openai.Int(g.cfg.MaxTokens),
		Temperature: openai.Float(g.cfg.Temperature),
	}

	// The SDK hands back the unread response so the envelope is decoded here,
	// whatever its content type, and a bad envelope is told apart from a transport failure.
	var res *http.Response
	err := g.client.Post(callCtx, "chat/completions", params, &res)
	var raw []byte
	if err == nil {
		raw, err = io.ReadAll(res.Body)
		res.Body.Close()
	}
	if err != nil {
		gerr := classify(callCtx, err)
		g.metrics.RecordGatewayCall(providerName, errorType(gerr), time.Since(start).Seconds())
		log.Warn().
			Err(gerr).
			Int("statusCode", gerr.StatusCode).
			Bool("timeout", gerr.Timeout).
			Dur("latency", time.Since(start)).
			Msg("LLM gateway call failed")
		return "", gerr
	}

	content, err := decodeEnvelope(raw)
	if err != nil {
		g.metrics.RecordGatewayCall(providerName, "envelope", time.Since(start).Seconds())
		log.Warn().
			Err(err).
			Int("statusCode", res.StatusCode).
			Int("bodyBytes", len(raw)).
			Msg("LLM gateway returned an unusable envelope")
		return "", err
	}

	g.metrics.RecordGatewayCall(providerName, "", time.Since(start).Seconds())
	log.Debug().
		Dur("latency", time.Since(start)).
		Int("contentBytes", len(content)).
		Msg("LLM gateway call succeeded")
	return content, nil
}

func classify(ctx context.Context, err error) *llm.GatewayError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &llm.GatewayError{StatusCode: apiErr.StatusCode, Err: err}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &llm.GatewayError{Timeout: true, Err: err}
	}
	return &llm.GatewayError{Err: err}
}

func errorType(e *llm.GatewayError) string {
	switch {
	case e.Timeout:
		return "timeout"
	case e.StatusCode != 0:
		return "status"
	default:
		return "transport"
	}
}

func decodeEnvelope(raw []byte) (string, error) {
	var completion openai.ChatCompletion
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", &llm.EnvelopeError{Reason: "body is not a chat completion", Err: err}
	}
	if len(completion.Choices) == 0 {
		return "", &llm.EnvelopeError{Reason: "no choices in completion"}
	}
	return completion.Choices[0].Message.Content, nil
}
