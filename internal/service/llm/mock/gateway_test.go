package mock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"tradietalk-voice-service/internal/service/llm"
)

func TestGateway_CountsCalls(t *testing.T) {
	g := Returning(`{}`)

	if g.Calls() != 0 {
		t.Errorf("expected 0 calls, got %d", g.Calls())
	}
	if _, ok := g.LastPrompt(); ok {
		t.Error("expected no last prompt before any call")
	}

	_, _ = g.Complete(context.Background(), llm.Prompt{User: "one"})
	_, _ = g.Complete(context.Background(), llm.Prompt{User: "two"})

	if g.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", g.Calls())
	}
	p, ok := g.LastPrompt()
	if !ok || p.User != "two" {
		t.Errorf("expected last prompt 'two', got %+v", p)
	}
}

func TestGateway_Failing(t *testing.T) {
	boom := errors.New("boom")
	g := Failing(boom)

	_, err := g.Complete(context.Background(), llm.Prompt{})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestHeuristic_ConcreteSlab(t *testing.T) {
	p := llm.Prompt{
		User: `Please extract quote information from this voice input: "I need a quote for a 6 by 4 meter concrete slab for Sarah Johnson's backyard in Melbourne"`,
	}

	raw, err := Heuristic(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out struct {
		ClientName   *string `json:"clientName"`
		Location     *string `json:"location"`
		TradeType    string  `json:"tradeType"`
		Measurements struct {
			Length *float64 `json:"length"`
			Width  *float64 `json:"width"`
			Unit   *string  `json:"unit"`
		} `json:"measurements"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("heuristic output is not JSON: %v", err)
	}

	if out.TradeType != "CONCRETE" {
		t.Errorf("expected CONCRETE, got %s", out.TradeType)
	}
	if out.ClientName == nil || *out.ClientName != "Sarah Johnson" {
		t.Errorf("expected client Sarah Johnson, got %v", out.ClientName)
	}
	if out.Location == nil || *out.Location != "Melbourne" {
		t.Errorf("expected location Melbourne, got %v", out.Location)
	}
	if out.Measurements.Length == nil || *out.Measurements.Length != 6 {
		t.Errorf("expected length 6, got %v", out.Measurements.Length)
	}
	if out.Measurements.Width == nil || *out.Measurements.Width != 4 {
		t.Errorf("expected width 4, got %v", out.Measurements.Width)
	}
	if out.Measurements.Unit == nil || *out.Measurements.Unit != "meters" {
		t.Errorf("expected unit meters, got %v", out.Measurements.Unit)
	}
}
