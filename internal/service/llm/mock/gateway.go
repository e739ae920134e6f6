// Package mock provides an llm.Gateway that answers without calling a remote model.
// It is used for local development and as a scripted double in tests.
package mock

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"tradietalk-voice-service/internal/service/llm"
)

// Responder produces the raw model output (or an error) for a prompt.
type Responder func(ctx context.Context, p llm.Prompt) (string, error)

// Gateway implements llm.Gateway with a pluggable responder and records every call.
type Gateway struct {
	mu        sync.Mutex
	responder Responder
	prompts   []llm.Prompt
}

// New creates a mock gateway using the heuristic responder.
func New() *Gateway {
	return &Gateway{responder: Heuristic}
}

// NewWithResponder creates a mock gateway with a scripted responder.
func NewWithResponder(r Responder) *Gateway {
	return &Gateway{responder: r}
}

// Returning creates a mock gateway that always answers raw.
func Returning(raw string) *Gateway {
	return NewWithResponder(func(context.Context, llm.Prompt) (string, error) { return raw, nil })
}

// Failing creates a mock gateway that always fails with err.
func Failing(err error) *Gateway {
	return NewWithResponder(func(context.Context, llm.Prompt) (string, error) { return "", err })
}

// Complete records the prompt and delegates to the responder.
func (g *Gateway) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, p)
	r := g.responder
	g.mu.Unlock()
	return r(ctx, p)
}

// Calls returns how many times Complete was invoked.
func (g *Gateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// LastPrompt returns the most recent prompt, if any.
func (g *Gateway) LastPrompt() (llm.Prompt, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return llm.Prompt{}, false
	}
	return g.prompts[len(g.prompts)-1], true
}

var (
	quotedInput = regexp.MustCompile(`(?s)voice input: "(.*)"$`)
	dimensions  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:m|metres?|meters?|ft|feet)?\s*(?:by|x)\s*(\d+(?:\.\d+)?)\s*(metres?|meters?|m|feet|ft)?`)
	clientName  = regexp.MustCompile(`(?:for|client is|customer is)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+?)(?:'s|\s|,|\.|$)`)
	locationIn  = regexp.MustCompile(`\bin\s+([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*)`)
	emailAddr   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneNumber = regexp.MustCompile(`\b0\d(?:[\s-]?\d){8}\b`)
	hours       = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*hours?`)
)

var tradeKeywords = []struct {
	trade    string
	keywords []string
}{
	{"CONCRETE", []string{"concrete", "slab", "driveway", "footing"}},
	{"TILING", []string{"tile", "tiling", "grout"}},
	{"PAINTING", []string{"paint", "painting", "repaint"}},
	{"LANDSCAPING", []string{"landscap", "garden", "turf", "retaining wall"}},
	{"PLUMBING", []string{"plumb", "tap", "leak", "toilet", "hot water", "pipe"}},
	{"ELECTRICAL", []string{"electric", "wiring", "powerpoint", "switchboard", "light"}},
	{"CARPENTRY", []string{"carpent", "deck", "timber", "pergola", "cabinet"}},
}

var materialKeywords = []string{"concrete", "reo mesh", "steel", "timber", "tiles", "grout", "paint", "turf", "pavers", "copper pipe", "cable"}

// Heuristic is a rule-based responder that extracts a quote from the transcript
// embedded in the user instruction. It exists so the service can run end to end offline.
func Heuristic(_ context.Context, p llm.Prompt) (string, error) {
	text := p.User
	if m := quotedInput.FindStringSubmatch(p.User); m != nil {
		text = m[1]
	}
	lower := strings.ToLower(text)

	out := map[string]any{
		"clientName":          nil,
		"clientEmail":         nil,
		"clientPhone":         nil,
		"jobTitle":            "Voice quote",
		"jobDescription":      text,
		"location":            nil,
		"tradeType":           "GENERAL",
		"measurements":        map[string]any{"length": nil, "width": nil, "area": nil, "unit": nil},
		"materials":           []string{},
		"specialRequirements": []string{},
		"urgency":             "STANDARD",
		"estimatedHours":      nil,
		"additionalNotes":     "",
	}

	for _, tk := range tradeKeywords {
		if containsAny(lower, tk.keywords) {
			out["tradeType"] = tk.trade
			out["jobTitle"] = tk.trade[:1] + strings.ToLower(tk.trade[1:]) + " job"
			break
		}
	}

	if m := dimensions.FindStringSubmatch(text); m != nil {
		length, _ := strconv.ParseFloat(m[1], 64)
		width, _ := strconv.ParseFloat(m[2], 64)
		unit := any(nil)
		switch u := strings.ToLower(m[3]); {
		case strings.HasPrefix(u, "f"):
			unit = "feet"
		case u != "":
			unit = "meters"
		}
		out["measurements"] = map[string]any{"length": length, "width": width, "area": length * width, "unit": unit}
	}

	if m := clientName.FindStringSubmatch(text); m != nil {
		out["clientName"] = m[1]
	}
	if m := locationIn.FindStringSubmatch(text); m != nil {
		out["location"] = m[1]
	}
	if m := emailAddr.FindString(text); m != "" {
		out["clientEmail"] = m
	}
	if m := phoneNumber.FindString(text); m != "" {
		out["clientPhone"] = m
	}
	if m := hours.FindStringSubmatch(text); m != nil {
		h, _ := strconv.ParseFloat(m[1], 64)
		out["estimatedHours"] = h
	}

	var materials []string
	for _, k := range materialKeywords {
		if strings.Contains(lower, k) {
			materials = append(materials, k)
		}
	}
	if materials != nil {
		out["materials"] = materials
	}

	switch {
	case containsAny(lower, []string{"urgent", "asap", "emergency", "straight away"}):
		out["urgency"] = "URGENT"
	case containsAny(lower, []string{"no rush", "whenever", "flexible"}):
		out["urgency"] = "FLEXIBLE"
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
