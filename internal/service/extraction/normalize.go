package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tradietalk-voice-service/internal/models"
	"tradietalk-voice-service/internal/schema"
)

// Normalizer parses raw model output into a fully shaped ExtractionResult.
//
// Parsing rules:
//   - the payload must be a JSON object, with no surrounding prose or code fences
//   - jobTitle and jobDescription must be non-empty strings
//   - measurements must be an object or null; materials and specialRequirements arrays or null
//   - numbers may arrive as JSON numbers or numeric strings; "null" and "" mean absent
//   - non-finite numbers ("NaN", "Inf") are treated as absent
//   - unrecognized tradeType falls back to the request's hint, unrecognized urgency to STANDARD.
//     The hint is GENERAL unless the caller chose a trade, so this only differs from a plain
//     GENERAL default when the caller biased the extraction toward a trade.
type Normalizer struct {
	Now       func() time.Time
	validator *schema.Validator
}

// NewNormalizer creates a normalizer stamping results with the wall clock.
func NewNormalizer() *Normalizer {
	return NewNormalizerWithClock(time.Now)
}

// NewNormalizerWithClock creates a normalizer with an injectable clock.
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{Now: now, validator: schema.New()}
}

// Normalize converts raw into a result for req. It either returns a complete
// result or a *ParseError, never a partial result.
func (n *Normalizer) Normalize(raw string, req models.ExtractionRequest) (models.ExtractionResult, error) {
	var obj map[string]json.RawMessage
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return models.ExtractionResult{}, &ParseError{Reason: "payload is not a JSON object"}
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return models.ExtractionResult{}, &ParseError{Reason: "payload is not valid JSON", Err: err}
	}

	var (
		res models.ExtractionResult
		err error
	)

	if res.ClientName, err = optString(obj, "clientName"); err != nil {
		return models.ExtractionResult{}, err
	}
	if res.ClientEmail, err = optString(obj, "clientEmail"); err != nil {
		return models.ExtractionResult{}, err
	}
	if res.ClientPhone, err = optString(obj, "clientPhone"); err != nil {
		return models.ExtractionResult{}, err
	}
	if res.Location, err = optString(obj, "location"); err != nil {
		return models.ExtractionResult{}, err
	}
	if res.JobTitle, err = requiredString(obj, "jobTitle"); err != nil {
		return models.ExtractionResult{}, err
	}
	if res.JobDescription, err = requiredString(obj, "jobDescription"); err != nil {
		return models.ExtractionResult{}, err
	}
	if res.Measurements, err = measurements(obj["measurements"]); err != nil {
		return models.ExtractionResult{}, err
	}
	if res.Materials, err = stringList(obj, "materials"); err != nil {
		return models.ExtractionResult{}, err
	}
	res.Materials = dedupe(res.Materials)
	if res.SpecialRequirements, err = stringList(obj, "specialRequirements"); err != nil {
		return models.ExtractionResult{}, err
	}
	if res.EstimatedHours, err = optNumber(obj["estimatedHours"], "estimatedHours"); err != nil {
		return models.ExtractionResult{}, err
	}
	notes, err := optString(obj, "additionalNotes")
	if err != nil {
		return models.ExtractionResult{}, err
	}
	if notes != nil {
		res.AdditionalNotes = *notes
	}

	res.TradeType = req.TradeHint
	if res.TradeType == "" {
		res.TradeType = models.TradeGeneral
	}
	if s, ok := enumString(obj["tradeType"]); ok {
		if t, ok := models.ParseTradeType(s); ok {
			res.TradeType = t
		}
	}

	res.Urgency = models.UrgencyStandard
	if s, ok := enumString(obj["urgency"]); ok {
		if u, ok := models.ParseUrgency(s); ok {
			res.Urgency = u
		}
	}

	res.OriginalText = req.Transcript
	res.ProcessedAt = n.Now().UTC()
	res.Confidence = models.ConfidencePlaceholder

	if err := n.validator.Validate(res); err != nil {
		return models.ExtractionResult{}, &ParseError{Reason: "result failed schema validation", Err: err}
	}
	return res, nil
}

func jsonKind(raw json.RawMessage) byte {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return 0
	}
	return t[0]
}

func isNull(raw json.RawMessage) bool {
	k := jsonKind(raw)
	return k == 0 || k == 'n'
}

func optString(obj map[string]json.RawMessage, field string) (*string, error) {
	raw := obj[field]
	if isNull(raw) {
		return nil, nil
	}
	var s string
	switch jsonKind(raw) {
	case '"':
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, &ParseError{Reason: field + " is not a string", Err: err}
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		s = string(bytes.TrimSpace(raw))
	default:
		return nil, &ParseError{Reason: field + " is not a string"}
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}
	return &s, nil
}

func requiredString(obj map[string]json.RawMessage, field string) (string, error) {
	s, err := optString(obj, field)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", &ParseError{Reason: field + " is missing"}
	}
	return *s, nil
}

func enumString(raw json.RawMessage) (string, bool) {
	if jsonKind(raw) != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func optNumber(raw json.RawMessage, field string) (*float64, error) {
	if isNull(raw) {
		return nil, nil
	}
	switch jsonKind(raw) {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, &ParseError{Reason: field + " is not a number", Err: err}
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || !finite(f) {
			// "number or null" prose such as "about a day" carries no usable value,
			// and neither do "NaN" or "Inf", which JSON cannot carry back out.
			return nil, nil
		}
		return &f, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, &ParseError{Reason: field + " is not a number", Err: err}
		}
		if !finite(f) {
			return nil, nil
		}
		return &f, nil
	default:
		return nil, &ParseError{Reason: field + " is not a number"}
	}
}

func measurements(raw json.RawMessage) (models.Measurements, error) {
	var m models.Measurements
	if isNull(raw) {
		return m, nil
	}
	if jsonKind(raw) != '{' {
		return m, &ParseError{Reason: "measurements is not an object"}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return m, &ParseError{Reason: "measurements is not an object", Err: err}
	}

	var err error
	if m.Length, err = optNumber(obj["length"], "measurements.length"); err != nil {
		return m, err
	}
	if m.Width, err = optNumber(obj["width"], "measurements.width"); err != nil {
		return m, err
	}
	if m.Area, err = optNumber(obj["area"], "measurements.area"); err != nil {
		return m, err
	}
	if s, ok := enumString(obj["unit"]); ok {
		if u, ok := models.ParseUnit(s); ok {
			m.Unit = &u
		}
	}
	return m, nil
}

func stringList(obj map[string]json.RawMessage, field string) ([]string, error) {
	raw := obj[field]
	out := []string{}
	if isNull(raw) {
		return out, nil
	}
	if jsonKind(raw) != '[' {
		return nil, &ParseError{Reason: field + " is not an array"}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ParseError{Reason: field + " is not an array", Err: err}
	}
	for i, item := range items {
		if isNull(item) {
			continue
		}
		if jsonKind(item) != '"' {
			return nil, &ParseError{Reason: fmt.Sprintf("%s[%d] is not a string", field, i)}
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("%s[%d] is not a string", field, i), Err: err}
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// dedupe drops case-insensitive repeats, keeping the first spelling in model order.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
