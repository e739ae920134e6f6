// Package schema checks that extraction results and events are fully shaped
// before they leave the service.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"tradietalk-voice-service/internal/models"
)

// Validator checks payloads against the quote schema.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks a result or event payload. Unknown payload types pass.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.ExtractionResult:
		return v.validateResult(e)
	case *models.ExtractionResult:
		if e == nil {
			return errors.New("nil extraction result")
		}
		return v.validateResult(*e)
	case models.ExtractionCompleted:
		if e.AttemptID == "" {
			return errors.New("completed event without attemptId")
		}
		return v.validateResult(e.Result)
	case models.ExtractionFailed:
		if e.AttemptID == "" {
			return errors.New("failed event without attemptId")
		}
		if e.ErrorKind == "" {
			return errors.New("failed event without errorKind")
		}
		return nil
	default:
		return nil
	}
}

func (v *Validator) validateResult(r models.ExtractionResult) error {
	var problems []string

	if strings.TrimSpace(r.JobTitle) == "" {
		problems = append(problems, "jobTitle is empty")
	}
	if strings.TrimSpace(r.JobDescription) == "" {
		problems = append(problems, "jobDescription is empty")
	}
	if _, ok := models.ParseTradeType(string(r.TradeType)); !ok {
		problems = append(problems, fmt.Sprintf("tradeType %q is not recognized", r.TradeType))
	}
	if _, ok := models.ParseUrgency(string(r.Urgency)); !ok {
		problems = append(problems, fmt.Sprintf("urgency %q is not recognized", r.Urgency))
	}
	if u := r.Measurements.Unit; u != nil {
		if canon, ok := models.ParseUnit(string(*u)); !ok || canon != *u {
			problems = append(problems, fmt.Sprintf("unit %q is not canonical", *u))
		}
	}
	if r.Materials == nil {
		problems = append(problems, "materials is nil")
	}
	if r.SpecialRequirements == nil {
		problems = append(problems, "specialRequirements is nil")
	}
	if r.OriginalText == "" {
		problems = append(problems, "originalText is empty")
	}
	if r.ProcessedAt.IsZero() {
		problems = append(problems, "processedAt is not set")
	}
	if r.Confidence == "" {
		problems = append(problems, "confidence is empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("extraction result incomplete: %s", strings.Join(problems, "; "))
	}
	return nil
}
