package schema

import (
	"strings"
	"testing"
	"time"

	"tradietalk-voice-service/internal/models"
)

func completeResult() models.ExtractionResult {
	return models.ExtractionResult{
		JobTitle:            "Concrete slab",
		JobDescription:      "Pour a 6x4 slab",
		TradeType:           models.TradeConcrete,
		Materials:           []string{},
		SpecialRequirements: []string{},
		Urgency:             models.UrgencyStandard,
		OriginalText:        "six by four slab",
		ProcessedAt:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Confidence:          models.ConfidencePlaceholder,
	}
}

func TestValidator_CompleteResult(t *testing.T) {
	v := New()
	if err := v.Validate(completeResult()); err != nil {
		t.Errorf("expected complete result to validate, got %v", err)
	}
}

func TestValidator_IncompleteResult(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.ExtractionResult)
		want   string
	}{
		{"blank title", func(r *models.ExtractionResult) { r.JobTitle = "  " }, "jobTitle"},
		{"blank description", func(r *models.ExtractionResult) { r.JobDescription = "" }, "jobDescription"},
		{"bad trade", func(r *models.ExtractionResult) { r.TradeType = "ROOFING" }, "tradeType"},
		{"bad urgency", func(r *models.ExtractionResult) { r.Urgency = "" }, "urgency"},
		{"nil materials", func(r *models.ExtractionResult) { r.Materials = nil }, "materials"},
		{"nil requirements", func(r *models.ExtractionResult) { r.SpecialRequirements = nil }, "specialRequirements"},
		{"no original text", func(r *models.ExtractionResult) { r.OriginalText = "" }, "originalText"},
		{"no timestamp", func(r *models.ExtractionResult) { r.ProcessedAt = time.Time{} }, "processedAt"},
		{"non canonical unit", func(r *models.ExtractionResult) {
			u := models.Unit("metres")
			r.Measurements.Unit = &u
		}, "unit"},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := completeResult()
			tt.mutate(&r)
			err := v.Validate(r)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}

func TestValidator_Events(t *testing.T) {
	v := New()

	if err := v.Validate(models.ExtractionCompleted{Result: completeResult()}); err == nil {
		t.Error("expected error for completed event without attemptId")
	}
	if err := v.Validate(models.ExtractionCompleted{AttemptID: "a1", Result: completeResult()}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.Validate(models.ExtractionFailed{AttemptID: "a1"}); err == nil {
		t.Error("expected error for failed event without errorKind")
	}
	if err := v.Validate(map[string]string{"any": "thing"}); err != nil {
		t.Errorf("expected unknown payloads to pass, got %v", err)
	}
}
