// Package models defines the data structures shared across the extraction workflow.
package models

import (
	"strings"
	"time"
)

// TradeType is the trade category a quote belongs to.
type TradeType string

const (
	TradeConcrete    TradeType = "CONCRETE"
	TradeTiling      TradeType = "TILING"
	TradePainting    TradeType = "PAINTING"
	TradeLandscaping TradeType = "LANDSCAPING"
	TradePlumbing    TradeType = "PLUMBING"
	TradeElectrical  TradeType = "ELECTRICAL"
	TradeCarpentry   TradeType = "CARPENTRY"
	TradeGeneral     TradeType = "GENERAL"
)

// TradeTypes lists every trade category in prompt order.
var TradeTypes = []TradeType{
	TradeConcrete, TradeTiling, TradePainting, TradeLandscaping,
	TradePlumbing, TradeElectrical, TradeCarpentry, TradeGeneral,
}

// ParseTradeType matches s case-insensitively against the known trade categories.
func ParseTradeType(s string) (TradeType, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, t := range TradeTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Urgency is how soon the customer needs the work done.
type Urgency string

const (
	UrgencyUrgent   Urgency = "URGENT"
	UrgencyStandard Urgency = "STANDARD"
	UrgencyFlexible Urgency = "FLEXIBLE"
)

// ParseUrgency matches s case-insensitively against the known urgency levels.
func ParseUrgency(s string) (Urgency, bool) {
	switch Urgency(strings.ToUpper(strings.TrimSpace(s))) {
	case UrgencyUrgent:
		return UrgencyUrgent, true
	case UrgencyStandard:
		return UrgencyStandard, true
	case UrgencyFlexible:
		return UrgencyFlexible, true
	}
	return "", false
}

// Unit is the unit of a measurement.
type Unit string

const (
	UnitMeters Unit = "meters"
	UnitFeet   Unit = "feet"
	UnitSqm    Unit = "sqm"
	UnitSqft   Unit = "sqft"
)

var unitAliases = map[string]Unit{
	"meters":        UnitMeters,
	"meter":         UnitMeters,
	"metres":        UnitMeters,
	"metre":         UnitMeters,
	"m":             UnitMeters,
	"feet":          UnitFeet,
	"foot":          UnitFeet,
	"ft":            UnitFeet,
	"sqm":           UnitSqm,
	"m2":            UnitSqm,
	"m²":            UnitSqm,
	"sq m":          UnitSqm,
	"square meters": UnitSqm,
	"square metres": UnitSqm,
	"sqft":          UnitSqft,
	"sq ft":         UnitSqft,
	"ft2":           UnitSqft,
	"ft²":           UnitSqft,
	"square feet":   UnitSqft,
}

// ParseUnit maps common spellings of a unit onto the canonical set.
func ParseUnit(s string) (Unit, bool) {
	u, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]
	return u, ok
}

// Measurements holds job dimensions. Nil means the value was not stated.
type Measurements struct {
	Length *float64 `json:"length"`
	Width  *float64 `json:"width"`
	Area   *float64 `json:"area"`
	Unit   *Unit    `json:"unit"`
}

// ExtractionRequest is the input to one extraction attempt.
// Build it with extraction.NewRequest so the transcript is guaranteed non-empty.
type ExtractionRequest struct {
	Transcript string
	TradeHint  TradeType
}

// ConfidencePlaceholder is the fixed confidence label reported on every result.
// The field is reserved for a model-reported score.
const ConfidencePlaceholder = "high"

// ExtractionResult is the structured quote draft derived from a transcript.
// Every field is always present; optional values serialize as null.
type ExtractionResult struct {
	ClientName          *string      `json:"clientName"`
	ClientEmail         *string      `json:"clientEmail"`
	ClientPhone         *string      `json:"clientPhone"`
	JobTitle            string       `json:"jobTitle"`
	JobDescription      string       `json:"jobDescription"`
	Location            *string      `json:"location"`
	TradeType           TradeType    `json:"tradeType"`
	Measurements        Measurements `json:"measurements"`
	Materials           []string     `json:"materials"`
	SpecialRequirements []string     `json:"specialRequirements"`
	Urgency             Urgency      `json:"urgency"`
	EstimatedHours      *float64     `json:"estimatedHours"`
	AdditionalNotes     string       `json:"additionalNotes"`

	OriginalText string    `json:"originalText"`
	ProcessedAt  time.Time `json:"processedAt"`
	Confidence   string    `json:"confidence"`
}
