package models

import "testing"

func TestParseTradeType(t *testing.T) {
	tests := []struct {
		in     string
		want   TradeType
		wantOK bool
	}{
		{"CONCRETE", TradeConcrete, true},
		{"tiling", TradeTiling, true},
		{"  Plumbing ", TradePlumbing, true},
		{"GENERAL", TradeGeneral, true},
		{"roofing", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTradeType(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseTradeType(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseUrgency(t *testing.T) {
	if u, ok := ParseUrgency("urgent"); !ok || u != UrgencyUrgent {
		t.Errorf("expected URGENT, got %q (%v)", u, ok)
	}
	if _, ok := ParseUrgency("asap"); ok {
		t.Error("expected unknown urgency to be rejected")
	}
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		in   string
		want Unit
	}{
		{"meters", UnitMeters},
		{"Metres", UnitMeters},
		{"m", UnitMeters},
		{"ft", UnitFeet},
		{"m²", UnitSqm},
		{"square metres", UnitSqm},
		{"sq ft", UnitSqft},
	}

	for _, tt := range tests {
		got, ok := ParseUnit(tt.in)
		if !ok || got != tt.want {
			t.Errorf("ParseUnit(%q) = (%q, %v), want %q", tt.in, got, ok, tt.want)
		}
	}

	if _, ok := ParseUnit("cubits"); ok {
		t.Error("expected unknown unit to be rejected")
	}
}
