package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestConversionTypeWireValues(t *testing.T) {
	cv := Conversion{Type: ConversionPhysical}
	b, err := json.Marshal(cv)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"type":"physical"`) {
		t.Fatalf("body = %s", b)
	}
	if ConversionDigital != ConversionType("digital") {
		t.Fatalf("digital constant = %q", ConversionDigital)
	}
}

func TestConversionStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ConversionStatus
		want     bool
	}{
		{ConversionPending, ConversionConfirmed, true},
		{ConversionConfirmed, ConversionPaid, true},
		{ConversionPending, ConversionPaid, false},
		{ConversionConfirmed, ConversionPending, false},
		{ConversionPaid, ConversionConfirmed, false},
		{ConversionPaid, ConversionPending, false},
		{ConversionPending, ConversionPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
