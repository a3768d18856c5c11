package text

import (
	"testing"

	"github.com/risknetlabs/risknet/internal/domain"
)

func TestCombineRecord_DoublesTitle(t *testing.T) {
	r := domain.RiskRecord{
		ID:          "R-1",
		Title:       "Schedule slip",
		Cause:       "Late supplier",
		Description: "Delivery delayed by two months",
	}
	got := CombineRecord(r)
	want := "Schedule slip Schedule slip Late supplier Delivery delayed by two months"
	if got != want {
		t.Fatalf("CombineRecord = %q, want %q", got, want)
	}
}

func TestCombineRecord_DropsJunkValues(t *testing.T) {
	cases := []struct {
		name string
		rec  domain.RiskRecord
		want string
	}{
		{"na title", domain.RiskRecord{Title: "N/A", Description: "real text"}, "real text"},
		{"nan cause", domain.RiskRecord{Cause: "nan", Description: "real text"}, "real text"},
		{"none description", domain.RiskRecord{Description: "None"}, ""},
		{"whitespace only", domain.RiskRecord{Title: "   ", Description: "\t\n"}, ""},
		{"all empty", domain.RiskRecord{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CombineRecord(tc.rec); got != tc.want {
				t.Errorf("CombineRecord = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCombineRecord_CollapsesWhitespace(t *testing.T) {
	r := domain.RiskRecord{Description: "line one\n\n  line   two"}
	if got := CombineRecord(r); got != "line one line two" {
		t.Fatalf("CombineRecord = %q", got)
	}
}

func TestCombineAll_IndexAligned(t *testing.T) {
	records := []domain.RiskRecord{
		{Description: "first"},
		{Description: "na"},
		{Description: "third"},
	}
	texts := CombineAll(records)
	if len(texts) != 3 {
		t.Fatalf("expected 3 texts, got %d", len(texts))
	}
	if texts[0] != "first" || texts[1] != "" || texts[2] != "third" {
		t.Fatalf("unexpected texts %v", texts)
	}
}
