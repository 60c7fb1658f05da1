package harvest

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNormalizeDeadline(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"iso", "2025-09-15", "2025-09-15"},
		{"us slash", "09/15/2025", "2025-09-15"},
		{"long month", "September 15, 2025", "2025-09-15"},
		{"day first long", "15 September 2025", "2025-09-15"},
		{"short month", "Sep 15, 2025", "2025-09-15"},
		{"garbage", "ask the contracting officer", "TBD"},
		{"empty", "", "TBD"},
		{"whitespace", "   ", "TBD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDeadline(tt.raw); got != tt.want {
				t.Errorf("NormalizeDeadline(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDeriveUrgency(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		deadline string
		want     string
	}{
		{"three days out", "2025-06-04", "high"},
		{"exactly seven days", "2025-06-08", "high"},
		{"two weeks", "2025-06-15", "medium"},
		{"exactly thirty days", "2025-07-01", "medium"},
		{"next quarter", "2025-09-01", "low"},
		{"tbd defaults medium", "TBD", "medium"},
		{"unparseable defaults medium", "soon", "medium"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveUrgency(tt.deadline, now); got != tt.want {
				t.Errorf("DeriveUrgency(%q) = %q, want %q", tt.deadline, got, tt.want)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{2_500_000, "$2.5M"},
		{1_000_000, "$1.0M"},
		{250_000, "$250K"},
		{1_000, "$1K"},
		{500, "$500"},
		{0, "Not specified"},
		{-10, "Not specified"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.amount); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords(
		"Payment Processing Modernization",
		"Seeking digital and software solutions for fintech integration",
	)
	want := []string{"payment", "fintech", "digital", "software"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractKeywords() = %v, want %v", got, want)
	}

	if got := ExtractKeywords("Road Paving Contract", "Asphalt resurfacing"); got != nil {
		t.Errorf("expected no keywords, got %v", got)
	}
}

func TestSanitizeDescription(t *testing.T) {
	got := SanitizeDescription(`<p>Legit <b>text</b></p><script>alert("x")</script>`)
	if strings.Contains(got, "<") || strings.Contains(got, "script") {
		t.Errorf("HTML survived sanitization: %q", got)
	}
	if !strings.Contains(got, "Legit") {
		t.Errorf("text content lost: %q", got)
	}

	long := strings.Repeat("a", 600)
	if got := SanitizeDescription(long); len([]rune(got)) != 500 {
		t.Errorf("expected truncation to 500 runes, got %d", len([]rune(got)))
	}
}
