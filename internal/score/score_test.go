package score

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/models"
)

func defaultScorer() *RuleScorer {
	return NewRuleScorer(config.ScoringConfig{
		UrgencyWeight:  3.0,
		ValueWeight:    2.0,
		KeywordWeight:  1.5,
		DeadlineWeight: 2.0,
	})
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreFullSignals(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opp := models.Opportunity{
		Title:       "Payment Gateway Modernization RFP",
		Description: "Statewide rollout",
		Deadline:    "2025-06-05",
		Value:       "$2.5M",
		Urgency:     models.UrgencyHigh,
	}
	// high urgency 3.0 + million value 2.0 + title keyword 1.5 +
	// deadline within a week 2.0
	if got := defaultScorer().Score(opp, now); !almostEqual(got, 8.5) {
		t.Fatalf("Score() = %v, want 8.5", got)
	}
}

func TestScoreComponents(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		opp  models.Opportunity
		want float64
	}{
		{
			name: "medium urgency only",
			opp:  models.Opportunity{Urgency: models.UrgencyMedium, Deadline: "TBD", Value: "Not specified"},
			want: 3.0 * 0.67,
		},
		{
			name: "low urgency only",
			opp:  models.Opportunity{Urgency: models.UrgencyLow, Deadline: "TBD", Value: "Not specified"},
			want: 3.0 * 0.33,
		},
		{
			name: "thousand value half weight",
			opp:  models.Opportunity{Value: "$250K", Deadline: "TBD"},
			want: 1.0,
		},
		{
			name: "keyword in description half weight",
			opp:  models.Opportunity{Title: "Procurement Notice", Description: "software upgrade", Deadline: "TBD", Value: "Not specified"},
			want: 0.75,
		},
		{
			name: "same keyword in title and description",
			opp:  models.Opportunity{Title: "Software RFP", Description: "software upgrade", Deadline: "TBD", Value: "Not specified"},
			want: 1.5 + 0.75,
		},
		{
			name: "each matched keyword counts",
			opp:  models.Opportunity{Title: "Fintech payment software platform", Deadline: "TBD", Value: "Not specified"},
			want: 3 * 1.5,
		},
		{
			name: "letter m alone is not a value signal",
			opp:  models.Opportunity{Value: "See amendment", Deadline: "TBD"},
			want: 0,
		},
		{
			name: "deadline within thirty days half weight",
			opp:  models.Opportunity{Deadline: "2025-06-20", Value: "Not specified"},
			want: 1.0,
		},
		{
			name: "unparseable deadline contributes nothing",
			opp:  models.Opportunity{Deadline: "TBD", Value: "Not specified"},
			want: 0,
		},
		{
			name: "past deadline still maximally pressing",
			opp:  models.Opportunity{Deadline: "2025-05-28", Value: "Not specified"},
			want: 2.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := defaultScorer().Score(tt.opp, now); !almostEqual(got, tt.want) {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreClampedAtTen(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewRuleScorer(config.ScoringConfig{
		UrgencyWeight:  6.0,
		ValueWeight:    4.0,
		KeywordWeight:  3.0,
		DeadlineWeight: 4.0,
	})
	opp := models.Opportunity{
		Title:    "Fintech Payment Platform",
		Deadline: "2025-06-03",
		Value:    "$10M",
		Urgency:  models.UrgencyHigh,
	}
	if got := s.Score(opp, now); got != 10.0 {
		t.Fatalf("Score() = %v, want clamp at 10.0", got)
	}
}

func TestModelScorerFallsBack(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opp := models.Opportunity{Urgency: models.UrgencyHigh, Deadline: "TBD", Value: "Not specified"}

	// No endpoint configured: rules apply directly.
	m := NewModelScorer("", defaultScorer())
	if got := m.Score(opp, now); !almostEqual(got, 3.0) {
		t.Errorf("Score() = %v, want 3.0", got)
	}

	// Unreachable endpoint: same answer, via fallback.
	m = NewModelScorer("http://127.0.0.1:1/score", defaultScorer())
	if got := m.Score(opp, now); !almostEqual(got, 3.0) {
		t.Errorf("Score() with dead endpoint = %v, want 3.0", got)
	}
}

func TestDeduplicateFirstWins(t *testing.T) {
	a := models.NewOpportunity("Payment RFP", "GSA", "2025-09-01", "$1.0M", "https://example.com/1")
	a.Keywords = []string{"payment"}
	a.Description = "original description"

	dup := a
	dup.Keywords = []string{"payment", "fintech"}
	dup.Description = "later description"

	other := models.NewOpportunity("Road Paving", "DOT", "2025-09-01", "$5.0M", "https://example.com/2")

	got := Deduplicate([]models.Opportunity{a, dup, other})
	if len(got) != 2 {
		t.Fatalf("expected 2 unique opportunities, got %d", len(got))
	}
	if got[0].Description != "original description" {
		t.Errorf("first occurrence should win fields, got %q", got[0].Description)
	}
	if want := []string{"payment", "fintech"}; !reflect.DeepEqual(got[0].Keywords, want) {
		t.Errorf("keywords = %v, want union %v", got[0].Keywords, want)
	}
	if got[1].Title != "Road Paving" {
		t.Errorf("order not preserved: %q", got[1].Title)
	}
}

func TestHashStability(t *testing.T) {
	a := models.NewOpportunity("Payment RFP", "GSA", "2025-09-01", "$1.0M", "https://example.com/1")
	b := models.NewOpportunity("Payment RFP", "GSA", "2025-09-01", "$9.9M", "https://example.com/1")
	if a.Hash() != b.Hash() {
		t.Error("value change should not affect identity hash")
	}

	c := models.NewOpportunity("Payment RFP", "GSA", "2025-10-01", "$1.0M", "https://example.com/1")
	if a.Hash() == c.Hash() {
		t.Error("deadline change should produce a different hash")
	}
}
