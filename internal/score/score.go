// Package score ranks harvested opportunities for the digest email
// and deduplicates records collected by overlapping sources.
package score

import (
	"strings"
	"time"

	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/models"
)

// maxScore caps the final relevance score.
const maxScore = 10.0

// Scorer assigns a relevance score to an opportunity.
type Scorer interface {
	Score(opp models.Opportunity, now time.Time) float64
}

// RuleScorer scores on weighted signals: urgency, contract value,
// keyword relevance, and deadline proximity.
type RuleScorer struct {
	urgencyWeight  float64
	valueWeight    float64
	keywordWeight  float64
	deadlineWeight float64
	keywords       []string
}

// NewRuleScorer builds a scorer from the configured weights.
func NewRuleScorer(cfg config.ScoringConfig) *RuleScorer {
	return &RuleScorer{
		urgencyWeight:  cfg.UrgencyWeight,
		valueWeight:    cfg.ValueWeight,
		keywordWeight:  cfg.KeywordWeight,
		deadlineWeight: cfg.DeadlineWeight,
		keywords:       []string{"payment", "fintech", "technology", "digital", "software"},
	}
}

// Score computes the weighted sum, clamped to 10.0. The clamped value
// is the authoritative score; callers never see the raw sum.
func (s *RuleScorer) Score(opp models.Opportunity, now time.Time) float64 {
	score := s.urgencyComponent(opp.Urgency) +
		s.valueComponent(opp.Value) +
		s.keywordComponent(opp.Title, opp.Description) +
		s.deadlineComponent(opp.Deadline, now)
	if score > maxScore {
		return maxScore
	}
	return score
}

func (s *RuleScorer) urgencyComponent(urgency string) float64 {
	switch urgency {
	case models.UrgencyHigh:
		return s.urgencyWeight
	case models.UrgencyMedium:
		return s.urgencyWeight * 0.67
	case models.UrgencyLow:
		return s.urgencyWeight * 0.33
	default:
		return 0
	}
}

func (s *RuleScorer) valueComponent(value string) float64 {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.Contains(v, "million") || strings.HasSuffix(v, "m"):
		return s.valueWeight
	case strings.Contains(v, "thousand") || strings.HasSuffix(v, "k"):
		return s.valueWeight * 0.5
	default:
		return 0
	}
}

// keywordComponent accumulates per matched keyword: full weight for a
// title hit, half weight for a description hit, independently.
func (s *RuleScorer) keywordComponent(title, description string) float64 {
	titleLower := strings.ToLower(title)
	descLower := strings.ToLower(description)
	var total float64
	for _, kw := range s.keywords {
		if strings.Contains(titleLower, kw) {
			total += s.keywordWeight
		}
		if strings.Contains(descLower, kw) {
			total += s.keywordWeight * 0.5
		}
	}
	return total
}

// deadlineComponent treats anything up to a week out, past deadlines
// included, as maximally pressing.
func (s *RuleScorer) deadlineComponent(deadline string, now time.Time) float64 {
	t, err := time.Parse("2006-01-02", deadline)
	if err != nil {
		return 0
	}
	days := int(t.Sub(now).Hours() / 24)
	switch {
	case days <= 7:
		return s.deadlineWeight
	case days <= 30:
		return s.deadlineWeight * 0.5
	default:
		return 0
	}
}
