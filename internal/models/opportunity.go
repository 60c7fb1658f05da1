package models

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Urgency buckets assigned from days-until-deadline.
const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyLow    = "low"
)

// DeadlineTBD is the sentinel for deadlines that could not be parsed.
const DeadlineTBD = "TBD"

// ValueNotSpecified is the sentinel for postings without a dollar figure.
const ValueNotSpecified = "Not specified"

// Opportunity is a structured RFP record extracted from a source.
type Opportunity struct {
	Title        string    `json:"title"`
	Agency       string    `json:"agency"`
	Deadline     string    `json:"deadline"` // "2006-01-02" or "TBD"
	Value        string    `json:"value"`    // compact display form or "Not specified"
	Urgency      string    `json:"urgency"`
	Contact      string    `json:"contact"`
	URL          string    `json:"url"`
	Description  string    `json:"description"`
	Keywords     []string  `json:"keywords"`
	DiscoveredAt time.Time `json:"discovered_at"`
	Score        float64   `json:"score"`
}

// NewOpportunity stamps the discovery time. DiscoveredAt is set exactly
// once here and is never touched by later upserts. Urgency, contact,
// keywords and score are filled in by the normalization and scoring
// stages.
func NewOpportunity(title, agency, deadline, value, url string) Opportunity {
	return Opportunity{
		Title:        title,
		Agency:       agency,
		Deadline:     deadline,
		Value:        value,
		Urgency:      UrgencyMedium,
		URL:          url,
		DiscoveredAt: time.Now().UTC(),
	}
}

// Hash returns the deduplication identity for this record. Two
// opportunities with the same title, agency, deadline and URL are the
// same entity regardless of any other field.
func (o Opportunity) Hash() string {
	sum := sha1.Sum([]byte(o.Title + o.Agency + o.Deadline + o.URL))
	return hex.EncodeToString(sum[:])
}
