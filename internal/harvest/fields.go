package harvest

import (
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/david/rfp-harvester/internal/models"
)

// deadlineFormats is tried in order when normalizing a raw deadline
// string. Ambiguous day/month strings resolve to whichever format
// matches first.
var deadlineFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
}

// relevantKeywords is the vocabulary matched against titles and
// descriptions during scoring.
var relevantKeywords = []string{"payment", "fintech", "technology", "digital", "software"}

const maxDescriptionRunes = 500

var sanitizePolicy = bluemonday.StrictPolicy()

// NormalizeDeadline parses raw against the known formats and returns
// the deadline as YYYY-MM-DD, or "TBD" when nothing matches.
func NormalizeDeadline(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.DeadlineTBD
	}
	for _, layout := range deadlineFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return models.DeadlineTBD
}

// DeriveUrgency maps a normalized deadline to an urgency level
// relative to now: within 7 days is high, within 30 is medium,
// otherwise low. Unparseable deadlines (including "TBD") default to
// medium.
func DeriveUrgency(deadline string, now time.Time) string {
	t, err := time.Parse("2006-01-02", deadline)
	if err != nil {
		return models.UrgencyMedium
	}
	days := int(t.Sub(now).Hours() / 24)
	switch {
	case days <= 7:
		return models.UrgencyHigh
	case days <= 30:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}

// FormatValue renders a dollar amount compactly: millions as "$1.5M",
// thousands as "$250K". Zero or negative amounts are reported as not
// specified.
func FormatValue(amount float64) string {
	switch {
	case amount <= 0:
		return models.ValueNotSpecified
	case amount >= 1_000_000:
		return fmt.Sprintf("$%.1fM", amount/1_000_000)
	case amount >= 1_000:
		return fmt.Sprintf("$%.0fK", amount/1_000)
	default:
		return fmt.Sprintf("$%.0f", amount)
	}
}

// ExtractKeywords returns the vocabulary terms found in the title or
// description, case-insensitively, in vocabulary order.
func ExtractKeywords(title, description string) []string {
	haystack := strings.ToLower(title + " " + description)
	var found []string
	for _, kw := range relevantKeywords {
		if strings.Contains(haystack, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// SanitizeDescription strips all HTML from text and truncates it to
// the storage limit.
func SanitizeDescription(text string) string {
	clean := strings.TrimSpace(sanitizePolicy.Sanitize(text))
	runes := []rune(clean)
	if len(runes) > maxDescriptionRunes {
		return string(runes[:maxDescriptionRunes])
	}
	return clean
}
