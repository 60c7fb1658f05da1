package monitor

import (
	"sync"
	"time"

	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/models"
)

// Throttle is the sole owner of the alert send history. TryAcquire
// checks the cooldown and records the send in one critical section, so
// concurrent evaluations of the same alert can never both pass.
type Throttle struct {
	mu        sync.Mutex
	lastSent  map[string]time.Time
	cooldowns map[string]time.Duration
	now       func() time.Time
}

func NewThrottle(cfg config.AlertsConfig) *Throttle {
	return &Throttle{
		lastSent: make(map[string]time.Time),
		cooldowns: map[string]time.Duration{
			models.SeverityCritical: time.Duration(cfg.CriticalCooldownHours) * time.Hour,
			models.SeverityWarning:  time.Duration(cfg.WarningCooldownHours) * time.Hour,
			models.SeverityInfo:     time.Duration(cfg.InfoCooldownHours) * time.Hour,
		},
		now: time.Now,
	}
}

// TryAcquire reports whether the alert may be sent now, and if so,
// marks it sent. The history key combines metric and severity so a
// warning does not suppress a later critical for the same metric.
func (t *Throttle) TryAcquire(alert models.Alert) bool {
	key := alert.Metric + "_" + alert.Severity
	cooldown, ok := t.cooldowns[alert.Severity]
	if !ok {
		cooldown = 12 * time.Hour
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, seen := t.lastSent[key]; seen && now.Sub(last) < cooldown {
		return false
	}
	t.lastSent[key] = now
	return true
}

// GC drops history entries older than the longest cooldown, keeping
// the map bounded on long-running processes.
func (t *Throttle) GC() int {
	var longest time.Duration
	for _, d := range t.cooldowns {
		if d > longest {
			longest = d
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for key, last := range t.lastSent {
		if now.Sub(last) > longest {
			delete(t.lastSent, key)
			removed++
		}
	}
	return removed
}
