package monitor

import (
	"context"
	"log"

	"github.com/david/rfp-harvester/internal/models"
)

// Channel delivers an alert to one destination (email, webhook, ...).
type Channel interface {
	Name() string
	Send(ctx context.Context, alert models.Alert) error
}

// Dispatcher pushes throttled alerts to every configured channel. A
// failing channel is logged and does not block the others; the
// throttle still counts the alert as sent, which keeps a flapping
// channel from amplifying alert volume.
type Dispatcher struct {
	throttle *Throttle
	channels []Channel
}

func NewDispatcher(throttle *Throttle, channels ...Channel) *Dispatcher {
	return &Dispatcher{throttle: throttle, channels: channels}
}

// Dispatch sends each alert that clears its cooldown. It returns the
// number of alerts actually dispatched.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []models.Alert) int {
	sent := 0
	for _, alert := range alerts {
		if !d.throttle.TryAcquire(alert) {
			log.Printf("[Alerts] Suppressed %s/%s (cooldown)", alert.Metric, alert.Severity)
			continue
		}
		sent++
		for _, ch := range d.channels {
			if err := ch.Send(ctx, alert); err != nil {
				log.Printf("[Alerts] Channel %s failed for %s/%s: %v", ch.Name(), alert.Metric, alert.Severity, err)
			}
		}
	}
	return sent
}
