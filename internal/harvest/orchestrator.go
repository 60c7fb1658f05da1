package harvest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/david/rfp-harvester/internal/models"
)

// Orchestrator fans a scrape out across the registry's plugins and
// collects their results. A failing or slow plugin never blocks the
// others; its error is carried in the Result instead.
type Orchestrator struct {
	registry *Registry
	timeout  time.Duration
	metrics  MetricsSink
}

// NewOrchestrator wires a registry to a per-plugin timeout and an
// optional metrics sink (nil disables recording).
func NewOrchestrator(registry *Registry, timeout time.Duration, metrics MetricsSink) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{registry: registry, timeout: timeout, metrics: metrics}
}

// Run executes every active plugin concurrently and returns one Result
// per plugin, in no particular order. It returns once every plugin has
// finished or hit its deadline.
func (o *Orchestrator) Run(ctx context.Context) []Result {
	plugins := o.registry.List()
	results := make(chan Result, len(plugins))

	var wg sync.WaitGroup
	for _, p := range plugins {
		wg.Add(1)
		go func(p Plugin) {
			defer wg.Done()
			results <- o.runOne(ctx, p)
		}(p)
	}
	wg.Wait()
	close(results)

	out := make([]Result, 0, len(plugins))
	for res := range results {
		out = append(out, res)
	}
	return out
}

func (o *Orchestrator) runOne(ctx context.Context, p Plugin) Result {
	pctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		// A panicking plugin is reported as a failed result rather
		// than crashing the scrape.
		defer func() {
			if r := recover(); r != nil {
				done <- Result{
					Plugin:   p.Name(),
					Err:      &PluginPanicError{Plugin: p.Name(), Value: r},
					Duration: time.Since(start),
				}
			}
		}()
		opps, err := p.Fetch(pctx)
		done <- Result{
			Plugin:        p.Name(),
			Opportunities: opps,
			Err:           err,
			Duration:      time.Since(start),
		}
	}()

	var res Result
	select {
	case res = <-done:
	case <-pctx.Done():
		// The fetch goroutine is abandoned at the deadline; its
		// buffered send cannot block. Plugins that never check ctx
		// still cost at most one timeout slot.
		res = Result{
			Plugin:   p.Name(),
			Err:      fmt.Errorf("plugin %s abandoned: %w", p.Name(), pctx.Err()),
			Duration: time.Since(start),
		}
	}

	if res.Err != nil {
		log.Printf("[Harvest] Plugin %s failed after %.1fs: %v", p.Name(), res.Duration.Seconds(), res.Err)
	} else {
		log.Printf("[Harvest] Plugin %s returned %d opportunities in %.1fs", p.Name(), len(res.Opportunities), res.Duration.Seconds())
	}
	o.record(p.Name(), res)
	return res
}

func (o *Orchestrator) record(name string, res Result) {
	if o.metrics == nil {
		return
	}
	value := float64(len(res.Opportunities))
	status := "ok"
	if res.Err != nil {
		value = 0
		status = "error"
	}
	metric := models.NewSystemMetric("plugin_run_"+name, value, map[string]string{
		"plugin":           name,
		"status":           status,
		"duration_seconds": formatDuration(res.Duration),
	})
	if err := o.metrics.RecordMetric(context.Background(), metric); err != nil {
		log.Printf("[Harvest] Failed to record metric for %s: %v", name, err)
	}
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// PluginPanicError reports a plugin that panicked during Fetch.
type PluginPanicError struct {
	Plugin string
	Value  any
}

func (e *PluginPanicError) Error() string {
	return fmt.Sprintf("plugin %s panicked: %v", e.Plugin, e.Value)
}
