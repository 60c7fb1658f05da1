package harvest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/david/rfp-harvester/internal/models"
)

type stubPlugin struct {
	name      string
	opps      []models.Opportunity
	err       error
	delay     time.Duration
	panic     bool
	ignoreCtx bool
}

func (s *stubPlugin) Name() string        { return s.name }
func (s *stubPlugin) Description() string { return "stub" }
func (s *stubPlugin) Version() string     { return "test" }

func (s *stubPlugin) Fetch(ctx context.Context) ([]models.Opportunity, error) {
	if s.panic {
		panic("stub exploded")
	}
	if s.delay > 0 {
		if s.ignoreCtx {
			time.Sleep(s.delay)
		} else {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}
	return s.opps, s.err
}

func testRegistry(plugins ...Plugin) *Registry {
	m := make(map[string]Plugin, len(plugins))
	for _, p := range plugins {
		m[p.Name()] = p
	}
	return &Registry{plugins: m}
}

func sampleOpp(title string) models.Opportunity {
	return models.NewOpportunity(title, "Test Agency", "2025-09-01", "$1.0M", "https://example.com/"+title)
}

func TestOrchestratorCollectsAllResults(t *testing.T) {
	reg := testRegistry(
		&stubPlugin{name: "a", opps: []models.Opportunity{sampleOpp("one"), sampleOpp("two")}},
		&stubPlugin{name: "b", opps: []models.Opportunity{sampleOpp("three")}},
	)
	o := NewOrchestrator(reg, time.Second, nil)

	results := o.Run(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	total := 0
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("plugin %s: unexpected error %v", r.Plugin, r.Err)
		}
		total += len(r.Opportunities)
	}
	if total != 3 {
		t.Fatalf("expected 3 opportunities, got %d", total)
	}
}

func TestOrchestratorIsolatesFailures(t *testing.T) {
	wantErr := errors.New("source down")
	reg := testRegistry(
		&stubPlugin{name: "healthy", opps: []models.Opportunity{sampleOpp("one")}},
		&stubPlugin{name: "broken", err: wantErr},
		&stubPlugin{name: "crashing", panic: true},
	)
	o := NewOrchestrator(reg, time.Second, nil)

	results := o.Run(context.Background())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	byName := make(map[string]Result)
	for _, r := range results {
		byName[r.Plugin] = r
	}
	if r := byName["healthy"]; r.Err != nil || len(r.Opportunities) != 1 {
		t.Errorf("healthy plugin: got err=%v opps=%d", r.Err, len(r.Opportunities))
	}
	if r := byName["broken"]; !errors.Is(r.Err, wantErr) {
		t.Errorf("broken plugin: expected wrapped source error, got %v", r.Err)
	}
	var panicErr *PluginPanicError
	if r := byName["crashing"]; !errors.As(r.Err, &panicErr) {
		t.Errorf("crashing plugin: expected PluginPanicError, got %v", r.Err)
	}
}

func TestOrchestratorEnforcesTimeout(t *testing.T) {
	reg := testRegistry(
		&stubPlugin{name: "fast", opps: []models.Opportunity{sampleOpp("one")}},
		&stubPlugin{name: "slow", delay: 500 * time.Millisecond},
	)
	o := NewOrchestrator(reg, 50*time.Millisecond, nil)

	start := time.Now()
	results := o.Run(context.Background())
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Fatalf("run took %v, timeout not enforced", elapsed)
	}

	byName := make(map[string]Result)
	for _, r := range results {
		byName[r.Plugin] = r
	}
	if r := byName["slow"]; !errors.Is(r.Err, context.DeadlineExceeded) {
		t.Errorf("slow plugin: expected deadline exceeded, got %v", r.Err)
	}
	if r := byName["fast"]; r.Err != nil {
		t.Errorf("fast plugin should not be affected: %v", r.Err)
	}
}

func TestOrchestratorAbandonsStuckPlugin(t *testing.T) {
	reg := testRegistry(
		&stubPlugin{name: "stuck", delay: 2 * time.Second, ignoreCtx: true},
	)
	o := NewOrchestrator(reg, 50*time.Millisecond, nil)

	start := time.Now()
	results := o.Run(context.Background())
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Fatalf("run took %v, stuck plugin stalled the fan-in", elapsed)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded for abandoned plugin, got %v", results[0].Err)
	}
}

type countingSink struct {
	metrics []models.SystemMetric
}

func (c *countingSink) RecordMetric(_ context.Context, m models.SystemMetric) error {
	c.metrics = append(c.metrics, m)
	return nil
}

func TestOrchestratorRecordsMetrics(t *testing.T) {
	sink := &countingSink{}
	reg := testRegistry(
		&stubPlugin{name: "a", opps: []models.Opportunity{sampleOpp("one")}},
	)
	o := NewOrchestrator(reg, time.Second, sink)

	o.Run(context.Background())
	if len(sink.metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(sink.metrics))
	}
	m := sink.metrics[0]
	if m.Name != "plugin_run_a" || m.Value != 1 {
		t.Errorf("unexpected metric %+v", m)
	}
	if m.Metadata["status"] != "ok" {
		t.Errorf("expected status ok, got %q", m.Metadata["status"])
	}
}
