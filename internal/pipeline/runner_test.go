package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/david/rfp-harvester/internal/breaker"
	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/harvest"
	"github.com/david/rfp-harvester/internal/models"
	"github.com/david/rfp-harvester/internal/score"
)

type fakeStore struct {
	pingErr   error
	upsertErr error
	inserted  int
	upserted  []models.Opportunity
	sessions  []models.ScrapeSession
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) UpsertOpportunities(_ context.Context, opps []models.Opportunity) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, opps...)
	return f.inserted, nil
}

func (f *fakeStore) RecordSession(_ context.Context, sess *models.ScrapeSession) error {
	f.sessions = append(f.sessions, *sess)
	return nil
}

type fakeDigest struct {
	batches [][]models.Opportunity
	err     error
}

func (f *fakeDigest) SendDigest(_ context.Context, opps []models.Opportunity) error {
	f.batches = append(f.batches, opps)
	return f.err
}

type fixedPlugin struct {
	name string
	opps []models.Opportunity
	err  error
}

func (p *fixedPlugin) Name() string        { return p.name }
func (p *fixedPlugin) Description() string { return "fixture" }
func (p *fixedPlugin) Version() string     { return "test" }
func (p *fixedPlugin) Fetch(context.Context) ([]models.Opportunity, error) {
	return p.opps, p.err
}

func harvestedOpp(title string) models.Opportunity {
	opp := models.NewOpportunity(title, "GSA", "2025-09-01", "$1.0M", "https://example.com/"+title)
	opp.Urgency = models.UrgencyMedium
	return opp
}

func newRunner(store *fakeStore, digest DigestSender, plugins ...harvest.Plugin) *Runner {
	reg := harvest.NewStaticRegistry(plugins...)
	orch := harvest.NewOrchestrator(reg, time.Second, nil)
	scorer := score.NewRuleScorer(config.ScoringConfig{
		UrgencyWeight: 3.0, ValueWeight: 2.0, KeywordWeight: 1.5, DeadlineWeight: 2.0,
	})
	return NewRunner(store, orch, scorer, breaker.New(5, time.Minute), digest)
}

func TestRunSessionCompletes(t *testing.T) {
	store := &fakeStore{inserted: 2}
	digest := &fakeDigest{}
	runner := newRunner(store, digest,
		&fixedPlugin{name: "a", opps: []models.Opportunity{harvestedOpp("one"), harvestedOpp("two")}},
		&fixedPlugin{name: "b", opps: []models.Opportunity{harvestedOpp("one")}}, // duplicate
	)

	sess, err := runner.RunSession(context.Background())
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if sess.Status != models.SessionCompleted {
		t.Fatalf("status = %q, want completed", sess.Status)
	}
	if sess.OpportunitiesFound != 2 {
		t.Errorf("OpportunitiesFound = %d, want 2 after dedup", sess.OpportunitiesFound)
	}
	if len(store.upserted) != 2 {
		t.Errorf("upserted %d rows, want 2", len(store.upserted))
	}
	for _, opp := range store.upserted {
		if opp.Score == 0 {
			t.Errorf("opportunity %q not scored", opp.Title)
		}
	}
	if len(digest.batches) != 1 {
		t.Errorf("digest sent %d times, want 1", len(digest.batches))
	}
	if sess.EndTime == nil || sess.DurationSeconds < 0 {
		t.Error("session not finalized")
	}
}

func TestRunSessionNoData(t *testing.T) {
	store := &fakeStore{}
	digest := &fakeDigest{}
	runner := newRunner(store, digest, &fixedPlugin{name: "a"})

	sess, err := runner.RunSession(context.Background())
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if sess.Status != models.SessionNoData {
		t.Fatalf("status = %q, want no_data", sess.Status)
	}
	if len(digest.batches) != 0 {
		t.Error("no digest expected for empty session")
	}
}

func TestRunSessionPartialFailureStillCompletes(t *testing.T) {
	store := &fakeStore{inserted: 3}
	runner := newRunner(store, nil,
		&fixedPlugin{name: "up", opps: []models.Opportunity{harvestedOpp("one"), harvestedOpp("two"), harvestedOpp("three")}},
		&fixedPlugin{name: "down", err: errors.New("site unreachable")},
	)

	sess, err := runner.RunSession(context.Background())
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if sess.Status != models.SessionCompleted {
		t.Fatalf("status = %q, want completed", sess.Status)
	}
	if sess.OpportunitiesFound != 3 || len(store.upserted) != 3 {
		t.Errorf("found %d, upserted %d, want 3 each", sess.OpportunitiesFound, len(store.upserted))
	}
	if !strings.Contains(sess.Errors, "down: site unreachable") {
		t.Errorf("plugin failure not recorded: %q", sess.Errors)
	}
}

func TestRunSessionAllPluginsFailedIsNoData(t *testing.T) {
	store := &fakeStore{}
	runner := newRunner(store, nil,
		&fixedPlugin{name: "a", err: errors.New("boom")},
		&fixedPlugin{name: "b", err: errors.New("bust")},
	)

	sess, err := runner.RunSession(context.Background())
	if err != nil {
		t.Fatalf("plugin-layer errors must not fail the run: %v", err)
	}
	if sess.Status != models.SessionNoData {
		t.Fatalf("status = %q, want no_data", sess.Status)
	}
	if !strings.Contains(sess.Errors, "boom") || !strings.Contains(sess.Errors, "bust") {
		t.Errorf("plugin errors not retained: %q", sess.Errors)
	}
}

func TestRunSessionHealthCheckFailure(t *testing.T) {
	store := &fakeStore{pingErr: errors.New("connection refused")}
	runner := newRunner(store, nil, &fixedPlugin{name: "a", opps: []models.Opportunity{harvestedOpp("one")}})

	sess, err := runner.RunSession(context.Background())
	if err == nil {
		t.Fatal("expected health check error")
	}
	if sess.Status != models.SessionHealthCheckFailed {
		t.Fatalf("status = %q, want health_check_failed", sess.Status)
	}
	if len(store.upserted) != 0 {
		t.Error("no upserts expected after failed health check")
	}
}

func TestRunSessionBreakerShortCircuits(t *testing.T) {
	store := &fakeStore{pingErr: errors.New("connection refused")}
	runner := newRunner(store, nil, &fixedPlugin{name: "a"})

	for i := 0; i < 5; i++ {
		runner.RunSession(context.Background())
	}
	// Breaker now open; the ping itself is no longer attempted.
	store.pingErr = nil
	sess, err := runner.RunSession(context.Background())
	if !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if sess.Status != models.SessionHealthCheckFailed {
		t.Fatalf("status = %q, want health_check_failed", sess.Status)
	}
}

func TestRunSessionDigestFailureDoesNotFailSession(t *testing.T) {
	store := &fakeStore{inserted: 1}
	digest := &fakeDigest{err: errors.New("smtp down")}
	runner := newRunner(store, digest, &fixedPlugin{name: "a", opps: []models.Opportunity{harvestedOpp("one")}})

	sess, err := runner.RunSession(context.Background())
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if sess.Status != models.SessionCompleted {
		t.Fatalf("status = %q, want completed", sess.Status)
	}
	if !strings.Contains(sess.Errors, "digest") {
		t.Errorf("digest failure not recorded: %q", sess.Errors)
	}
}
