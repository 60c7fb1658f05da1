// Package pipeline coordinates a scrape session end to end: health
// check, plugin fan-out, scoring, persistence, and the digest email.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/david/rfp-harvester/internal/breaker"
	"github.com/david/rfp-harvester/internal/harvest"
	"github.com/david/rfp-harvester/internal/models"
	"github.com/david/rfp-harvester/internal/score"
)

// Gateway is what the runner needs from the database layer.
type Gateway interface {
	Ping(ctx context.Context) error
	UpsertOpportunities(ctx context.Context, opps []models.Opportunity) (int, error)
	RecordSession(ctx context.Context, sess *models.ScrapeSession) error
}

// DigestSender delivers the scored batch to the recipients.
type DigestSender interface {
	SendDigest(ctx context.Context, opps []models.Opportunity) error
}

// Runner executes scrape sessions. The breaker wraps only the
// pre-flight health check; plugin failures are partial by design and
// never trip it.
type Runner struct {
	store        Gateway
	orchestrator *harvest.Orchestrator
	scorer       score.Scorer
	breaker      *breaker.Breaker
	digest       DigestSender
	now          func() time.Time
}

func NewRunner(store Gateway, orchestrator *harvest.Orchestrator, scorer score.Scorer, brk *breaker.Breaker, digest DigestSender) *Runner {
	return &Runner{
		store:        store,
		orchestrator: orchestrator,
		scorer:       scorer,
		breaker:      brk,
		digest:       digest,
		now:          time.Now,
	}
}

// RunSession performs one full scrape. The session row is written at
// start and finalized on every exit path; a session can end as
// completed, no_data, failed, or health_check_failed.
func (r *Runner) RunSession(ctx context.Context) (*models.ScrapeSession, error) {
	sess := models.NewScrapeSession("all")
	if err := r.store.RecordSession(ctx, sess); err != nil {
		// The session row is bookkeeping; a scrape is still worth
		// running without it.
		log.Printf("[Pipeline] Could not record session start: %v", err)
	}

	// Finalize exactly once on every path. Finalize is idempotent, so
	// explicit finalizations below win over this safety net.
	defer func() {
		sess.Finalize(models.SessionFailed)
		if err := r.store.RecordSession(context.Background(), sess); err != nil {
			log.Printf("[Pipeline] Could not record session end: %v", err)
		}
	}()

	if err := r.breaker.Call(func() error { return r.store.Ping(ctx) }); err != nil {
		sess.Errors = fmt.Sprintf("health check: %v", err)
		sess.Finalize(models.SessionHealthCheckFailed)
		if errors.Is(err, breaker.ErrOpen) {
			log.Printf("[Pipeline] Session %s skipped, circuit breaker open", sess.ID)
		} else {
			log.Printf("[Pipeline] Session %s health check failed: %v", sess.ID, err)
		}
		return sess, fmt.Errorf("health check failed: %w", err)
	}

	results := r.orchestrator.Run(ctx)

	var harvested []models.Opportunity
	var failures []string
	for _, res := range results {
		if res.Err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", res.Plugin, res.Err))
			continue
		}
		harvested = append(harvested, res.Opportunities...)
	}
	sess.Errors = strings.Join(failures, "; ")

	// Plugin errors never fail the run; an empty merged list is
	// no_data even when every plugin errored. "failed" is reserved for
	// errors outside the plugin layer.
	if len(harvested) == 0 {
		sess.Finalize(models.SessionNoData)
		log.Printf("[Pipeline] Session %s found no opportunities (%d of %d plugins errored)", sess.ID, len(failures), len(results))
		return sess, nil
	}

	unique := score.Deduplicate(harvested)
	now := r.now().UTC()
	for i := range unique {
		unique[i].Score = r.scorer.Score(unique[i], now)
	}

	inserted, err := r.store.UpsertOpportunities(ctx, unique)
	if err != nil {
		sess.Errors = joinErrors(sess.Errors, err.Error())
		sess.Finalize(models.SessionFailed)
		return sess, fmt.Errorf("persisting opportunities: %w", err)
	}

	sess.OpportunitiesFound = len(unique)
	log.Printf("[Pipeline] Session %s: %d harvested, %d unique, %d new", sess.ID, len(harvested), len(unique), inserted)

	if inserted > 0 && r.digest != nil {
		if err := r.digest.SendDigest(ctx, topScored(unique)); err != nil {
			// Digest delivery is best effort; the data is already
			// persisted.
			log.Printf("[Pipeline] Digest delivery failed: %v", err)
			sess.Errors = joinErrors(sess.Errors, fmt.Sprintf("digest: %v", err))
		}
	}

	sess.Finalize(models.SessionCompleted)
	return sess, nil
}

// topScored orders the batch best first for the digest.
func topScored(opps []models.Opportunity) []models.Opportunity {
	sorted := make([]models.Opportunity, len(opps))
	copy(sorted, opps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	return sorted
}

func joinErrors(existing, added string) string {
	if existing == "" {
		return added
	}
	return existing + "; " + added
}
