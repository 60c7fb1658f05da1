package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/models"
	"github.com/david/rfp-harvester/internal/monitor"
)

// Maintenance is the housekeeping slice of the store used by the
// scheduler loop.
type Maintenance interface {
	RecordMetric(ctx context.Context, metric models.SystemMetric) error
	CleanupOldData(ctx context.Context, days int) (int64, error)
}

// Scheduler drives continuous operation: periodic scrapes, monitoring
// sweeps, and data retention cleanup, all on independent tickers.
type Scheduler struct {
	runner     *Runner
	collector  *monitor.Collector
	dispatcher *monitor.Dispatcher
	throttle   *monitor.Throttle
	maint      Maintenance

	scrapeEvery  time.Duration
	metricsEvery time.Duration
	cleanupEvery time.Duration
	retainDays   int
}

func NewScheduler(runner *Runner, collector *monitor.Collector, dispatcher *monitor.Dispatcher, throttle *monitor.Throttle, maint Maintenance, cfg *config.Config) *Scheduler {
	return &Scheduler{
		runner:       runner,
		collector:    collector,
		dispatcher:   dispatcher,
		throttle:     throttle,
		maint:        maint,
		scrapeEvery:  time.Duration(cfg.Scheduler.ScrapeIntervalHours) * time.Hour,
		metricsEvery: time.Duration(cfg.Scheduler.MetricsIntervalHours) * time.Hour,
		cleanupEvery: time.Duration(cfg.Scheduler.CleanupIntervalHours) * time.Hour,
		retainDays:   cfg.Database.CleanupDays,
	}
}

// Run blocks until ctx is cancelled. A scrape and a monitoring sweep
// both run immediately at startup so a fresh deployment produces data
// and a baseline health reading right away.
func (s *Scheduler) Run(ctx context.Context) {
	scrapeTicker := time.NewTicker(s.scrapeEvery)
	metricsTicker := time.NewTicker(s.metricsEvery)
	cleanupTicker := time.NewTicker(s.cleanupEvery)
	defer scrapeTicker.Stop()
	defer metricsTicker.Stop()
	defer cleanupTicker.Stop()

	log.Printf("[Scheduler] Running: scrape every %s, metrics every %s, cleanup every %s",
		s.scrapeEvery, s.metricsEvery, s.cleanupEvery)

	s.scrape(ctx)
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Scheduler] Stopping: %v", ctx.Err())
			return
		case <-scrapeTicker.C:
			s.scrape(ctx)
		case <-metricsTicker.C:
			s.sweep(ctx)
		case <-cleanupTicker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *Scheduler) scrape(ctx context.Context) {
	if _, err := s.runner.RunSession(ctx); err != nil {
		log.Printf("[Scheduler] Scrape session failed: %v", err)
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	snap := s.collector.Collect(ctx)
	for _, metric := range snap.Metrics() {
		if err := s.maint.RecordMetric(ctx, metric); err != nil {
			log.Printf("[Scheduler] Recording metric %s failed: %v", metric.Name, err)
		}
	}

	alerts := monitor.Evaluate(snap)
	if sent := s.dispatcher.Dispatch(ctx, alerts); sent > 0 {
		log.Printf("[Scheduler] Dispatched %d of %d alerts (health %d)", sent, len(alerts), monitor.HealthScore(snap))
	}
	s.throttle.GC()
}

func (s *Scheduler) cleanup(ctx context.Context) {
	removed, err := s.maint.CleanupOldData(ctx, s.retainDays)
	if err != nil {
		log.Printf("[Scheduler] Cleanup failed: %v", err)
		return
	}
	log.Printf("[Scheduler] Cleanup removed %d rows older than %d days", removed, s.retainDays)
}
