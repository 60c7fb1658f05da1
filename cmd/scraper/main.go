package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/rfp-harvester/internal/breaker"
	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/db"
	"github.com/david/rfp-harvester/internal/harvest"
	"github.com/david/rfp-harvester/internal/monitor"
	"github.com/david/rfp-harvester/internal/notify"
	"github.com/david/rfp-harvester/internal/pipeline"
	"github.com/david/rfp-harvester/internal/score"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to embedded config)")
	continuous := flag.Bool("continuous", false, "run scheduled scrapes, monitoring, and cleanup until interrupted")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	store := db.NewStore(pool)
	registry := harvest.NewRegistry(cfg)
	orchestrator := harvest.NewOrchestrator(registry, cfg.PluginTimeout(), store)
	scorer := score.NewModelScorer(os.Getenv("MODEL_SCORER_URL"), score.NewRuleScorer(cfg.Scoring))
	email := notify.NewEmailChannel(cfg.Email)
	runner := pipeline.NewRunner(store, orchestrator, scorer, breaker.New(5, 0), email)

	if !*continuous {
		sess, err := runner.RunSession(ctx)
		if err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Printf("Session %s finished: %s, %d opportunities", sess.ID, sess.Status, sess.OpportunitiesFound)
		return
	}

	collector := monitor.NewCollector(storeActivity{store})
	throttle := monitor.NewThrottle(cfg.Alerts)
	dispatcher := monitor.NewDispatcher(throttle, email, notify.NewWebhookChannel(cfg.Notifications))
	scheduler := pipeline.NewScheduler(runner, collector, dispatcher, throttle, store, cfg)

	scheduler.Run(ctx)
}

// storeActivity adapts the db store to the monitor's activity source.
type storeActivity struct {
	store *db.Store
}

func (a storeActivity) Ping(ctx context.Context) error { return a.store.Ping(ctx) }

func (a storeActivity) GetSessionStats(ctx context.Context, window time.Duration) (monitor.SessionActivity, error) {
	stats, err := a.store.GetSessionStats(ctx, window)
	if err != nil {
		return monitor.SessionActivity{}, err
	}
	return monitor.SessionActivity{
		TotalSessions:      stats.TotalSessions,
		SuccessRate:        stats.SuccessRate,
		LastRunAt:          stats.LastRunAt,
		OpportunitiesFound: stats.OpportunitiesFound,
	}, nil
}

func (a storeActivity) CountOpportunitiesSince(ctx context.Context, since time.Time) (int, error) {
	return a.store.CountOpportunitiesSince(ctx, since)
}
