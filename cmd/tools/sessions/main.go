// Command sessions prints recent scrape sessions as a table, for
// checking on a deployment from a shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/db"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to embedded config)")
	limit := flag.Int("limit", 15, "number of sessions to show")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	sessions, err := store.RecentSessions(ctx, *limit)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Session", "Status", "Found", "Duration", "Started At", "Errors"})

	for _, sess := range sessions {
		duration := "running..."
		if sess.EndTime != nil {
			duration = fmt.Sprintf("%.1fs", sess.DurationSeconds)
		}
		errs := sess.Errors
		if len(errs) > 60 {
			errs = errs[:57] + "..."
		}
		t.AppendRow(table.Row{
			sess.ID.String()[:8],
			sess.Status,
			sess.OpportunitiesFound,
			duration,
			sess.StartTime.Format("2006-01-02 15:04:05"),
			errs,
		})
	}
	t.Render()

	stats, err := store.GetSessionStats(ctx, 24*time.Hour)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\n24h: %d sessions, %.1f%% success, %d opportunities found\n",
		stats.TotalSessions, stats.SuccessRate, stats.OpportunitiesFound)
}
