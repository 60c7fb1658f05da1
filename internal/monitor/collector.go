// Package monitor watches system resources and scraping activity,
// turns findings into alerts, and throttles what gets dispatched.
package monitor

import (
	"context"
	"log"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/david/rfp-harvester/internal/models"
)

// Snapshot is one observation of the system, fed to the evaluators.
type Snapshot struct {
	CPUPercent       float64
	MemoryPercent    float64
	DiskPercent      float64
	DBReachable      bool
	LastRunAt        *time.Time
	SuccessRate      float64
	Sessions24h      int
	Opportunities24h int
	Taken            time.Time
}

// ActivitySource provides the database-derived half of a snapshot.
type ActivitySource interface {
	Ping(ctx context.Context) error
	GetSessionStats(ctx context.Context, window time.Duration) (SessionActivity, error)
	CountOpportunitiesSince(ctx context.Context, since time.Time) (int, error)
}

// SessionActivity mirrors the store's session stats without importing
// the db package here.
type SessionActivity struct {
	TotalSessions      int
	SuccessRate        float64
	LastRunAt          *time.Time
	OpportunitiesFound int
}

// Collector gathers resource usage via gopsutil and activity stats
// from the store.
type Collector struct {
	activity ActivitySource
}

func NewCollector(activity ActivitySource) *Collector {
	return &Collector{activity: activity}
}

// Collect takes a full snapshot. Resource probe failures are logged
// and leave the corresponding field at zero rather than failing the
// whole observation.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	snap := Snapshot{Taken: time.Now().UTC(), SuccessRate: 100}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	} else if err != nil {
		log.Printf("[Monitor] CPU probe failed: %v", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryPercent = vm.UsedPercent
	} else {
		log.Printf("[Monitor] Memory probe failed: %v", err)
	}

	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		snap.DiskPercent = du.UsedPercent
	} else {
		log.Printf("[Monitor] Disk probe failed: %v", err)
	}

	if c.activity == nil {
		return snap
	}

	snap.DBReachable = c.activity.Ping(ctx) == nil
	if !snap.DBReachable {
		return snap
	}

	if stats, err := c.activity.GetSessionStats(ctx, 24*time.Hour); err == nil {
		snap.Sessions24h = stats.TotalSessions
		snap.SuccessRate = stats.SuccessRate
		snap.LastRunAt = stats.LastRunAt
	} else {
		log.Printf("[Monitor] Session stats failed: %v", err)
	}

	if n, err := c.activity.CountOpportunitiesSince(ctx, snap.Taken.Add(-24*time.Hour)); err == nil {
		snap.Opportunities24h = n
	} else {
		log.Printf("[Monitor] Opportunity count failed: %v", err)
	}

	return snap
}

// Metrics renders a snapshot as storable metric samples.
func (snap Snapshot) Metrics() []models.SystemMetric {
	dbValue := 0.0
	if snap.DBReachable {
		dbValue = 1.0
	}
	return []models.SystemMetric{
		models.NewSystemMetric("cpu_percent", snap.CPUPercent, nil),
		models.NewSystemMetric("memory_percent", snap.MemoryPercent, nil),
		models.NewSystemMetric("disk_percent", snap.DiskPercent, nil),
		models.NewSystemMetric("db_reachable", dbValue, nil),
		models.NewSystemMetric("health_score", float64(HealthScore(snap)), nil),
	}
}
