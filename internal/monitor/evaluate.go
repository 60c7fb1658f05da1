package monitor

import (
	"fmt"
	"time"

	"github.com/david/rfp-harvester/internal/models"
)

// HealthScore condenses a snapshot into a 0-100 score by deducting for
// each strained resource and stalled activity signal.
func HealthScore(snap Snapshot) int {
	score := 100

	switch {
	case snap.CPUPercent > 90:
		score -= 20
	case snap.CPUPercent > 70:
		score -= 10
	}
	switch {
	case snap.MemoryPercent > 90:
		score -= 20
	case snap.MemoryPercent > 70:
		score -= 10
	}
	switch {
	case snap.DiskPercent > 95:
		score -= 30
	case snap.DiskPercent > 85:
		score -= 15
	}
	if !snap.DBReachable {
		score -= 25
	}
	if snap.LastRunAt == nil || snap.Taken.Sub(*snap.LastRunAt) > 6*time.Hour {
		score -= 20
	}

	if score < 0 {
		score = 0
	}
	return score
}

// Evaluate runs every alert rule against the snapshot and returns the
// alerts that fired, most severe first within each rule's order.
func Evaluate(snap Snapshot) []models.Alert {
	var alerts []models.Alert
	add := func(a models.Alert, fired bool) {
		if fired {
			alerts = append(alerts, a)
		}
	}

	health := float64(HealthScore(snap))
	add(models.NewAlert(models.SeverityCritical,
		fmt.Sprintf("System health critically degraded (score %.0f)", health),
		"health_score", health), health < 50)
	add(models.NewAlert(models.SeverityWarning,
		fmt.Sprintf("System health degraded (score %.0f)", health),
		"health_score", health), health >= 50 && health < 80)

	add(models.NewAlert(models.SeverityCritical,
		fmt.Sprintf("Scrape success rate at %.1f%% over 24h", snap.SuccessRate),
		"success_rate", snap.SuccessRate), snap.Sessions24h > 0 && snap.SuccessRate < 70)
	add(models.NewAlert(models.SeverityWarning,
		fmt.Sprintf("Scrape success rate at %.1f%% over 24h", snap.SuccessRate),
		"success_rate", snap.SuccessRate), snap.Sessions24h > 0 && snap.SuccessRate >= 70 && snap.SuccessRate < 90)

	add(models.NewAlert(models.SeverityCritical,
		fmt.Sprintf("CPU usage at %.1f%%", snap.CPUPercent),
		"cpu_percent", snap.CPUPercent), snap.CPUPercent > 90)
	add(models.NewAlert(models.SeverityCritical,
		fmt.Sprintf("Memory usage at %.1f%%", snap.MemoryPercent),
		"memory_percent", snap.MemoryPercent), snap.MemoryPercent > 90)
	add(models.NewAlert(models.SeverityCritical,
		fmt.Sprintf("Disk usage at %.1f%%", snap.DiskPercent),
		"disk_percent", snap.DiskPercent), snap.DiskPercent > 95)

	add(models.NewAlert(models.SeverityWarning,
		"No scrape sessions recorded in the last 24h",
		"sessions_24h", float64(snap.Sessions24h)), snap.Sessions24h == 0)
	add(models.NewAlert(models.SeverityInfo,
		"No new opportunities discovered in the last 24h",
		"opportunities_24h", float64(snap.Opportunities24h)), snap.Opportunities24h == 0)

	return alerts
}
