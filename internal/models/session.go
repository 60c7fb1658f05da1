package models

import (
	"time"

	"github.com/google/uuid"
)

// ScrapeSession status values.
const (
	SessionStarted           = "started"
	SessionCompleted         = "completed"
	SessionFailed            = "failed"
	SessionNoData            = "no_data"
	SessionHealthCheckFailed = "health_check_failed"
)

// ScrapeSession records one orchestration run. It is created at run
// start, mutated only by that run, finalized exactly once and then
// handed to the persistence layer.
type ScrapeSession struct {
	ID                 uuid.UUID  `json:"id"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            *time.Time `json:"end_time"`
	Status             string     `json:"status"`
	OpportunitiesFound int        `json:"opportunities_found"`
	Errors             string     `json:"errors"`
	DurationSeconds    float64    `json:"duration_seconds"`
	Source             string     `json:"source"` // "automated" or "manual"
}

func NewScrapeSession(source string) *ScrapeSession {
	return &ScrapeSession{
		ID:        uuid.New(),
		StartTime: time.Now().UTC(),
		Status:    SessionStarted,
		Source:    source,
	}
}

// Finalize stamps the end time, duration and terminal status. Calling
// it again is a no-op so every exit path of a run may invoke it safely.
func (s *ScrapeSession) Finalize(status string) {
	if s.EndTime != nil {
		return
	}
	now := time.Now().UTC()
	s.EndTime = &now
	s.Status = status
	s.DurationSeconds = now.Sub(s.StartTime).Seconds()
}
