package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/rfp-harvester/internal/models"
)

// Store wraps the pgx pool with the queries the pipeline, monitor, and
// API need.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks database connectivity. The session circuit breaker wraps
// this call.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const opportunityCols = `title, agency, deadline, value, urgency, contact, url,
	description, keywords, score, hash, discovered_at, last_updated`

type rowScanner interface {
	Scan(dest ...any) error
}

// upsertArgs binds an opportunity to the opportunity column list, in
// order. scanOpportunity is its inverse; the two must stay in step
// with opportunityCols.
func upsertArgs(opp models.Opportunity) []any {
	return []any{
		opp.Title, opp.Agency, opp.Deadline, opp.Value, opp.Urgency, opp.Contact,
		opp.URL, opp.Description, opp.Keywords, opp.Score, opp.Hash(), opp.DiscoveredAt,
	}
}

// scanOpportunity rebuilds an opportunity from a row in
// opportunityCols order and returns the stored identity hash.
func scanOpportunity(row rowScanner) (models.Opportunity, string, error) {
	var o models.Opportunity
	var hash string
	var lastUpdated time.Time
	err := row.Scan(
		&o.Title, &o.Agency, &o.Deadline, &o.Value, &o.Urgency, &o.Contact, &o.URL,
		&o.Description, &o.Keywords, &o.Score, &hash, &o.DiscoveredAt, &lastUpdated,
	)
	return o, hash, err
}

// UpsertOpportunities writes a batch, keyed by content hash. Existing
// rows keep their discovered_at and get refreshed mutable fields; the
// returned count is new rows only.
func (s *Store) UpsertOpportunities(ctx context.Context, opps []models.Opportunity) (int, error) {
	inserted := 0
	for _, opp := range opps {
		// xmax = 0 only on freshly inserted rows, which distinguishes
		// new opportunities from refreshed ones.
		var isNew bool
		err := s.pool.QueryRow(ctx, `
			INSERT INTO opportunities (title, agency, deadline, value, urgency, contact, url,
				description, keywords, score, hash, discovered_at, last_updated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
			ON CONFLICT (hash) DO UPDATE SET
				value = EXCLUDED.value,
				urgency = EXCLUDED.urgency,
				contact = EXCLUDED.contact,
				description = EXCLUDED.description,
				keywords = EXCLUDED.keywords,
				score = EXCLUDED.score,
				last_updated = NOW()
			RETURNING (xmax = 0)
		`, upsertArgs(opp)...).Scan(&isNew)
		if err != nil {
			return inserted, fmt.Errorf("upserting %q: %w", opp.Title, err)
		}
		if isNew {
			inserted++
		}
	}
	return inserted, nil
}

// recentOpportunitiesQuery builds the listing query and its bind args.
// window <= 0 leaves the result unbounded in time.
func recentOpportunitiesQuery(limit int, minScore float64, window time.Duration, now time.Time) (string, []any) {
	query := fmt.Sprintf(`
		SELECT %s FROM opportunities
		WHERE score >= $1`, opportunityCols)
	args := []any{minScore, limit}
	if window > 0 {
		query += " AND discovered_at >= $3"
		args = append(args, now.Add(-window))
	}
	query += `
		ORDER BY score DESC, discovered_at DESC
		LIMIT $2`
	return query, args
}

// RecentOpportunities returns rows at or above minScore discovered
// inside the window, best first. A zero window means no time bound.
func (s *Store) RecentOpportunities(ctx context.Context, limit int, minScore float64, window time.Duration) ([]models.Opportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args := recentOpportunitiesQuery(limit, minScore, window, time.Now().UTC())
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		o, _, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return opps, nil
}

// CountOpportunitiesSince returns how many opportunities were
// discovered after the cutoff.
func (s *Store) CountOpportunitiesSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM opportunities WHERE discovered_at >= $1", since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting opportunities: %w", err)
	}
	return n, nil
}

// RecordSession upserts a scrape session row, so the same session can
// be written at start and finalized later.
func (s *Store) RecordSession(ctx context.Context, sess *models.ScrapeSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_sessions (id, start_time, end_time, status, opportunities_found, errors, duration_seconds, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			status = EXCLUDED.status,
			opportunities_found = EXCLUDED.opportunities_found,
			errors = EXCLUDED.errors,
			duration_seconds = EXCLUDED.duration_seconds
	`, sess.ID, sess.StartTime, sess.EndTime, sess.Status, sess.OpportunitiesFound,
		sess.Errors, sess.DurationSeconds, sess.Source)
	if err != nil {
		return fmt.Errorf("recording session %s: %w", sess.ID, err)
	}
	return nil
}

// SessionStats summarizes scraping activity inside the window.
type SessionStats struct {
	TotalSessions      int        `json:"total_sessions"`
	CompletedSessions  int        `json:"completed_sessions"`
	SuccessRate        float64    `json:"success_rate"`
	OpportunitiesFound int        `json:"opportunities_found"`
	LastRunAt          *time.Time `json:"last_run_at"`
}

// GetSessionStats computes activity stats over the trailing window.
// SuccessRate is 100 when no sessions ran, so a fresh deployment is
// not immediately flagged unhealthy.
func (s *Store) GetSessionStats(ctx context.Context, window time.Duration) (*SessionStats, error) {
	cutoff := time.Now().UTC().Add(-window)
	stats := &SessionStats{SuccessRate: 100}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COALESCE(SUM(opportunities_found), 0)
		FROM scrape_sessions
		WHERE start_time >= $1
	`, cutoff).Scan(&stats.TotalSessions, &stats.CompletedSessions, &stats.OpportunitiesFound)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	if stats.TotalSessions > 0 {
		stats.SuccessRate = float64(stats.CompletedSessions) / float64(stats.TotalSessions) * 100
	}

	var last *time.Time
	err = s.pool.QueryRow(ctx, "SELECT MAX(start_time) FROM scrape_sessions").Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last run time: %w", err)
	}
	stats.LastRunAt = last

	return stats, nil
}

// RecentSessions returns the newest sessions, for the API and the CLI
// inspector.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]models.ScrapeSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, start_time, end_time, status, opportunities_found, errors, duration_seconds, source
		FROM scrape_sessions
		ORDER BY start_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var sessions []models.ScrapeSession
	for rows.Next() {
		var sess models.ScrapeSession
		if err := rows.Scan(&sess.ID, &sess.StartTime, &sess.EndTime, &sess.Status,
			&sess.OpportunitiesFound, &sess.Errors, &sess.DurationSeconds, &sess.Source); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// RecordMetric stores one system metric sample.
func (s *Store) RecordMetric(ctx context.Context, metric models.SystemMetric) error {
	meta, err := json.Marshal(metric.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metric metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO system_metrics (name, value, timestamp, metadata)
		VALUES ($1, $2, $3, $4)
	`, metric.Name, metric.Value, metric.Timestamp, meta)
	if err != nil {
		return fmt.Errorf("recording metric %s: %w", metric.Name, err)
	}
	return nil
}

// CleanupOldData removes sessions and metrics older than the retention
// period. Opportunities are kept; they age out of the digest on score.
func (s *Store) CleanupOldData(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var total int64
	tag, err := s.pool.Exec(ctx, "DELETE FROM scrape_sessions WHERE start_time < $1", cutoff)
	if err != nil {
		return total, fmt.Errorf("cleaning sessions: %w", err)
	}
	total += tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, "DELETE FROM system_metrics WHERE timestamp < $1", cutoff)
	if err != nil {
		return total, fmt.Errorf("cleaning metrics: %w", err)
	}
	total += tag.RowsAffected()

	return total, nil
}

// GetStats aggregates headline numbers for the API stats endpoint.
func (s *Store) GetStats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting opportunities: %w", err)
	}
	stats["total_opportunities"] = total

	var highUrgency int
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM opportunities WHERE urgency = 'high'").Scan(&highUrgency); err != nil {
		return nil, fmt.Errorf("counting high urgency: %w", err)
	}
	stats["high_urgency"] = highUrgency

	var avgScore *float64
	if err := s.pool.QueryRow(ctx, "SELECT AVG(score) FROM opportunities").Scan(&avgScore); err != nil {
		return nil, fmt.Errorf("average score: %w", err)
	}
	if avgScore != nil {
		stats["average_score"] = *avgScore
	}

	sessionStats, err := s.GetSessionStats(ctx, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	stats["sessions_24h"] = sessionStats.TotalSessions
	stats["success_rate_24h"] = sessionStats.SuccessRate
	if sessionStats.LastRunAt != nil {
		stats["last_run_at"] = sessionStats.LastRunAt
	}

	return stats, nil
}
