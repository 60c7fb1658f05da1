// Package harvest runs the source plugins that collect RFP
// opportunities from federal, state, and trade publication sites.
package harvest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/david/rfp-harvester/internal/models"
)

// Plugin is a single opportunity source. Fetch should honor ctx
// cancellation; the orchestrator enforces a per-plugin deadline.
type Plugin interface {
	Name() string
	Description() string
	Version() string
	Fetch(ctx context.Context) ([]models.Opportunity, error)
}

// FetchedDocument is a fetched HTTP response with its body still open.
// Callers own closing Body.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     http.Header
}

// Fetcher retrieves documents over HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// Result is the outcome of one plugin's run, passed over the fan-in
// channel. Exactly one of Opportunities/Err is meaningful; a timeout
// surfaces as Err wrapping context.DeadlineExceeded.
type Result struct {
	Plugin        string
	Opportunities []models.Opportunity
	Err           error
	Duration      time.Duration
}

// MetricsSink records per-plugin run outcomes. The db store implements
// it; tests substitute their own.
type MetricsSink interface {
	RecordMetric(ctx context.Context, metric models.SystemMetric) error
}
