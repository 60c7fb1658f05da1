// Package api exposes the harvested data and operator controls over
// HTTP.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/rfp-harvester/internal/auth"
	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/db"
	"github.com/david/rfp-harvester/internal/harvest"
	"github.com/david/rfp-harvester/internal/models"
	"github.com/david/rfp-harvester/internal/monitor"
	"github.com/david/rfp-harvester/internal/pipeline"
)

type Server struct {
	Echo      *echo.Echo
	Store     *db.Store
	Auth      *auth.Service
	Registry  *harvest.Registry
	Runner    *pipeline.Runner
	Collector *monitor.Collector
	Cfg       *config.Config

	// Background scrape job tracking; one at a time.
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

func NewServer(store *db.Store, authSvc *auth.Service, registry *harvest.Registry, runner *pipeline.Runner, collector *monitor.Collector, cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		Echo:      e,
		Store:     store,
		Auth:      authSvc,
		Registry:  registry,
		Runner:    runner,
		Collector: collector,
		Cfg:       cfg,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/sessions", s.handleListSessions)
	api.GET("/plugins", s.handleListPlugins)
	api.GET("/stats", s.handleGetStats)
	api.POST("/auth/login", s.handleLogin)

	admin := api.Group("/admin")
	admin.Use(auth.Middleware(s.Auth))
	admin.POST("/scrape", s.handleTriggerScrape)
	admin.GET("/job/:id", s.handleJobStatus)
	admin.POST("/plugins/reload", s.handleReloadPlugins)
	admin.POST("/cleanup", s.handleCleanup)
}

func (s *Server) handleHealth(c echo.Context) error {
	snap := s.Collector.Collect(c.Request().Context())
	score := monitor.HealthScore(snap)

	status := "healthy"
	httpStatus := http.StatusOK
	switch {
	case score < 50:
		status = "critical"
		httpStatus = http.StatusServiceUnavailable
	case score < 80:
		status = "degraded"
	}

	return c.JSON(httpStatus, map[string]any{
		"status":         status,
		"health_score":   score,
		"cpu_percent":    snap.CPUPercent,
		"memory_percent": snap.MemoryPercent,
		"disk_percent":   snap.DiskPercent,
		"db_reachable":   snap.DBReachable,
		"last_run_at":    snap.LastRunAt,
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.Auth.Login(req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	limit := 50
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	var minScore float64
	if v, err := strconv.ParseFloat(c.QueryParam("min_score"), 64); err == nil && v > 0 {
		minScore = v
	}
	var window time.Duration
	if h, err := strconv.Atoi(c.QueryParam("window_hours")); err == nil && h > 0 {
		window = time.Duration(h) * time.Hour
	}

	opps, err := s.Store.RecentOpportunities(c.Request().Context(), limit, minScore, window)
	if err != nil {
		c.Logger().Errorf("Failed to list opportunities: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"opportunities": opps,
		"count":         len(opps),
	})
}

func (s *Server) handleListSessions(c echo.Context) error {
	limit := 20
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	sessions, err := s.Store.RecentSessions(c.Request().Context(), limit)
	if err != nil {
		c.Logger().Errorf("Failed to list sessions: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	if sessions == nil {
		sessions = []models.ScrapeSession{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleListPlugins(c echo.Context) error {
	type pluginInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Version     string `json:"version"`
	}
	plugins := s.Registry.List()
	out := make([]pluginInfo, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, pluginInfo{Name: p.Name(), Description: p.Description(), Version: p.Version()})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleTriggerScrape(c echo.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]any{
			"error":  "A scrape job is already running",
			"job_id": job.ID,
		})
	}

	// Detach from the HTTP request lifecycle; the scrape keeps its own
	// timeout.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), 30*time.Minute,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()
		sess, err := s.Runner.RunSession(jobCtx)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			log.Printf("[API] Scrape job %s failed: %v", jobID, err)
			return
		}
		job.Status = "completed"
		job.Result = map[string]any{
			"session_id":          sess.ID,
			"session_status":      sess.Status,
			"opportunities_found": sess.OpportunitiesFound,
			"duration_seconds":    sess.DurationSeconds,
		}
		log.Printf("[API] Scrape job %s completed: %d opportunities", jobID, sess.OpportunitiesFound)
	}()

	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "Scrape job started",
		"job_id":  jobID,
		"poll":    "/api/v1/admin/job/" + jobID,
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]any{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReloadPlugins(c echo.Context) error {
	s.Registry.Reload(s.Cfg)
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Plugins reloaded",
		"plugins": s.Registry.Names(),
	})
}

func (s *Server) handleCleanup(c echo.Context) error {
	days := s.Cfg.Database.CleanupDays
	if raw := c.QueryParam("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	removed, err := s.Store.CleanupOldData(c.Request().Context(), days)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":      "Cleanup complete",
		"rows_removed": removed,
		"days":         days,
	})
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
