package config

import (
	"embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var defaultYAML embed.FS

// Config is the full application configuration. Defaults live in the
// embedded config.yaml; a path passed to Load overrides it.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Plugins       PluginsConfig      `yaml:"plugins"`
	Scraping      ScrapingConfig     `yaml:"scraping"`
	Scoring       ScoringConfig      `yaml:"scoring"`
	Alerts        AlertsConfig       `yaml:"alerts"`
	Email         EmailConfig        `yaml:"email"`
	Notifications NotificationConfig `yaml:"notifications"`
	Server        ServerConfig       `yaml:"server"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	CleanupDays int    `yaml:"cleanup_days"` // retention for sessions/metrics, default 90
}

type PluginsConfig struct {
	Enabled       []string `yaml:"enabled"`
	PluginTimeout int      `yaml:"plugin_timeout"` // seconds, default 60
}

// ScrapingConfig is shared, read-only network-client configuration for
// all plugins.
type ScrapingConfig struct {
	TimeoutSeconds int      `yaml:"timeout_seconds"` // default 30
	MaxRetries     int      `yaml:"max_retries"`     // default 3
	UserAgent      string   `yaml:"user_agent"`
	GovtechURLs    []string `yaml:"govtech_urls,omitempty"`
	StateURLs      []string `yaml:"state_urls,omitempty"`
}

type ScoringConfig struct {
	UrgencyWeight  float64 `yaml:"urgency_weight"`  // default 3.0
	ValueWeight    float64 `yaml:"value_weight"`    // default 2.0
	KeywordWeight  float64 `yaml:"keyword_weight"`  // default 1.5
	DeadlineWeight float64 `yaml:"deadline_weight"` // default 2.0
}

type AlertsConfig struct {
	CriticalCooldownHours int `yaml:"critical_cooldown_hours"` // default 1
	WarningCooldownHours  int `yaml:"warning_cooldown_hours"`  // default 4
	InfoCooldownHours     int `yaml:"info_cooldown_hours"`     // default 12
}

type EmailConfig struct {
	SMTPServer     string `yaml:"smtp_server"`
	SMTPPort       int    `yaml:"smtp_port"`
	SenderEmail    string `yaml:"sender_email"`
	SenderPassword string `yaml:"sender_password"`
	RecipientEmail string `yaml:"recipient_email"`
}

type NotificationConfig struct {
	SlackWebhook          string `yaml:"slack_webhook"`
	WebhookTimeoutSeconds int    `yaml:"webhook_timeout"` // default 10
}

type ServerConfig struct {
	Port          string `yaml:"port"`
	JWTSecret     string `yaml:"jwt_secret"`
	OperatorEmail string `yaml:"operator_email"`
	// bcrypt hash of the operator password; generated with
	// `htpasswd -bnBC 10 "" <password>` or equivalent
	OperatorPasswordHash string `yaml:"operator_password_hash"`
}

type SchedulerConfig struct {
	ScrapeIntervalHours  int `yaml:"scrape_interval_hours"`  // default 4
	MetricsIntervalHours int `yaml:"metrics_interval_hours"` // default 1
	CleanupIntervalHours int `yaml:"cleanup_interval_hours"` // default 24
}

// Load reads the embedded config.yaml, or the file at path when given.
// Environment variables in the YAML (e.g. ${DATABASE_URL}) are expanded
// before parsing.
func Load(path string) (*Config, error) {
	data, err := defaultYAML.ReadFile("config.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded config: %w", err)
	}
	if path != "" {
		if fileData, fileErr := os.ReadFile(path); fileErr == nil {
			data = fileData
		} else {
			return nil, fmt.Errorf("failed to read config %s: %w", path, fileErr)
		}
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.CleanupDays == 0 {
		c.Database.CleanupDays = 90
	}
	if c.Plugins.PluginTimeout == 0 {
		c.Plugins.PluginTimeout = 60
	}
	if c.Scraping.TimeoutSeconds == 0 {
		c.Scraping.TimeoutSeconds = 30
	}
	if c.Scraping.MaxRetries == 0 {
		c.Scraping.MaxRetries = 3
	}
	if c.Scraping.UserAgent == "" {
		c.Scraping.UserAgent = "RFP-Harvester/2.0"
	}
	if c.Scoring.UrgencyWeight == 0 {
		c.Scoring.UrgencyWeight = 3.0
	}
	if c.Scoring.ValueWeight == 0 {
		c.Scoring.ValueWeight = 2.0
	}
	if c.Scoring.KeywordWeight == 0 {
		c.Scoring.KeywordWeight = 1.5
	}
	if c.Scoring.DeadlineWeight == 0 {
		c.Scoring.DeadlineWeight = 2.0
	}
	if c.Alerts.CriticalCooldownHours == 0 {
		c.Alerts.CriticalCooldownHours = 1
	}
	if c.Alerts.WarningCooldownHours == 0 {
		c.Alerts.WarningCooldownHours = 4
	}
	if c.Alerts.InfoCooldownHours == 0 {
		c.Alerts.InfoCooldownHours = 12
	}
	if c.Notifications.WebhookTimeoutSeconds == 0 {
		c.Notifications.WebhookTimeoutSeconds = 10
	}
	if c.Server.Port == "" {
		c.Server.Port = "8081"
	}
	if c.Scheduler.ScrapeIntervalHours == 0 {
		c.Scheduler.ScrapeIntervalHours = 4
	}
	if c.Scheduler.MetricsIntervalHours == 0 {
		c.Scheduler.MetricsIntervalHours = 1
	}
	if c.Scheduler.CleanupIntervalHours == 0 {
		c.Scheduler.CleanupIntervalHours = 24
	}
}

// PluginTimeout returns the per-plugin fetch deadline.
func (c *Config) PluginTimeout() time.Duration {
	return time.Duration(c.Plugins.PluginTimeout) * time.Second
}
