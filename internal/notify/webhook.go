package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/models"
)

// WebhookChannel posts alerts to a Slack-compatible incoming webhook.
type WebhookChannel struct {
	url    string
	client *http.Client
}

func NewWebhookChannel(cfg config.NotificationConfig) *WebhookChannel {
	return &WebhookChannel{
		url: cfg.SlackWebhook,
		client: &http.Client{
			Timeout: time.Duration(cfg.WebhookTimeoutSeconds) * time.Second,
		},
	}
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Send(ctx context.Context, alert models.Alert) error {
	if w.url == "" {
		return fmt.Errorf("webhook channel not configured")
	}

	payload := map[string]string{
		"text": fmt.Sprintf("%s *%s*: %s (metric %s = %.2f)",
			severityEmoji(alert.Severity), alert.Severity, alert.Message, alert.Metric, alert.Value),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func severityEmoji(severity string) string {
	switch severity {
	case models.SeverityCritical:
		return ":rotating_light:"
	case models.SeverityWarning:
		return ":warning:"
	default:
		return ":information_source:"
	}
}
