package models

import "time"

// Alert severities, ordered from most to least urgent.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert is produced by a condition evaluator and consumed immediately
// by the throttle stage. The core does not persist alerts.
type Alert struct {
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAlert(severity, message, metric string, value float64) Alert {
	return Alert{
		Severity:  severity,
		Message:   message,
		Metric:    metric,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
}

// SystemMetric is a single named measurement recorded by the monitor.
type SystemMetric struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func NewSystemMetric(name string, value float64, metadata map[string]string) SystemMetric {
	return SystemMetric{Name: name, Value: value, Timestamp: time.Now().UTC(), Metadata: metadata}
}
