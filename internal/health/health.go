// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the agent's full health report.
type Report struct {
	Status            SystemStatus `json:"status"`
	ReportingDisabled bool         `json:"reporting_disabled"`
	Database          string       `json:"database"`
	Redis             string       `json:"redis"`
	LastReportAt      time.Time    `json:"last_report_at,omitempty"`
	LastReportAge     string       `json:"last_report_age,omitempty"`
	LastGeneration    int64        `json:"last_generation,omitempty"`
}
