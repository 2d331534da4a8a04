package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Pinger reports whether an infrastructure dependency is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// HeartbeatReader reads the last successful report for a node.
type HeartbeatReader interface {
	LastReport(ctx context.Context, nodeUUID string) (time.Time, error)
	LastGeneration(ctx context.Context, nodeUUID string) (int64, error)
}

// CircuitReader exposes whether placement reporting has been disabled.
type CircuitReader interface {
	Disabled() bool
}

// Monitor aggregates health status from the agent's components.
type Monitor struct {
	nodeUUID   string
	staleAfter time.Duration
	db         Pinger
	redis      Pinger
	heartbeat  HeartbeatReader
	circuit    CircuitReader

	flight     singleflight.Group
	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a new health monitor. db, redis and heartbeat may be
// nil when the corresponding backend is not configured.
func NewMonitor(
	nodeUUID string,
	staleAfter time.Duration,
	db Pinger,
	redis Pinger,
	heartbeat HeartbeatReader,
	circuit CircuitReader,
) *Monitor {
	return &Monitor{
		nodeUUID:   nodeUUID,
		staleAfter: staleAfter,
		db:         db,
		redis:      redis,
		heartbeat:  heartbeat,
		circuit:    circuit,
	}
}

// CheckHealth performs a health check across all components. Backend pings
// run outside the monitor's lock; concurrent callers share a single probe.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	if report, ok := m.cached(); ok {
		return report
	}

	v, _, _ := m.flight.Do("check", func() (any, error) {
		// Re-check: a probe may have completed while we waited to join.
		if report, ok := m.cached(); ok {
			return report, nil
		}
		report := m.probe(ctx)
		m.mu.Lock()
		m.lastCheck = time.Now()
		m.lastReport = report
		m.mu.Unlock()
		return report, nil
	})
	return v.(Report)
}

// cached returns the last report while it is fresh. Checks are rate limited
// (max once per 10s) to avoid hammering backends.
func (m *Monitor) cached() (Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastCheck.IsZero() || time.Since(m.lastCheck) >= 10*time.Second {
		return Report{}, false
	}
	return m.lastReport, true
}

func (m *Monitor) probe(ctx context.Context) Report {
	report := Report{
		Status:   StatusHealthy,
		Database: "not_configured",
		Redis:    "not_configured",
	}

	if m.db != nil {
		if err := m.db.Health(ctx); err != nil {
			report.Database = "unreachable"
			report.Status = StatusCritical
		} else {
			report.Database = "ok"
		}
	}

	if m.redis != nil {
		if err := m.redis.Health(ctx); err != nil {
			report.Redis = "unreachable"
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		} else {
			report.Redis = "ok"
		}
	}

	if m.circuit != nil && m.circuit.Disabled() {
		report.ReportingDisabled = true
		if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}

	if m.heartbeat != nil {
		if at, err := m.heartbeat.LastReport(ctx, m.nodeUUID); err == nil && !at.IsZero() {
			report.LastReportAt = at
			age := time.Since(at)
			report.LastReportAge = age.Round(time.Second).String()
			if m.staleAfter > 0 && age > m.staleAfter && report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
		if gen, err := m.heartbeat.LastGeneration(ctx, m.nodeUUID); err == nil {
			report.LastGeneration = gen
		}
	}

	return report
}
