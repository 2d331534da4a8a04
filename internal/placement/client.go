// Package placement keeps the local node's resource provider record
// reconciled with the remote placement service. It caches resolved records,
// resolves create/lookup races through the service's uniqueness constraint,
// and latches itself off permanently when the service is misconfigured.
package placement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nodepulse/nodepulse/internal/core/domain"
	"github.com/nodepulse/nodepulse/internal/infra/session"
	"github.com/nodepulse/nodepulse/internal/metrics"
)

// Transport issues authenticated requests against the placement service.
// Non-2xx statuses must surface as inspectable responses, not errors.
type Transport interface {
	Get(ctx context.Context, path string) (*session.Response, error)
	Post(ctx context.Context, path string, body any) (*session.Response, error)
}

// StatsStore persists the node's current statistics.
type StatsStore interface {
	SaveStats(ctx context.Context, node *domain.ComputeNode) error
}

// HeartbeatStore records the last successful report. Best-effort; failures
// are logged and ignored.
type HeartbeatStore interface {
	RecordReport(ctx context.Context, nodeUUID string, generation int64, at time.Time) error
}

// ReportClient is the reconciliation engine. One long-lived instance per
// process; the provider cache and the circuit latch live for the process
// lifetime and are safe for concurrent use.
type ReportClient struct {
	transport Transport
	stats     StatsStore
	heartbeat HeartbeatStore
	log       *slog.Logger

	mu        sync.RWMutex
	providers map[string]domain.ResourceProvider

	disabled atomic.Bool
	flight   singleflight.Group
}

// NewReportClient creates a report client. heartbeat may be nil.
func NewReportClient(transport Transport, stats StatsStore, heartbeat HeartbeatStore, log *slog.Logger) *ReportClient {
	if log == nil {
		log = slog.Default()
	}
	return &ReportClient{
		transport: transport,
		stats:     stats,
		heartbeat: heartbeat,
		log:       log,
		providers: make(map[string]domain.ResourceProvider),
	}
}

// Disabled reports whether the circuit has latched open. Once open it stays
// open for the remainder of the process.
func (c *ReportClient) Disabled() bool {
	return c.disabled.Load()
}

// safeCall wraps one remote operation with the fault policy: a latched
// circuit short-circuits to a no-op, configuration faults latch the circuit,
// connection faults are logged and retried naturally on the next cycle.
// Every other error passes through unchanged.
func (c *ReportClient) safeCall(op string, fn func() (*domain.ResourceProvider, error)) (*domain.ResourceProvider, error) {
	if c.disabled.Load() {
		return nil, nil
	}

	start := time.Now()
	rp, err := fn()
	metrics.PlacementRequestLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return rp, nil
	case errors.Is(err, session.ErrEndpointNotFound):
		c.log.Warn("placement endpoint not found, reporting is now disabled", "error", err)
		c.disable()
		return nil, nil
	case errors.Is(err, session.ErrMissingAuth):
		c.log.Warn("no authentication information for placement, reporting is now disabled", "error", err)
		c.disable()
		return nil, nil
	case errors.Is(err, session.ErrConnectFailure):
		c.log.Warn("placement service is not responding", "error", err)
		return nil, nil
	default:
		return nil, err
	}
}

func (c *ReportClient) disable() {
	c.disabled.Store(true)
	metrics.PlacementCircuitOpen.Set(1)
}

// getResourceProvider queries placement for the record with the supplied
// UUID. Returns nil with no error when no such record exists, or when an
// unexpected status left existence unconfirmed (logged).
func (c *ReportClient) getResourceProvider(ctx context.Context, uuid string) (*domain.ResourceProvider, error) {
	resp, err := c.transport.Get(ctx, "/resource_providers/"+uuid)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			Name       string `json:"name"`
			Generation int64  `json:"generation"`
		}
		if err := resp.JSON(&body); err != nil {
			return nil, fmt.Errorf("parse resource provider %s: %w", uuid, err)
		}
		metrics.PlacementRequestsTotal.WithLabelValues("get", "ok").Inc()
		return &domain.ResourceProvider{
			UUID:       uuid,
			Name:       body.Name,
			Generation: body.Generation,
		}, nil
	case http.StatusNotFound:
		metrics.PlacementRequestsTotal.WithLabelValues("get", "absent").Inc()
		return nil, nil
	default:
		metrics.PlacementRequestsTotal.WithLabelValues("get", "error").Inc()
		c.log.Error("failed to retrieve resource provider",
			"uuid", uuid,
			"status", resp.StatusCode,
			"body", resp.Text())
		return nil, nil
	}
}

// createResourceProvider asks placement to create a new record. A 409 means
// another reporter created it first; the existing record wins and is fetched
// back.
func (c *ReportClient) createResourceProvider(ctx context.Context, uuid, name string) (*domain.ResourceProvider, error) {
	payload := map[string]string{
		"uuid": uuid,
		"name": name,
	}

	resp, err := c.transport.Post(ctx, "/resource_providers", payload)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		metrics.PlacementRequestsTotal.WithLabelValues("create", "ok").Inc()
		c.log.Info("created resource provider", "uuid", uuid, "name", name)
		// New records always start at generation 1; the creation response
		// is not re-read.
		return &domain.ResourceProvider{
			UUID:       uuid,
			Name:       name,
			Generation: 1,
		}, nil
	case http.StatusConflict:
		metrics.PlacementRequestsTotal.WithLabelValues("create", "conflict").Inc()
		c.log.Info("resource provider created concurrently elsewhere, fetching that record", "uuid", uuid)
		return c.getResourceProvider(ctx, uuid)
	default:
		metrics.PlacementRequestsTotal.WithLabelValues("create", "error").Inc()
		c.log.Error("failed to create resource provider",
			"uuid", uuid,
			"status", resp.StatusCode,
			"body", resp.Text())
		return nil, nil
	}
}

// EnsureResourceProvider guarantees placement has a record for uuid and
// returns it, creating the record if needed. name is used only when creating
// and falls back to the uuid when empty.
//
// A nil record with a nil error means existence could not be confirmed this
// time (service unreachable, reporting disabled, or an unexpected remote
// error). That is a normal, retryable outcome: nothing is cached and the
// caller's next cycle tries again.
func (c *ReportClient) EnsureResourceProvider(ctx context.Context, uuid, name string) (*domain.ResourceProvider, error) {
	if rp, ok := c.cachedProvider(uuid); ok {
		return rp, nil
	}

	// Collapse concurrent callers for the same uuid. Duplicate in-flight
	// sequences would be harmless (the 409 path reconciles) but wasteful.
	v, err, _ := c.flight.Do(uuid, func() (any, error) {
		if rp, ok := c.cachedProvider(uuid); ok {
			return rp, nil
		}

		rp, err := c.safeCall("get", func() (*domain.ResourceProvider, error) {
			return c.getResourceProvider(ctx, uuid)
		})
		if err != nil {
			return nil, err
		}

		if rp == nil {
			effectiveName := name
			if effectiveName == "" {
				effectiveName = uuid
			}
			rp, err = c.safeCall("create", func() (*domain.ResourceProvider, error) {
				return c.createResourceProvider(ctx, uuid, effectiveName)
			})
			if err != nil {
				return nil, err
			}
		}

		if rp == nil {
			return (*domain.ResourceProvider)(nil), nil
		}
		c.storeProvider(rp)
		return rp, nil
	})
	if err != nil {
		return nil, err
	}

	rp, _ := v.(*domain.ResourceProvider)
	return rp, nil
}

// UpdateResourceStats persists the node's current stats and then reconciles
// its resource provider record with placement. Only the persistence error is
// returned; reconciliation failures surface through logs and metrics and are
// retried on the next report cycle.
func (c *ReportClient) UpdateResourceStats(ctx context.Context, node *domain.ComputeNode) error {
	if err := c.stats.SaveStats(ctx, node); err != nil {
		metrics.StatsSaveErrorsTotal.Inc()
		return fmt.Errorf("save node stats: %w", err)
	}

	rp, err := c.EnsureResourceProvider(ctx, node.UUID, node.Hostname)
	if err != nil {
		c.log.Error("resource provider reconciliation failed", "uuid", node.UUID, "error", err)
		return nil
	}
	if rp == nil {
		c.log.Debug("resource provider not confirmed this cycle", "uuid", node.UUID)
		return nil
	}

	if c.heartbeat != nil {
		if err := c.heartbeat.RecordReport(ctx, node.UUID, rp.Generation, time.Now()); err != nil {
			c.log.Warn("failed to record report heartbeat", "uuid", node.UUID, "error", err)
		}
	}
	return nil
}

func (c *ReportClient) cachedProvider(uuid string) (*domain.ResourceProvider, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rp, ok := c.providers[uuid]
	if !ok {
		return nil, false
	}
	cp := rp
	return &cp, true
}

func (c *ReportClient) storeProvider(rp *domain.ResourceProvider) {
	c.mu.Lock()
	c.providers[rp.UUID] = *rp
	metrics.ProviderCacheSize.Set(float64(len(c.providers)))
	c.mu.Unlock()
}
