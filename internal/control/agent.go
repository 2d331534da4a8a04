// Package control wires the agent's components together and drives the
// periodic report loop.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/nodepulse/nodepulse/internal/core/config"
	"github.com/nodepulse/nodepulse/internal/core/domain"
	"github.com/nodepulse/nodepulse/internal/health"
	redisclient "github.com/nodepulse/nodepulse/internal/infra/redis"
	"github.com/nodepulse/nodepulse/internal/infra/session"
	"github.com/nodepulse/nodepulse/internal/infra/storage/memory"
	"github.com/nodepulse/nodepulse/internal/infra/storage/postgres"
	"github.com/nodepulse/nodepulse/internal/metrics"
	"github.com/nodepulse/nodepulse/internal/placement"
	"github.com/nodepulse/nodepulse/internal/stats"
)

// Config holds the application configuration.
type Config struct {
	Port           int
	Node           config.NodeConfig
	Placement      session.Config
	ReportInterval time.Duration
	Redis          redisclient.Config
	Database       postgres.Config
	MigrationsDir  string
}

// Agent is the main application struct that manages the reporting lifecycle.
type Agent struct {
	cfg          Config
	node         *domain.ComputeNode
	collector    *stats.Collector
	report       *placement.ReportClient
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewAgent creates a new Agent instance with all dependencies initialized.
func NewAgent(cfg Config) (*Agent, error) {
	log := slog.Default()

	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = 60 * time.Second
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}

	// 1. Initialize Storage
	var statsStore placement.StatsStore
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, cfg.MigrationsDir); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		statsStore = postgres.NewStatsRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		statsStore = memory.NewStatsStore()
		slog.Info("Using Memory storage")
	}

	// 2. Initialize Redis heartbeat (optional)
	var redisClient *redisclient.Client
	var heartbeat placement.HeartbeatStore
	var heartbeatReader health.HeartbeatReader
	var redisPinger health.Pinger

	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		heartbeat = redisClient
		heartbeatReader = redisClient
		redisPinger = redisClient
	}

	// 3. Resolve node identity
	nodeUUID := cfg.Node.UUID
	if nodeUUID == "" {
		var err error
		nodeUUID, err = LoadOrCreateNodeUUID(cfg.Node.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve node identity: %w", err)
		}
	}

	hostname := cfg.Node.Hostname
	if hostname == "" {
		var err error
		hostname, err = os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve hostname: %w", err)
		}
	}

	// 4. Placement report client
	sess := session.New(cfg.Placement)
	report := placement.NewReportClient(sess, statsStore, heartbeat, log.With("component", "placement"))

	// 5. Health monitor and server
	var dbPinger health.Pinger
	if db != nil {
		dbPinger = db
	}
	monitor := health.NewMonitor(
		nodeUUID,
		3*cfg.ReportInterval,
		dbPinger,
		redisPinger,
		heartbeatReader,
		report,
	)
	healthServer := health.NewServer(monitor, cfg.Port)

	return &Agent{
		cfg:          cfg,
		node:         &domain.ComputeNode{UUID: nodeUUID, Hostname: hostname},
		collector:    stats.NewCollector(cfg.Node.DataDir),
		report:       report,
		healthServer: healthServer,
		db:           db,
		redisClient:  redisClient,
		log:          log,
		done:         make(chan struct{}),
	}, nil
}

// Start launches the health server and the report loop.
func (a *Agent) Start(ctx context.Context) error {
	a.log.Info("Starting agent",
		"node_uuid", a.node.UUID,
		"hostname", a.node.Hostname,
		"report_interval", a.cfg.ReportInterval)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	a.wg.Add(1)
	go a.reportLoop(ctx)

	return nil
}

// Stop shuts the agent down and releases its resources.
func (a *Agent) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		close(a.done)

		if stopErr := a.healthServer.Stop(ctx); stopErr != nil {
			err = stopErr
		}

		a.wg.Wait()

		if a.redisClient != nil {
			_ = a.redisClient.Close()
		}
		if a.db != nil {
			_ = a.db.Close()
		}
	})
	return err
}

// reportLoop reports immediately, then on every tick. A failed cycle is
// logged and retried on the next tick; there is no inner retry.
func (a *Agent) reportLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.ReportInterval)
	defer ticker.Stop()

	a.reportOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case <-ticker.C:
			a.reportOnce(ctx)
		}
	}
}

func (a *Agent) reportOnce(ctx context.Context) {
	a.node.Stats = a.collector.Collect()

	if err := a.report.UpdateResourceStats(ctx, a.node); err != nil {
		metrics.ReportCyclesTotal.WithLabelValues("error").Inc()
		a.log.Error("Report cycle failed", "node_uuid", a.node.UUID, "error", err)
		return
	}
	metrics.ReportCyclesTotal.WithLabelValues("ok").Inc()
	a.log.Debug("Report cycle completed", "node_uuid", a.node.UUID)
}
