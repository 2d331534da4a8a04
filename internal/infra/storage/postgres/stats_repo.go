package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nodepulse/nodepulse/internal/core/domain"
)

// StatsRepo persists node resource statistics in PostgreSQL.
type StatsRepo struct {
	db *DB
}

// NewStatsRepo creates a new PostgreSQL stats repository.
func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// SaveStats upserts the node's current stats, keyed by node uuid.
func (r *StatsRepo) SaveStats(ctx context.Context, node *domain.ComputeNode) error {
	query := `
		INSERT INTO node_stats (node_uuid, hostname, vcpus, memory_mb, local_gb, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (node_uuid) DO UPDATE SET
			hostname = EXCLUDED.hostname,
			vcpus = EXCLUDED.vcpus,
			memory_mb = EXCLUDED.memory_mb,
			local_gb = EXCLUDED.local_gb,
			collected_at = EXCLUDED.collected_at
	`

	_, err := r.db.ExecContext(ctx, query,
		node.UUID,
		node.Hostname,
		node.Stats.VCPUs,
		node.Stats.MemoryMB,
		node.Stats.LocalGB,
		node.Stats.CollectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save node stats: %w", err)
	}
	return nil
}

type statsRow struct {
	NodeUUID    string    `db:"node_uuid"`
	Hostname    string    `db:"hostname"`
	VCPUs       int       `db:"vcpus"`
	MemoryMB    int64     `db:"memory_mb"`
	LocalGB     int64     `db:"local_gb"`
	CollectedAt time.Time `db:"collected_at"`
}

func (s *statsRow) toDomain() *domain.ComputeNode {
	return &domain.ComputeNode{
		UUID:     s.NodeUUID,
		Hostname: s.Hostname,
		Stats: domain.NodeStats{
			VCPUs:       s.VCPUs,
			MemoryMB:    s.MemoryMB,
			LocalGB:     s.LocalGB,
			CollectedAt: s.CollectedAt,
		},
	}
}

// GetStats retrieves the last saved stats for a node, or nil if none exist.
func (r *StatsRepo) GetStats(ctx context.Context, nodeUUID string) (*domain.ComputeNode, error) {
	query := `
		SELECT node_uuid, hostname, vcpus, memory_mb, local_gb, collected_at
		FROM node_stats
		WHERE node_uuid = $1
	`

	var row statsRow
	if err := r.db.GetContext(ctx, &row, query, nodeUUID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get node stats: %w", err)
	}
	return row.toDomain(), nil
}
