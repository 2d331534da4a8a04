// Package memory provides in-process storage for running without a database.
package memory

import (
	"context"
	"sync"

	"github.com/nodepulse/nodepulse/internal/core/domain"
)

// StatsStore keeps node stats in memory. Used when no database is configured.
type StatsStore struct {
	mu    sync.RWMutex
	nodes map[string]domain.ComputeNode
}

// NewStatsStore creates an empty in-memory stats store.
func NewStatsStore() *StatsStore {
	return &StatsStore{nodes: make(map[string]domain.ComputeNode)}
}

// SaveStats stores the node's current stats, keyed by node uuid.
func (s *StatsStore) SaveStats(ctx context.Context, node *domain.ComputeNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.UUID] = *node
	return nil
}

// GetStats retrieves the last saved stats for a node, or nil if none exist.
func (s *StatsStore) GetStats(ctx context.Context, nodeUUID string) (*domain.ComputeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[nodeUUID]
	if !ok {
		return nil, nil
	}
	cp := node
	return &cp, nil
}
