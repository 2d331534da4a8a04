package domain

import "time"

// ComputeNode is the local compute host this agent reports on behalf of.
// The agent reads its identity fields; it does not own the node lifecycle.
type ComputeNode struct {
	UUID     string
	Hostname string
	Stats    NodeStats
}

// NodeStats is a point-in-time snapshot of the node's resources.
type NodeStats struct {
	VCPUs       int
	MemoryMB    int64
	LocalGB     int64
	CollectedAt time.Time
}
