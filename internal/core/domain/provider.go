package domain

// ResourceProvider is the placement service's record of a schedulable
// entity, keyed by a stable UUID. Generation is a server-assigned version
// counter for optimistic concurrency; this agent only reads it.
type ResourceProvider struct {
	UUID       string
	Name       string
	Generation int64
}
