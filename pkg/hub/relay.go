package hub

import (
	"context"
	"encoding/json"
)

// envelope wraps a broadcast payload for transport between processes.
type envelope struct {
	Origin  string          `json:"origin"`
	GroupID int64           `json:"group_id"`
	Body    json.RawMessage `json:"body"`
}

// Relay is the pluggable cross-process fan-out backend. A single-process
// deployment runs without one; multi-process deployments publish every
// broadcast and deliver every remote publication into the local registry.
type Relay interface {
	// Publish sends an encoded envelope to every process in the cluster.
	Publish(ctx context.Context, raw []byte) error

	// Run blocks, invoking deliver for each received envelope, until ctx is
	// cancelled.
	Run(ctx context.Context, deliver func(raw []byte))

	Close() error
}
