// Package agent provides the base framework for vesselwatch agents
package agent

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AgentType identifies the type of agent
type AgentType string

const (
	AgentTypeTracker   AgentType = "tracker"
	AgentTypeSimulator AgentType = "simulator"
)

// Feed states
const (
	FeedNone  = "none"
	FeedLive  = "live"
	FeedStale = "stale"
)

// DefaultFeedTimeout is how long without traffic before the feed is stale
const DefaultFeedTimeout = 30 * time.Second

// HealthStatus represents agent health
type HealthStatus struct {
	Healthy     bool       `json:"healthy"`
	Status      string     `json:"status"`
	Feed        string     `json:"feed"`
	LastTraffic *time.Time `json:"last_traffic,omitempty"`
	Details     string     `json:"details,omitempty"`
}

// Agent is the interface that all agents must implement
type Agent interface {
	// Identity
	ID() string
	Type() AgentType

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health() HealthStatus

	// Metrics
	Metrics() *prometheus.Registry
}

// Config holds configuration for an agent
type Config struct {
	ID      string
	Type    AgentType
	NATSUrl string
	// Optional NATS credentials; agents connect anonymously when empty
	NATSUser     string
	NATSPassword string
	// HMAC key for message signatures; empty disables signing
	Secret []byte
	// Traffic gap after which Health reports the feed stale
	FeedTimeout time.Duration
}
