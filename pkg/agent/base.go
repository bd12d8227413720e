package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/agile-defense/vesselwatch/pkg/messages"
)

var _ Agent = (*BaseAgent)(nil)

// BaseAgent connects an agent to the vessel feed and keeps its metrics
type BaseAgent struct {
	id        string
	agentType AgentType
	config    Config

	// NATS
	nc *nats.Conn
	js jetstream.JetStream

	logger zerolog.Logger

	// Metrics
	registry       *prometheus.Registry
	deltasTotal    *prometheus.CounterVec
	deltaLatency   prometheus.Histogram
	publishedTotal *prometheus.CounterVec
	publishLatency *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec

	// Unix nanoseconds of the last delta received or message published
	lastTraffic atomic.Int64

	// State
	running bool
	mu      sync.RWMutex
	cancel  context.CancelFunc
}

// NewBaseAgent creates a new base agent with its own metrics registry
func NewBaseAgent(cfg Config) (*BaseAgent, error) {
	if cfg.FeedTimeout <= 0 {
		cfg.FeedTimeout = DefaultFeedTimeout
	}

	logger := log.Logger.With().
		Str("agent_id", cfg.ID).
		Str("agent_type", string(cfg.Type)).
		Logger()

	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"agent_type": string(cfg.Type)}

	deltasTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "vesselwatch_deltas_received_total",
			Help:        "Vessel deltas received from the feed, by outcome",
			ConstLabels: labels,
		},
		[]string{"status"},
	)

	deltaLatency := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "vesselwatch_delta_processing_seconds",
			Help:        "Time to verify and merge one vessel delta",
			ConstLabels: labels,
			Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	publishedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "vesselwatch_messages_published_total",
			Help:        "Deltas, target reports and alarms published, by outcome",
			ConstLabels: labels,
		},
		[]string{"message_type", "status"},
	)

	publishLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "vesselwatch_publish_latency_seconds",
			Help:        "JetStream publish round trip",
			ConstLabels: labels,
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2},
		},
		[]string{"message_type"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "vesselwatch_feed_errors_total",
			Help:        "Feed errors by kind",
			ConstLabels: labels,
		},
		[]string{"error_type"},
	)

	registry.MustRegister(deltasTotal, deltaLatency, publishedTotal, publishLatency, errorsTotal)

	return &BaseAgent{
		id:             cfg.ID,
		agentType:      cfg.Type,
		config:         cfg,
		logger:         logger,
		registry:       registry,
		deltasTotal:    deltasTotal,
		deltaLatency:   deltaLatency,
		publishedTotal: publishedTotal,
		publishLatency: publishLatency,
		errorsTotal:    errorsTotal,
	}, nil
}

// ID returns the agent ID
func (a *BaseAgent) ID() string {
	return a.id
}

// Type returns the agent type
func (a *BaseAgent) Type() AgentType {
	return a.agentType
}

// Logger returns the agent logger
func (a *BaseAgent) Logger() *zerolog.Logger {
	return &a.logger
}

// NATS returns the NATS connection
func (a *BaseAgent) NATS() *nats.Conn {
	return a.nc
}

// JetStream returns the JetStream context
func (a *BaseAgent) JetStream() jetstream.JetStream {
	return a.js
}

// Metrics returns the Prometheus registry
func (a *BaseAgent) Metrics() *prometheus.Registry {
	return a.registry
}

// RecordDelta counts one received delta and how long it took to handle.
// Status is one of applied, invalid or rejected.
func (a *BaseAgent) RecordDelta(status string, took time.Duration) {
	a.deltasTotal.WithLabelValues(status).Inc()
	a.deltaLatency.Observe(took.Seconds())
	a.touch(time.Now())
}

// RecordError records a feed error
func (a *BaseAgent) RecordError(errorType string) {
	a.errorsTotal.WithLabelValues(errorType).Inc()
}

// LastTraffic returns when a delta was last received or a message last
// published. Zero when there has been none.
func (a *BaseAgent) LastTraffic() time.Time {
	ns := a.lastTraffic.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func (a *BaseAgent) touch(now time.Time) {
	a.lastTraffic.Store(now.UnixNano())
}

// feedState classifies traffic recency at now
func (a *BaseAgent) feedState(now time.Time) string {
	last := a.LastTraffic()
	switch {
	case last.IsZero():
		return FeedNone
	case now.Sub(last) > a.config.FeedTimeout:
		return FeedStale
	default:
		return FeedLive
	}
}

// Connect establishes NATS connection
func (a *BaseAgent) Connect(ctx context.Context) error {
	a.logger.Info().Str("url", a.config.NATSUrl).Msg("Connecting to NATS")

	opts := []nats.Option{
		nats.Name(a.id),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			a.logger.Warn().Err(err).Msg("Vessel feed disconnected")
			a.RecordError("disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			a.logger.Info().Msg("Vessel feed reconnected")
		}),
	}
	if a.config.NATSUser != "" {
		opts = append(opts, nats.UserInfo(a.config.NATSUser, a.config.NATSPassword))
	}

	nc, err := nats.Connect(a.config.NATSUrl, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	a.nc = nc
	a.js = js
	a.logger.Info().Msg("Connected to NATS with JetStream")
	return nil
}

// Publish signs msg with the agent secret and publishes it on its subject.
// The message id is used for JetStream de-duplication.
func (a *BaseAgent) Publish(ctx context.Context, msg messages.Message, msgType string) error {
	if a.js == nil {
		return fmt.Errorf("agent %s is not connected", a.id)
	}

	data, err := messages.MarshalWithSignature(msg, a.config.Secret)
	if err != nil {
		a.publishedTotal.WithLabelValues(msgType, "failed").Inc()
		a.RecordError("marshal_failed")
		return fmt.Errorf("failed to marshal %s: %w", msgType, err)
	}

	start := time.Now()
	subject := msg.Subject()
	_, err = a.js.Publish(ctx, subject, data, jetstream.WithMsgID(msg.GetEnvelope().MessageID))
	a.publishLatency.WithLabelValues(msgType).Observe(time.Since(start).Seconds())
	if err != nil {
		a.publishedTotal.WithLabelValues(msgType, "failed").Inc()
		a.RecordError("publish_failed")
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	a.publishedTotal.WithLabelValues(msgType, "success").Inc()
	a.touch(time.Now())
	return nil
}

// Health reports the connection and whether vessel traffic is flowing.
// A quiet feed does not make the agent unhealthy.
func (a *BaseAgent) Health() HealthStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := time.Now()
	h := HealthStatus{Feed: a.feedState(now)}
	if last := a.LastTraffic(); !last.IsZero() {
		h.LastTraffic = &last
	}

	if !a.running {
		h.Status = "stopped"
		return h
	}

	if a.nc == nil || !a.nc.IsConnected() {
		h.Status = "disconnected"
		h.Details = "NATS connection lost"
		if a.nc != nil && a.nc.IsReconnecting() {
			h.Details = "NATS reconnecting"
		}
		return h
	}

	h.Healthy = true
	h.Status = "running"
	if h.Feed == FeedStale {
		h.Details = fmt.Sprintf("no vessel traffic for %s", now.Sub(*h.LastTraffic).Truncate(time.Second))
	}
	return h
}

// Start connects the agent to the vessel feed
func (a *BaseAgent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("agent already running")
	}
	a.running = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	if err := a.Connect(ctx); err != nil {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		return err
	}

	a.logger.Info().Msg("Agent started")
	return nil
}

// Stop closes the NATS connection
func (a *BaseAgent) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	a.logger.Info().Msg("Stopping agent")

	if a.cancel != nil {
		a.cancel()
	}

	if a.nc != nil {
		a.nc.Close()
	}

	a.running = false
	a.logger.Info().Msg("Agent stopped")
	return nil
}
