// Package natsutil provides NATS JetStream configuration and helpers
package natsutil

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Stream names
const (
	StreamDeltas  = "VESSEL_DELTAS"
	StreamTargets = "TARGETS"
	StreamAlarms  = "ALARMS"
)

// Subjects
const (
	SubjectDeltas  = "vessel.delta.>"
	SubjectReports = "target.report.>"
	SubjectAlarms  = "alarm.>"
)

// ConsumerTracker is the durable consumer used by the tracker agent
const ConsumerTracker = "tracker"

// StreamConfigs defines all streams used by vesselwatch
var StreamConfigs = map[string]jetstream.StreamConfig{
	StreamDeltas: {
		Name:              StreamDeltas,
		Description:       "Incremental AIS and own-ship field updates",
		Subjects:          []string{SubjectDeltas},
		Retention:         jetstream.LimitsPolicy,
		MaxBytes:          512 * 1024 * 1024, // 512MB
		MaxAge:            time.Hour,
		Storage:           jetstream.FileStorage,
		Replicas:          1,
		Discard:           jetstream.DiscardOld,
		MaxMsgsPerSubject: 1000,
	},
	StreamTargets: {
		Name:              StreamTargets,
		Description:       "Ranked target reports, one per tick",
		Subjects:          []string{SubjectReports},
		Retention:         jetstream.LimitsPolicy,
		MaxBytes:          256 * 1024 * 1024,
		MaxAge:            10 * time.Minute,
		Storage:           jetstream.MemoryStorage,
		Replicas:          1,
		Discard:           jetstream.DiscardOld,
		MaxMsgsPerSubject: 600,
	},
	StreamAlarms: {
		Name:        StreamAlarms,
		Description: "Danger alarm events",
		Subjects:    []string{SubjectAlarms},
		Retention:   jetstream.LimitsPolicy,
		MaxBytes:    64 * 1024 * 1024,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	},
}

// ConsumerConfigs defines consumers for each agent type
var ConsumerConfigs = map[string]jetstream.ConsumerConfig{
	ConsumerTracker: {
		Durable:       ConsumerTracker,
		Description:   "Tracker agent consumer for vessel deltas",
		FilterSubject: SubjectDeltas,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		MaxAckPending: 5000,
		// Stale deltas are useless after a restart; the bulk snapshot covers them
		DeliverPolicy: jetstream.DeliverNewPolicy,
	},
}

// SetupStreams creates all required streams
func SetupStreams(ctx context.Context, js jetstream.JetStream) error {
	for name, cfg := range StreamConfigs {
		_, err := js.Stream(ctx, name)
		if err == nil {
			continue // Stream exists
		}

		_, err = js.CreateStream(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}
	}
	return nil
}

// SetupConsumer creates a consumer for an agent
func SetupConsumer(ctx context.Context, js jetstream.JetStream, streamName, consumerName string) (jetstream.Consumer, error) {
	cfg, ok := ConsumerConfigs[consumerName]
	if !ok {
		cfg = jetstream.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    3,
			MaxAckPending: 100,
		}
	}

	stream, err := js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("stream %s not found: %w", streamName, err)
	}

	consumer, err := stream.Consumer(ctx, cfg.Durable)
	if err == nil {
		return consumer, nil
	}

	return stream.CreateConsumer(ctx, cfg)
}
