package agent

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agile-defense/vesselwatch/pkg/messages"
)

func newTestAgent(t *testing.T) *BaseAgent {
	t.Helper()
	a, err := NewBaseAgent(Config{
		ID:      "tracker-test",
		Type:    AgentTypeTracker,
		NATSUrl: "nats://127.0.0.1:1",
	})
	require.NoError(t, err)
	return a
}

func TestNewBaseAgent(t *testing.T) {
	a := newTestAgent(t)
	assert.Equal(t, "tracker-test", a.ID())
	assert.Equal(t, AgentTypeTracker, a.Type())
	assert.NotNil(t, a.Metrics())
	assert.NotNil(t, a.Logger())
	assert.Equal(t, DefaultFeedTimeout, a.config.FeedTimeout)
	assert.True(t, a.LastTraffic().IsZero())
}

func TestRecordDelta(t *testing.T) {
	a := newTestAgent(t)

	a.RecordDelta("applied", time.Millisecond)
	a.RecordDelta("applied", time.Millisecond)
	a.RecordDelta("invalid", time.Millisecond)
	a.RecordError("fetch_error")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.deltasTotal.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.deltasTotal.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.errorsTotal.WithLabelValues("fetch_error")))
	assert.False(t, a.LastTraffic().IsZero())

	families, err := a.Metrics().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
		for _, m := range f.GetMetric() {
			require.NotEmpty(t, m.GetLabel())
			assert.Equal(t, "agent_type", m.GetLabel()[0].GetName())
		}
	}
	assert.ElementsMatch(t, []string{
		"vesselwatch_deltas_received_total",
		"vesselwatch_delta_processing_seconds",
		"vesselwatch_feed_errors_total",
	}, names)
}

func TestFeedState(t *testing.T) {
	a, err := NewBaseAgent(Config{ID: "simulator-test", Type: AgentTypeSimulator, FeedTimeout: 10 * time.Second})
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, FeedNone, a.feedState(now))

	a.touch(now)
	assert.Equal(t, FeedLive, a.feedState(now.Add(5*time.Second)))
	assert.Equal(t, FeedStale, a.feedState(now.Add(11*time.Second)))
	assert.Equal(t, now, a.LastTraffic())
}

func TestHealthWhenStopped(t *testing.T) {
	a := newTestAgent(t)
	h := a.Health()
	assert.False(t, h.Healthy)
	assert.Equal(t, "stopped", h.Status)
	assert.Equal(t, FeedNone, h.Feed)
	assert.Nil(t, h.LastTraffic)

	a.RecordDelta("applied", time.Millisecond)
	h = a.Health()
	assert.Equal(t, FeedLive, h.Feed)
	require.NotNil(t, h.LastTraffic)
}

func TestPublishRequiresConnection(t *testing.T) {
	a := newTestAgent(t)
	msg := messages.NewDeltaUpdate(a.ID(), string(a.Type()), "vessels.urn:mrn:imo:mmsi:366982330", time.Now())
	err := a.Publish(context.Background(), msg, "vessel_delta")
	assert.ErrorContains(t, err, "not connected")
	assert.True(t, a.LastTraffic().IsZero())
}

func TestStartFailsWithoutServer(t *testing.T) {
	a := newTestAgent(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.Error(t, a.Start(ctx))
	assert.Equal(t, "stopped", a.Health().Status)
	assert.NoError(t, a.Stop(ctx))
}
