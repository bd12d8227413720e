package natsutil

import (
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agile-defense/vesselwatch/pkg/messages"
)

func TestStreamConfigs(t *testing.T) {
	for name, cfg := range StreamConfigs {
		assert.Equal(t, name, cfg.Name)
		assert.NotEmpty(t, cfg.Subjects)
	}
}

func TestTrackerConsumer(t *testing.T) {
	cfg, ok := ConsumerConfigs[ConsumerTracker]
	require.True(t, ok)
	assert.Equal(t, jetstream.AckExplicitPolicy, cfg.AckPolicy)
	assert.Equal(t, SubjectDeltas, cfg.FilterSubject)
}

// Every message subject must land in exactly one stream
func TestSubjectsRouteToStreams(t *testing.T) {
	subjects := map[string]string{
		(&messages.DeltaUpdate{Context: "vessels.urn:mrn:imo:mmsi:366982330"}).Subject(): StreamDeltas,
		(&messages.TargetReport{SelfID: "123456789"}).Subject():                           StreamTargets,
		(&messages.AlarmEvent{State: "danger", TargetID: "366982330"}).Subject():          StreamAlarms,
	}

	for subject, want := range subjects {
		var matched []string
		for name, cfg := range StreamConfigs {
			for _, pattern := range cfg.Subjects {
				if subjectMatches(pattern, subject) {
					matched = append(matched, name)
				}
			}
		}
		assert.Equal(t, []string{want}, matched, subject)
	}
}

// subjectMatches handles the trailing ">" wildcard used by the stream configs
func subjectMatches(pattern, subject string) bool {
	if n := len(pattern); n > 0 && pattern[n-1] == '>' {
		prefix := pattern[:n-1]
		return len(subject) > len(prefix) && subject[:len(prefix)] == prefix
	}
	return pattern == subject
}
