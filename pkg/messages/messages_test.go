package messages

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agile-defense/vesselwatch/pkg/ingest"
	"github.com/agile-defense/vesselwatch/pkg/target"
)

var secret = []byte("test-secret")

func TestDeltaUpdateSubject(t *testing.T) {
	d := NewDeltaUpdate("sim-1", "simulator", "vessels.urn:mrn:imo:mmsi:366982330", time.Now())
	assert.Equal(t, "vessel.delta.366982330", d.Subject())

	bad := NewDeltaUpdate("sim-1", "simulator", "vessels.self", time.Now())
	assert.Equal(t, "vessel.delta.invalid", bad.Subject())
}

func TestDeltaUpdateConversion(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	d := NewDeltaUpdate("sim-1", "simulator", "vessels.urn:mrn:imo:mmsi:366982330", ts).
		Add(ingest.PathSOG, []byte(`3.5`)).
		Add(ingest.PathName, []byte(`"EVER GIVEN"`))

	delta := d.Delta()
	assert.Equal(t, ts, delta.Timestamp)
	require.Len(t, delta.Values, 2)
	assert.Equal(t, ingest.PathSOG, delta.Values[0].Path)
}

func TestSignedRoundTrip(t *testing.T) {
	d := NewDeltaUpdate("sim-1", "simulator", "vessels.urn:mrn:imo:mmsi:366982330", time.Now()).
		Add(ingest.PathPosition, []byte(`{"latitude": 39.95, "longitude": -75.16}`))

	data, err := MarshalWithSignature(d, secret)
	require.NoError(t, err)

	var got DeltaUpdate
	require.NoError(t, UnmarshalVerified(data, &got, secret))
	assert.NotEmpty(t, got.Envelope.Signature)
	assert.Equal(t, d.Envelope.MessageID, got.Envelope.MessageID)

	var tampered DeltaUpdate
	require.NoError(t, json.Unmarshal(data, &tampered))
	tampered.Context = "vessels.urn:mrn:imo:mmsi:111111111"
	forged, err := json.Marshal(&tampered)
	require.NoError(t, err)
	assert.Error(t, UnmarshalVerified(forged, &DeltaUpdate{}, secret))
}

func TestUnsignedWithoutSecret(t *testing.T) {
	d := NewDeltaUpdate("sim-1", "simulator", "vessels.urn:mrn:imo:mmsi:366982330", time.Now())
	data, err := MarshalWithSignature(d, nil)
	require.NoError(t, err)

	var got DeltaUpdate
	require.NoError(t, UnmarshalVerified(data, &got, nil))
	assert.Empty(t, got.Envelope.Signature)
}

func TestTargetReport(t *testing.T) {
	self := target.Target{ID: "123456789", Raw: target.Raw{Latitude: target.Float(40), Longitude: target.Float(-70)}}
	ranked := []target.Target{
		{ID: "970000001", Derived: target.Derived{State: target.StateDanger, AlarmTypes: []string{"sart"}}},
		{ID: "366982330"},
	}

	r := NewTargetReport("tracker-1", self.ID, &self, ranked, "coastal", false)
	assert.Equal(t, "target.report.123456789", r.Subject())
	require.Len(t, r.Targets, 2)
	assert.Equal(t, "970000001", r.Targets[0].ID)
	assert.Equal(t, "SART", r.Targets[0].Alarm)
	require.NotNil(t, r.Self)
	assert.Equal(t, "N 40° 00.0000", r.Self.Latitude)

	r = NewTargetReport("tracker-1", "123456789", nil, nil, "coastal", true)
	assert.Equal(t, "target.report.123456789", r.Subject())
	assert.Nil(t, r.Self)
	assert.True(t, r.NoFix)
	assert.Empty(t, r.Targets)
}

func TestAlarmEvent(t *testing.T) {
	tgt := target.Target{
		ID:  "366982330",
		Raw: target.Raw{Name: "EVER GIVEN"},
		Derived: target.Derived{
			State:      target.StateDanger,
			AlarmTypes: []string{"cpa"},
			CPA:        target.Float(50),
		},
	}

	a := NewAlarmEvent("tracker-1", tgt)
	assert.Equal(t, "alarm.danger.366982330", a.Subject())
	assert.Equal(t, "366982330", a.Envelope.CorrelationID)
	assert.Equal(t, 50.0, *a.CPA)
}
