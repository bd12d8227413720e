package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agile-defense/vesselwatch/pkg/target"
)

func f(v float64) *float64 { return &v }

func coastal(t *testing.T) Profile {
	t.Helper()
	p, err := DefaultProfileSet().Active()
	require.NoError(t, err)
	return p
}

func TestDefaultProfileSet(t *testing.T) {
	set := DefaultProfileSet()
	require.NoError(t, set.Validate())
	assert.Equal(t, ProfileCoastal, set.Current)
	assert.Equal(t, []string{"anchor", "coastal", "harbor", "offshore"}, set.Names())
}

func TestWithCurrent(t *testing.T) {
	set := DefaultProfileSet()

	harbor, err := set.WithCurrent(ProfileHarbor)
	require.NoError(t, err)
	assert.Equal(t, ProfileHarbor, harbor.Current)
	assert.Equal(t, ProfileCoastal, set.Current, "original set must not change")

	_, err = set.WithCurrent("lake")
	assert.Error(t, err)
}

func TestLoadProfileSet(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "profiles.json")
	require.NoError(t, os.WriteFile(good, []byte(`{
		"current": "bay",
		"profiles": {
			"bay": {
				"warning": {"cpa": 0.5, "tcpa": 600, "speed": 1},
				"danger": {"cpa": 0.2, "tcpa": 300, "speed": 1},
				"guard": {"range": 0.1, "speed": 0}
			}
		}
	}`), 0o600))

	set, err := LoadProfileSet(good)
	require.NoError(t, err)
	p, err := set.Active()
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.Warning.CPA)
	assert.Equal(t, 0.1, p.Guard.Range)

	t.Run("wrong extension", func(t *testing.T) {
		_, err := LoadProfileSet(filepath.Join(dir, "profiles.yaml"))
		assert.ErrorContains(t, err, ".json")
	})

	t.Run("unknown current", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"current":"x","profiles":{"y":{}}}`), 0o600))
		_, err := LoadProfileSet(bad)
		assert.ErrorContains(t, err, "unknown collision profile")
	})

	t.Run("negative threshold", func(t *testing.T) {
		bad := filepath.Join(dir, "neg.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"current":"y","profiles":{"y":{"guard":{"range":-1}}}}`), 0o600))
		_, err := LoadProfileSet(bad)
		assert.ErrorContains(t, err, "negative")
	})
}

func TestDeviceClassOf(t *testing.T) {
	tests := []struct {
		id   string
		want DeviceClass
	}{
		{"970123456", DeviceSART},
		{"972123456", DeviceMOB},
		{"974123456", DeviceEPIRB},
		{"111232511", DeviceSARAircraft},
		{"992351000", DeviceAtoN},
		{"002320001", DeviceBaseStation},
		{"366982330", DeviceVessel},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, DeviceClassOf(tt.id))
		})
	}
}

func TestGuardAlarm(t *testing.T) {
	anchor := DefaultProfileSet().Profiles[ProfileAnchor]

	inside := Classify(Input{ID: "366982330", Range: f(300)}, anchor)
	assert.True(t, inside.Guard)
	assert.Equal(t, target.StateDanger, inside.State)
	assert.Contains(t, inside.Types, AlarmGuard)

	outside := Classify(Input{ID: "366982330", Range: f(600)}, anchor)
	assert.False(t, outside.Guard)
	assert.Equal(t, target.StateNone, outside.State)
	assert.Empty(t, outside.Types)

	unknown := Classify(Input{ID: "366982330"}, anchor)
	assert.False(t, unknown.Guard)
}

func TestGuardSpeedGate(t *testing.T) {
	p := Profile{Guard: GuardThreshold{Range: 1, Speed: 2}}

	slow := Classify(Input{ID: "366982330", Range: f(100), SOG: f(0.5)}, p)
	assert.False(t, slow.Guard)

	fast := Classify(Input{ID: "366982330", Range: f(100), SOG: f(2)}, p)
	assert.True(t, fast.Guard)

	noSpeed := Classify(Input{ID: "366982330", Range: f(100)}, p)
	assert.False(t, noSpeed.Guard)
}

func TestCollisionAlarms(t *testing.T) {
	p := coastal(t)

	t.Run("danger", func(t *testing.T) {
		a := Classify(Input{ID: "366982330", SOG: f(5), Range: f(3000), CPA: f(100), TCPA: f(300)}, p)
		assert.True(t, a.Collision)
		assert.True(t, a.Warning)
		assert.Equal(t, target.StateDanger, a.State)
		assert.Equal(t, []string{AlarmCPA}, a.Types)
	})

	t.Run("warning only", func(t *testing.T) {
		a := Classify(Input{ID: "366982330", SOG: f(5), Range: f(8000), CPA: f(1500), TCPA: f(1200)}, p)
		assert.False(t, a.Collision)
		assert.True(t, a.Warning)
		assert.Equal(t, target.StateWarning, a.State)
		assert.Equal(t, []string{AlarmCPA}, a.Types)
	})

	t.Run("below danger speed gate", func(t *testing.T) {
		// 1 m/s is under the 3 kn danger gate but over the 0.5 kn warning gate
		a := Classify(Input{ID: "366982330", SOG: f(1), Range: f(3000), CPA: f(100), TCPA: f(300)}, p)
		assert.False(t, a.Collision)
		assert.True(t, a.Warning)
	})

	t.Run("tcpa passed", func(t *testing.T) {
		a := Classify(Input{ID: "366982330", SOG: f(5), Range: f(100), CPA: f(100), TCPA: f(-10)}, p)
		assert.False(t, a.Collision)
		assert.False(t, a.Warning)
	})

	t.Run("unknown cpa", func(t *testing.T) {
		a := Classify(Input{ID: "366982330", SOG: f(5), Range: f(100)}, p)
		assert.Equal(t, target.StateNone, a.State)
	})
}

func TestIdentityAlarms(t *testing.T) {
	p := coastal(t)

	tests := []struct {
		id   string
		want string
	}{
		{"970111111", AlarmSART},
		{"972111111", AlarmMOB},
		{"974111111", AlarmEPIRB},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			// No geometry at all
			a := Classify(Input{ID: tt.id}, p)
			assert.Equal(t, target.StateDanger, a.State)
			assert.Equal(t, []string{tt.want}, a.Types)
		})
	}
}

func TestAlarmTypeOrder(t *testing.T) {
	p := Profile{
		Warning: Threshold{CPA: 1, TCPA: 1800},
		Danger:  Threshold{CPA: 0.5, TCPA: 900},
		Guard:   GuardThreshold{Range: 1},
	}
	a := Classify(Input{ID: "970222222", SOG: f(5), Range: f(500), CPA: f(50), TCPA: f(60)}, p)
	assert.Equal(t, []string{AlarmGuard, AlarmCPA, AlarmSART}, a.Types)
}

func TestApply(t *testing.T) {
	a := Classify(Input{ID: "972000001"}, coastal(t))

	var d target.Derived
	a.Apply(&d)
	assert.True(t, d.MOBAlarm)
	assert.Equal(t, target.StateDanger, d.State)
	assert.Equal(t, []string{AlarmMOB}, d.AlarmTypes)
	assert.Equal(t, a.Order, d.Order)
}

func TestPriorityBuckets(t *testing.T) {
	closing := Input{Range: f(9000), CPA: f(4000), TCPA: f(1800)}
	diverging := Input{Range: f(9000)}
	unknown := Input{}

	danger := Priority(closing, target.StateDanger)
	warning := Priority(closing, target.StateWarning)
	closingOrder := Priority(closing, target.StateNone)
	divergingOrder := Priority(diverging, target.StateNone)
	unknownOrder := Priority(unknown, target.StateNone)

	assert.Less(t, danger, warning)
	assert.Less(t, warning, closingOrder)
	assert.Less(t, closingOrder, divergingOrder)
	assert.Less(t, divergingOrder, unknownOrder)
}

func TestPriorityAlarmedBeforeQuiet(t *testing.T) {
	in := Input{Range: f(1000), CPA: f(100), TCPA: f(120)}
	assert.Less(t, Priority(in, target.StateDanger), Priority(in, target.StateNone))
	assert.Less(t, Priority(in, target.StateWarning), Priority(in, target.StateNone))
}

func TestPriorityBeaconWithoutPosition(t *testing.T) {
	profile := DefaultProfileSet().Profiles[ProfileCoastal]

	sart := Classify(Input{ID: "970012345"}, profile)
	require.Equal(t, target.StateDanger, sart.State)

	// Slowest, farthest warning target still ranks after the beacon
	warning := Priority(Input{Range: f(20 * MetersPerNM), CPA: f(0.9 * MetersPerNM), TCPA: f(1700)}, target.StateWarning)
	assert.Less(t, sart.Order, warning)
	assert.Less(t, sart.Order, OrderWarning)

	// A positioned danger target still outranks it
	positioned := Priority(Input{Range: f(MetersPerNM)}, target.StateDanger)
	assert.Less(t, positioned, sart.Order)

	// Quiet targets without a position keep the full penalty
	assert.Greater(t, Priority(Input{}, target.StateNone), OrderUnknownRange)
}

func TestPriorityWithinBucket(t *testing.T) {
	soon := Priority(Input{Range: f(2000), CPA: f(200), TCPA: f(60)}, target.StateNone)
	later := Priority(Input{Range: f(2000), CPA: f(200), TCPA: f(3000)}, target.StateNone)
	assert.Less(t, soon, later)

	near := Priority(Input{Range: f(500)}, target.StateNone)
	far := Priority(Input{Range: f(5000)}, target.StateNone)
	assert.Less(t, near, far)

	// Range contribution is capped at 20 nm
	assert.Equal(t,
		Priority(Input{Range: f(40 * MetersPerNM)}, target.StateNone),
		Priority(Input{Range: f(400 * MetersPerNM)}, target.StateNone))
}

func TestPriorityClamp(t *testing.T) {
	for _, in := range []Input{
		{Range: f(1e300), CPA: f(1e300), TCPA: f(1e300)},
		{Range: f(-1e300), CPA: f(-1e300), TCPA: f(-1e300)},
		{},
	} {
		for _, state := range []target.AlarmState{target.StateDanger, target.StateWarning, target.StateNone} {
			order := Priority(in, state)
			assert.LessOrEqual(t, order, OrderLimit)
			assert.GreaterOrEqual(t, order, -OrderLimit)
		}
	}
}
