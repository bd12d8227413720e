package target

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selfID = "123456789"

func TestStoreUpsertFromDeltaRetainsFields(t *testing.T) {
	s := NewStore(selfID)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	created := s.UpsertFromDelta("987654321", Patch{
		Position:  &Position{Latitude: 10, Longitude: 20},
		Name:      strPtr("ALPHA"),
		Timestamp: ts,
	})
	assert.True(t, created)
	require.True(t, s.SetDerived("987654321", Derived{Range: Float(1500), Valid: true}))

	created = s.UpsertFromDelta("987654321", Patch{SOG: Float(3.2), Timestamp: ts.Add(time.Second)})
	assert.False(t, created)

	got, ok := s.Get("987654321")
	require.True(t, ok)
	assert.Equal(t, "ALPHA", got.Raw.Name)
	assert.Equal(t, 10.0, *got.Raw.Latitude)
	assert.Equal(t, 3.2, *got.Raw.SOG)
	assert.Equal(t, ts, got.Raw.LastSeen, "non-position patch must not move LastSeen")
	assert.Equal(t, ts.Add(time.Second), got.Raw.Updated)
	require.NotNil(t, got.Derived.Range)
	assert.Equal(t, 1500.0, *got.Derived.Range)
}

func TestStoreLastSeenOnlyMovesForward(t *testing.T) {
	s := NewStore("123456789")
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)

	s.UpsertFromDelta("366982330", Patch{Position: &Position{Latitude: 2, Longitude: 2}, Timestamp: t1})
	s.UpsertFromDelta("366982330", Patch{Position: &Position{Latitude: 1, Longitude: 1}, Timestamp: t0})

	got, _ := s.Get("366982330")
	assert.Equal(t, 1.0, *got.Raw.Latitude, "late position still overwrites")
	assert.Equal(t, t1, got.Raw.LastSeen)
	assert.Equal(t, t1, got.Raw.Updated)
}

func TestStoreZeroIsNotAbsent(t *testing.T) {
	s := NewStore(selfID)
	s.UpsertFromDelta("000000001", Patch{Position: &Position{Latitude: 0, Longitude: 0}})

	got, ok := s.Get("000000001")
	require.True(t, ok)
	assert.True(t, got.Raw.HasPosition())
}

func TestStoreUpsertFromSnapshotPreservesSession(t *testing.T) {
	s := NewStore(selfID)
	s.UpsertFromDelta("987654321", Patch{Name: strPtr("OLD"), Callsign: strPtr("CALL")})
	s.SetMuted("987654321", true)

	s.UpsertFromSnapshot("987654321", Raw{Name: "NEW"})

	got, _ := s.Get("987654321")
	assert.Equal(t, "NEW", got.Raw.Name)
	assert.Empty(t, got.Raw.Callsign, "snapshot replaces raw fields")
	assert.True(t, got.Muted)
}

func TestStoreRemoveProtectsSelf(t *testing.T) {
	s := NewStore(selfID)
	s.Seed(selfID)
	s.Seed("987654321")

	assert.False(t, s.Remove(selfID))
	assert.True(t, s.Remove("987654321"))
	assert.False(t, s.Remove("987654321"))
	assert.Equal(t, 1, s.Len())
}

func TestStoreSeed(t *testing.T) {
	s := NewStore(selfID)
	assert.True(t, s.Seed("987654321"))
	assert.False(t, s.Seed("987654321"))

	got, _ := s.Get("987654321")
	require.NotNil(t, got.Raw.SOG)
	require.NotNil(t, got.Raw.COG)
	assert.Zero(t, *got.Raw.SOG)
	assert.Zero(t, *got.Raw.COG)
	assert.False(t, got.Raw.HasPosition())
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := NewStore(selfID)
	s.UpsertFromDelta("987654321", Patch{SOG: Float(1)})

	got, _ := s.Get("987654321")
	*got.Raw.SOG = 99

	again, _ := s.Get("987654321")
	assert.Equal(t, 1.0, *again.Raw.SOG)
}

func TestStoreSetDerivedUnknown(t *testing.T) {
	s := NewStore(selfID)
	assert.False(t, s.SetDerived("987654321", Derived{}))
	assert.False(t, s.SetMuted("987654321", true))
}

func TestStoreAllSorted(t *testing.T) {
	s := NewStore(selfID)
	for _, id := range []string{"300000000", "100000000", "200000000"} {
		s.Seed(id)
	}

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "100000000", all[0].ID)
	assert.Equal(t, "300000000", all[2].ID)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore(selfID)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.UpsertFromDelta("987654321", Patch{SOG: Float(float64(j))})
				s.SetDerived("987654321", Derived{Order: i})
				_ = s.All()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
}

func strPtr(v string) *string { return &v }
