package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uasmesh/rid-display/internal/geo"
	"github.com/uasmesh/rid-display/internal/rid"
)

func TestSnapshotIsACopy(t *testing.T) {
	db := New(nil)

	db.Transact(func(v *View) {
		v.Flights["f1"] = FlightRecord{FlightsURL: "https://a/flights"}
	})

	snap := db.Snapshot()
	snap.Flights["f2"] = FlightRecord{FlightsURL: "https://b/flights"}
	snap.Behavior.AlwaysOmitRecentPaths = true

	// Mutating the snapshot must not leak into subsequent reads.
	fresh := db.Snapshot()
	assert.Len(t, fresh.Flights, 1)
	assert.False(t, fresh.Behavior.AlwaysOmitRecentPaths)
}

func TestTransactCommitsAtomically(t *testing.T) {
	db := New(nil)

	db.Transact(func(v *View) {
		v.Flights["f1"] = FlightRecord{FlightsURL: "https://a/flights"}
		v.Behavior.DoNotDisplayFlightsFrom = []string{"ussA"}
	})

	snap := db.Snapshot()
	assert.Equal(t, "https://a/flights", snap.Flights["f1"].FlightsURL)
	assert.True(t, snap.Behavior.BlocksOwner("ussA"))
}

func TestTransactSerializesWriters(t *testing.T) {
	db := New(nil)
	const writers = 20
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				db.Transact(func(v *View) {
					id := fmt.Sprintf("f-%d-%d", w, i)
					v.Flights[id] = FlightRecord{FlightsURL: "https://a/flights"}
				})
			}
		}(w)
	}
	wg.Wait()

	// Every write survives: no transaction clobbered another.
	assert.Len(t, db.Snapshot().Flights, writers*perWriter)
}

func TestSnapshotNeverTorn(t *testing.T) {
	db := New(nil)
	done := make(chan struct{})

	// Writer flips two fields that must always change together.
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			db.Transact(func(v *View) {
				v.Behavior.AlwaysOmitRecentPaths = !v.Behavior.AlwaysOmitRecentPaths
				if v.Behavior.AlwaysOmitRecentPaths {
					v.Behavior.DoNotDisplayFlightsFrom = []string{"ussA"}
				} else {
					v.Behavior.DoNotDisplayFlightsFrom = nil
				}
			})
		}
	}()

	for i := 0; i < 200; i++ {
		snap := db.Snapshot()
		if snap.Behavior.AlwaysOmitRecentPaths {
			assert.Equal(t, []string{"ussA"}, snap.Behavior.DoNotDisplayFlightsFrom)
		} else {
			assert.Empty(t, snap.Behavior.DoNotDisplayFlightsFrom)
		}
	}
	<-done
}

func TestSubscriptionByID(t *testing.T) {
	db := New(nil)

	db.Transact(func(v *View) {
		v.Subscriptions = append(v.Subscriptions, ObservationSubscription{
			Bounds: geo.BoundingBox{LatLo: 10, LngLo: 10, LatHi: 11, LngHi: 11},
			Upsert: rid.SubscriptionUpsert{SubscriptionID: "s1", TimeEnd: time.Now().Add(time.Minute)},
		})
	})

	db.Transact(func(v *View) {
		sub := v.SubscriptionByID("s1")
		require.NotNil(t, sub)
		sub.Updates = append(sub.Updates, rid.UpdatedISA{ID: "isa1"})

		assert.Nil(t, v.SubscriptionByID("missing"))
	})

	snap := db.Snapshot()
	require.Len(t, snap.Subscriptions, 1)
	assert.Len(t, snap.Subscriptions[0].Updates, 1)
}

func TestCloneDoesNotAliasSubscriptionUpdates(t *testing.T) {
	isa := &rid.ISA{ID: "isa1", Owner: "ussA", FlightsURL: "https://a/flights"}
	v := &View{
		Flights: map[string]FlightRecord{},
		Subscriptions: []ObservationSubscription{{
			Upsert:  rid.SubscriptionUpsert{SubscriptionID: "s1", ISAs: []rid.ISA{*isa}},
			Updates: []rid.UpdatedISA{{ID: "isa1", ISA: isa}},
		}},
	}

	clone := v.Clone()
	clone.Subscriptions[0].Updates[0].ISA.Owner = "changed"
	clone.Subscriptions[0].Upsert.ISAs[0].Owner = "changed"

	assert.Equal(t, "ussA", v.Subscriptions[0].Updates[0].ISA.Owner)
	assert.Equal(t, "ussA", v.Subscriptions[0].Upsert.ISAs[0].Owner)
}

func TestBadgerPersisterRoundTrip(t *testing.T) {
	persister, err := NewBadgerPersister(t.TempDir())
	require.NoError(t, err)
	defer persister.Close()

	// Nothing saved yet.
	loaded, err := persister.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	err = persister.Save(&View{
		Flights:  map[string]FlightRecord{"f1": {FlightsURL: "https://a/flights"}},
		Behavior: rid.Behavior{AlwaysOmitRecentPaths: true},
		Subscriptions: []ObservationSubscription{{
			Upsert: rid.SubscriptionUpsert{SubscriptionID: "s1"},
		}},
	})
	require.NoError(t, err)

	loaded, err = persister.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "https://a/flights", loaded.Flights["f1"].FlightsURL)
	assert.True(t, loaded.Behavior.AlwaysOmitRecentPaths)

	// Subscriptions are short-lived and deliberately not persisted.
	assert.Empty(t, loaded.Subscriptions)
}

func TestRestore(t *testing.T) {
	db := New(nil)

	db.Restore(&View{
		Flights: map[string]FlightRecord{"f1": {FlightsURL: "https://a/flights"}},
	})

	assert.Equal(t, "https://a/flights", db.Snapshot().Flights["f1"].FlightsURL)

	// Restoring nil is a no-op.
	db.Restore(nil)
	assert.Len(t, db.Snapshot().Flights, 1)
}
