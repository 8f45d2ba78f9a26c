package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uasmesh/rid-display/internal/rid"
	"github.com/uasmesh/rid-display/internal/store"
)

func isa(id, owner, url string) rid.ISA {
	return rid.ISA{ID: id, Owner: owner, FlightsURL: url}
}

func TestCurrentISAsInitialSnapshotOnly(t *testing.T) {
	sub := store.ObservationSubscription{
		Upsert: rid.SubscriptionUpsert{
			ISAs: []rid.ISA{isa("isa2", "ussB", "https://b/flights"), isa("isa1", "ussA", "https://a/flights")},
		},
	}

	isas := CurrentISAs(sub)

	require.Len(t, isas, 2)
	assert.Equal(t, "isa1", isas[0].ID)
	assert.Equal(t, "isa2", isas[1].ID)
}

func TestCurrentISAsAppliesUpsertsInArrivalOrder(t *testing.T) {
	updated := isa("isa1", "ussA", "https://a/flights-v2")
	sub := store.ObservationSubscription{
		Upsert: rid.SubscriptionUpsert{ISAs: []rid.ISA{isa("isa1", "ussA", "https://a/flights")}},
		Updates: []rid.UpdatedISA{
			{ID: "isa1", ISA: &updated},
			{ID: "isa3", ISA: ptr(isa("isa3", "ussC", "https://c/flights"))},
		},
	}

	isas := CurrentISAs(sub)

	require.Len(t, isas, 2)
	assert.Equal(t, "https://a/flights-v2", isas[0].FlightsURL)
	assert.Equal(t, "isa3", isas[1].ID)
}

func TestCurrentISAsDeletion(t *testing.T) {
	sub := store.ObservationSubscription{
		Upsert:  rid.SubscriptionUpsert{ISAs: []rid.ISA{isa("isa1", "ussA", "https://a/flights")}},
		Updates: []rid.UpdatedISA{{ID: "isa1"}},
	}

	assert.Empty(t, CurrentISAs(sub))
}

func TestCurrentISAsDeletionIsIdempotent(t *testing.T) {
	once := store.ObservationSubscription{
		Upsert:  rid.SubscriptionUpsert{ISAs: []rid.ISA{isa("isa1", "ussA", "https://a/flights")}},
		Updates: []rid.UpdatedISA{{ID: "isa1"}},
	}
	twice := store.ObservationSubscription{
		Upsert:  once.Upsert,
		Updates: []rid.UpdatedISA{{ID: "isa1"}, {ID: "isa1"}},
	}

	assert.Equal(t, CurrentISAs(once), CurrentISAs(twice))
}

func TestCurrentISAsIgnoresUnknownDeletion(t *testing.T) {
	sub := store.ObservationSubscription{
		Upsert:  rid.SubscriptionUpsert{ISAs: []rid.ISA{isa("isa1", "ussA", "https://a/flights")}},
		Updates: []rid.UpdatedISA{{ID: "never-seen"}},
	}

	isas := CurrentISAs(sub)
	require.Len(t, isas, 1)
	assert.Equal(t, "isa1", isas[0].ID)
}

func TestCurrentISAsIsDeterministic(t *testing.T) {
	sub := store.ObservationSubscription{
		Upsert: rid.SubscriptionUpsert{ISAs: []rid.ISA{
			isa("isa1", "ussA", "https://a/flights"),
			isa("isa2", "ussB", "https://b/flights"),
		}},
		Updates: []rid.UpdatedISA{
			{ID: "isa2"},
			{ID: "isa3", ISA: ptr(isa("isa3", "ussC", "https://c/flights"))},
		},
	}

	first := CurrentISAs(sub)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, CurrentISAs(sub))
	}
}

func TestCurrentISAsLaterUpdateWins(t *testing.T) {
	// Arrival order is the defined replay order even when it disagrees
	// with the notification index carried on the wire.
	older := isa("isa1", "ussA", "https://a/flights-old")
	newer := isa("isa1", "ussA", "https://a/flights-new")
	sub := store.ObservationSubscription{
		Updates: []rid.UpdatedISA{
			{ID: "isa1", ISA: &newer, NotificationIndex: 7},
			{ID: "isa1", ISA: &older, NotificationIndex: 3},
		},
	}

	isas := CurrentISAs(sub)
	require.Len(t, isas, 1)
	assert.Equal(t, "https://a/flights-old", isas[0].FlightsURL)
}

func TestFlightsURLsByOwner(t *testing.T) {
	urls := FlightsURLsByOwner([]rid.ISA{
		isa("isa1", "ussA", "https://a/flights"),
		isa("isa2", "ussB", "https://b/flights"),
		isa("isa3", "ussA", "https://a/flights"),
	})

	assert.Equal(t, map[string]string{
		"https://a/flights": "ussA",
		"https://b/flights": "ussB",
	}, urls)
}

func ptr(isa rid.ISA) *rid.ISA { return &isa }
