// Package replay reconstructs the current ISA state of a subscription by
// replaying its accumulated update log over the initial snapshot returned
// at upsert time.
package replay

import (
	"sort"

	"github.com/uasmesh/rid-display/internal/rid"
	"github.com/uasmesh/rid-display/internal/store"
)

// CurrentISAs returns the ISAs currently in effect for the subscription.
// Updates are applied in append order, the order notifications arrived in;
// a nil ISA removes the entry and removing an unknown ID is a no-op. The
// result is sorted by ID so replays of the same log are identical.
func CurrentISAs(sub store.ObservationSubscription) []rid.ISA {
	byID := make(map[string]rid.ISA, len(sub.Upsert.ISAs))
	for _, isa := range sub.Upsert.ISAs {
		byID[isa.ID] = isa
	}

	for _, update := range sub.Updates {
		if update.ISA != nil {
			byID[update.ID] = *update.ISA
		} else {
			delete(byID, update.ID)
		}
	}

	isas := make([]rid.ISA, 0, len(byID))
	for _, isa := range byID {
		isas = append(isas, isa)
	}
	sort.Slice(isas, func(i, j int) bool { return isas[i].ID < isas[j].ID })

	return isas
}

// FlightsURLsByOwner projects the ISA set to the unique flights URLs that
// must be queried, mapped to the owning USS. Collisions are last-write-wins;
// flights URLs are owner-scoped so they should not occur.
func FlightsURLsByOwner(isas []rid.ISA) map[string]string {
	urls := make(map[string]string, len(isas))
	for _, isa := range isas {
		urls[isa.FlightsURL] = isa.Owner
	}
	return urls
}
