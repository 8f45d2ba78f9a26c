// Package store holds the process-wide display-provider state: the
// permanent flight memo, the behavior configuration, and the active DSS
// subscriptions. All access goes through Snapshot (read) or Transact
// (read-modify-write); components receive an explicit *Database handle,
// never ambient globals.
package store

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uasmesh/rid-display/internal/geo"
	"github.com/uasmesh/rid-display/internal/rid"
)

// FlightRecord memoizes which USS served a flight ID so a later details
// request needs only the ID. Entries are never removed.
type FlightRecord struct {
	FlightsURL string `json:"flights_url"`
}

// ObservationSubscription is one cached DSS subscription: the padded area
// it was registered over, the upsert result including the initial ISA
// snapshot, and the update log appended to by inbound notifications.
type ObservationSubscription struct {
	Bounds  geo.BoundingBox        `json:"bounds"`
	Upsert  rid.SubscriptionUpsert `json:"upsert"`
	Updates []rid.UpdatedISA       `json:"updates,omitempty"`
}

// clone returns a deep copy so a mutated transaction view never aliases a
// committed one.
func (s ObservationSubscription) clone() ObservationSubscription {
	out := s
	out.Upsert.ISAs = append([]rid.ISA(nil), s.Upsert.ISAs...)
	out.Updates = make([]rid.UpdatedISA, len(s.Updates))
	for i, u := range s.Updates {
		out.Updates[i] = u
		if u.ISA != nil {
			isa := *u.ISA
			out.Updates[i].ISA = &isa
		}
	}
	return out
}

// View is one point-in-time value of the database. Snapshot returns an
// immutable copy; Transact hands a mutable copy to the caller and commits
// it atomically.
type View struct {
	Flights       map[string]FlightRecord   `json:"flights"`
	Behavior      rid.Behavior              `json:"behavior"`
	Subscriptions []ObservationSubscription `json:"subscriptions,omitempty"`
}

// Clone returns a deep copy of the view.
func (v *View) Clone() *View {
	out := &View{
		Flights:       make(map[string]FlightRecord, len(v.Flights)),
		Behavior:      v.Behavior,
		Subscriptions: make([]ObservationSubscription, len(v.Subscriptions)),
	}
	for id, rec := range v.Flights {
		out.Flights[id] = rec
	}
	out.Behavior.DoNotDisplayFlightsFrom = append([]string(nil), v.Behavior.DoNotDisplayFlightsFrom...)
	for i, sub := range v.Subscriptions {
		out.Subscriptions[i] = sub.clone()
	}
	return out
}

// SubscriptionByID returns a pointer into the view's subscription list, or
// nil if no subscription has the given DSS-assigned ID. Only meaningful on
// a view held inside a transaction.
func (v *View) SubscriptionByID(id string) *ObservationSubscription {
	for i := range v.Subscriptions {
		if v.Subscriptions[i].Upsert.SubscriptionID == id {
			return &v.Subscriptions[i]
		}
	}
	return nil
}

// Persister durably records a committed view. Saves happen off the commit
// path; a failed save is logged, never surfaced to the request.
type Persister interface {
	Save(v *View) error
}

// Database is the process-wide transactional store.
type Database struct {
	mu        sync.RWMutex
	view      *View
	persister Persister
	logger    zerolog.Logger
}

// New creates an empty database. A nil persister disables durable writes.
func New(persister Persister) *Database {
	return &Database{
		view: &View{
			Flights: make(map[string]FlightRecord),
		},
		persister: persister,
		logger:    log.With().Str("component", "store").Logger(),
	}
}

// Restore replaces the current view wholesale. Used once at startup to load
// persisted state before any requests are served.
func (d *Database) Restore(v *View) {
	if v == nil {
		return
	}
	if v.Flights == nil {
		v.Flights = make(map[string]FlightRecord)
	}
	d.mu.Lock()
	d.view = v.Clone()
	d.mu.Unlock()
}

// Snapshot returns an immutable point-in-time copy of the state. Safe to
// call concurrently with Transact; the caller observes either the pre- or
// post-state of a concurrent commit, never a torn one.
func (d *Database) Snapshot() *View {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view.Clone()
}

// Transact runs fn against a mutable copy of the state and commits the
// result atomically. Writers are serialized; at most one commit is in
// flight at a time.
func (d *Database) Transact(fn func(v *View)) {
	d.mu.Lock()
	next := d.view.Clone()
	fn(next)
	d.view = next
	d.mu.Unlock()

	if d.persister != nil {
		// Durability is write-behind: the commit is visible immediately and
		// the disk write happens off the request path.
		committed := next.Clone()
		go func() {
			if err := d.persister.Save(committed); err != nil {
				d.logger.Warn().Err(err).Msg("Failed to persist committed state")
			}
		}()
	}
}
