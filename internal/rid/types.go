// Package rid holds the Remote-ID value types shared across components:
// identification service areas, observed flights, and the per-standard
// parameter sets. These are plain data carriers; parsing and validation of
// the wire forms happens at the DSS/USS client boundaries.
package rid

import (
	"time"

	"github.com/uasmesh/rid-display/internal/geo"
)

// ISA is an identification service area registered with the DSS: a USS's
// claim of Remote-ID responsibility over an area and time window, plus the
// endpoint serving its flights.
type ISA struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	FlightsURL string    `json:"flights_url"`
	TimeStart  time.Time `json:"time_start"`
	TimeEnd    time.Time `json:"time_end"`
}

// UpdatedISA is one entry in a subscription's update log. A nil ISA records
// a deletion of the area with the given ID. NotificationIndex is carried
// from the wire but replay order is arrival order, not index order.
type UpdatedISA struct {
	ID                string `json:"id"`
	ISA               *ISA   `json:"isa,omitempty"`
	NotificationIndex int    `json:"notification_index"`
}

// SubscriptionUpsert is the version-agnostic result of registering a
// subscription with the DSS: the identity the DSS assigned, when it lapses,
// and the ISAs already present in the subscribed area.
type SubscriptionUpsert struct {
	SubscriptionID string    `json:"subscription_id"`
	Version        string    `json:"version"`
	TimeEnd        time.Time `json:"time_end"`
	ISAs           []ISA     `json:"isas,omitempty"`
}

// Position is a single reported aircraft position.
type Position struct {
	Lat  float64   `json:"lat"`
	Lng  float64   `json:"lng"`
	Alt  float64   `json:"alt"`
	Time time.Time `json:"time,omitempty"`
}

// Flight is one validated flight observation returned by a USS.
type Flight struct {
	ID                 string     `json:"id"`
	MostRecentPosition Position   `json:"most_recent_position"`
	RecentPositions    []Position `json:"recent_positions,omitempty"`
	SimulatedFlight    bool       `json:"simulated,omitempty"`
}

// FlightDetails is the operator/UAS detail record served for one flight.
type FlightDetails struct {
	ID                   string `json:"id"`
	OperatorID           string `json:"operator_id,omitempty"`
	OperatorLocation     *geo.LatLngPoint `json:"operator_location,omitempty"`
	OperationDescription string `json:"operation_description,omitempty"`
	RegistrationNumber   string `json:"registration_number,omitempty"`
	SerialNumber         string `json:"serial_number,omitempty"`
}

// Cluster is one obfuscated display cluster emitted in place of per-flight
// detail when the requested view is too large.
type Cluster struct {
	Corners         []geo.LatLngPoint `json:"corners"`
	AreaSqm         float64           `json:"area_sqm"`
	NumberOfFlights int               `json:"number_of_flights"`
}

// Behavior is the mutable display-provider configuration. It is mutated
// only through the administrative endpoint and read on every observation
// request.
type Behavior struct {
	AlwaysOmitRecentPaths   bool     `json:"always_omit_recent_paths"`
	DoNotDisplayFlightsFrom []string `json:"do_not_display_flights_from,omitempty"`
}

// BlocksOwner reports whether flights from the given owner must not be
// displayed.
func (b Behavior) BlocksOwner(owner string) bool {
	for _, blocked := range b.DoNotDisplayFlightsFrom {
		if blocked == owner {
			return true
		}
	}
	return false
}
