package uss

import (
	"fmt"
	"time"

	"github.com/uasmesh/rid-display/internal/geo"
	"github.com/uasmesh/rid-display/internal/rid"
)

// flightsResponse is the raw flights payload. Pointer fields distinguish
// missing from zero so validation can reject structurally incomplete
// flights.
type flightsResponse struct {
	Timestamp string      `json:"timestamp"`
	Flights   []rawFlight `json:"flights"`
}

type rawPosition struct {
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
	Alt  float64  `json:"alt"`
	Time string   `json:"time"`
}

type rawFlight struct {
	ID                 string        `json:"id"`
	MostRecentPosition *rawPosition  `json:"most_recent_position"`
	RecentPositions    []rawPosition `json:"recent_positions"`
	Simulated          bool          `json:"simulated"`
}

func (p rawPosition) validate() (rid.Position, error) {
	if p.Lat == nil || p.Lng == nil {
		return rid.Position{}, fmt.Errorf("position missing lat or lng")
	}
	if *p.Lat < -90 || *p.Lat > 90 || *p.Lng < -180 || *p.Lng > 180 {
		return rid.Position{}, fmt.Errorf("position out of range: lat=%v lng=%v", *p.Lat, *p.Lng)
	}

	pos := rid.Position{Lat: *p.Lat, Lng: *p.Lng, Alt: p.Alt}
	if p.Time != "" {
		t, err := time.Parse(time.RFC3339Nano, p.Time)
		if err != nil {
			return rid.Position{}, fmt.Errorf("invalid position time %q: %w", p.Time, err)
		}
		pos.Time = t
	}

	return pos, nil
}

func (f rawFlight) validate() (rid.Flight, error) {
	if f.ID == "" {
		return rid.Flight{}, fmt.Errorf("missing id")
	}
	if f.MostRecentPosition == nil {
		return rid.Flight{}, fmt.Errorf("flight %s: missing most_recent_position", f.ID)
	}

	mostRecent, err := f.MostRecentPosition.validate()
	if err != nil {
		return rid.Flight{}, fmt.Errorf("flight %s: %w", f.ID, err)
	}

	out := rid.Flight{
		ID:                 f.ID,
		MostRecentPosition: mostRecent,
		SimulatedFlight:    f.Simulated,
	}
	for i, raw := range f.RecentPositions {
		pos, err := raw.validate()
		if err != nil {
			return rid.Flight{}, fmt.Errorf("flight %s: recent position %d: %w", f.ID, i, err)
		}
		out.RecentPositions = append(out.RecentPositions, pos)
	}

	return out, nil
}

// rawDetails is the raw flight-details payload. Details fields are all
// optional on the wire; the record is keyed by the flight ID the caller
// asked about.
type rawDetails struct {
	OperatorID           string           `json:"operator_id"`
	OperatorLocation     *geo.LatLngPoint `json:"operator_location"`
	OperationDescription string           `json:"operation_description"`
	RegistrationNumber   string           `json:"registration_number"`
	SerialNumber         string           `json:"serial_number"`
}

func (d rawDetails) toDetails(flightID string) rid.FlightDetails {
	return rid.FlightDetails{
		ID:                   flightID,
		OperatorID:           d.OperatorID,
		OperatorLocation:     d.OperatorLocation,
		OperationDescription: d.OperationDescription,
		RegistrationNumber:   d.RegistrationNumber,
		SerialNumber:         d.SerialNumber,
	}
}
