package dss

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uasmesh/rid-display/internal/geo"
	"github.com/uasmesh/rid-display/internal/rid"
)

// v19Codec speaks the original F3411-19 DSS wire format: flat RFC 3339
// time strings and a spatial_volume footprint.
type v19Codec struct{}

type v19Vertex struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type v19UpsertRequest struct {
	Extents struct {
		SpatialVolume struct {
			Footprint struct {
				Vertices []v19Vertex `json:"vertices"`
			} `json:"footprint"`
			AltitudeLo float64 `json:"altitude_lo"`
			AltitudeHi float64 `json:"altitude_hi"`
		} `json:"spatial_volume"`
		TimeStart string `json:"time_start"`
		TimeEnd   string `json:"time_end"`
	} `json:"extents"`
	Callbacks struct {
		IdentificationServiceAreaURL string `json:"identification_service_area_url"`
	} `json:"callbacks"`
}

type v19ServiceArea struct {
	ID         string `json:"id"`
	Owner      string `json:"owner"`
	FlightsURL string `json:"flights_url"`
	TimeStart  string `json:"time_start"`
	TimeEnd    string `json:"time_end"`
}

type v19UpsertResponse struct {
	Subscription struct {
		ID      string `json:"id"`
		Version string `json:"version"`
		TimeEnd string `json:"time_end"`
	} `json:"subscription"`
	ServiceAreas []v19ServiceArea `json:"service_areas"`
}

func (v19Codec) subscriptionPath(subscriptionID string) string {
	return "/v1/dss/subscriptions/" + subscriptionID
}

func (v19Codec) encodeUpsert(req UpsertRequest) (any, error) {
	var out v19UpsertRequest
	out.Extents.SpatialVolume.Footprint.Vertices = boxVertices(req.Bounds)
	out.Extents.SpatialVolume.AltitudeLo = req.AltitudeLoM
	out.Extents.SpatialVolume.AltitudeHi = req.AltitudeHiM
	out.Extents.TimeStart = req.TimeStart.UTC().Format(time.RFC3339Nano)
	out.Extents.TimeEnd = req.TimeEnd.UTC().Format(time.RFC3339Nano)
	out.Callbacks.IdentificationServiceAreaURL = req.CallbackURL + "/uss/identification_service_areas"
	return out, nil
}

func (v19Codec) decodeUpsert(body []byte) (*rid.SubscriptionUpsert, error) {
	var resp v19UpsertResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Subscription.ID == "" {
		return nil, fmt.Errorf("response missing subscription id")
	}

	timeEnd, err := parseRFC3339(resp.Subscription.TimeEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid subscription time_end: %w", err)
	}

	result := &rid.SubscriptionUpsert{
		SubscriptionID: resp.Subscription.ID,
		Version:        resp.Subscription.Version,
		TimeEnd:        timeEnd,
	}
	for _, area := range resp.ServiceAreas {
		isa, err := area.toISA()
		if err != nil {
			return nil, err
		}
		result.ISAs = append(result.ISAs, isa)
	}

	return result, nil
}

func (a v19ServiceArea) toISA() (rid.ISA, error) {
	if a.ID == "" || a.FlightsURL == "" {
		return rid.ISA{}, fmt.Errorf("service area missing id or flights_url")
	}

	isa := rid.ISA{ID: a.ID, Owner: a.Owner, FlightsURL: a.FlightsURL}

	var err error
	if a.TimeStart != "" {
		if isa.TimeStart, err = parseRFC3339(a.TimeStart); err != nil {
			return rid.ISA{}, fmt.Errorf("service area %s: invalid time_start: %w", a.ID, err)
		}
	}
	if a.TimeEnd != "" {
		if isa.TimeEnd, err = parseRFC3339(a.TimeEnd); err != nil {
			return rid.ISA{}, fmt.Errorf("service area %s: invalid time_end: %w", a.ID, err)
		}
	}

	return isa, nil
}

// boxVertices walks the box counterclockwise from the southwest corner.
func boxVertices(b geo.BoundingBox) []v19Vertex {
	return []v19Vertex{
		{Lat: b.LatLo, Lng: b.LngLo},
		{Lat: b.LatLo, Lng: b.LngHi},
		{Lat: b.LatHi, Lng: b.LngHi},
		{Lat: b.LatHi, Lng: b.LngLo},
	}
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
