package dss

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uasmesh/rid-display/internal/rid"
)

// v22aCodec speaks the F3411-22a DSS wire format: wrapped time/altitude
// objects and a USS base URL instead of a direct flights URL.
type v22aCodec struct{}

type v22aTime struct {
	Value  string `json:"value"`
	Format string `json:"format"`
}

type v22aAltitude struct {
	Value     float64 `json:"value"`
	Reference string  `json:"reference"`
	Units     string  `json:"units"`
}

type v22aUpsertRequest struct {
	Extents struct {
		Volume struct {
			OutlinePolygon struct {
				Vertices []v19Vertex `json:"vertices"`
			} `json:"outline_polygon"`
			AltitudeLower v22aAltitude `json:"altitude_lower"`
			AltitudeUpper v22aAltitude `json:"altitude_upper"`
		} `json:"volume"`
		TimeStart v22aTime `json:"time_start"`
		TimeEnd   v22aTime `json:"time_end"`
	} `json:"extents"`
	USSBaseURL string `json:"uss_base_url"`
}

type v22aServiceArea struct {
	ID         string   `json:"id"`
	Owner      string   `json:"owner"`
	USSBaseURL string   `json:"uss_base_url"`
	TimeStart  v22aTime `json:"time_start"`
	TimeEnd    v22aTime `json:"time_end"`
}

type v22aUpsertResponse struct {
	Subscription struct {
		ID      string   `json:"id"`
		Version string   `json:"version"`
		TimeEnd v22aTime `json:"time_end"`
	} `json:"subscription"`
	ServiceAreas []v22aServiceArea `json:"service_areas"`
}

func (v22aCodec) subscriptionPath(subscriptionID string) string {
	return "/rid/v2/dss/subscriptions/" + subscriptionID
}

func (v22aCodec) encodeUpsert(req UpsertRequest) (any, error) {
	var out v22aUpsertRequest
	out.Extents.Volume.OutlinePolygon.Vertices = boxVertices(req.Bounds)
	out.Extents.Volume.AltitudeLower = wgs84Meters(req.AltitudeLoM)
	out.Extents.Volume.AltitudeUpper = wgs84Meters(req.AltitudeHiM)
	out.Extents.TimeStart = rfc3339Value(req.TimeStart)
	out.Extents.TimeEnd = rfc3339Value(req.TimeEnd)
	out.USSBaseURL = req.CallbackURL
	return out, nil
}

func (v22aCodec) decodeUpsert(body []byte) (*rid.SubscriptionUpsert, error) {
	var resp v22aUpsertResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Subscription.ID == "" {
		return nil, fmt.Errorf("response missing subscription id")
	}

	timeEnd, err := resp.Subscription.TimeEnd.parse()
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

func (a v22aServiceArea) toISA() (rid.ISA, error) {
	if a.ID == "" || a.USSBaseURL == "" {
		return rid.ISA{}, fmt.Errorf("service area missing id or uss_base_url")
	}

	isa := rid.ISA{
		ID:    a.ID,
		Owner: a.Owner,

		// 22a announces the USS base URL; the flights collection lives at
		// the standard path under it.
		FlightsURL: a.USSBaseURL + "/uss/flights",
	}

	var err error
	if a.TimeStart.Value != "" {
		if isa.TimeStart, err = a.TimeStart.parse(); err != nil {
			return rid.ISA{}, fmt.Errorf("service area %s: invalid time_start: %w", a.ID, err)
		}
	}
	if a.TimeEnd.Value != "" {
		if isa.TimeEnd, err = a.TimeEnd.parse(); err != nil {
			return rid.ISA{}, fmt.Errorf("service area %s: invalid time_end: %w", a.ID, err)
		}
	}

	return isa, nil
}

func (t v22aTime) parse() (time.Time, error) {
	return parseRFC3339(t.Value)
}

func rfc3339Value(t time.Time) v22aTime {
	return v22aTime{Value: t.UTC().Format(time.RFC3339Nano), Format: "RFC3339"}
}

func wgs84Meters(v float64) v22aAltitude {
	return v22aAltitude{Value: v, Reference: "W84", Units: "M"}
}
