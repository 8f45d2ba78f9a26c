package dss

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uasmesh/rid-display/internal/geo"
	"github.com/uasmesh/rid-display/internal/rid"
)

var testBounds = geo.BoundingBox{LatLo: 10, LngLo: 10, LatHi: 10.02, LngHi: 10.02}

func testUpsertRequest() UpsertRequest {
	now := time.Now().UTC()
	return UpsertRequest{
		SubscriptionID: "sub-1",
		Bounds:         testBounds,
		AltitudeLoM:    0,
		AltitudeHiM:    100000,
		TimeStart:      now,
		TimeEnd:        now.Add(30 * time.Second),
		CallbackURL:    "https://display.example.com",
	}
}

func TestUpsertSubscriptionV19(t *testing.T) {
	var gotPath string
	var gotBody v19UpsertRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		timeEnd := time.Now().Add(30 * time.Second).UTC().Format(time.RFC3339Nano)
		fmt.Fprintf(w, `{
			"subscription": {"id": "s1", "version": "v1", "time_end": %q},
			"service_areas": [
				{"id": "isa1", "owner": "ussA", "flights_url": "https://a/flights", "time_end": %q}
			]
		}`, timeEnd, timeEnd)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL, Version: rid.VersionF3411v19, AuthToken: "test-token"})

	result, err := client.UpsertSubscription(context.Background(), testUpsertRequest())
	require.NoError(t, err)

	assert.Equal(t, "/v1/dss/subscriptions/sub-1", gotPath)
	assert.Equal(t, "s1", result.SubscriptionID)
	assert.Equal(t, "v1", result.Version)
	require.Len(t, result.ISAs, 1)
	assert.Equal(t, "https://a/flights", result.ISAs[0].FlightsURL)
	assert.Equal(t, "ussA", result.ISAs[0].Owner)

	// The registered footprint covers the requested bounds.
	require.Len(t, gotBody.Extents.SpatialVolume.Footprint.Vertices, 4)
	assert.Equal(t, 0.0, gotBody.Extents.SpatialVolume.AltitudeLo)
	assert.Equal(t, 100000.0, gotBody.Extents.SpatialVolume.AltitudeHi)
	assert.Equal(t,
		"https://display.example.com/uss/identification_service_areas",
		gotBody.Callbacks.IdentificationServiceAreaURL)
}

func TestUpsertSubscriptionV22a(t *testing.T) {
	var gotPath string
	var gotBody v22aUpsertRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		timeEnd := time.Now().Add(30 * time.Second).UTC().Format(time.RFC3339Nano)
		fmt.Fprintf(w, `{
			"subscription": {"id": "s1", "version": "v1", "time_end": {"value": %q, "format": "RFC3339"}},
			"service_areas": [
				{"id": "isa1", "owner": "ussA", "uss_base_url": "https://a"}
			]
		}`, timeEnd)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL, Version: rid.VersionF3411v22a})

	result, err := client.UpsertSubscription(context.Background(), testUpsertRequest())
	require.NoError(t, err)

	assert.Equal(t, "/rid/v2/dss/subscriptions/sub-1", gotPath)
	require.Len(t, result.ISAs, 1)

	// 22a announces a base URL; the flights collection is at the standard
	// path under it.
	assert.Equal(t, "https://a/uss/flights", result.ISAs[0].FlightsURL)

	assert.Equal(t, "W84", gotBody.Extents.Volume.AltitudeUpper.Reference)
	assert.Equal(t, "M", gotBody.Extents.Volume.AltitudeUpper.Units)
	assert.Equal(t, 100000.0, gotBody.Extents.Volume.AltitudeUpper.Value)
	assert.Equal(t, "RFC3339", gotBody.Extents.TimeEnd.Format)
	assert.Equal(t, "https://display.example.com", gotBody.USSBaseURL)
}

func TestUpsertSubscriptionReportsDSSRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message": "subscription version mismatch"}`)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL, Version: rid.VersionF3411v19})

	_, err := client.UpsertSubscription(context.Background(), testUpsertRequest())
	require.Error(t, err)

	var dssErr *Error
	require.ErrorAs(t, err, &dssErr)
	assert.Equal(t, http.StatusConflict, dssErr.StatusCode)
	assert.Contains(t, dssErr.Detail, "version mismatch")
}

func TestUpsertSubscriptionReportsUnreachableDSS(t *testing.T) {
	client := NewHTTPClient(Config{BaseURL: "http://127.0.0.1:1", Version: rid.VersionF3411v19, Timeout: time.Second})

	_, err := client.UpsertSubscription(context.Background(), testUpsertRequest())
	require.Error(t, err)

	var dssErr *Error
	require.ErrorAs(t, err, &dssErr)
	assert.Zero(t, dssErr.StatusCode)
}

func TestUpsertSubscriptionRejectsMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"subscription": {}}`)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL, Version: rid.VersionF3411v19})

	_, err := client.UpsertSubscription(context.Background(), testUpsertRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid response")
}

func TestDecodeNotificationUpsert(t *testing.T) {
	body := []byte(`{
		"service_area": {"id": "isa1", "owner": "ussA", "flights_url": "https://a/flights"},
		"subscriptions": [{"subscription_id": "s1", "notification_index": 3}]
	}`)

	n, err := DecodeNotification(body)
	require.NoError(t, err)

	require.NotNil(t, n.ISA)
	assert.Equal(t, "isa1", n.ISA.ID)
	assert.Equal(t, "https://a/flights", n.ISA.FlightsURL)
	require.Len(t, n.Subscriptions, 1)
	assert.Equal(t, "s1", n.Subscriptions[0].SubscriptionID)
	assert.Equal(t, 3, n.Subscriptions[0].NotificationIndex)
}

func TestDecodeNotificationDeletion(t *testing.T) {
	body := []byte(`{"subscriptions": [{"subscription_id": "s1", "notification_index": 4}]}`)

	n, err := DecodeNotification(body)
	require.NoError(t, err)

	assert.Nil(t, n.ISA)
	require.Len(t, n.Subscriptions, 1)
}

func TestDecodeNotificationBaseURLForm(t *testing.T) {
	body := []byte(`{
		"service_area": {"id": "isa1", "owner": "ussA", "uss_base_url": "https://a"},
		"subscriptions": []
	}`)

	n, err := DecodeNotification(body)
	require.NoError(t, err)
	require.NotNil(t, n.ISA)
	assert.Equal(t, "https://a/uss/flights", n.ISA.FlightsURL)
}

func TestDecodeNotificationRejectsMalformedArea(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing id", `{"service_area": {"flights_url": "https://a/flights"}}`},
		{"missing flights endpoint", `{"service_area": {"id": "isa1"}}`},
		{"bad time", `{"service_area": {"id": "isa1", "flights_url": "https://a/flights", "time_end": "yesterday"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeNotification([]byte(tc.body))
			assert.Error(t, err)
		})
	}
}
