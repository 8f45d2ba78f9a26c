package uss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uasmesh/rid-display/internal/geo"
)

var testView = geo.BoundingBox{LatLo: 10, LngLo: 10, LatHi: 10.01, LngHi: 10.01}

func TestFetchFlights(t *testing.T) {
	var gotQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{
			"timestamp": "2024-01-01T00:00:00Z",
			"flights": [{
				"id": "f1",
				"most_recent_position": {"lat": 10.005, "lng": 10.005, "alt": 120},
				"recent_positions": [
					{"lat": 10.004, "lng": 10.004, "alt": 118, "time": "2024-01-01T00:00:00Z"}
				]
			}]
		}`)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{})

	flights, err := client.FetchFlights(context.Background(), server.URL, testView, true)
	require.NoError(t, err)

	require.Len(t, flights, 1)
	assert.Equal(t, "f1", flights[0].ID)
	assert.Equal(t, 10.005, flights[0].MostRecentPosition.Lat)
	assert.Len(t, flights[0].RecentPositions, 1)

	assert.Contains(t, gotQuery, "view=10.000000,10.000000,10.010000,10.010000")
	assert.Contains(t, gotQuery, "include_recent_positions=true")
}

func TestFetchFlightsOmitsRecentPositionsParam(t *testing.T) {
	var gotQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"flights": []}`)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{})

	flights, err := client.FetchFlights(context.Background(), server.URL, testView, false)
	require.NoError(t, err)

	assert.Empty(t, flights)
	assert.NotContains(t, gotQuery, "include_recent_positions")
}

func TestFetchFlightsFailsOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message": "database down"}`)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{})

	_, err := client.FetchFlights(context.Background(), server.URL, testView, true)
	require.Error(t, err)

	var ussErr *Error
	require.ErrorAs(t, err, &ussErr)
	assert.Equal(t, http.StatusInternalServerError, ussErr.StatusCode)
	assert.Contains(t, ussErr.Detail, "database down")
}

func TestFetchFlightsFailsOnStructurallyInvalidFlight(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"flights": [`},
		{"missing id", `{"flights": [{"most_recent_position": {"lat": 10, "lng": 10}}]}`},
		{"missing position", `{"flights": [{"id": "f1"}]}`},
		{"position missing lng", `{"flights": [{"id": "f1", "most_recent_position": {"lat": 10}}]}`},
		{"position out of range", `{"flights": [{"id": "f1", "most_recent_position": {"lat": 95, "lng": 10}}]}`},
		{"bad recent position", `{"flights": [{"id": "f1", "most_recent_position": {"lat": 10, "lng": 10}, "recent_positions": [{"lat": 10}]}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			client := NewHTTPClient(Config{})

			_, err := client.FetchFlights(context.Background(), server.URL, testView, true)
			var ussErr *Error
			require.ErrorAs(t, err, &ussErr)
		})
	}
}

func TestFetchFlightDetails(t *testing.T) {
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{
			"operator_id": "op-1",
			"operator_location": {"lat": 10.0, "lng": 10.0},
			"operation_description": "survey",
			"registration_number": "REG123",
			"serial_number": "SN456"
		}`)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{})

	details, err := client.FetchFlightDetails(context.Background(), server.URL+"/flights", "f1")
	require.NoError(t, err)

	assert.Equal(t, "/flights/f1/details", gotPath)
	assert.Equal(t, "f1", details.ID)
	assert.Equal(t, "op-1", details.OperatorID)
	assert.Equal(t, "REG123", details.RegistrationNumber)
	require.NotNil(t, details.OperatorLocation)
	assert.Equal(t, 10.0, details.OperatorLocation.Lat)
}

func TestFetchFlightDetailsFailsOnNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{})

	_, err := client.FetchFlightDetails(context.Background(), server.URL+"/flights", "missing")
	var ussErr *Error
	require.ErrorAs(t, err, &ussErr)
	assert.Equal(t, http.StatusNotFound, ussErr.StatusCode)
}
