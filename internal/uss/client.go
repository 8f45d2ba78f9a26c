// Package uss is the client boundary to Unmanned Service Suppliers: it
// fetches flights and flight details from a USS's announced endpoint and
// validates the payloads into typed records so the observation core never
// handles raw untyped maps.
package uss

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uasmesh/rid-display/internal/geo"
	"github.com/uasmesh/rid-display/internal/rid"
)

// Client fetches flight telemetry and details from a USS.
type Client interface {
	FetchFlights(ctx context.Context, flightsURL string, view geo.BoundingBox, includeRecentPositions bool) ([]rid.Flight, error)
	FetchFlightDetails(ctx context.Context, flightsURL, flightID string) (*rid.FlightDetails, error)
}

// Error identifies which USS endpoint failed and how. A structurally
// invalid payload is reported the same way as a failed call: both abort
// the observation request.
type Error struct {
	URL        string
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("USS call to %s failed with status %d: %s", e.URL, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("USS call to %s failed: %s", e.URL, e.Detail)
}

// Config contains HTTP client settings for USS calls.
type Config struct {
	// Static bearer token presented on every call.
	AuthToken string

	// Per-call timeout.
	Timeout time.Duration

	// How much recent-path history to request, in seconds.
	RecentPositionsDurationS int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:                  5 * time.Second,
		RecentPositionsDurationS: 60,
	}
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	config Config
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPClient creates a USS client.
func NewHTTPClient(config Config) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.RecentPositionsDurationS == 0 {
		config.RecentPositionsDurationS = DefaultConfig().RecentPositionsDurationS
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: log.With().Str("component", "uss-client").Logger(),
	}
}

// FetchFlights queries one USS flights endpoint for the given view and
// validates every returned flight.
func (c *HTTPClient) FetchFlights(ctx context.Context, flightsURL string, view geo.BoundingBox, includeRecentPositions bool) ([]rid.Flight, error) {
	url := fmt.Sprintf("%s?view=%s", flightsURL, view.String())
	if includeRecentPositions {
		url += fmt.Sprintf("&include_recent_positions=true&recent_positions_duration=%d", c.config.RecentPositionsDurationS)
	}

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var resp flightsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{URL: flightsURL, Detail: fmt.Sprintf("invalid JSON: %v", err)}
	}

	flights := make([]rid.Flight, 0, len(resp.Flights))
	for i, raw := range resp.Flights {
		flight, err := raw.validate()
		if err != nil {
			return nil, &Error{URL: flightsURL, Detail: fmt.Sprintf("flight %d: %v", i, err)}
		}
		flights = append(flights, flight)
	}

	c.logger.Debug().Str("url", flightsURL).Int("flights", len(flights)).Msg("Fetched flights")

	return flights, nil
}

// FetchFlightDetails queries the details endpoint for one flight.
func (c *HTTPClient) FetchFlightDetails(ctx context.Context, flightsURL, flightID string) (*rid.FlightDetails, error) {
	url := fmt.Sprintf("%s/%s/details", flightsURL, flightID)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var raw rawDetails
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &Error{URL: url, Detail: fmt.Sprintf("invalid JSON: %v", err)}
	}

	details := raw.toDetails(flightID)
	return &details, nil
}

func (c *HTTPClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Detail: fmt.Sprintf("failed to build request: %v", err)}
	}
	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Detail: fmt.Sprintf("failed to read response: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Detail: string(body)}
	}

	return body, nil
}
