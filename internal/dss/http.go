package dss

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uasmesh/rid-display/internal/rid"
)

// wireCodec maps the version-agnostic request/result onto one F3411
// revision's paths and payload shapes.
type wireCodec interface {
	subscriptionPath(subscriptionID string) string
	encodeUpsert(req UpsertRequest) (any, error)
	decodeUpsert(body []byte) (*rid.SubscriptionUpsert, error)
}

// Config contains HTTP client settings for the DSS.
type Config struct {
	// DSS base URL, e.g. https://dss.example.com
	BaseURL string

	// Which F3411 revision to speak on the wire.
	Version rid.Version

	// Static bearer token presented on every call. Token acquisition is
	// out of scope; the mock environment issues long-lived tokens.
	AuthToken string

	// Per-call timeout.
	Timeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Version: rid.VersionF3411v19,
		Timeout: 5 * time.Second,
	}
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	config Config
	codec  wireCodec
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPClient creates a DSS client speaking the configured wire version.
func NewHTTPClient(config Config) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	var codec wireCodec
	switch config.Version {
	case rid.VersionF3411v22a:
		codec = v22aCodec{}
	default:
		codec = v19Codec{}
	}

	return &HTTPClient{
		config: config,
		codec:  codec,
		client: &http.Client{Timeout: config.Timeout},
		logger: log.With().Str("component", "dss-client").Logger(),
	}
}

// UpsertSubscription registers a subscription over the requested area and
// returns the DSS's assigned identity plus the initial ISA snapshot.
func (c *HTTPClient) UpsertSubscription(ctx context.Context, req UpsertRequest) (*rid.SubscriptionUpsert, error) {
	url := c.config.BaseURL + c.codec.subscriptionPath(req.SubscriptionID)

	payload, err := c.codec.encodeUpsert(req)
	if err != nil {
		return nil, &Error{URL: url, Detail: fmt.Sprintf("failed to encode request: %v", err)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{URL: url, Detail: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	respBody, status, err := c.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return nil, &Error{URL: url, Detail: err.Error()}
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, &Error{URL: url, StatusCode: status, Detail: string(respBody)}
	}

	result, err := c.codec.decodeUpsert(respBody)
	if err != nil {
		return nil, &Error{URL: url, StatusCode: status, Detail: fmt.Sprintf("invalid response: %v", err)}
	}

	c.logger.Debug().
		Str("subscription_id", result.SubscriptionID).
		Time("time_end", result.TimeEnd).
		Int("initial_isas", len(result.ISAs)).
		Msg("Upserted DSS subscription")

	return result, nil
}

// DeleteSubscription removes a subscription from the DSS. Best-effort
// cleanup; the DSS expires subscriptions on its own regardless.
func (c *HTTPClient) DeleteSubscription(ctx context.Context, subscriptionID, version string) error {
	url := fmt.Sprintf("%s%s/%s", c.config.BaseURL, c.codec.subscriptionPath(subscriptionID), version)

	respBody, status, err := c.do(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return &Error{URL: url, Detail: err.Error()}
	}
	if status != http.StatusOK {
		return &Error{URL: url, StatusCode: status, Detail: string(respBody)}
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}
