// Package dss is the client boundary to the Discovery and Synchronization
// Service. The observation core talks to the version-agnostic Client
// interface; the F3411-19 and F3411-22a wire formats live behind it as
// codecs and are selected once at construction, never inside the core.
package dss

import (
	"context"
	"fmt"
	"time"

	"github.com/uasmesh/rid-display/internal/geo"
	"github.com/uasmesh/rid-display/internal/rid"
)

// UpsertRequest describes the subscription to register with the DSS.
type UpsertRequest struct {
	SubscriptionID string
	Bounds         geo.BoundingBox
	AltitudeLoM    float64
	AltitudeHiM    float64
	TimeStart      time.Time
	TimeEnd        time.Time

	// CallbackURL is this service's base URL for inbound ISA notifications.
	CallbackURL string
}

// Client registers and removes subscriptions with the DSS.
type Client interface {
	UpsertSubscription(ctx context.Context, req UpsertRequest) (*rid.SubscriptionUpsert, error)
	DeleteSubscription(ctx context.Context, subscriptionID, version string) error
}

// Error carries enough structure for the caller to report which DSS
// interaction failed and why.
type Error struct {
	URL        string
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("DSS call to %s failed with status %d: %s", e.URL, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("DSS call to %s failed: %s", e.URL, e.Detail)
}
