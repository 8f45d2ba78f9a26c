// Package subscription caches DSS subscriptions so repeated or nearby
// observation queries reuse one registration instead of round-tripping to
// the DSS every time.
package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uasmesh/rid-display/internal/dss"
	"github.com/uasmesh/rid-display/internal/geo"
	"github.com/uasmesh/rid-display/internal/metrics"
	"github.com/uasmesh/rid-display/internal/store"
)

// Config contains subscription cache settings.
type Config struct {
	// How far beyond the requested view each subscription is registered,
	// in meters. Over-provisioning lets one subscription answer many
	// nearby queries.
	PaddingM float64

	// How long each subscription lives. Short-lived on purpose: it bounds
	// the cost of stale subscriptions without an eviction thread.
	Duration time.Duration

	// Entries whose end time is within this margin of now are treated as
	// already expired.
	ExpiryMargin time.Duration

	// Vertical extent registered with the DSS, in meters.
	AltitudeLoM float64
	AltitudeHiM float64

	// This service's own base URL, registered as the notification target.
	CallbackURL string
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		PaddingM:     1000,
		Duration:     30 * time.Second,
		ExpiryMargin: time.Second,
		AltitudeLoM:  0,
		AltitudeHiM:  100000,
	}
}

// Cache finds or creates a DSS subscription covering a requested view.
type Cache struct {
	config  Config
	db      *store.Database
	dss     dss.Client
	logger  zerolog.Logger
	metrics *metrics.Metrics

	// Replaceable in tests for deterministic subscription IDs.
	newID func() string
}

// NewCache creates a subscription cache over the given database and DSS
// client.
func NewCache(config Config, db *store.Database, dssClient dss.Client) *Cache {
	defaults := DefaultConfig()
	if config.PaddingM == 0 {
		config.PaddingM = defaults.PaddingM
	}
	if config.Duration == 0 {
		config.Duration = defaults.Duration
	}
	if config.ExpiryMargin == 0 {
		config.ExpiryMargin = defaults.ExpiryMargin
	}
	if config.AltitudeHiM == 0 {
		config.AltitudeHiM = defaults.AltitudeHiM
	}

	return &Cache{
		config:  config,
		db:      db,
		dss:     dssClient,
		logger:  log.With().Str("component", "subscription-cache").Logger(),
		metrics: metrics.Get(),
		newID:   uuid.NewString,
	}
}

// Resolve returns a subscription whose bounds contain the view, evicting
// near-expired entries first and registering a new padded subscription with
// the DSS on a cache miss.
//
// The DSS call happens outside any transaction; two concurrent misses for
// overlapping views may each create a subscription. Both results are valid
// cache entries, so the redundancy is benign and deliberately not locked
// against.
func (c *Cache) Resolve(ctx context.Context, view geo.BoundingBox, now time.Time) (store.ObservationSubscription, error) {
	cutoff := now.Add(c.config.ExpiryMargin)

	var retained []store.ObservationSubscription
	c.db.Transact(func(v *store.View) {
		kept := v.Subscriptions[:0]
		for _, sub := range v.Subscriptions {
			if sub.Upsert.TimeEnd.After(cutoff) {
				kept = append(kept, sub)
			} else {
				c.metrics.SubscriptionsEvicted.Inc()
				c.logger.Debug().
					Str("subscription_id", sub.Upsert.SubscriptionID).
					Time("time_end", sub.Upsert.TimeEnd).
					Msg("Evicted expired subscription")
			}
		}
		v.Subscriptions = kept
		retained = append([]store.ObservationSubscription(nil), kept...)
	})
	c.metrics.ActiveSubscriptions.Set(float64(len(retained)))

	for _, sub := range retained {
		if sub.Bounds.Contains(view) {
			c.metrics.SubscriptionCacheHits.Inc()
			return sub, nil
		}
	}
	c.metrics.SubscriptionCacheMisses.Inc()

	padded := geo.Pad(view, c.config.PaddingM)
	upsert, err := c.dss.UpsertSubscription(ctx, dss.UpsertRequest{
		SubscriptionID: c.newID(),
		Bounds:         padded,
		AltitudeLoM:    c.config.AltitudeLoM,
		AltitudeHiM:    c.config.AltitudeHiM,
		TimeStart:      now,
		TimeEnd:        now.Add(c.config.Duration),
		CallbackURL:    c.config.CallbackURL,
	})
	if err != nil {
		c.metrics.DSSUpsertsTotal.WithLabelValues("error").Inc()
		return store.ObservationSubscription{}, err
	}
	c.metrics.DSSUpsertsTotal.WithLabelValues("ok").Inc()

	created := store.ObservationSubscription{
		Bounds: padded,
		Upsert: *upsert,
	}
	c.db.Transact(func(v *store.View) {
		v.Subscriptions = append(v.Subscriptions, created)
	})

	c.logger.Info().
		Str("subscription_id", upsert.SubscriptionID).
		Time("time_end", upsert.TimeEnd).
		Int("initial_isas", len(upsert.ISAs)).
		Msg("Created DSS subscription")

	return created, nil
}
