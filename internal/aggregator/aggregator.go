// Package aggregator fans out to every USS flights endpoint implied by the
// current ISA set and merges the results into one validated flight list.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uasmesh/rid-display/internal/geo"
	"github.com/uasmesh/rid-display/internal/metrics"
	"github.com/uasmesh/rid-display/internal/rid"
	"github.com/uasmesh/rid-display/internal/store"
	"github.com/uasmesh/rid-display/internal/uss"
)

// UpstreamError names the USS whose flights query failed. One bad USS
// aborts the whole observation request: this is a compliance-testing tool,
// so missing data must be visible, never silently degraded.
type UpstreamError struct {
	Owner string
	URL   string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("flights query to %s (owner %q) failed: %v", e.URL, e.Owner, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Aggregator fetches and merges flights across USSs.
type Aggregator struct {
	db      *store.Database
	uss     uss.Client
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates an aggregator over the given database and USS client.
func New(db *store.Database, ussClient uss.Client) *Aggregator {
	return &Aggregator{
		db:      db,
		uss:     ussClient,
		logger:  log.With().Str("component", "aggregator").Logger(),
		metrics: metrics.Get(),
	}
}

// Fetch queries every flights URL whose owner is not blocked by the
// behavior configuration and returns the merged flight list. All fetches
// must succeed before anything is committed to the flight memo; a single
// failure aborts the request with nothing recorded.
func (a *Aggregator) Fetch(ctx context.Context, urlsToOwners map[string]string, behavior rid.Behavior, view geo.BoundingBox) ([]rid.Flight, error) {
	urls := make([]string, 0, len(urlsToOwners))
	for url := range urlsToOwners {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	var flights []rid.Flight
	memo := make(map[string]string)

	for _, url := range urls {
		owner := urlsToOwners[url]
		if behavior.BlocksOwner(owner) {
			a.logger.Debug().Str("owner", owner).Str("url", url).Msg("Skipping blocked owner")
			continue
		}

		started := time.Now()
		fetched, err := a.uss.FetchFlights(ctx, url, view, true)
		a.metrics.USSFetchDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			a.metrics.USSFetchesTotal.WithLabelValues("error").Inc()
			return nil, &UpstreamError{Owner: owner, URL: url, Err: err}
		}
		a.metrics.USSFetchesTotal.WithLabelValues("ok").Inc()

		flights = append(flights, fetched...)
		for _, flight := range fetched {
			memo[flight.ID] = url
		}
	}

	if len(memo) > 0 {
		a.db.Transact(func(v *store.View) {
			for id, url := range memo {
				v.Flights[id] = store.FlightRecord{FlightsURL: url}
			}
		})
	}

	return flights, nil
}
