// Package api exposes the display-provider HTTP surface: the observation
// endpoints serving display clients, the inbound ISA notification endpoint
// the DSS calls back on, and the administrative behavior endpoint.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/uasmesh/rid-display/internal/aggregator"
	apierrors "github.com/uasmesh/rid-display/internal/api/errors"
	"github.com/uasmesh/rid-display/internal/api/response"
	"github.com/uasmesh/rid-display/internal/cluster"
	"github.com/uasmesh/rid-display/internal/dss"
	"github.com/uasmesh/rid-display/internal/geo"
	"github.com/uasmesh/rid-display/internal/metrics"
	"github.com/uasmesh/rid-display/internal/replay"
	"github.com/uasmesh/rid-display/internal/rid"
	"github.com/uasmesh/rid-display/internal/store"
	"github.com/uasmesh/rid-display/internal/subscription"
	"github.com/uasmesh/rid-display/internal/uss"
)

// Config contains API server configuration.
type Config struct {
	// Server address.
	Addr string

	// Timeouts.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Whether to expose the Prometheus endpoint, and where.
	MetricsEnabled  bool
	MetricsEndpoint string
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8073",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     120 * time.Second,
		MetricsEnabled:  true,
		MetricsEndpoint: "/metrics",
	}
}

// API serves the display-provider HTTP endpoints.
type API struct {
	config     Config
	db         *store.Database
	cache      *subscription.Cache
	aggregator *aggregator.Aggregator
	clusterer  *cluster.Clusterer
	uss        uss.Client
	version    rid.Version
	params     rid.Parameters
	server     *http.Server
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	// Replaceable in tests for deterministic subscription lifetimes.
	now func() time.Time
}

// New creates the API over its collaborating components.
func New(
	config Config,
	version rid.Version,
	db *store.Database,
	cache *subscription.Cache,
	agg *aggregator.Aggregator,
	clusterer *cluster.Clusterer,
	ussClient uss.Client,
) *API {
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}

	return &API{
		config:     config,
		db:         db,
		cache:      cache,
		aggregator: agg,
		clusterer:  clusterer,
		uss:        ussClient,
		version:    version,
		params:     version.Parameters(),
		logger:     log.With().Str("component", "api").Logger(),
		metrics:    metrics.Get(),
		now:        time.Now,
	}
}

// Handler builds the routed HTTP handler. Exposed separately from Start so
// tests can exercise the full middleware and routing stack in-process.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(a.recordMetrics)

	r.Get("/display_data", a.handleDisplayData)
	r.Get("/display_data/{flightID}/details", a.handleFlightDetails)
	r.Post("/uss/identification_service_areas/{isaID}", a.handleISANotification)
	r.Get("/display_provider/behavior", a.handleGetBehavior)
	r.Put("/display_provider/behavior", a.handlePutBehavior)
	r.Get("/status", a.handleStatus)
	r.Get("/healthz", a.handleHealth)

	if a.config.MetricsEnabled {
		r.Handle(a.config.MetricsEndpoint, promhttp.Handler())
	}

	return r
}

// Start runs the API server until ctx is cancelled or the listener fails.
func (a *API) Start(ctx context.Context) error {
	a.logger.Info().Str("addr", a.config.Addr).Msg("Starting API server")

	a.server = &http.Server{
		Addr:         a.config.Addr,
		Handler:      a.Handler(),
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		IdleTimeout:  a.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the API server.
func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	a.logger.Info().Msg("Shutting down API server")
	return a.server.Shutdown(ctx)
}

// recordMetrics observes request counts and latency per route pattern.
func (a *API) recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		a.metrics.RequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		a.metrics.RequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(started).Seconds())
	})
}

type flightsBody struct {
	Flights []rid.Flight `json:"flights"`
}

type clustersBody struct {
	Clusters []rid.Cluster `json:"clusters"`
}

// handleDisplayData serves GET /display_data: resolve a subscription for
// the view, replay its ISA log, fan out to the implied USSs, and answer
// with flights or clusters depending on the view size.
func (a *API) handleDisplayData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewParam := r.URL.Query().Get("view")
	if viewParam == "" {
		response.Error(w, r, apierrors.ValidationError("missing_view", "The view query parameter is required"))
		return
	}
	view, err := geo.ParseView(viewParam)
	if err != nil {
		response.Error(w, r, apierrors.ValidationError("invalid_view", err.Error()))
		return
	}

	diagonalKm := geo.DiagonalKm(view)
	if diagonalKm > a.params.MaxDiagonalKm {
		response.Error(w, r, apierrors.TooLargeError("view_too_large",
			"The requested view exceeds the maximum display area").WithDetails(map[string]any{
			"diagonal_km":     diagonalKm,
			"max_diagonal_km": a.params.MaxDiagonalKm,
		}))
		return
	}

	behavior := a.db.Snapshot().Behavior

	sub, err := a.cache.Resolve(ctx, view, a.now())
	if err != nil {
		var dssErr *dss.Error
		apiErr := apierrors.UpstreamError("subscription_upsert_failed",
			"Failed to register an observation subscription with the DSS")
		if stderrors.As(err, &dssErr) {
			apiErr.WithDetails(map[string]any{
				"url":         dssErr.URL,
				"status_code": dssErr.StatusCode,
				"detail":      dssErr.Detail,
			})
		} else {
			apiErr.WithDetails(err.Error())
		}
		response.Error(w, r, apiErr)
		return
	}

	// Notifications may have landed since the subscription was resolved;
	// replay from the freshest copy of its update log.
	if fresh := a.db.Snapshot().SubscriptionByID(sub.Upsert.SubscriptionID); fresh != nil {
		sub = *fresh
	}

	isas := replay.CurrentISAs(sub)
	flights, err := a.aggregator.Fetch(ctx, replay.FlightsURLsByOwner(isas), behavior, view)
	if err != nil {
		var upstreamErr *aggregator.UpstreamError
		apiErr := apierrors.UpstreamError("upstream_flights_failed",
			"A USS flights query failed; the observation is incomplete")
		if stderrors.As(err, &upstreamErr) {
			apiErr.WithDetails(map[string]any{
				"owner":  upstreamErr.Owner,
				"url":    upstreamErr.URL,
				"detail": upstreamErr.Err.Error(),
			})
		} else {
			apiErr.WithDetails(err.Error())
		}
		response.Error(w, r, apiErr)
		return
	}

	a.metrics.ObservedFlights.Observe(float64(len(flights)))

	if diagonalKm > a.params.MaxDetailsDiagonalKm {
		a.metrics.ClusteredResponses.Inc()
		clusters := a.clusterer.Cluster(flights, view)
		if clusters == nil {
			clusters = []rid.Cluster{}
		}
		response.JSON(w, http.StatusOK, clustersBody{Clusters: clusters})
		return
	}

	if behavior.AlwaysOmitRecentPaths {
		for i := range flights {
			flights[i].RecentPositions = nil
		}
	}
	if flights == nil {
		flights = []rid.Flight{}
	}
	response.JSON(w, http.StatusOK, flightsBody{Flights: flights})
}

// handleFlightDetails serves GET /display_data/{flightID}/details using the
// flight memo to find which USS served the flight.
func (a *API) handleFlightDetails(w http.ResponseWriter, r *http.Request) {
	flightID := chi.URLParam(r, "flightID")

	record, ok := a.db.Snapshot().Flights[flightID]
	if !ok {
		response.Error(w, r, apierrors.NotFoundError("unknown_flight",
			"No observation has seen a flight with this ID"))
		return
	}

	details, err := a.uss.FetchFlightDetails(r.Context(), record.FlightsURL, flightID)
	if err != nil {
		var ussErr *uss.Error
		apiErr := apierrors.UpstreamError("upstream_flight_details_failed",
			"The USS details query failed")
		if stderrors.As(err, &ussErr) {
			apiErr.WithDetails(map[string]any{
				"url":         ussErr.URL,
				"status_code": ussErr.StatusCode,
				"detail":      ussErr.Detail,
			})
		} else {
			apiErr.WithDetails(err.Error())
		}
		response.Error(w, r, apiErr)
		return
	}

	response.JSON(w, http.StatusOK, details)
}

// handleISANotification serves POST /uss/identification_service_areas/{isaID},
// the DSS push channel. The change is appended to the update log of every
// named subscription we still hold; unknown subscription IDs are ignored
// because eviction and notification delivery race benignly.
func (a *API) handleISANotification(w http.ResponseWriter, r *http.Request) {
	isaID := chi.URLParam(r, "isaID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, r, apierrors.ValidationError("unreadable_body", err.Error()))
		return
	}

	notification, err := dss.DecodeNotification(body)
	if err != nil {
		response.Error(w, r, apierrors.ValidationError("invalid_notification", err.Error()))
		return
	}

	kind := "delete"
	if notification.ISA != nil {
		kind = "update"
	}
	a.metrics.NotificationsTotal.WithLabelValues(kind).Inc()

	matched := 0
	a.db.Transact(func(v *store.View) {
		for _, state := range notification.Subscriptions {
			sub := v.SubscriptionByID(state.SubscriptionID)
			if sub == nil {
				continue
			}
			sub.Updates = append(sub.Updates, rid.UpdatedISA{
				ID:                isaID,
				ISA:               notification.ISA,
				NotificationIndex: state.NotificationIndex,
			})
			matched++
		}
	})

	a.logger.Debug().
		Str("isa_id", isaID).
		Str("kind", kind).
		Int("matched_subscriptions", matched).
		Msg("Recorded ISA notification")

	w.WriteHeader(http.StatusNoContent)
}

// handleGetBehavior serves GET /display_provider/behavior.
func (a *API) handleGetBehavior(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, a.db.Snapshot().Behavior)
}

// handlePutBehavior serves PUT /display_provider/behavior, replacing the
// behavior configuration wholesale.
func (a *API) handlePutBehavior(w http.ResponseWriter, r *http.Request) {
	var behavior rid.Behavior
	if err := json.NewDecoder(r.Body).Decode(&behavior); err != nil {
		response.Error(w, r, apierrors.ValidationError("invalid_behavior", err.Error()))
		return
	}

	a.db.Transact(func(v *store.View) {
		v.Behavior = behavior
	})

	a.logger.Info().
		Bool("always_omit_recent_paths", behavior.AlwaysOmitRecentPaths).
		Strs("do_not_display_flights_from", behavior.DoNotDisplayFlightsFrom).
		Msg("Updated display-provider behavior")

	response.JSON(w, http.StatusOK, behavior)
}

// handleStatus serves GET /status with a summary of the service state.
func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := a.db.Snapshot()
	response.JSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"rid_version":          string(a.version),
		"active_subscriptions": len(snapshot.Subscriptions),
		"known_flights":        len(snapshot.Flights),
	})
}

// handleHealth serves GET /healthz for liveness probes.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
