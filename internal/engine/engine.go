// Package engine wires the display-provider components together and runs
// them as one service.
package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/uasmesh/rid-display/internal/aggregator"
	"github.com/uasmesh/rid-display/internal/api"
	"github.com/uasmesh/rid-display/internal/cluster"
	"github.com/uasmesh/rid-display/internal/config"
	"github.com/uasmesh/rid-display/internal/dss"
	"github.com/uasmesh/rid-display/internal/logging"
	"github.com/uasmesh/rid-display/internal/rid"
	"github.com/uasmesh/rid-display/internal/store"
	"github.com/uasmesh/rid-display/internal/subscription"
	"github.com/uasmesh/rid-display/internal/telemetry"
	"github.com/uasmesh/rid-display/internal/uss"
)

// Engine owns the component graph and its lifecycle.
type Engine struct {
	config      *config.Config
	db          *store.Database
	persister   *store.BadgerPersister
	api         *api.API
	logger      zerolog.Logger
	telemetryFn func(context.Context) error
}

// New builds the full component graph from configuration.
func New(cfg *config.Config) (*Engine, error) {
	if err := logging.Setup(logging.Config{
		Level:         cfg.Logging.Level,
		Format:        logging.Format(cfg.Logging.Format),
		IncludeCaller: cfg.Logging.IncludeCaller,
		GlobalFields:  cfg.Logging.GlobalFields,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	version, err := rid.ParseVersion(cfg.RID.Version)
	if err != nil {
		return nil, err
	}

	var persister *store.BadgerPersister
	if cfg.Store.PersistenceEnabled {
		persister, err = store.NewBadgerPersister(cfg.Store.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open persistence store: %w", err)
		}
	}

	var db *store.Database
	if persister != nil {
		db = store.New(persister)
		restored, err := persister.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted state: %w", err)
		}
		if restored != nil {
			db.Restore(restored)
		}
	} else {
		db = store.New(nil)
	}

	dssClient := dss.NewHTTPClient(dss.Config{
		BaseURL:   cfg.DSS.BaseURL,
		Version:   version,
		AuthToken: cfg.DSS.AuthToken,
		Timeout:   time.Duration(cfg.DSS.TimeoutMs) * time.Millisecond,
	})
	ussClient := uss.NewHTTPClient(uss.Config{
		AuthToken:                cfg.USS.AuthToken,
		Timeout:                  time.Duration(cfg.USS.TimeoutMs) * time.Millisecond,
		RecentPositionsDurationS: cfg.USS.RecentPositionsDurationS,
	})

	cache := subscription.NewCache(subscription.Config{
		PaddingM:     cfg.Subscription.PaddingM,
		Duration:     time.Duration(cfg.Subscription.DurationS) * time.Second,
		ExpiryMargin: time.Duration(cfg.Subscription.ExpiryMarginS) * time.Second,
		AltitudeLoM:  cfg.Subscription.AltitudeLoM,
		AltitudeHiM:  cfg.Subscription.AltitudeHiM,
		CallbackURL:  cfg.Server.PublicURL,
	}, db, dssClient)

	apiServer := api.New(api.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:     time.Duration(cfg.Server.IdleTimeout) * time.Second,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
	}, version, db, cache, aggregator.New(db, ussClient), cluster.New(version.Parameters()), ussClient)

	return &Engine{
		config:    cfg,
		db:        db,
		persister: persister,
		api:       apiServer,
		logger:    log.With().Str("component", "engine").Logger(),
	}, nil
}

// Start runs the service until ctx is cancelled or a termination signal
// arrives.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info().
		Str("addr", e.config.Server.Addr).
		Str("rid_version", e.config.RID.Version).
		Msg("Starting display provider")

	telShutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:       e.config.Telemetry.Enabled,
		ServiceName:   e.config.Telemetry.ServiceName,
		Endpoint:      e.config.Telemetry.Endpoint,
		SamplingRatio: e.config.Telemetry.SamplingRatio,
		Timeout:       5 * time.Second,
		Attributes:    e.config.Telemetry.Attributes,
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("Telemetry setup failed, continuing without tracing")
	} else {
		e.telemetryFn = telShutdown
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			e.logger.Info().Str("signal", sig.String()).Msg("Caught signal, initiating shutdown")
			cancel()
		case <-ctx.Done():
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.api.Start(ctx)
	})

	err = g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
		e.logger.Error().Err(shutdownErr).Msg("Shutdown error")
	}

	return err
}

// Shutdown stops the components in reverse dependency order.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.logger.Info().Msg("Shutting down display provider")

	var firstErr error
	if err := e.api.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if e.telemetryFn != nil {
		if err := e.telemetryFn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.persister != nil {
		if err := e.persister.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
