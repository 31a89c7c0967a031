// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/shopfront/shopfront/internal/access"
	accesspg "github.com/shopfront/shopfront/internal/access/postgres"
	"github.com/shopfront/shopfront/internal/access/audit"
	"github.com/shopfront/shopfront/internal/admin"
	"github.com/shopfront/shopfront/internal/auth"
	authpg "github.com/shopfront/shopfront/internal/auth/postgres"
	"github.com/shopfront/shopfront/internal/config"
	"github.com/shopfront/shopfront/internal/guard"
	"github.com/shopfront/shopfront/internal/observability"
	"github.com/shopfront/shopfront/internal/server"
	"github.com/shopfront/shopfront/internal/store"
	"github.com/shopfront/shopfront/pkg/errutil"
)

const shutdownTimeout = 15 * time.Second

// serveFlags holds flags local to the serve command.
type serveFlags struct {
	autoMigrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the back office API server",
		Long: `Run the back office API server. Sessions issued by the identity service
are verified on every request, roles are read from the profiles table, and
admin mutations are written to the audit log.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, flags, logger)
		},
	}
	cmd.Flags().BoolVar(&flags.autoMigrate, "auto-migrate", false, "apply pending migrations before serving")
	return cmd
}

// runServe wires the server and blocks until ctx is cancelled or a listener fails.
func runServe(ctx context.Context, cfg *config.Config, flags *serveFlags, logger *slog.Logger) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	if flags.autoMigrate {
		if err := migrateUp(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	pool, err := store.Connect(ctx, cfg.Database.URL, store.DefaultConnectOptions())
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	sessions, err := newSessionService(cfg, pool, logger)
	if err != nil {
		return err
	}
	resolver, err := access.NewResolver(accesspg.NewProfileRepository(pool), logger)
	if err != nil {
		return err
	}
	g, err := guard.New(sessions, resolver, logger)
	if err != nil {
		return err
	}

	recorderOpts := []audit.RecorderOption{audit.WithLogger(logger)}
	if cfg.Audit.WALPath != "" {
		recorderOpts = append(recorderOpts, audit.WithWALPath(cfg.Audit.WALPath))
	}
	recorder, err := audit.NewRecorder(audit.NewPostgresWriter(pool), recorderOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := recorder.Close(); cerr != nil {
			errutil.LogError(logger, "close audit recorder", cerr)
		}
	}()
	if n, err := recorder.ReplayWAL(ctx); err != nil {
		errutil.LogErrorContext(ctx, logger, "audit WAL replay incomplete", err, "replayed", n)
	} else if n > 0 {
		logger.Info("replayed audit WAL", "entries", n, "path", recorder.WALPath())
	}

	adminHandler, err := admin.NewHandler(admin.NewRepository(pool), g, recorder, logger)
	if err != nil {
		return err
	}

	var ready atomic.Bool
	var middleware []func(http.Handler) http.Handler
	var obsErrCh <-chan error
	if cfg.Metrics.Addr != "" {
		obs := observability.NewServer(observability.Options{
			Addr:       cfg.Metrics.Addr,
			Checks:     readinessChecks(&ready, pool),
			Collectors: metricCollectors(),
			Logger:     logger,
		})
		obsErrCh, err = obs.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		defer stopWithTimeout(logger, "observability server", obs.Stop)
		middleware = append(middleware, obs.Metrics().Instrument)
	}

	router, err := server.NewRouter(server.RouterOptions{
		Sessions:    sessions,
		Guard:       g,
		Profiles:    accesspg.NewProfileRepository(pool),
		Admin:       adminHandler.Routes(),
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Middleware:  middleware,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	srv := server.New(cfg.HTTP.Addr, router)
	httpErrCh, err := srv.Start()
	if err != nil {
		return err
	}
	defer stopWithTimeout(logger, "http server", srv.Stop)
	ready.Store(true)

	go purgeRevocations(ctx, sessions, cfg.Revocation.PurgeInterval, logger)

	logger.Info("shopfront serving", "addr", srv.Addr())
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		ready.Store(false)
		return nil
	case err := <-httpErrCh:
		return oops.Code("SERVER_FAILED").Wrap(err)
	case err := <-obsErrCh:
		return oops.Code("OBSERVABILITY_FAILED").Wrap(err)
	}
}

// newSessionService builds the verifier-backed session service.
func newSessionService(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*auth.Service, error) {
	var verifierOpts []auth.VerifierOption
	if cfg.Session.Issuer != "" {
		verifierOpts = append(verifierOpts, auth.WithIssuer(cfg.Session.Issuer))
	}
	if cfg.Session.Audience != "" {
		verifierOpts = append(verifierOpts, auth.WithAudience(cfg.Session.Audience))
	}
	verifier, err := auth.NewVerifier([]byte(cfg.Session.Secret), verifierOpts...)
	if err != nil {
		return nil, err
	}

	opts := []auth.ServiceOption{
		auth.WithCookieName(cfg.Session.Cookie),
		auth.WithLogger(logger),
	}
	if cfg.Identity.URL != "" {
		idClient, err := auth.NewIdentityClient(cfg.Identity.URL, nil)
		if err != nil {
			return nil, err
		}
		opts = append(opts, auth.WithIdentityClient(idClient))
	}
	return auth.NewService(verifier, authpg.NewRevocationRepository(pool), opts...)
}

// readinessChecks reports ready once the API listener is up and the
// database answers.
func readinessChecks(ready *atomic.Bool, pool *pgxpool.Pool) map[string]observability.Check {
	return map[string]observability.Check{
		"api": func(context.Context) error {
			if !ready.Load() {
				return errors.New("not serving")
			}
			return nil
		},
		"database": func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	}
}

func metricCollectors() []prometheus.Collector {
	var cs []prometheus.Collector
	cs = append(cs, access.Collectors()...)
	cs = append(cs, audit.Collectors()...)
	cs = append(cs, guard.Collectors()...)
	return cs
}

// revocationPurger is the part of auth.Service the purge loop uses.
type revocationPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// purgeRevocations deletes expired revocation rows every interval until ctx ends.
func purgeRevocations(ctx context.Context, p revocationPurger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				errutil.LogErrorContext(ctx, logger, "revocation purge failed", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired revocations", "count", n)
			}
		}
	}
}

func stopWithTimeout(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		errutil.LogError(logger, "stop "+name, err)
	}
}
