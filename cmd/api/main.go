package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/ems/internal/app"
	"github.com/geocoder89/ems/internal/config"
	"github.com/geocoder89/ems/internal/db"
	"github.com/geocoder89/ems/internal/http/handlers"
	"github.com/geocoder89/ems/internal/observability"
	"github.com/geocoder89/ems/internal/redisclient"
	"github.com/geocoder89/ems/internal/repo/memory"
	"github.com/geocoder89/ems/internal/repo/postgres"
	"github.com/geocoder89/ems/internal/throttle"
)

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Otel.Enabled, cfg.Otel.ServiceName, cfg.Otel.Endpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	prom := observability.NewProm()
	checks := map[string]handlers.PingFunc{}

	stores, closeStores, err := openStores(ctx, cfg, prom, log, checks)
	if err != nil {
		return err
	}
	defer closeStores()

	opts := app.Options{
		Config: cfg,
		Log:    log,
		Prom:   prom,
		Stores: stores,
		Checks: checks,
	}

	if cfg.NeedsRedis() {
		rc, err := redisclient.New(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rc.Close()

		pctx, cancel := config.WithTimeout(2 * time.Second)
		err = rc.Ping(pctx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		checks["redis"] = rc.Ping
		opts.Redis = rc.Raw()

		if cfg.Throttle.Store == config.StoreRedis {
			opts.ThrottleStore = throttle.NewRedisStore(rc.Raw(), "")
		}
	}

	router, err := app.New(opts)
	if err != nil {
		return err
	}

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		log.Info("Server starting",
			"port", cfg.Port,
			"env", cfg.Env,
			"storage", cfg.Storage,
			"throttle_store", cfg.Throttle.Store,
			"rate_limit_store", cfg.RateLimit.Store,
		)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-stop:
	}
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}

	return nil
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger, checks map[string]handlers.PingFunc) (app.Stores, func(), error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		mem := memory.NewDB()
		return app.Stores{
			Employees:   memory.NewEmployeesRepo(mem),
			Departments: memory.NewDepartmentsRepo(mem),
			Setup:       memory.NewSetupRepo(mem),
		}, func() {}, nil
	}

	pool, err := db.NewPool(cfg.DB.ConnectionString(), cfg.DB.MaxConns)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.MigrateOnStart {
		if err := migrate(ctx, pool, log); err != nil {
			pool.Close()
			return app.Stores{}, nil, err
		}
	}

	checks["postgres"] = pool.Ping

	employees := postgres.NewEmployeesRepo(pool, prom)
	return app.Stores{
		Employees:   employees,
		Departments: postgres.NewDepartmentsRepo(pool, prom),
		Setup:       postgres.NewSetupRepo(pool, prom, employees),
	}, pool.Close, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	m, err := db.NewMigrator(pool)
	if err != nil {
		return err
	}
	defer m.Close()

	applied, err := m.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	log.Info("migrations applied", "versions", applied)
	return nil
}
