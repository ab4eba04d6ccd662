package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"route-validation-service/internal/adapters/alerts"
	"route-validation-service/internal/adapters/cache"
	"route-validation-service/internal/adapters/repositories"
	"route-validation-service/internal/api"
	"route-validation-service/internal/config"
	"route-validation-service/internal/platform/db"
	"route-validation-service/internal/platform/obs"
	"route-validation-service/internal/ports"
	"route-validation-service/internal/services"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// main is the application composition root.
// It wires concrete adapters (SQL, Redis) behind ports and starts the monitor,
// the revalidation scheduler and the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := obs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DBDriver, dsn(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := repositories.MigrateUp(conn, cfg.DBDriver, log); err != nil {
		return err
	}
	seed, err := seedIfPresent(ctx, conn, cfg, log)
	if err != nil {
		return err
	}

	var (
		ref       ports.ReferenceDataProvider = repositories.NewSQLReferenceData(conn, cfg.DBDriver, log)
		sink      ports.AlertSink
		publisher ports.ResultPublisher
	)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}

		cached := cache.NewCachedReferenceData(ref, rdb, cfg.RedisStreamPrefix, cfg.RouteCacheTTL, log)
		// Planning data just seeded supersedes whatever a previous process cached.
		if seed != nil {
			for _, routeID := range seed.RouteIDs() {
				if err := cached.Invalidate(ctx, routeID); err != nil {
					log.Warn().Err(err).Str("route_id", routeID).Msg("reference cache not invalidated")
				}
			}
		}
		ref = cached
		sink = alerts.NewRedisAlertSink(rdb, cfg.RedisStreamPrefix)
		publisher = alerts.NewRedisResultPublisher(rdb, cfg.RedisStreamPrefix)
		log.Info().Str("addr", cfg.RedisAddr).Msg("publishing to redis streams")
	} else {
		logSink := alerts.NewLogSink(log)
		sink, publisher = logSink, logSink
		log.Warn().Msg("REDIS_ADDR not set, alerts and results are only logged")
	}

	th := services.DefaultThresholds()
	th.RealtimeSpeedKmh = cfg.RealtimeSpeedLimit
	th.CorridorWidthKm = cfg.CorridorWidthKm

	store := repositories.NewSQLTraceStore(conn, cfg.DBDriver, log)
	validator := services.NewValidator(store, ref, publisher, th, cfg.RegistryTimeout, log)

	monitor := services.NewMonitor(store, ref, sink, th, services.MonitorConfig{
		QueueCapacity:   cfg.QueueCapacity,
		RetryAttempts:   cfg.StoreRetryAttempts,
		RetryBackoff:    cfg.StoreRetryBackoff,
		MaxBackoff:      cfg.RetryMaxBackoff,
		RegistryTimeout: cfg.RegistryTimeout,
		IdleTimeout:     cfg.QueueIdleTimeout,
	}, log)

	scheduler := services.NewRevalidationScheduler(store, ref, validator, cfg.RevalidateInterval, cfg.RegistryTimeout, log)

	monitorDone := make(chan error, 1)
	go func() { monitorDone <- monitor.Run(ctx) }()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Deps{
		Monitor:   monitor,
		Validator: validator,
		Finalizer: scheduler,
		Traces:    store,
		Ping:      conn.PingContext,
		Pending:   monitor.Pending,
	}, api.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
	})

	// Validations of long runs and registry lookups need a generous write timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			<-monitorDone
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	if err := <-monitorDone; err != nil {
		return err
	}
	return nil
}

func dsn(cfg *config.Config) string {
	if cfg.DBDriver == db.DriverPostgres {
		return cfg.DatabaseURL
	}
	return cfg.DBPath
}

// seedIfPresent loads reference data for local runs and returns what was
// written, or nil. A missing seed file is normal in deployments where the
// registries are populated elsewhere.
func seedIfPresent(ctx context.Context, conn *sql.DB, cfg *config.Config, log zerolog.Logger) (*repositories.ReferenceSeed, error) {
	if cfg.SeedPath == "" {
		return nil, nil
	}
	if _, err := os.Stat(cfg.SeedPath); errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", cfg.SeedPath).Msg("no seed file")
		return nil, nil
	}

	seed, err := repositories.LoadSeed(cfg.SeedPath)
	if err != nil {
		return nil, err
	}
	if err := repositories.Seed(ctx, conn, cfg.DBDriver, seed); err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.SeedPath).Int("routes", len(seed.Routes)).Msg("reference data seeded")
	return &seed, nil
}
