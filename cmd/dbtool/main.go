package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"route-validation-service/internal/adapters/cache"
	"route-validation-service/internal/adapters/repositories"
	"route-validation-service/internal/config"
	"route-validation-service/internal/platform/db"
	"route-validation-service/internal/platform/obs"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const usage = `usage: dbtool <command>

commands:
  up        apply all pending migrations
  down      roll back the most recent migration
  version   print the current schema version
  seed      migrate up, load SEED_PATH into the reference tables and, when
            REDIS_ADDR is set, drop the cached planning data of seeded routes`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := obs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	dsn := cfg.DBPath
	if cfg.DBDriver == db.DriverPostgres {
		dsn = cfg.DatabaseURL
	}

	conn, err := db.Open(cfg.DBDriver, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	switch cmd := os.Args[1]; cmd {
	case "up":
		err = repositories.MigrateUp(conn, cfg.DBDriver, log)
	case "down":
		err = repositories.MigrateDown(conn, cfg.DBDriver, log)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = repositories.MigrateVersion(conn, cfg.DBDriver, log)
		if err == nil {
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
		}
	case "seed":
		err = seed(conn, cfg, log)
	default:
		conn.Close()
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("dbtool failed")
	}
	log.Info().Str("command", os.Args[1]).Msg("done")
}

func seed(conn *sql.DB, cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	if err := repositories.MigrateUp(conn, cfg.DBDriver, log); err != nil {
		return err
	}

	log.Info().Str("path", cfg.SeedPath).Msg("seeding reference data")
	data, err := repositories.LoadSeed(cfg.SeedPath)
	if err != nil {
		return err
	}
	if err := repositories.Seed(ctx, conn, cfg.DBDriver, data); err != nil {
		return err
	}

	if cfg.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	cached := cache.NewCachedReferenceData(nil, rdb, cfg.RedisStreamPrefix, cfg.RouteCacheTTL, log)
	for _, routeID := range data.RouteIDs() {
		if err := cached.Invalidate(ctx, routeID); err != nil {
			return err
		}
	}
	log.Info().Int("routes", len(data.RouteIDs())).Msg("reference cache invalidated")
	return nil
}
