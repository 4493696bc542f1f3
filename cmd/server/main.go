package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/typingrealm/nitrotype-tracker/internal/config"
	"github.com/typingrealm/nitrotype-tracker/internal/database"
	"github.com/typingrealm/nitrotype-tracker/internal/lock"
	"github.com/typingrealm/nitrotype-tracker/internal/metrics"
	"github.com/typingrealm/nitrotype-tracker/internal/modules/ingest"
	"github.com/typingrealm/nitrotype-tracker/internal/modules/normalizer"
	"github.com/typingrealm/nitrotype-tracker/internal/modules/statistics"
	"github.com/typingrealm/nitrotype-tracker/internal/scheduler"
	"github.com/typingrealm/nitrotype-tracker/internal/server"
	"github.com/typingrealm/nitrotype-tracker/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		errLog := logger.New(logger.Config{Level: "error"})
		errLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Strs("teams", cfg.Teams).Msg("Starting NitroType tracker")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(ingest.RawDataSchema, statistics.NormalizedDataSchema); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// Distributed lock backend. Without Redis the lock only excludes
	// runs within this process; fine for a single-node deployment.
	locker := newLocker(cfg, log)

	m := metrics.New()

	// Repositories
	rawRepo := ingest.NewRawRepository(db.Conn(), log)
	normalizedRepo := statistics.NewRepository(db.Conn(), log)

	// Statistics read path
	statsService := statistics.NewService(
		normalizedRepo,
		cfg.StatsCacheMB,
		cfg.StatsCacheTTL,
		cfg.SeasonStart,
		m,
		log,
	)
	statsHandler := statistics.NewHandler(statsService, log)

	// Initialize scheduler
	sched := scheduler.New(log)

	upstream := ingest.NewClient(cfg.UpstreamBaseURL, log)
	pollJob := ingest.NewPollJob(cfg.Teams, upstream, rawRepo, locker, m, cfg.FetchInterval, log)
	normalizeJob := normalizer.New(rawRepo, normalizedRepo, locker, m, log)

	// The jobs rate-limit themselves (fetch lease per team, normalizer
	// lock), so the tick intervals just bound reaction time.
	if err := sched.AddJob("@every 30s", pollJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register ingest job")
	}
	if err := sched.AddJob("@every 1m", normalizeJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register normalize job")
	}

	sched.Start()
	defer sched.Stop()

	// Prime the raw store right away instead of waiting out the first tick
	go func() {
		if err := sched.RunNow(pollJob); err != nil {
			log.Error().Err(err).Msg("Initial poll failed")
		}
	}()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		Stats:   statsHandler,
		System:  server.NewSystemHandlers(rawRepo, normalizedRepo, log),
		DevMode: cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func newLocker(cfg *config.Config, log zerolog.Logger) lock.Locker {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR not set, using in-process locking")
		return lock.NewMemoryLocker()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping Redis")
	}

	return lock.NewRedisLocker(client)
}
