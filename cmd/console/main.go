package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"usermgmt/console/internal/apiclient"
	"usermgmt/console/internal/cache"
	"usermgmt/console/internal/config"
	"usermgmt/console/internal/console"
	"usermgmt/console/internal/database"
	"usermgmt/console/internal/handlers"
	"usermgmt/console/internal/jobs"
	"usermgmt/console/internal/kv"
	"usermgmt/console/internal/log"
	"usermgmt/console/internal/media"
	"usermgmt/console/internal/metrics"
	"usermgmt/console/internal/profile"
	"usermgmt/console/internal/security"
	"usermgmt/console/internal/server"
	"usermgmt/console/internal/storage"
	"usermgmt/console/internal/telemetry"
)

type backends struct {
	store  kv.Store
	stager media.Stager
	checks []handlers.Check
	db     *pgxpool.Pool
	redis  *redis.Client
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	tracing, err := telemetry.Init(ctx, cfg.Tracing, cfg.Environment)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}

	b := openBackends(ctx, cfg, logger)

	gateway := apiclient.New(cfg.Backend.BaseURL, logger,
		apiclient.WithHTTPClient(apiclient.NewHTTPClient(cfg.Backend)),
		apiclient.WithObserver(metrics.ObserveGateway),
	)

	registry := console.NewRegistry(b.store, security.NewSealer(cfg.Session.RememberSecret), gateway, b.stager, console.Settings{
		Avatars: profile.AvatarResolver{
			UploadBaseURL: cfg.Backend.UploadBaseURL,
			Placeholder:   cfg.Backend.PlaceholderImage,
		},
		PreviewBaseURL:     strings.TrimSuffix(cfg.HTTP.PublicURL, "/") + "/previews",
		LoginRedirectDelay: cfg.UI.LoginRedirectDelay,
		ProfileCloseDelay:  cfg.UI.ProfileCloseDelay,
	}, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, registry, b.stager, b.checks...)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	// redis expires namespaces itself and has no sweeper
	sweeper, _ := b.store.(kv.Sweeper)
	scheduler := jobs.NewScheduler(registry, sweeper, b.stager, jobs.Settings{
		WorkspaceTTL: cfg.Session.WorkspaceTTL,
		StoreTTL:     cfg.Session.StoreTTL,
		PreviewTTL:   cfg.Storage.PreviewTTL,
	}, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, handlerSet, scheduler, tracing, b)
}

func openBackends(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) backends {
	var b backends

	switch cfg.Session.Backend {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		b.redis = client
		b.store = kv.NewRedisStore(client, cfg.Session.StoreTTL)
		b.checks = append(b.checks, handlers.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return cache.Ping(ctx, client)
		}})
	case "postgres":
		if err := database.RunMigrations(kv.Migrations, "migrations", cfg.Postgres.DSN); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		b.db = pool
		b.store = kv.NewPostgresStore(pool)
		b.checks = append(b.checks, handlers.Check{Name: "postgres", Ping: pool.Ping})
	default:
		b.store = kv.NewMemoryStore()
	}

	switch cfg.Storage.Backend {
	case "minio":
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure bucket failed")
		}
		b.stager = objectStore
		b.checks = append(b.checks, handlers.Check{Name: "storage", Ping: objectStore.Ping})
	default:
		b.stager = media.NewMemoryStager()
	}

	logger.Info().
		Str("session_backend", cfg.Session.Backend).
		Str("storage_backend", cfg.Storage.Backend).
		Msg("backends ready")
	return b
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, handlerSet handlers.HandlerSet, scheduler *jobs.Scheduler, tracing telemetry.Shutdowner, b backends) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	handlerSet.Drain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduler jobs still running at exit")
	}

	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown failed")
	}

	if b.db != nil {
		b.db.Close()
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
