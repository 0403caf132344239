package cmd

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/albaranes/config"
	"example.com/albaranes/internal/api/handlers"
	"example.com/albaranes/internal/auth"
	"example.com/albaranes/internal/cache"
	"example.com/albaranes/internal/database"
	"example.com/albaranes/internal/messaging"
	"example.com/albaranes/internal/metrics"
	"example.com/albaranes/internal/numbering"
	"example.com/albaranes/internal/render"
	"example.com/albaranes/internal/repositories"
	"example.com/albaranes/internal/search"
	"example.com/albaranes/internal/services"
	"example.com/albaranes/internal/storage"
	"example.com/albaranes/internal/tracing"
)

// app holds everything the api and worker commands share
type app struct {
	cfg       config.Config
	db        *database.Database
	cache     *cache.RedisCache
	store     storage.Store
	publisher messaging.Publisher
	tracer    tracing.Tracer
	metrics   *metrics.Metrics

	users    *services.UserService
	clients  *services.ClientService
	projects *services.ProjectService
	notes    *services.DeliveryNoteService
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && os.Getenv("LOG_LEVEL") == "" {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Logging.Format == "json" && cfg.Environment != "development" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return cfg, nil
}

// bootstrap connects every dependency. Optional ones (cache, search, tracing)
// degrade to disabled instead of failing startup.
func bootstrap(ctx context.Context, cfg config.Config) (*app, error) {
	rt := &app{cfg: cfg, metrics: metrics.NewMetrics()}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	rt.db = db

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.Disabled()
	}
	rt.tracer = tracer

	if cfg.Tracing.OtelGorm {
		if err := db.EnableQueryTracing(); err != nil {
			log.Warn().Err(err).Msg("Failed to enable query tracing")
		}
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = cache.Disabled()
	}
	rt.cache = redisCache

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		elasticClient = search.Disabled()
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.store = store

	publisher, err := messaging.NewPublisher(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.Queue.Provider).Msg("Failed to initialize render queue, relying on reconciliation")
		publisher = messaging.NoopPublisher{}
	}
	rt.publisher = publisher

	var locker numbering.Locker = numbering.NoopLocker{}
	if cfg.Numbering.Serialize {
		if redisCache.Enabled() {
			locker = numbering.NewRedisLocker(redisCache.Client(), cfg.Numbering.LockTTL)
		} else {
			log.Warn().Msg("Numbering serialization needs Redis, falling back to unique-index retries")
		}
	}

	userRepo := repositories.NewUserRepository(db.Write, db.ReadOnly)
	clientRepo := repositories.NewClientRepository(db.Write, db.ReadOnly)
	projectRepo := repositories.NewProjectRepository(db.Write, db.ReadOnly)
	noteRepo := repositories.NewDeliveryNoteRepository(db.Write, db.ReadOnly)

	rt.users = services.NewUserService(userRepo, auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))
	rt.clients = services.NewClientService(clientRepo, redisCache)
	rt.projects = services.NewProjectService(projectRepo, clientRepo, redisCache)
	rt.notes = services.NewDeliveryNoteService(services.DeliveryNoteDeps{
		Notes:       noteRepo,
		Projects:    projectRepo,
		Clients:     clientRepo,
		Renderer:    render.NewPDFRenderer(),
		Store:       store,
		Publisher:   publisher,
		Indexer:     elasticClient,
		Cache:       redisCache,
		Metrics:     rt.metrics,
		Tracer:      tracer,
		Locker:      locker,
		MaxAttempts: cfg.Numbering.MaxAttempts,
	})

	return rt, nil
}

func (rt *app) healthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": func(context.Context) error { return rt.db.Ping() },
	}
	if rt.cache.Enabled() {
		checks["redis"] = rt.cache.Ping
	}
	return checks
}

func (rt *app) close() {
	if rt.publisher != nil {
		if err := rt.publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing render queue publisher")
		}
	}
	if closer, ok := rt.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing artifact store")
		}
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Redis cache")
		}
	}
	if rt.tracer != nil {
		rt.tracer.Close()
	}
	if err := rt.db.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database")
	}
}
