package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Guram12/starmap/internal/adapters/cache"
	"github.com/Guram12/starmap/internal/adapters/database"
	"github.com/Guram12/starmap/internal/adapters/events"
	"github.com/Guram12/starmap/internal/adapters/mapview"
	"github.com/Guram12/starmap/internal/adapters/providers/geolocation"
	"github.com/Guram12/starmap/internal/api/handlers"
	"github.com/Guram12/starmap/internal/api/middleware"
	"github.com/Guram12/starmap/internal/api/routes"
	"github.com/Guram12/starmap/internal/application/services"
	"github.com/Guram12/starmap/internal/domain/providers"
	"github.com/Guram12/starmap/internal/domain/repositories"
	"github.com/Guram12/starmap/internal/infrastructure/clients/postgres"
	"github.com/Guram12/starmap/internal/infrastructure/clients/redis"
	"github.com/Guram12/starmap/internal/infrastructure/observability"
	"github.com/Guram12/starmap/pkg/config"
	"github.com/Guram12/starmap/pkg/retry"
	"github.com/rs/zerolog/log"
)

const janitorInterval = time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	connectRetry := retry.DefaultConfig()
	connectRetry.MaxAttempts = 5
	connectRetry.MaxTotalTimeout = 15 * time.Second

	// Initialize Redis client. Without Redis the service keeps caches and
	// map events in process.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(ctx, &cfg.Redis, connectRetry)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, using in-memory cache and event bus")
		cacheProvider = cache.NewMemoryAdapter()
		eventBus = events.NewMemoryEventBus()
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized successfully")
	}

	// Initialize search history storage
	var historyRepo repositories.SearchHistoryRepository
	if cfg.Database.Enabled {
		pgClient, err := postgres.NewClient(ctx, &cfg.Database, connectRetry)
		if err != nil {
			log.Warn().Err(err).Msg("PostgreSQL unavailable, keeping search history in memory")
		} else {
			defer pgClient.Close()
			adapter := database.NewSearchHistoryAdapter(pgClient)
			if err := adapter.EnsureSchema(ctx); err != nil {
				log.Fatal().Err(err).Msg("Failed to prepare search history schema")
			}
			historyRepo = adapter
			log.Info().Msg("PostgreSQL client initialized successfully")
		}
	}
	if historyRepo == nil {
		historyRepo = database.NewMemorySearchHistory()
	}

	// Initialize the geolocation provider
	var geolocationProvider providers.GeolocationProvider
	switch cfg.Geolocation.Provider {
	case "google":
		if cfg.Geolocation.APIKey == "" {
			log.Warn().Msg("GEOLOCATION_API_KEY is not set; using mock geolocation provider")
			geolocationProvider = geolocation.NewMockProvider()
		} else {
			geolocationProvider = geolocation.NewGoogleProviderWithOptions(cfg.Geolocation.APIKey, cacheProvider, geolocation.Options{
				BaseURL:                 cfg.Geolocation.BaseURL,
				HTTPClient:              &http.Client{Timeout: cfg.Geolocation.HTTPTimeout},
				RequestsPerSecond:       cfg.Geolocation.RequestsPerSecond,
				Burst:                   cfg.Geolocation.Burst,
				BreakerFailureThreshold: cfg.Geolocation.BreakerFailureThreshold,
				BreakerOpenTimeout:      cfg.Geolocation.BreakerOpenTimeout,
			})
		}
	default:
		geolocationProvider = geolocation.NewMockProvider()
	}
	log.Info().Str("provider", cfg.Geolocation.Provider).Msg("Geolocation provider configured")

	// Initialize services
	coordinatorCfg := services.CoordinatorConfig{
		CacheTTL:        cfg.Search.CacheTTL,
		DebounceWindow:  cfg.Search.DebounceWindow,
		MaxRadiusKm:     cfg.Search.MaxRadiusKm,
		MaxResults:      cfg.Search.MaxResults,
		ProviderTimeout: cfg.Search.ProviderTimeout,
	}

	historyService := services.NewSearchHistoryService(historyRepo, cfg.Search.HistoryLimit, cfg.Search.HistoryDedupWindow, metrics)
	lastSearchStore := cache.NewLastSearchStore(cacheProvider, cfg.Session.LastSearchTTL)

	sessionManager := services.NewSessionManager(func(sessionID, userID string) *services.SearchSession {
		renderer := mapview.NewEventRenderer(sessionID, eventBus)
		coordinator := services.NewSearchCoordinator(geolocationProvider, geolocationProvider, coordinatorCfg, metrics)
		return services.NewSearchSession(sessionID, userID, coordinator, services.NewMarkerSynchronizer(renderer), lastSearchStore, historyService)
	}, cfg.Session.IdleTTL)
	sessionManager.StartJanitor(janitorInterval)

	// geocoding outside a session shares one coordinator
	geocodeCoordinator := services.NewSearchCoordinator(geolocationProvider, geolocationProvider, coordinatorCfg, metrics)

	// photos are proxied so the provider key stays server side
	var photoHandler *handlers.PhotoHandler
	if fetcher, ok := geolocationProvider.(providers.PhotoFetcher); ok {
		photoHandler = handlers.NewPhotoHandler(fetcher)
	}

	// Initialize handlers
	router := routes.NewRouter(
		handlers.NewGeolocationHandler(geocodeCoordinator),
		photoHandler,
		handlers.NewSessionHandler(sessionManager),
		handlers.NewSearchHistoryHandler(historyService),
		handlers.NewSSEHandler(sessionManager, eventBus),
		middleware.NewCacheMiddleware(cacheProvider, cfg.Search.CacheTTL),
		cfg.Server.AllowedOrigins,
		metrics,
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// end sessions first so open streams see their channels close
	sessionManager.Shutdown(shutdownCtx)
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing event bus")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}
