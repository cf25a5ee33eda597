package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"property-catalog/internal/config"
	"property-catalog/internal/delivery/middleware"
	"property-catalog/internal/delivery/router"
	"property-catalog/internal/infrastructure/cache"
	"property-catalog/internal/infrastructure/metrics"
	"property-catalog/internal/repository"
	"property-catalog/internal/service"
	"property-catalog/internal/store"
	"property-catalog/internal/view"
	"property-catalog/pkg/database"
	"property-catalog/pkg/logger"
	"property-catalog/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	redisClient "github.com/go-redis/redis/v8"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	cfg := config.MustLoadConfig()

	loggers, err := logger.SetupLogger(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	loggers.InfoLogger.Info("Logger initialized")

	tracerProvider := setupTracer(cfg, loggers)
	defer shutdownTracer(tracerProvider, loggers)

	handlerMetrics := metrics.NewHandlerMetrics(prometheus.DefaultRegisterer)
	serviceMetrics := metrics.NewServiceMetrics(prometheus.DefaultRegisterer)
	repositoryMetrics := metrics.NewRepositoryMetrics(prometheus.DefaultRegisterer)
	loggers.InfoLogger.Info("Prometheus metrics initialized")

	repo, cleanupRepo := setupRepository(cfg, loggers, repositoryMetrics)
	defer cleanupRepo()

	redisCache, cleanupRedis := setupRedis(cfg, loggers)
	defer cleanupRedis()
	if redisCache != nil {
		repo = repository.NewCachedRepository(repo, redisCache, cfg.Redis.TTL, repositoryMetrics)
	}

	catalogService := service.NewCatalogService(store.New(repo), view.Settings{
		Currency:         cfg.Site.Currency,
		PlaceholderImage: cfg.Site.PlaceholderImage,
		FeaturedCount:    cfg.Site.FeaturedCount,
		ContactPhone:     cfg.Site.ContactPhone,
		PublicURL:        cfg.Site.PublicURL,
	}, serviceMetrics)
	loggers.InfoLogger.Info("Service and repository layers initialized", "backend", cfg.Backend.Driver)

	bootstrapCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.Timeout)
	if err := catalogService.Bootstrap(bootstrapCtx); err != nil {
		loggers.ErrorLogger.Warn("Initial catalog fetch failed, serving the error page until a retry succeeds", utils.Err(err))
	} else {
		loggers.InfoLogger.Info("Catalog loaded")
	}
	cancel()

	auth := middleware.NewAuthenticator(cfg.Admin.Password, cfg.Admin.Secret, cfg.Admin.SessionTTL)

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	router.SetupCatalogRoutes(r, catalogService, auth, loggers, handlerMetrics)
	router.SetupAdminRoutes(r, catalogService, auth, loggers, handlerMetrics)
	loggers.InfoLogger.Info("Router and routes initialized")

	r.Handle("/metrics", handlerMetrics.HTTPHandler())

	chain := alice.New(
		middleware.SecureHeaders,
		middleware.LogRequests(loggers),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	).Then(r)

	server := startServer(cfg, chain, loggers)

	waitForShutdown(server, loggers)
}

func setupRepository(cfg *config.Config, loggers *logger.Loggers, repositoryMetrics *metrics.RepositoryMetrics) (repository.Repository, func()) {
	switch cfg.Backend.Driver {
	case "postgres":
		db := openDatabase("pgx", cfg.Postgres.URL, loggers)
		return repository.NewPostgresRepository(db, repositoryMetrics), closeDatabase(db, loggers)
	case "mysql":
		db := openDatabase("mysql", cfg.MySQLDSN(), loggers)
		return repository.NewMysqlRepository(db, repositoryMetrics), closeDatabase(db, loggers)
	default:
		client := &http.Client{Timeout: cfg.HTTP.Timeout}
		repo := repository.NewRestRepository(repository.RestOptions{
			URL:   cfg.Rest.URL,
			Key:   cfg.Rest.Key,
			Table: cfg.Rest.Table,
		}, client, repositoryMetrics)
		loggers.InfoLogger.Info("Using REST backend", "url", cfg.Rest.URL, "table", cfg.Rest.Table)
		return repo, func() {}
	}
}

func openDatabase(driver, dsn string, loggers *logger.Loggers) *sql.DB {
	db, err := database.NewDatabase(driver, dsn)
	if db == nil {
		loggers.ErrorLogger.Error("Failed to open database", "driver", driver, utils.Err(err))
		os.Exit(1)
	}
	if err != nil {
		// the catalog shows a retryable error page while the database is down
		loggers.ErrorLogger.Warn("Database is not reachable yet", "driver", driver, utils.Err(err))
		return db
	}
	loggers.InfoLogger.Info("Connected to database", "driver", driver)
	return db
}

func closeDatabase(db *sql.DB, loggers *logger.Loggers) func() {
	return func() {
		if err := db.Close(); err != nil {
			loggers.ErrorLogger.Error("Failed to close database connection", utils.Err(err))
		}
	}
}

func setupRedis(cfg *config.Config, loggers *logger.Loggers) (cache.Cache, func()) {
	if !cfg.Redis.Enabled {
		return nil, func() {}
	}

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			loggers.ErrorLogger.Error("Failed to close Redis client", utils.Err(err))
		}
	}

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		loggers.ErrorLogger.Warn("Redis is not reachable, running without the snapshot cache", utils.Err(err))
		cleanup()
		return nil, func() {}
	}
	loggers.InfoLogger.Info("Connected to Redis")

	return cache.NewRedisCache(rdb), cleanup
}

func setupTracer(cfg *config.Config, loggers *logger.Loggers) *sdktrace.TracerProvider {
	if !cfg.Tracing.Enabled {
		return nil
	}

	tracerProvider, err := metrics.InitTracer(
		cfg.Tracing.ServiceName,
		cfg.Tracing.Environment,
		cfg.Tracing.Version,
		cfg.Tracing.Endpoint,
	)
	if err != nil {
		loggers.ErrorLogger.Warn("Tracing disabled", utils.Err(err))
		return nil
	}
	loggers.InfoLogger.Info("OpenTelemetry Tracer initialized")
	return tracerProvider
}

func shutdownTracer(tp *sdktrace.TracerProvider, loggers *logger.Loggers) {
	if tp == nil {
		return
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		loggers.ErrorLogger.Error("Failed to shut down tracer provider", utils.Err(err))
	}
}

func startServer(cfg *config.Config, handler http.Handler, loggers *logger.Loggers) *http.Server {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
	}

	go func() {
		loggers.InfoLogger.Info("Starting server", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			loggers.ErrorLogger.Error("Failed to start server", utils.Err(err))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(server *http.Server, loggers *logger.Loggers) {
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	<-shutdownCh
	loggers.InfoLogger.Info("Shutdown signal received, shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		loggers.ErrorLogger.Error("Server forced to shutdown", utils.Err(err))
	} else {
		loggers.InfoLogger.Info("Server shutdown gracefully")
	}
}
