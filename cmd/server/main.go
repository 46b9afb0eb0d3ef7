package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/oswaldlabs/streamlog/internal/record"
	"github.com/oswaldlabs/streamlog/internal/rule"
	"github.com/oswaldlabs/streamlog/pkg/cache"
	"github.com/oswaldlabs/streamlog/pkg/config"
	"github.com/oswaldlabs/streamlog/pkg/database"
	"github.com/oswaldlabs/streamlog/pkg/logger"
	"github.com/oswaldlabs/streamlog/pkg/metrics"
	"github.com/oswaldlabs/streamlog/pkg/middleware"
	"github.com/oswaldlabs/streamlog/pkg/migrations"
)

func main() {
	ctx := context.Background()

	log := logger.New("info", "streamlog")
	log.Info("starting streamlog server")

	cfg, err := config.LoadWithVault(ctx, log)
	if err != nil {
		log.Fatal("failed to load configuration", err)
	}

	// Connect to database
	log.Info("connecting to database")
	db, err := database.NewPostgres(database.Config{
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("failed to connect to database", err)
	}
	defer db.Close()

	if err := db.Health(ctx); err != nil {
		log.Fatal("database health check failed", err)
	}
	log.Info("database connected successfully")

	// Run schema migrations
	runner := database.NewMigrationRunner(db, log)
	if err := runner.RunMigrations(migrations.FS, migrations.Dir); err != nil {
		log.Fatal("failed to run migrations", err)
	}
	log.Info("schema migrations applied")

	// Initialize cache (Redis with in-memory fallback)
	log.Info("initializing cache system")
	var (
		cacheInstance cache.Cache
		redisClient   *redis.Client
	)
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Client:       redisClient,
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
		})
		if err != nil {
			log.Warnf("redis connection failed, falling back to in-memory cache: %v", err)
			redisClient = nil
			cacheInstance = cache.NewInMemoryCache()
		} else {
			log.Info("redis cache initialized successfully")
			cacheInstance = redisCache
		}
	} else {
		log.Info("redis not configured, using in-memory cache")
		cacheInstance = cache.NewInMemoryCache()
	}
	defer cacheInstance.Close()

	// Initialize exclusion rule module
	log.Info("initializing rule module")
	ruleModule := rule.NewModule(db, cacheInstance, cfg.Stream.RuleCacheTTL, log)

	// Initialize metrics
	streamMetrics := metrics.NewStreamMetrics()

	// Initialize record module
	log.Info("initializing record module")
	recordModule := record.NewModule(db, log, record.ModuleConfig{
		Rules:          ruleModule.Service,
		Metrics:        streamMetrics,
		SearchField:    cfg.Stream.SearchField,
		DefaultPerPage: cfg.Stream.DefaultPerPage,
		LogCronEvents:  cfg.Stream.LogCronEvents,
		Location:       cfg.Stream.Location(),
	})

	// Publish inserted records when a channel is configured
	if cfg.Stream.NotifyChannel != "" && redisClient != nil {
		publisher := record.RedisPublisher(redisClient, cfg.Stream.NotifyChannel, log)
		if err := recordModule.Service.Notifier().Register("redis", publisher); err != nil {
			log.Fatal("failed to register redis publisher", err)
		}
		log.WithField("channel", cfg.Stream.NotifyChannel).Info("redis record publisher registered")
	}

	log.Info("all modules initialized successfully")

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(record.ActorMiddleware())

	// Metrics and health endpoints
	metricsHandler, err := metrics.NewHandler(streamMetrics, db)
	if err != nil {
		log.Fatal("failed to initialize metrics handler", err)
	}
	metricsHandler.RegisterRoutes(router)
	log.Info("metrics endpoints registered at /metrics and /health")

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		recordModule.Handler.RegisterRoutes(v1)
		v1.GET("/rules", ruleModule.Handler.ListRules)
	}

	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("address", srv.Addr).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", err)
		}
	}()

	log.WithField("address", srv.Addr).
		WithField("environment", cfg.App.Environment).
		Info("server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", err)
	}

	log.Info("server stopped")
}
