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

	"github.com/LucaCasamayor/teatro-gran-espectaculo/api/routes"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/clock"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/lifecycle"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/notifications"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/config"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/database"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/middleware"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/pkg/logger"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()

	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	systemClock := clock.NewSystem()

	// Rate limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && db.Redis != nil {
		rateLimiterConfig := &ratelimit.Config{
			Enabled:             cfg.RateLimit.Enabled,
			WindowDuration:      cfg.RateLimit.WindowDuration,
			DefaultRequests:     cfg.RateLimit.DefaultRequests,
			PublicRequests:      cfg.RateLimit.PublicRequests,
			ReservationRequests: cfg.RateLimit.ReservationRequests,
			AdminRequests:       cfg.RateLimit.AdminRequests,
			WhitelistedIPs:      cfg.RateLimit.WhitelistedIPs,
		}
		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), rateLimiterConfig)
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("reservation_requests", cfg.RateLimit.ReservationRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Kafka lifecycle event producer
	var producer *notifications.Producer
	if cfg.Kafka.Enabled {
		producerConfig := &notifications.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			RetryMax: 3,
			Timeout:  10 * time.Second,
		}
		producer, err = notifications.NewProducer(producerConfig, appLogger)
		if err != nil {
			appLogger.Error("Failed to initialize Kafka producer", slog.Any("error", err))
			appLogger.Info("Continuing without lifecycle notifications")
			producer = nil
		} else {
			defer producer.Close()
			appLogger.Info("Kafka lifecycle producer initialized",
				slog.String("topic", cfg.Kafka.Topic),
			)
		}
	}

	// Router
	appRouter := routes.NewRouter(cfg, db, systemClock, appLogger)
	if producer != nil {
		appRouter.SetPublisher(producer)
	}
	engine := setupEngine(appLogger, rateLimiter)
	appRouter.SetupRoutes(engine)

	// Lifecycle scheduler: finishes events whose end time has passed
	if cfg.Scheduler.Enabled {
		scheduler := lifecycle.NewScheduler(appRouter.EventService(), systemClock, appLogger, cfg.Scheduler.FinishInterval)
		if producer != nil {
			scheduler.SetNotifier(producer)
		}
		scheduler.Start(context.Background())
		defer scheduler.Stop()
		appLogger.Info("Lifecycle scheduler started",
			slog.Duration("interval", cfg.Scheduler.FinishInterval),
		)
	}

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        engine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("version", cfg.APIVersion),
			slog.Bool("redis_cache", db.Redis != nil),
			slog.Bool("rate_limiting", rateLimiter != nil),
			slog.Bool("kafka", producer != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupEngine(appLogger *logger.Logger, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()

	engine.Use(middleware.RequestLogger(appLogger), gin.Recovery())
	engine.Use(middleware.CORS())

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
	}

	return engine
}
