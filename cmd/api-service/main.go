package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/gigmarket-be/internal/api/auth"
	"github.com/cuongbtq/gigmarket-be/internal/api/handler"
	"github.com/cuongbtq/gigmarket-be/internal/api/ratelimit"
	"github.com/cuongbtq/gigmarket-be/internal/api/router"
	"github.com/cuongbtq/gigmarket-be/internal/config"
	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/cuongbtq/gigmarket-be/internal/lifecycle"
	"github.com/cuongbtq/gigmarket-be/internal/storage/memory"
	"github.com/cuongbtq/gigmarket-be/internal/storage/postgres"
	"github.com/cuongbtq/gigmarket-be/shared/logger"
	"github.com/cuongbtq/gigmarket-be/shared/postgresql"
	"github.com/cuongbtq/gigmarket-be/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("database_driver", cfg.Database.Driver),
	)

	// Initialize job repository
	repo, healthCheck, closeRepo, err := initRepository(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer closeRepo()

	// Initialize Redis client for rate limiting
	var limiter *ratelimit.Limiter
	if cfg.Redis.Enabled() {
		redisClient, err := initRedis(&cfg.Redis, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()
		limiter = ratelimit.NewLimiter(redisClient.GetClient(), appLogger.Logger)
	} else {
		appLogger.Warn("Redis not configured, rate limiting disabled")
	}

	manager := lifecycle.NewManager(repo, appLogger.Logger)

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, manager, healthCheck, limiter)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	appLogger.Info("Shutting down server...")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initRepository opens the configured store and returns its health probe and closer
func initRepository(cfg *config.DatabaseConfig, logger *slog.Logger) (domain.JobRepository, func(context.Context) error, func(), error) {
	if cfg.IsMemory() {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore(), nil, func() {}, nil
	}

	dbClient, err := initPostgreSQL(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := postgres.Migrate(ctx, dbClient.GetDB(), logger); err != nil {
			dbClient.Close()
			return nil, nil, nil, err
		}
	}

	closeDB := func() {
		if err := dbClient.Close(); err != nil {
			logger.Error("Failed to close database", slog.Any("error", err))
		}
	}
	return postgres.NewStore(dbClient.GetDB(), logger), dbClient.HealthCheck, closeDB, nil
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRedis initializes the Redis client
func initRedis(cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	return redis.NewClient(&redis.Config{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, manager *lifecycle.Manager, healthCheck func(context.Context) error, limiter *ratelimit.Limiter) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize handler dependencies
	handlerDeps := &handler.Dependencies{
		Logger:      logger,
		Manager:     manager,
		HealthCheck: healthCheck,
	}

	// Setup router
	return router.SetupRouter(handlerDeps, router.Options{
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Limiter:  limiter,
		CreateRule: ratelimit.Rule{
			Name:   "create_job",
			Limit:  cfg.RateLimit.CreateJob.Limit,
			Window: cfg.RateLimit.CreateJob.Window,
		},
		ApplyRule: ratelimit.Rule{
			Name:   "apply",
			Limit:  cfg.RateLimit.Apply.Limit,
			Window: cfg.RateLimit.Apply.Window,
		},
	})
}
