package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"agenda-medica-server/internal/config"
	"agenda-medica-server/internal/routes"
	"agenda-medica-server/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Load environment variables; a missing .env just means the environment
	// is already set.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded", zap.Error(err))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("error loading config", zap.Error(err))
	}

	ctx := context.Background()

	st, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("error initializing storage backend", zap.Error(err))
	}

	if err := st.EnsureAdmin(ctx); err != nil {
		logger.Fatal("error ensuring admin user", zap.Error(err))
	}

	// Initialize Gin router
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, st, cfg)

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("server starting",
		zap.String("addr", serverAddr),
		zap.String("backend", cfg.StorageBackend),
	)
	if err := router.Run(serverAddr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

// buildStore selects and initializes the configured persistence backend.
func buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendRemote:
		db, err := store.OpenRemoteDB(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return store.NewRemoteStore(db, logger, cfg.AdminPassword), nil

	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}

		local := store.NewLocalStore(store.NewRedisKV(client), logger, store.LocalOptions{
			KeyPrefix:        cfg.Redis.KeyPrefix,
			AdminPassword:    cfg.AdminPassword,
			SimulatedLatency: time.Duration(cfg.SimulatedLatencyMS) * time.Millisecond,
		})
		if err := local.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate snapshots: %w", err)
		}
		if cfg.SeedDemoData {
			if err := local.SeedDemoData(ctx); err != nil {
				return nil, fmt.Errorf("seed demo data: %w", err)
			}
		}
		return local, nil
	}
}
