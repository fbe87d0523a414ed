package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamelauncher/backend/internal/api/handler"
	"gamelauncher/backend/internal/auth"
	"gamelauncher/backend/internal/chathub"
	"gamelauncher/backend/internal/config"
	"gamelauncher/backend/internal/conversation"
	"gamelauncher/backend/internal/logging"
	"gamelauncher/backend/internal/storage"
	"gamelauncher/backend/internal/storage/memory"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPostgres(cfg *config.Config, log *slog.Logger) (*storage.Service, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	s := storage.NewStorageService(db, rdb)
	if err := s.Migrate(); err != nil {
		return nil, err
	}

	log.Info("database and redis connections established, migrations complete")
	return s, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appLogger := logging.New(cfg.LogLevel)
	appLogger.Info("starting launcher realtime backend", "backend", cfg.StorageBackend, "addr", cfg.HTTPAddr)

	// 1. Storage
	var (
		store    storage.Storage
		presence storage.PresenceStore
	)
	switch cfg.StorageBackend {
	case config.BackendMemory:
		mem := memory.NewStore()
		store, presence = mem, mem
	default:
		pg, err := setupPostgres(cfg, appLogger)
		if err != nil {
			appLogger.Error("storage setup failed", "err", err)
			os.Exit(1)
		}
		store, presence = pg, pg
	}

	// 2. Realtime layer
	registry := chathub.NewRegistry(presence, appLogger)
	router := chathub.NewRouter(registry)
	svc := conversation.NewService(store, router, appLogger)
	hub := chathub.NewManagerService(registry, router, svc, appLogger, cfg.SessionBuffer)

	// 3. HTTP
	gin.SetMode(gin.ReleaseMode)
	authn := auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	h := handler.NewHandler(hub, authn, appLogger)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        h.NewRouter(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("http server stopped", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("graceful shutdown failed", "err", err)
	}
	appLogger.Info("server stopped")
}
