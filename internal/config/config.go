package config

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

type Config struct {
	HTTPAddr string

	StorageBackend Backend
	DatabaseDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	SessionBuffer int
	LogLevel      string
}

var ErrMissingSecret = errors.New("JWT_SECRET must be set for the postgres backend")

func defaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("storage_backend", string(BackendPostgres))
	v.SetDefault("database_dsn", "host=localhost user=user password=password dbname=launcherdb port=5432 sslmode=disable")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "gamelauncher")
	v.SetDefault("token_ttl", 72*time.Hour)
	v.SetDefault("session_buffer", SessionSendBuffer)
	v.SetDefault("log_level", "info")
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded")
	}

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		HTTPAddr:       v.GetString("http_addr"),
		StorageBackend: Backend(v.GetString("storage_backend")),
		DatabaseDSN:    v.GetString("database_dsn"),
		RedisAddr:      v.GetString("redis_addr"),
		RedisPassword:  v.GetString("redis_password"),
		RedisDB:        v.GetInt("redis_db"),
		JWTSecret:      v.GetString("jwt_secret"),
		JWTIssuer:      v.GetString("jwt_issuer"),
		TokenTTL:       v.GetDuration("token_ttl"),
		SessionBuffer:  v.GetInt("session_buffer"),
		LogLevel:       v.GetString("log_level"),
	}

	if cfg.StorageBackend != BackendMemory {
		cfg.StorageBackend = BackendPostgres
		if cfg.JWTSecret == "" {
			return nil, ErrMissingSecret
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-only-secret"
	}
	if cfg.SessionBuffer <= 0 {
		cfg.SessionBuffer = SessionSendBuffer
	}
	return cfg, nil
}
