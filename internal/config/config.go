package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port string
	Env  string

	RedisAddr string
	RedisPass string
	RedisDB   int

	// Static bearer token for the admin withdrawal endpoints.
	AdminAPIKey string

	// Hex server seed for grid derivation. Generated at startup when empty.
	ServerSeed string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
		ServerSeed:  getEnv("SERVER_SEED", ""),
	}

	if cfg.Env == "production" && cfg.AdminAPIKey == "" {
		return nil, fmt.Errorf("ADMIN_API_KEY must be set in production")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
