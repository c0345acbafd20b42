package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KEYWORDLENS_"

// loadDotEnv loads .env from the working directory if present.
// Variables already set in the environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overrides recognized settings from KEYWORDLENS_* variables.
// Malformed numeric values are ignored.
func (c *Config) ApplyEnv() {
	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Path = getEnv("STORAGE_PATH", c.Storage.Path)
	c.Storage.DSN = getEnv("POSTGRES_DSN", c.Storage.DSN)
	c.Storage.QueryTimeout = getEnvDuration("STORAGE_QUERY_TIMEOUT", c.Storage.QueryTimeout)

	c.Embedding.Driver = getEnv("EMBEDDING_DRIVER", c.Embedding.Driver)
	c.Embedding.Host = getEnv("EMBEDDING_HOST", c.Embedding.Host)
	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Token = getEnv("EMBEDDING_TOKEN", c.Embedding.Token)
	c.Embedding.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", c.Embedding.Dimensions)
	c.Embedding.Timeout = getEnvDuration("EMBEDDING_TIMEOUT", c.Embedding.Timeout)

	c.Cache.RedisAddress = getEnv("REDIS_ADDRESS", c.Cache.RedisAddress)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)

	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
