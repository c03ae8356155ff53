package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	RedisAddr   string // empty disables the fast cache
	LogMode     string
	ResponseTTL time.Duration // response-cache TTL for default queries
	EnrichLimit int           // max detail fetches per home "latest" list
}

// LoadConfig reads configuration from the environment, with a .env file
// as optional local override. Missing values fall back to dev defaults.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:    envOr("DRAMAHUB_HTTP_ADDR", ":8080"),
		RedisAddr:   os.Getenv("DRAMAHUB_REDIS_ADDR"),
		LogMode:     envOr("DRAMAHUB_LOG_MODE", "dev"),
		ResponseTTL: envDuration("DRAMAHUB_RESPONSE_TTL", 5*time.Minute),
		EnrichLimit: envInt("DRAMAHUB_ENRICH_LIMIT", 15),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
