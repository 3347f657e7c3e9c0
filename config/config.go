package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries everything main needs to wire the service. All values
// come from the environment; godotenv is loaded by main before this
// runs.
type Config struct {
	DatabaseURL    string
	Port           string
	MetricsPort    string
	RedisAddr      string // empty disables the settings cache
	ServiceToken   string
	AllowedOrigins string

	// InitialCreditAllotment is the baseline written when the first
	// grant creates a user_credits row.
	InitialCreditAllotment int

	// CodeBackfillInterval is how often the worker sweeps for users
	// without a referral code. Zero disables the worker.
	CodeBackfillInterval time.Duration
}

func Load() Config {
	return Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		Port:                   getEnv("PORT", "5300"),
		MetricsPort:            getEnv("METRICS_PORT", "9090"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		ServiceToken:           os.Getenv("REWARD_SERVICE_TOKEN"),
		AllowedOrigins:         getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		InitialCreditAllotment: getEnvInt("INITIAL_CREDIT_ALLOTMENT", 50),
		CodeBackfillInterval:   getEnvDuration("CODE_BACKFILL_INTERVAL", 6*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
