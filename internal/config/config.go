package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"tradi/internal/models"

	"github.com/joho/godotenv"
)

const (
	bybitMainnetURL = "https://api.bybit.com"
	bybitTestnetURL = "https://api-testnet.bybit.com"
)

// Config holds application configuration
type Config struct {
	Env string

	// Server
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Pipeline
	PipelineAPIKey string

	// Redis
	RedisURL string
	CacheTTL time.Duration

	// Catalogue sync
	BybitBaseURL     string
	QuoteCoin        string
	Category         string
	InstrumentsLimit int
	Exchange         models.Exchange
	RequestTimeout   time.Duration
	SyncSchedule     string
	SyncLockTTL      time.Duration
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "tradi"),
		DBPassword: getEnv("DB_PASSWORD", "tradi"),
		DBName:     getEnv("DB_NAME", "tradi"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:        getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		JWTExpirationDur: getDuration("JWT_EXPIRES_IN", 24*time.Hour),

		PipelineAPIKey: os.Getenv("PIPELINE_API_KEY"),

		RedisURL: os.Getenv("REDIS_URL"),
		CacheTTL: getDuration("CACHE_TTL", 5*time.Minute),

		QuoteCoin:        getEnv("CATALOGUE_QUOTE_COIN", "USDT"),
		Category:         getEnv("CATALOGUE_CATEGORY", "linear"),
		InstrumentsLimit: getInt("CATALOGUE_LIMIT", 1000),
		RequestTimeout:   getDuration("REQUEST_TIMEOUT", 30*time.Second),
		SyncLockTTL:      getDuration("CATALOGUE_LOCK_TTL", 10*time.Minute),
	}

	// An explicitly empty schedule disables the in-process scheduler.
	if schedule, ok := os.LookupEnv("CATALOGUE_SCHEDULE"); ok {
		config.SyncSchedule = schedule
	} else {
		config.SyncSchedule = "@every 5m"
	}

	config.BybitBaseURL = os.Getenv("BYBIT_BASE_URL")
	if config.BybitBaseURL == "" {
		config.BybitBaseURL = bybitMainnetURL
		if testnet, _ := strconv.ParseBool(os.Getenv("BYBIT_TESTNET")); testnet {
			config.BybitBaseURL = bybitTestnetURL
		}
	}

	config.Exchange = models.Exchange(getEnv("CATALOGUE_EXCHANGE", string(models.ExchangeBybit)))
	if !config.Exchange.Valid() {
		return nil, fmt.Errorf("unknown CATALOGUE_EXCHANGE %q", config.Exchange)
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}
