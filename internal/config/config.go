package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the checkout backend.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	DocumentStore DocumentStoreConfig
	Cache         CacheConfig
	Provider      ProviderConfig
	Invoicing     InvoicingConfig
	Pricing       PricingConfig
	JWT           JWTConfig
	CORS          CORSConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds Postgres configuration.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// DocumentStoreConfig holds MongoDB configuration for cart documents.
type DocumentStoreConfig struct {
	URI      string
	Database string
}

// CacheConfig holds Redis configuration for the provider cart cache.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ProviderConfig holds trip-booking provider gateway configuration.
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// InvoicingConfig holds external invoicing service configuration.
type InvoicingConfig struct {
	Environment   string // "sandbox" or "production"
	APIKey        string
	InvoiceExpiry time.Duration // payment window written onto held invoices
}

// PricingConfig holds the retail price adjustment applied at search time
// and re-applied when invoicing falls back to raw charge totals.
type PricingConfig struct {
	MarkupPercent float64 // e.g. 4.5 means +4.5%
	RoundToCents  int64   // round adjusted totals up to this increment
}

// JWTConfig holds JWT verification configuration for the optional auth
// context middleware.
type JWTConfig struct {
	Secret string
}

// CORSConfig holds CORS-related configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		DocumentStore: DocumentStoreConfig{
			URI:      getEnv("MONGODB_URI", ""),
			Database: getEnv("MONGODB_DATABASE", "checkout"),
		},
		Cache: CacheConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvAsInt("CART_CACHE_TTL_SECONDS", 120)) * time.Second,
		},
		Provider: ProviderConfig{
			BaseURL: getEnv("PROVIDER_BASE_URL", ""),
			APIKey:  getEnv("PROVIDER_API_KEY", ""),
			Timeout: time.Duration(getEnvAsInt("PROVIDER_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Invoicing: InvoicingConfig{
			Environment:   getEnv("INVOICING_ENVIRONMENT", "sandbox"),
			APIKey:        getEnv("INVOICING_API_KEY", ""),
			InvoiceExpiry: time.Duration(getEnvAsInt("INVOICE_EXPIRY_HOURS", 48)) * time.Hour,
		},
		Pricing: PricingConfig{
			MarkupPercent: getEnvAsFloat("PRICING_MARKUP_PERCENT", 4.5),
			RoundToCents:  int64(getEnvAsInt("PRICING_ROUND_TO_CENTS", 100)),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Agent-Mode", "X-Agent-Id", "X-Agent-Email"}),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.DocumentStore.URI == "" {
		return fmt.Errorf("MONGODB_URI is required")
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("PROVIDER_BASE_URL is required")
	}

	if c.Server.Environment == "production" && c.Invoicing.APIKey == "" {
		return fmt.Errorf("INVOICING_API_KEY is required in production mode")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
