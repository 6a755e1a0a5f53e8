package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Oracle    OracleConfig
	Database  DatabaseConfig
	Retrieval RetrievalConfig
	Cache     CacheConfig
	Shop      ShopConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OracleConfig selects and configures the LLM provider
type OracleConfig struct {
	Provider            string        `mapstructure:"provider"` // "openai" or "gemini"
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	ChatModel           string        `mapstructure:"chat_model"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second"`
	Burst               int           `mapstructure:"burst"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig holds the catalog/cart store connection settings
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // "postgres" or "sqlite"
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"` // empty picks disable for localhost, require otherwise
	Path         string `mapstructure:"path"`    // sqlite file
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RetrievalConfig tunes hybrid search
type RetrievalConfig struct {
	RRFK           int `mapstructure:"rrf_k"`
	CandidateLimit int `mapstructure:"candidate_limit"`
	ResultLimit    int `mapstructure:"result_limit"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type string        `mapstructure:"type"` // "memory" or "none"
	TTL  time.Duration `mapstructure:"ttl"`
}

// ShopConfig holds the clerk persona and checkout settings
type ShopConfig struct {
	Name          string `mapstructure:"name"`
	DefaultUserID int64  `mapstructure:"default_user_id"`
	DeliveryDays  int    `mapstructure:"delivery_days"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from path, or from the default search paths when path is empty
func LoadFile(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/shopclerk/")
	}

	// Environment variable settings
	v.SetEnvPrefix("SHOPCLERK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values. Every key needs a default so
// AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("oracle.provider", "openai")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.chat_model", "gpt-4o-mini")
	v.SetDefault("oracle.embedding_model", "text-embedding-3-small")
	v.SetDefault("oracle.embedding_dimensions", 1536)
	v.SetDefault("oracle.requests_per_second", 5.0)
	v.SetDefault("oracle.burst", 10)
	v.SetDefault("oracle.timeout", "60s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "shop")
	v.SetDefault("database.sslmode", "")
	v.SetDefault("database.path", "shopclerk.db")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("retrieval.rrf_k", 60)
	v.SetDefault("retrieval.candidate_limit", 20)
	v.SetDefault("retrieval.result_limit", 5)

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "24h")

	v.SetDefault("shop.name", "💪 Healthy & Nutrition Shop 💪")
	v.SetDefault("shop.default_user_id", 1)
	v.SetDefault("shop.delivery_days", 3)

	v.SetDefault("ratelimit.per_ip", 60)

	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Oracle.Provider != "openai" && config.Oracle.Provider != "gemini" {
		return fmt.Errorf("oracle provider must be 'openai' or 'gemini', got: %s", config.Oracle.Provider)
	}

	if config.Oracle.APIKey == "" {
		return fmt.Errorf("oracle API key is required (set SHOPCLERK_ORACLE_API_KEY)")
	}

	if config.Oracle.EmbeddingDimensions <= 0 {
		return fmt.Errorf("oracle embedding dimensions must be positive, got: %d", config.Oracle.EmbeddingDimensions)
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return fmt.Errorf("database driver must be 'postgres' or 'sqlite', got: %s", config.Database.Driver)
	}

	if config.Database.Driver == "sqlite" && config.Database.Path == "" {
		return fmt.Errorf("database path is required when driver is 'sqlite'")
	}

	if config.Retrieval.RRFK <= 0 || config.Retrieval.CandidateLimit <= 0 || config.Retrieval.ResultLimit <= 0 {
		return fmt.Errorf("retrieval rrf_k, candidate_limit and result_limit must be positive")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "none" {
		return fmt.Errorf("cache type must be 'memory' or 'none', got: %s", config.Cache.Type)
	}

	if config.Shop.DeliveryDays < 0 {
		return fmt.Errorf("shop delivery_days must not be negative, got: %d", config.Shop.DeliveryDays)
	}

	return nil
}

// DSN builds the Postgres connection string. TLS is disabled only for localhost
// unless SSLMode says otherwise.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
		if d.Host == "localhost" || d.Host == "127.0.0.1" {
			sslMode = "disable"
		}
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, fmt.Sprintf("%d", d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}
