// Package config loads service settings from an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Logging      LoggingConfig      `yaml:"logging"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Classifier   ClassifierConfig   `yaml:"classifier"`
	Wiki         WikiConfig         `yaml:"wiki"`
	Auth         AuthConfig         `yaml:"auth"`
	Presentation PresentationConfig `yaml:"presentation"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr               string `yaml:"addr"`
	ReadHeaderTimeoutS int    `yaml:"read_header_timeout_sec"`
	ShutdownTimeoutS   int    `yaml:"shutdown_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DatabaseConfig holds the identification history store settings.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds the lookup cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
}

// ClassifierConfig holds the model service address.
type ClassifierConfig struct {
	Addr string `yaml:"addr"`
}

// WikiConfig holds the encyclopedia lookup settings.
type WikiConfig struct {
	Endpoint             string `yaml:"endpoint"`
	ThumbnailSize        int    `yaml:"thumbnail_size"`
	UserAgent            string `yaml:"user_agent"`
	TimeoutSec           int    `yaml:"timeout_sec"` // 0 keeps the transport defaults
	RequireBatchComplete bool   `yaml:"require_batch_complete"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	JWTAudience    string `yaml:"jwt_audience"`
	JWTIssuer      string `yaml:"jwt_issuer"`
	AllowAnonymous bool   `yaml:"allow_anonymous"`
}

// PresentationConfig holds view rendering settings.
type PresentationConfig struct {
	Locale string `yaml:"locale"` // BCP 47 tag used for title casing
}

// Load reads the file named by CONFIG_FILE (if any), applies environment overrides,
// fills defaults and validates the result.
func Load() (Config, error) {
	var cfg Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	data = expandEnvVars(data)
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv lets the environment override file values.
func (c *Config) applyEnv() {
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.CacheTTLSec, "CACHE_TTL_SEC")
	setString(&c.Classifier.Addr, "CLASSIFIER_ADDR")
	setString(&c.Wiki.Endpoint, "WIKI_ENDPOINT")
	setInt(&c.Wiki.ThumbnailSize, "WIKI_THUMBNAIL_SIZE")
	setInt(&c.Wiki.TimeoutSec, "WIKI_TIMEOUT_SEC")
	setBool(&c.Wiki.RequireBatchComplete, "WIKI_REQUIRE_BATCH_COMPLETE")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.JWTAudience, "JWT_AUDIENCE")
	setString(&c.Auth.JWTIssuer, "JWT_ISSUER")
	setBool(&c.Auth.AllowAnonymous, "AUTH_ALLOW_ANONYMOUS")
	setString(&c.Presentation.Locale, "LOCALE")
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadHeaderTimeoutS <= 0 {
		c.HTTP.ReadHeaderTimeoutS = 10
	}
	if c.HTTP.ShutdownTimeoutS <= 0 {
		c.HTTP.ShutdownTimeoutS = 15
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "host=postgres user=postgres password=postgres dbname=flowers port=5432 sslmode=disable"
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Redis.CacheTTLSec <= 0 {
		c.Redis.CacheTTLSec = 24 * 60 * 60
	}
	if c.Classifier.Addr == "" {
		c.Classifier.Addr = "classifier:50051"
	}
	if c.Presentation.Locale == "" {
		c.Presentation.Locale = "en"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) exceeds database.max_open_conns (%d)", c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Wiki.ThumbnailSize < 0 {
		return fmt.Errorf("wiki.thumbnail_size must not be negative, got %d", c.Wiki.ThumbnailSize)
	}
	if c.Wiki.TimeoutSec < 0 {
		return fmt.Errorf("wiki.timeout_sec must not be negative, got %d", c.Wiki.TimeoutSec)
	}
	if c.Auth.JWTSecret == "" && !c.Auth.AllowAnonymous {
		return fmt.Errorf("auth.jwt_secret is required unless auth.allow_anonymous is set")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			*dst = b
		}
	}
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
