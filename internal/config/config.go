// Package config handles configuration loading for the MSV3 client.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows wholesaler
// passwords and database credentials to be injected at runtime.
//
// # Configuration Sections
//
//   - wholesalers: MSV3 endpoints (base URL, protocol version, credentials)
//   - client: HTTP settings shared by all wholesalers
//   - cache: availability cache TTL and persistence
//   - audit: request log file and body cap
//   - storage: persistence backend (memory, mongodb or postgres)
//   - telemetry: tracing and metrics export
//   - log: level and format of the process log
//
// # Example Configuration
//
//	wholesalers:
//	  - id: phoenix
//	    name: PHOENIX Mannheim
//	    version: 2
//	    baseUrl: https://msv3.example.de/msv3
//	    user: ${PHOENIX_USER}
//	    secret: ${PHOENIX_SECRET}
//	    customerNumber: "123456"
//	    priority: 1
//
//	cache:
//	  ttl: 5m
//
//	audit:
//	  store: true # default
//	  file:
//	    path: /var/log/msv3/audit.log
//
//	storage:
//	  type: postgres
//	  postgres:
//	    url: ${DATABASE_URL}
//
// See [Load] for loading configuration from a file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Wholesalers []WholesalerConfig `yaml:"wholesalers" validate:"dive"`
	Client      ClientConfig       `yaml:"client"`
	Cache       CacheConfig        `yaml:"cache"`
	Audit       AuditConfig        `yaml:"audit"`
	Storage     StorageConfig      `yaml:"storage"`
	Telemetry   TelemetryConfig    `yaml:"telemetry"`
	Log         LogConfig          `yaml:"log"`
}

// WholesalerConfig describes one MSV3 endpoint
type WholesalerConfig struct {
	ID             string `yaml:"id" validate:"required"`
	Name           string `yaml:"name"`
	Version        int    `yaml:"version" validate:"oneof=1 2"`
	BaseURL        string `yaml:"baseUrl" validate:"required,url"`
	ClientSystem   string `yaml:"clientSystem"`
	User           string `yaml:"user" validate:"required"`
	Secret         string `yaml:"secret"`
	CustomerNumber string `yaml:"customerNumber"`
	Branch         string `yaml:"branch"`
	Priority       int    `yaml:"priority" validate:"min=0"`
	// Disabled wholesalers stay configured but are never queried
	Disabled bool `yaml:"disabled"`
}

// ClientConfig holds HTTP settings
type ClientConfig struct {
	// Timeout bounds each single HTTP attempt
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	MinTLSVersion    string        `yaml:"minTlsVersion" validate:"oneof=1.2 1.3"`
	UserAgent        string        `yaml:"userAgent"`
	MaxResponseBytes int64         `yaml:"maxResponseBytes" validate:"gt=0"`
	// RememberRoutes tries the last accepted URL and content type first
	RememberRoutes bool `yaml:"rememberRoutes"`
	// Concurrency bounds how many wholesalers are compared at once
	Concurrency int `yaml:"concurrency" validate:"min=1,max=32"`
}

// CacheConfig holds availability cache settings
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" validate:"gt=0"`
	// Persist writes every entry through to storage
	Persist bool `yaml:"persist"`
	// Warm loads still valid entries from storage at startup
	Warm bool `yaml:"warm"`
}

// AuditConfig holds request log settings
type AuditConfig struct {
	MaxBody int `yaml:"maxBody" validate:"gt=0"`
	// Store appends entries to the storage backend. Defaults to true.
	Store *bool `yaml:"store"`
	File  struct {
		Path       string `yaml:"path"`
		MaxSizeMB  int    `yaml:"maxSizeMb" validate:"min=0"`
		MaxBackups int    `yaml:"maxBackups" validate:"min=0"`
		MaxAgeDays int    `yaml:"maxAgeDays" validate:"min=0"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"file"`
}

// StoreEnabled reports whether entries go to the storage backend.
func (a AuditConfig) StoreEnabled() bool {
	return a.Store == nil || *a.Store
}

// StorageConfig holds persistence settings
type StorageConfig struct {
	Type     string         `yaml:"type" validate:"oneof=memory mongodb postgres"`
	MongoDB  MongoDBConfig  `yaml:"mongodb"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI           string        `yaml:"uri"`
	Database      string        `yaml:"database"`
	RequestLogTTL time.Duration `yaml:"requestLogTtl"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"maxConns" validate:"min=0"`
	Migrate  bool   `yaml:"migrate"`
}

// TelemetryConfig holds tracing and metrics settings
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter" validate:"omitempty,oneof=stdout otlp"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"serviceName"`
}

// LogConfig holds process log settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML data
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration without wholesalers
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	for i := range c.Wholesalers {
		if c.Wholesalers[i].Version == 0 {
			c.Wholesalers[i].Version = 2
		}
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = 30 * time.Second
	}
	if c.Client.MinTLSVersion == "" {
		c.Client.MinTLSVersion = "1.2"
	}
	if c.Client.MaxResponseBytes == 0 {
		c.Client.MaxResponseBytes = 10 << 20
	}
	if c.Client.Concurrency == 0 {
		c.Client.Concurrency = 4
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Audit.MaxBody == 0 {
		c.Audit.MaxBody = 8000
	}
	if c.Audit.Store == nil {
		store := true
		c.Audit.Store = &store
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "msv3"
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = "stdout"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "go-msv3"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Wholesalers))
	for _, w := range c.Wholesalers {
		if seen[w.ID] {
			return fmt.Errorf("wholesalers: duplicate id %q", w.ID)
		}
		seen[w.ID] = true
	}

	switch c.Storage.Type {
	case "mongodb":
		if c.Storage.MongoDB.URI == "" {
			return errors.New("storage.mongodb.uri is required when type is 'mongodb'")
		}
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			return errors.New("storage.postgres.url is required when type is 'postgres'")
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Exporter == "otlp" && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when using the otlp exporter")
	}
	return nil
}

// Redacted returns a copy safe for printing
func (c *Config) Redacted() *Config {
	out := *c
	out.Wholesalers = make([]WholesalerConfig, len(c.Wholesalers))
	for i, w := range c.Wholesalers {
		if w.Secret != "" {
			w.Secret = "***"
		}
		out.Wholesalers[i] = w
	}
	if out.Storage.MongoDB.URI != "" {
		out.Storage.MongoDB.URI = "***"
	}
	if out.Storage.Postgres.URL != "" {
		out.Storage.Postgres.URL = "***"
	}
	return &out
}
