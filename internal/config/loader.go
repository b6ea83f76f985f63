package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/streamgate/internal/db"
	"github.com/rpattn/streamgate/internal/domain"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig
	Source   SourceConfig
	Poller   PollerConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Database db.Config
	Logging  LoggingConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// SourceConfig points at the PostgREST endpoint and lists the selectable tables.
type SourceConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Tables  []domain.SourceTable
	Active  string
}

// PollerConfig controls the fetch loop.
type PollerConfig struct {
	RateMs   int
	Limit    int
	MaxPages int
}

// AuthConfig holds the mock access key.
type AuthConfig struct {
	MockKey string
}

// StorageConfig selects where the processed-key set and sessions live.
type StorageConfig struct {
	Driver  string // file | postgres
	DataDir string
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string
	Format string // json | console
}

const (
	StorageDriverFile     = "file"
	StorageDriverPostgres = "postgres"
)

// Default returns the configuration used when no file or env override is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
		},
		Source: SourceConfig{
			BaseURL: "http://localhost:54321",
			Timeout: 10 * time.Second,
			Tables: []domain.SourceTable{
				{Name: "events", Label: "Events", TimestampColumn: "created_at", IDColumn: "id"},
			},
			Active: "events",
		},
		Poller: PollerConfig{
			RateMs:   5000,
			Limit:    10,
			MaxPages: 1,
		},
		Auth: AuthConfig{
			MockKey: "gate-demo-key",
		},
		Storage: StorageConfig{
			Driver:  StorageDriverFile,
			DataDir: "./data",
		},
		Database: db.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config.yaml from configPath (if present) and applies STREAMGATE_* env overrides.
func Load(configPath string, logger *zap.Logger) (Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix("STREAMGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Info("no config.yaml found, using defaults and env vars")
	} else {
		logger.Info("loaded config", zap.String("file", v.ConfigFileUsed()))
	}

	for _, key := range []string{
		"server.addr", "server.allowed_origins", "server.read_timeout", "server.write_timeout",
		"source.base_url", "source.api_key", "source.timeout", "source.active",
		"poller.rate_ms", "poller.limit", "poller.max_pages",
		"auth.mock_key",
		"storage.driver", "storage.data_dir",
		"database.host", "database.port", "database.user", "database.password", "database.dbname", "database.sslmode",
		"logging.level", "logging.format",
	} {
		_ = v.BindEnv(key)
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("server.read_timeout") {
		cfg.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	}
	if v.IsSet("server.write_timeout") {
		cfg.Server.WriteTimeout = v.GetDuration("server.write_timeout")
	}

	if v.IsSet("source.base_url") {
		cfg.Source.BaseURL = v.GetString("source.base_url")
	}
	if v.IsSet("source.api_key") {
		cfg.Source.APIKey = v.GetString("source.api_key")
	}
	if v.IsSet("source.timeout") {
		cfg.Source.Timeout = v.GetDuration("source.timeout")
	}
	if v.IsSet("source.tables") {
		var tables []domain.SourceTable
		if err := v.UnmarshalKey("source.tables", &tables); err != nil {
			return cfg, fmt.Errorf("failed to parse source.tables: %w", err)
		}
		cfg.Source.Tables = tables
		cfg.Source.Active = ""
	}
	if v.IsSet("source.active") {
		cfg.Source.Active = v.GetString("source.active")
	}

	if v.IsSet("poller.rate_ms") {
		cfg.Poller.RateMs = v.GetInt("poller.rate_ms")
	}
	if v.IsSet("poller.limit") {
		cfg.Poller.Limit = v.GetInt("poller.limit")
	}
	if v.IsSet("poller.max_pages") {
		cfg.Poller.MaxPages = v.GetInt("poller.max_pages")
	}

	if v.IsSet("auth.mock_key") {
		cfg.Auth.MockKey = v.GetString("auth.mock_key")
	}

	if v.IsSet("storage.driver") {
		cfg.Storage.Driver = v.GetString("storage.driver")
	}
	if v.IsSet("storage.data_dir") {
		cfg.Storage.DataDir = v.GetString("storage.data_dir")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.format") {
		cfg.Logging.Format = v.GetString("logging.format")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate normalizes table definitions and checks cross-field constraints.
func (c *Config) Validate() error {
	if len(c.Source.Tables) == 0 {
		return fmt.Errorf("source.tables must list at least one table")
	}
	seen := make(map[string]struct{}, len(c.Source.Tables))
	for i, t := range c.Source.Tables {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return fmt.Errorf("source.tables[%d]: name is required", i)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("source.tables: duplicate table %q", t.Name)
		}
		seen[t.Name] = struct{}{}
		c.Source.Tables[i] = t.WithDefaults()
	}
	if c.Source.Active == "" {
		c.Source.Active = c.Source.Tables[0].Name
	}
	if _, ok := seen[c.Source.Active]; !ok {
		return fmt.Errorf("source.active %q is not in source.tables", c.Source.Active)
	}
	if c.Poller.Limit <= 0 {
		return fmt.Errorf("poller.limit must be positive")
	}
	if c.Poller.MaxPages <= 0 {
		c.Poller.MaxPages = 1
	}
	switch c.Storage.Driver {
	case StorageDriverFile, StorageDriverPostgres:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Auth.MockKey) == "" {
		return fmt.Errorf("auth.mock_key must not be empty")
	}
	return nil
}
