package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "pageforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PAGEFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "PAGEFORGE_CORS_ORIGIN")
	setString(&cfg.Auth.Secret, "PAGEFORGE_SECRET")
	setString(&cfg.Generator.Backend, "PAGEFORGE_GENERATOR_BACKEND")
	setString(&cfg.Generator.URL, "PAGEFORGE_GENERATOR_URL")
	setString(&cfg.Generator.APIKey, "PAGEFORGE_GENERATOR_API_KEY")
	setString(&cfg.Generator.Model, "PAGEFORGE_GENERATOR_MODEL")
	setDuration(&cfg.Generator.Timeout, "PAGEFORGE_GENERATOR_TIMEOUT")
	setString(&cfg.Publisher.Provider, "PAGEFORGE_PUBLISHER_PROVIDER")
	setString(&cfg.Publisher.Owner, "PAGEFORGE_PUBLISHER_OWNER")
	setString(&cfg.Publisher.Token, "PAGEFORGE_PUBLISHER_TOKEN")
	setString(&cfg.Publisher.BaseURL, "PAGEFORGE_PUBLISHER_BASE_URL")
	setDuration(&cfg.Publisher.Timeout, "PAGEFORGE_PUBLISHER_TIMEOUT")
	setDuration(&cfg.Notifier.Timeout, "PAGEFORGE_NOTIFIER_TIMEOUT")
	setString(&cfg.State.Backend, "PAGEFORGE_STATE_BACKEND")
	setString(&cfg.State.Bucket, "PAGEFORGE_STATE_BUCKET")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "PAGEFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "PAGEFORGE_PG_MIN_CONNS")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt64(&cfg.Cache.MaxSizeMB, "PAGEFORGE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "PAGEFORGE_CACHE_TTL")
	setString(&cfg.Logging.Level, "PAGEFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PAGEFORGE_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "PAGEFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "PAGEFORGE_BREAKER_TIMEOUT")
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Generator.Backend == "" {
		return errors.New("generator.backend is required")
	}
	if cfg.Publisher.Provider == "" {
		return errors.New("publisher.provider is required")
	}
	switch cfg.State.Backend {
	case "memory", "nats", "postgres":
	default:
		return fmt.Errorf("state.backend must be memory, nats, or postgres, got %q", cfg.State.Backend)
	}
	if cfg.State.Backend == "postgres" && cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required when state.backend is postgres")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
