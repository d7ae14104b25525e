// Package config provides hierarchical configuration loading for PageForge.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the PageForge service.
type Config struct {
	Server    Server    `yaml:"server"`
	Auth      Auth      `yaml:"auth"`
	Generator Generator `yaml:"generator"`
	Publisher Publisher `yaml:"publisher"`
	Notifier  Notifier  `yaml:"notifier"`
	State     State     `yaml:"state"`
	Postgres  Postgres  `yaml:"postgres"`
	NATS      NATS      `yaml:"nats"`
	Cache     Cache     `yaml:"cache"`
	Logging   Logging   `yaml:"logging"`
	Breaker   Breaker   `yaml:"breaker"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Auth holds the shared secret expected in task submissions.
// An empty secret disables the check.
type Auth struct {
	Secret string `yaml:"secret"`
}

// Generator holds text-generation backend configuration.
type Generator struct {
	Backend string        `yaml:"backend"` // registry name, e.g. "litellm"
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Publisher holds source-hosting provider configuration.
type Publisher struct {
	Provider string        `yaml:"provider"` // registry name, e.g. "gitee", "github"
	Owner    string        `yaml:"owner"`
	Token    string        `yaml:"token"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Notifier holds callback delivery configuration.
type Notifier struct {
	Timeout time.Duration `yaml:"timeout"`
}

// State selects the task state store backend.
type State struct {
	Backend string `yaml:"backend"` // "memory", "nats", "postgres"
	Bucket  string `yaml:"bucket"`  // NATS KV bucket name
}

// Postgres holds PostgreSQL connection configuration.
type Postgres struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// NATS holds NATS JetStream configuration.
type NATS struct {
	URL string `yaml:"url"`
}

// Cache holds idempotency cache configuration.
type Cache struct {
	MaxSizeMB int64         `yaml:"max_size_mb"`
	TTL       time.Duration `yaml:"ttl"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Breaker holds circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Telemetry holds OpenTelemetry exporter configuration.
type Telemetry struct {
	Endpoint string `yaml:"endpoint"` // OTLP gRPC host:port; empty disables
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		Generator: Generator{
			Backend: "litellm",
			URL:     "http://localhost:4000",
			Model:   "openai/gpt-4o",
			Timeout: 3 * time.Minute,
		},
		Publisher: Publisher{
			Provider: "gitee",
			Timeout:  30 * time.Second,
		},
		Notifier: Notifier{
			Timeout: 10 * time.Second,
		},
		State: State{
			Backend: "memory",
			Bucket:  "pageforge-task-state",
		},
		Postgres: Postgres{
			DSN:      "",
			MaxConns: 10,
			MinConns: 1,
		},
		NATS: NATS{
			URL: "nats://localhost:4222",
		},
		Cache: Cache{
			MaxSizeMB: 64,
			TTL:       time.Hour,
		},
		Logging: Logging{
			Level:   "info",
			Service: "pageforge",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
	}
}
