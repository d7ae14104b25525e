package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	_ "github.com/Strob0t/PageForge/internal/adapter/gitee"
	_ "github.com/Strob0t/PageForge/internal/adapter/github"
	pfhttp "github.com/Strob0t/PageForge/internal/adapter/http"
	"github.com/Strob0t/PageForge/internal/adapter/litellm"
	"github.com/Strob0t/PageForge/internal/adapter/memstore"
	"github.com/Strob0t/PageForge/internal/adapter/natskv"
	pfotel "github.com/Strob0t/PageForge/internal/adapter/otel"
	"github.com/Strob0t/PageForge/internal/adapter/postgres"
	"github.com/Strob0t/PageForge/internal/adapter/ristretto"
	"github.com/Strob0t/PageForge/internal/adapter/webhook"
	"github.com/Strob0t/PageForge/internal/adapter/ws"
	"github.com/Strob0t/PageForge/internal/config"
	"github.com/Strob0t/PageForge/internal/logger"
	"github.com/Strob0t/PageForge/internal/middleware"
	"github.com/Strob0t/PageForge/internal/port/generator"
	"github.com/Strob0t/PageForge/internal/port/publisher"
	"github.com/Strob0t/PageForge/internal/port/statestore"
	"github.com/Strob0t/PageForge/internal/resilience"
	"github.com/Strob0t/PageForge/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"generator", cfg.Generator.Backend,
		"publisher", cfg.Publisher.Provider,
		"state", cfg.State.Backend,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownOtel, err := pfotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOtel(shutdownCtx)
	}()

	metrics, err := pfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- State store ---
	store, closeStore, err := buildStateStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("state store: %w", err)
	}
	defer closeStore()

	// --- Backends ---
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)

	gen, err := generator.New(cfg.Generator.Backend, map[string]string{
		"url":     cfg.Generator.URL,
		"api_key": cfg.Generator.APIKey,
		"model":   cfg.Generator.Model,
		"timeout": cfg.Generator.Timeout.String(),
	})
	if err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if c, ok := gen.(*litellm.Client); ok {
		c.SetBreaker(breaker)
	}

	pub, err := publisher.New(cfg.Publisher.Provider, map[string]string{
		"owner":    cfg.Publisher.Owner,
		"token":    cfg.Publisher.Token,
		"base_url": cfg.Publisher.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	if caps := pub.Capabilities(); !caps.Contents {
		return fmt.Errorf("publisher %q does not support content publishing", pub.Name())
	}

	notifyBreaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	notify := webhook.NewNotifier(cfg.Notifier.Timeout)
	notify.SetBreaker(notifyBreaker)

	// --- Services ---
	hub := ws.NewHub()
	rounds := service.NewRoundService(store, gen, pub, notify, cfg.Auth.Secret, service.Timeouts{
		Generate: cfg.Generator.Timeout,
		Publish:  cfg.Publisher.Timeout,
		Notify:   cfg.Notifier.Timeout,
	})
	rounds.SetHub(hub)
	rounds.SetMetrics(metrics)

	// --- Idempotency cache ---
	idemCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer idemCache.Close()

	// --- HTTP ---
	handlers := &pfhttp.Handlers{Rounds: rounds}

	r := chi.NewRouter()
	r.Use(pfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(pfhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(pfotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(middleware.Idempotency(idemCache, cfg.Cache.TTL))

	r.Get("/health", healthHandler(cfg, gen, pub, breaker, notifyBreaker))
	r.Get("/ws", hub.HandleWS)
	pfhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown: stop accepting, then drain in-flight rounds so
	// every accepted task still gets its callback.
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		drainCtx, cancelDrain := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancelDrain()
		if err := rounds.Drain(drainCtx); err != nil {
			slog.Warn("drain timed out with rounds in flight", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// buildStateStore selects the statestore backend from config.
func buildStateStore(ctx context.Context, cfg *config.Config) (statestore.Store, func(), error) {
	switch cfg.State.Backend {
	case "nats":
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("nats connect: %w", err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("jetstream: %w", err)
		}
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket: cfg.State.Bucket,
		})
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("kv bucket: %w", err)
		}
		slog.Info("nats state store ready", "bucket", cfg.State.Bucket)
		return natskv.New(kv), nc.Close, nil

	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("postgres state store ready")
		return postgres.NewStore(pool), pool.Close, nil

	default:
		return memstore.New(), func() {}, nil
	}
}

// healthChecker is implemented by generator backends that can probe their
// upstream service.
type healthChecker interface {
	Health(ctx context.Context) (bool, error)
}

// healthHandler reports service health, backend reachability, publisher
// capabilities, and circuit breaker states.
func healthHandler(
	cfg *config.Config,
	gen generator.Generator,
	pub publisher.Provider,
	genBreaker, notifyBreaker *resilience.Breaker,
) http.HandlerFunc {
	type healthStatus struct {
		Status                string                 `json:"status"`
		Generator             string                 `json:"generator"`
		GeneratorReachable    *bool                  `json:"generator_reachable,omitempty"`
		Publisher             string                 `json:"publisher"`
		PublisherCapabilities publisher.Capabilities `json:"publisher_capabilities"`
		State                 string                 `json:"state"`
		GeneratorBreaker      string                 `json:"generator_breaker"`
		NotifierBreaker       string                 `json:"notifier_breaker"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status:                "ok",
			Generator:             cfg.Generator.Backend,
			Publisher:             pub.Name(),
			PublisherCapabilities: pub.Capabilities(),
			State:                 cfg.State.Backend,
			GeneratorBreaker:      genBreaker.State(),
			NotifierBreaker:       notifyBreaker.State(),
		}
		if hc, ok := gen.(healthChecker); ok {
			reachable, _ := hc.Health(r.Context())
			status.GeneratorReachable = &reachable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
