package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	sbhttp "github.com/uptalk/switchboard/internal/adapter/http"
	sbnats "github.com/uptalk/switchboard/internal/adapter/nats"
	"github.com/uptalk/switchboard/internal/adapter/natskv"
	"github.com/uptalk/switchboard/internal/adapter/otel"
	"github.com/uptalk/switchboard/internal/adapter/postgres"
	"github.com/uptalk/switchboard/internal/adapter/redis"
	"github.com/uptalk/switchboard/internal/adapter/ristretto"
	"github.com/uptalk/switchboard/internal/adapter/tiered"
	"github.com/uptalk/switchboard/internal/adapter/whatsapp"
	"github.com/uptalk/switchboard/internal/adapter/ws"
	"github.com/uptalk/switchboard/internal/config"
	"github.com/uptalk/switchboard/internal/logger"
	"github.com/uptalk/switchboard/internal/middleware"
	"github.com/uptalk/switchboard/internal/port/cache"
	"github.com/uptalk/switchboard/internal/port/transport"
	"github.com/uptalk/switchboard/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "admin: %v\n", err)
			os.Exit(1)
		}
		return
	}

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

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"persist_contexts", cfg.Cache.Persist,
		"auth_enabled", cfg.Auth.Enabled,
	)

	ctx := context.Background()

	shutdownOtel, err := otel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(flushCtx); err != nil {
			log.Warn("otel shutdown", "error", err)
		}
	}()

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("postgres ready")

	// NATS
	queue, err := sbnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Context cache: ristretto in front, redis or NATS KV behind.
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer l1.Close()

	var l2 cache.Cache
	if cfg.Redis.URL != "" {
		rc, err := redis.New(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = rc.Close() }()
		l2 = rc
		log.Info("context cache", "l2", "redis")
	} else {
		kv, err := queue.KeyValue(ctx, "contexts")
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		l2 = natskv.New(kv)
		log.Info("context cache", "l2", "nats-kv")
	}
	ctxCache := tiered.New(l1, l2, cfg.Cache.SessionTimeout)

	// Services
	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	dispatcher := service.NewDispatcher(log, ws.NewNotifier(hub), sbnats.NewNotifier(queue))
	contexts := service.NewContextStore(ctxCache, store, cfg.Cache)
	registry := service.NewRegistry(store, dispatcher, cfg.Escalation, log)

	senders := []transport.Sender{ws.NewSender(hub)}
	if cfg.WhatsApp.PhoneID != "" {
		senders = append(senders, whatsapp.NewSender(cfg.WhatsApp))
	}
	outbound := service.NewOutbound(*cfg, log, senders...)

	takeovers := service.NewTakeoverManager(store, contexts, registry, outbound, dispatcher, cfg.Takeover, log)
	evaluator := service.NewEvaluator(contexts, cfg.Pipeline, log)
	router := service.NewRouter(store, contexts, service.NewClassifier(), evaluator, registry, takeovers, outbound, cfg.Rate, log)

	// Background sweeps
	for _, stop := range []func(){
		contexts.StartSweep(cfg.Cache.SweepInterval),
		registry.StartSweep(cfg.Escalation.SweepInterval),
		takeovers.StartGC(cfg.Takeover.SweepInterval),
		router.Limiter().StartSweep(cfg.Rate.SweepInterval),
		outbound.StartSweep(cfg.Rate.SweepInterval),
	} {
		defer stop()
	}

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	handlers := sbhttp.NewHandlers(router, contexts, registry, takeovers, store).WithMetrics(metrics)

	// HTTP edge
	edge := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	defer edge.StartCleanup(5*time.Minute, 15*time.Minute)()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(sbhttp.Logger)
	r.Use(sbhttp.SecurityHeaders)
	r.Use(sbhttp.CORS(cfg.Server.CORSOrigin))
	if cfg.Telemetry.Enabled {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(edge.Handler)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	sbhttp.MountRoutes(r, handlers, hub.HandleWS, cfg.Auth)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	<-done
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

