// Gabarita - study platform API server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/gabarita-ai/gabarita/internal/agent"
	"github.com/gabarita-ai/gabarita/internal/api"
	"github.com/gabarita-ai/gabarita/internal/config"
	"github.com/gabarita-ai/gabarita/internal/gamification"
	"github.com/gabarita-ai/gabarita/internal/gemini"
	"github.com/gabarita-ai/gabarita/internal/health"
	"github.com/gabarita-ai/gabarita/internal/identity"
	"github.com/gabarita-ai/gabarita/internal/ingest"
	"github.com/gabarita-ai/gabarita/internal/middleware"
	"github.com/gabarita-ai/gabarita/internal/ratelimit"
	"github.com/gabarita-ai/gabarita/internal/realtime"
	"github.com/gabarita-ai/gabarita/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "postgres", cfg.UsesPostgres(), "redis", cfg.RedisURL != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	var repo store.Repository
	if cfg.UsesPostgres() {
		repo, err = store.NewPostgres(cfg.DatabaseURL)
	} else {
		repo, err = store.NewSQLite(cfg.DBPath)
	}
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Realtime fan-out and tutor throttling share Redis when configured so
	// several replicas behave as one.
	var (
		bus     realtime.Bus
		limiter ratelimit.Limiter
	)
	if cfg.RedisURL != "" {
		redisBus, err := realtime.NewRedisBus(ctx, cfg.RedisURL, realtime.DefaultRedisChannel, logger)
		if err != nil {
			slog.Error("Failed to connect achievement bus", "error", err)
			os.Exit(1)
		}
		bus = redisBus
		redisLimiter, err := ratelimit.NewRedis(ctx, cfg.RedisURL, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration, logger)
		if err != nil {
			slog.Error("Failed to connect rate limiter", "error", err)
			os.Exit(1)
		}
		limiter = redisLimiter
	} else {
		bus = realtime.NewMemoryBus()
		limiter = ratelimit.NewMemory(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	}
	defer func() {
		if closeErr := bus.Close(); closeErr != nil {
			slog.Warn("Failed to close achievement bus", "error", closeErr)
		}
		if closeErr := limiter.Close(); closeErr != nil {
			slog.Warn("Failed to close rate limiter", "error", closeErr)
		}
	}()

	hub := realtime.NewHub(bus, originPatterns(cfg.AllowedOrigins()), logger)
	if err := hub.Start(ctx); err != nil {
		slog.Error("Failed to start achievement hub", "error", err)
		os.Exit(1)
	}

	grants := gamification.NewService(repo, hub, logger)

	// Model provider (optional).
	var (
		generator    ingest.Generator
		agentHandler *agent.Handler
	)
	if cfg.AIEnabled() {
		model, err := gemini.NewClient(gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			Model:      cfg.Gemini.Model,
			BaseURL:    cfg.Gemini.BaseURL,
			Timeout:    cfg.Gemini.Timeout,
			MaxRetries: cfg.Gemini.MaxRetries,
		}, logger)
		if err != nil {
			slog.Error("Failed to initialize model client", "error", err)
			os.Exit(1)
		}
		generator = model

		conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
			Enabled:       cfg.ConversationLog.Enabled,
			Dir:           cfg.ConversationLog.Dir,
			GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
			GlobalPath:    cfg.ConversationLog.GlobalPath,
			QueueSize:     cfg.ConversationLog.QueueSize,
		}, logger)
		if err != nil {
			slog.Error("Failed to initialize conversation logger", "error", err)
			os.Exit(1)
		}

		svc, err := agent.NewServiceWithProcessor(model)
		if err != nil {
			slog.Error("Failed to initialize tutor service", "error", err)
			os.Exit(1)
		}
		agentHandler = agent.NewHandler(svc, limiter, conversationLogger, agent.HandlerConfig{
			RequestTimeout: cfg.Gemini.Timeout,
		}, logger)
		defer agentHandler.Close()
		slog.Info("AI features enabled", "model", cfg.Gemini.Model)
	} else {
		slog.Info("AI features disabled (GEMINI_API_KEY not set)")
	}

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, grants, cfg.AIEnabled(), logger)
	healthHandler := api.NewHealthHandler(repo, cfg.Timeout.HealthCheck)
	ingestHandler := ingest.NewHandler(generator, cfg.MaxUploadBytes, logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo))
		baseHandler.RegisterRoutes(r)
		ingestHandler.RegisterRoutes(r)
		hub.RegisterRoutes(r)
		if agentHandler != nil {
			agentHandler.RegisterRoutes(r)
		}
	})

	// Create server.
	// WebSocket streams are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.GRPCPort != "" {
		healthServer := health.NewServer(repo, cfg.Timeout.HealthInterval, cfg.Timeout.HealthCheck, logger)
		g.Go(func() error {
			return healthServer.ListenAndServe(gctx, ":"+cfg.GRPCPort)
		})
	}
	g.Go(func() error {
		// Wait for shutdown signal or a failed listener.
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

// originPatterns turns CORS origins into the host patterns the WebSocket
// handshake checks.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			out = append(out, o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
