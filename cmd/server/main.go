package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/okabe-d/llm-hub/internal/api"
	"github.com/okabe-d/llm-hub/internal/api/handler"
	"github.com/okabe-d/llm-hub/internal/config"
	"github.com/okabe-d/llm-hub/internal/provider"
	"github.com/okabe-d/llm-hub/internal/provider/claude"
	"github.com/okabe-d/llm-hub/internal/provider/gemini"
	"github.com/okabe-d/llm-hub/internal/service"
	"github.com/okabe-d/llm-hub/internal/store"
	"github.com/okabe-d/llm-hub/internal/store/memory"
	redisstore "github.com/okabe-d/llm-hub/internal/store/redis"
)

const version = "1.0.0"

func main() {
	// Load .env file - try multiple locations
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Session.Store).
		Msg("Starting LLM hub server")

	// Initialize providers
	providers := map[string]provider.Adapter{
		"claude": claude.NewAdapter(cfg.Provider.Claude.OAuthToken, cfg.Provider.Claude.DefaultModel),
		"gemini": gemini.NewAdapter(cfg.Provider.Gemini.AuthPath, cfg.Provider.Gemini.DefaultModel),
	}
	for name, adapter := range providers {
		if err := adapter.Initialize(context.Background()); err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("Provider failed to initialize")
		}
	}
	if _, ok := providers[cfg.Provider.Default]; !ok {
		log.Fatal().Str("provider", cfg.Provider.Default).Msg("Default provider is not configured")
	}

	// Initialize session store
	var (
		sessionStore store.SessionStore
		prober       handler.StoreProber
		rateLimiter  *redisstore.RateLimiter
	)
	switch cfg.Session.Store {
	case "redis":
		redisClient, err := redisstore.NewClient(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		rs := redisstore.NewSessionStore(redisClient, cfg.Session.TTL)
		sessionStore = rs
		prober = rs
		if cfg.Security.RateLimit.Enabled {
			rateLimiter = redisstore.NewRateLimiter(redisClient,
				cfg.Security.RateLimit.RequestsPerMinute, cfg.Security.RateLimit.Burst)
		}
	default:
		ms := memory.NewStore(cfg.Session.TTL)
		sessionStore = ms
		go sweepExpired(ms)
	}
	defer sessionStore.Close()

	// Initialize services
	sessionService := service.NewSessionService(sessionStore, providers, cfg.Session.TTL)
	chatService := service.NewChatService(providers, sessionService, cfg.Provider.Default)
	memoryService := service.NewMemoryService(sessionService, providers, cfg.Provider.Timeout)

	// Initialize router
	router := api.NewRouter(api.Deps{
		Version:     version,
		Sessions:    sessionService,
		Chat:        chatService,
		Memory:      memoryService,
		Providers:   providers,
		StoreProber: prober,
		RateLimiter: rateLimiter,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// sweepExpired periodically evicts expired sessions from the in-memory store.
// Expiry is still enforced lazily on Get; this only reclaims memory.
func sweepExpired(s *memory.Store) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		if n := s.CleanupExpired(); n > 0 {
			log.Debug().Int("count", n).Msg("Evicted expired sessions")
		}
	}
}
