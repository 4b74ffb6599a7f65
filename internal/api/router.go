// Package api wires the HTTP transport: routing, middleware and handlers.
// Handlers receive already-deserialized request data and map the domain
// error taxonomy onto status codes; all orchestration lives in the service
// layer.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okabe-d/llm-hub/internal/api/handler"
	customMiddleware "github.com/okabe-d/llm-hub/internal/api/middleware"
	"github.com/okabe-d/llm-hub/internal/provider"
	"github.com/okabe-d/llm-hub/internal/service"
	"github.com/okabe-d/llm-hub/internal/store/redis"
)

// Deps are the constructed dependencies the router wires into handlers.
// Everything is injected explicitly; nothing is looked up through ambient
// state.
type Deps struct {
	Version     string
	Sessions    *service.SessionService
	Chat        *service.ChatService
	Memory      *service.MemoryService
	Providers   map[string]provider.Adapter
	StoreProber handler.StoreProber // nil when the store has no probe
	RateLimiter *redis.RateLimiter  // nil disables rate limiting
}

// NewRouter creates and configures the HTTP router
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Session-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	chatHandler := handler.NewChatHandler(deps.Chat)
	sessionHandler := handler.NewSessionHandler(deps.Sessions, deps.Memory)
	providerHandler := handler.NewProviderHandler(deps.Sessions)
	healthHandler := handler.NewHealthHandler(deps.Version, deps.Providers, deps.StoreProber)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)
		r.Get("/health/detailed", healthHandler.Detailed)

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", providerHandler.List)
			r.Get("/{name}", providerHandler.Get)
			r.Get("/{name}/models", providerHandler.Models)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.List)
			r.Post("/", sessionHandler.Create)
			r.Get("/{sessionID}", sessionHandler.Get)
			r.Delete("/{sessionID}", sessionHandler.Delete)
			r.Post("/{sessionID}/close", sessionHandler.Close)
			r.Get("/{sessionID}/memory", sessionHandler.Memory)
		})

		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(customMiddleware.NewRateLimitMiddleware(deps.RateLimiter).Limit)
			}
			r.Post("/chat/completions", chatHandler.Completions)
		})
	})

	return r
}
