package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tank-arena/internal/game"
)

// EngineInterface defines the game engine methods used by the API.
// This interface enables mocking for tests without spinning up the full game loop.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// GetSnapshot returns the latest lock-free immutable snapshot
	GetSnapshot() *game.GameSnapshot
	// SetInput replaces the latched direction keys
	SetInput(k game.KeyState)
	// Fire queues one fire edge for the next tick
	Fire()
	// Session returns the session id
	Session() string
	// RecentEvents returns up to n recently flushed events
	RecentEvents(n int) []game.Event
	// GetEventLogStats returns event log counters
	GetEventLogStats() map[string]interface{}
}

// FrameRenderer draws a snapshot as an image.
type FrameRenderer interface {
	EncodePNG(w io.Writer, snap *game.GameSnapshot) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        ReadRPS: 1000, ReadBurst: 1000, // High limits for tests
//	        InputRPS: 1000, InputBurst: 1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Renderer serves /api/frame.png. If nil the route answers 404.
	Renderer FrameRenderer

	// Throttle is an optional pre-configured per-client rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	Throttle *Throttle

	// RateLimitConfig is optional configuration for the throttle.
	// Only used if Throttle is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// Rejects counts throttled requests. Optional.
	Rejects RejectRecorder

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost origins are allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine   EngineInterface
	renderer FrameRenderer
	limiter  *Throttle
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE apart from the throttle's janitor
// goroutine, which the caller stops through RouterConfig.Throttle:
//   - No network listeners are opened
//   - No game loop is started
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	// RealIP first so the logger and the throttle see the client address
	r.Use(middleware.RealIP)
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	throttle := cfg.Throttle
	if throttle == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		throttle = NewThrottle(rateLimitCfg, cfg.Rejects)
	}
	r.Use(throttle.Middleware)

	// CORS configuration
	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	h := &routerHandlers{
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
		limiter:  throttle,
	}

	// Liveness for load balancers and the terminal client
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		// Session state
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/events", h.handleGetEvents)
		r.Get("/frame.png", h.handleGetFrame)

		// Input boundary
		r.Post("/input", h.handlePostInput)
	})

	return r
}
