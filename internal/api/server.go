package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tank-arena/internal/config"
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	Engine   EngineInterface
	Renderer FrameRenderer  // optional
	Rejects  RejectRecorder // optional, usually the session Metrics
	Config   config.ServerConfig
	Logger   *zap.Logger
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	cfg         config.ServerConfig
	router      *chi.Mux
	wsHub       *WebSocketHub
	throttle    *Throttle
	logger      *zap.Logger
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
func NewServer(opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	throttle := NewThrottle(RateLimitConfigFrom(opts.Config), opts.Rejects)
	s := &Server{
		cfg: opts.Config,
		wsHub: NewWebSocketHub(HubOptions{
			Engine:   opts.Engine,
			Origins:  opts.Config.CORSOrigins,
			MaxPerIP: opts.Config.MaxWSPerIP,
			Throttle: throttle,
			Rejects:  opts.Rejects,
			Logger:   opts.Logger,
		}),
		throttle: throttle,
		logger:   opts.Logger.Named("api"),
	}

	s.router = NewRouter(RouterConfig{
		Engine:      opts.Engine,
		Renderer:    opts.Renderer,
		Throttle:    throttle,
		Rejects:     opts.Rejects,
		CORSOrigins: opts.Config.CORSOrigins,
	})

	// WebSocket endpoint needs the hub instance, so it is not part of NewRouter
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
// This is the ONLY method that starts goroutines or opens network listeners.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.wsHub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.wsHub.BroadcastLoop(ctx, s.cfg.BroadcastHz)
		return nil
	})
	g.Go(func() error {
		s.logger.Info("api server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.Stop()
	return err
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the websocket hub so tests can run it without a listener.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Stop releases background workers created by NewServer.
func (s *Server) Stop() {
	s.throttle.Stop()
}
