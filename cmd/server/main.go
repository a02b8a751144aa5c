package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tank-arena/internal/api"
	"tank-arena/internal/assets"
	"tank-arena/internal/config"
	"tank-arena/internal/game"
	"tank-arena/internal/render"
)

func main() {
	configPath := flag.String("config", "arena.toml", "path to the TOML config file")
	flag.Parse()

	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		_ = godotenv.Load(".env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	os.Exit(finish(logger, run(cfg, logger)))
}

// finish logs how the run ended and flushes the logger. os.Exit skips defers.
func finish(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
		code = 1
	} else {
		logger.Info("goodbye")
	}
	_ = logger.Sync()
	return code
}

func run(cfg config.AppConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lib, err := assets.Open(ctx, cfg.Arena.AssetDir)
	if err != nil {
		return err
	}

	metrics := api.NewMetrics(prometheus.DefaultRegisterer)
	engine, err := game.NewEngine(game.EngineOptions{
		Config:    cfg,
		Provider:  lib,
		Logger:    logger,
		Clock:     game.NewRealClock(cfg.Sim.MaxFrameDelta),
		Presenter: metrics,
		Observers: []game.TickObserver{metrics},
	})
	if err != nil {
		// A session without its arena cannot run
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("engine close", zap.Error(err))
		}
	}()

	limits := engine.GetLimits()
	logger.Info("arena session",
		zap.String("session", engine.Session()),
		zap.Int("tps", cfg.Sim.TickRate),
		zap.Int("maxEntities", limits.MaxEntities),
		zap.Int("maxParticles", limits.MaxParticles))

	if path := cfg.Server.EventLogPath; path != "" {
		if err := engine.StartEventLog(path); err != nil {
			logger.Warn("event log disabled", zap.Error(err))
		} else {
			logger.Info("event log", zap.String("path", path))
		}
	}

	server := api.NewServer(api.ServerOptions{
		Engine:   engine,
		Renderer: render.NewRenderer(lib, render.DefaultScale),
		Rejects:  metrics,
		Config:   cfg.Server,
		Logger:   logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := engine.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return server.Start(ctx)
	})
	if cfg.Debug.Enabled {
		debug := api.NewDebugServer(cfg.Debug, prometheus.DefaultGatherer, logger)
		g.Go(func() error {
			logger.Info("debug server", zap.String("addr", debug.Addr))
			if err := debug.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				// Debug server failure is not fatal
				logger.Warn("debug server disabled", zap.Error(err))
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return debug.Close()
		})
	}

	logger.Info("server ready", zap.Int("port", cfg.Server.Port))
	err = g.Wait()
	logger.Info("shutting down", zap.String("outcome", string(engine.Outcome())))
	return err
}
