package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tank-arena/internal/assets"
	"tank-arena/internal/config"
	"tank-arena/internal/game"
	"tank-arena/internal/tui"
)

func main() {
	configPath := flag.String("config", "arena.toml", "path to the TOML config file")
	logPath := flag.String("log", "arena-tui.log", "log file, the terminal is owned by the game")
	flag.Parse()

	if err := run(*configPath, *logPath); err != nil {
		fmt.Fprintln(os.Stderr, "arena-tui:", err)
		os.Exit(1)
	}
}

func run(configPath, logPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Logging, logPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lib, err := assets.Open(ctx, cfg.Arena.AssetDir)
	if err != nil {
		return err
	}

	engine, err := game.NewEngine(game.EngineOptions{
		Config:   cfg,
		Provider: lib,
		Logger:   logger,
		Clock:    game.NewRealClock(cfg.Sim.MaxFrameDelta),
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	client := tui.NewClient(tui.ClientOptions{
		Screen:   screen,
		Engine:   engine,
		Textures: lib,
		Logger:   logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(ctx)
	})
	g.Go(func() error {
		// Quitting the client ends the session
		err := client.Run(ctx)
		if err == nil {
			err = errQuit
		}
		return err
	})

	err = g.Wait()
	logger.Info("session over", zap.String("outcome", string(engine.Outcome())))
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var errQuit = errors.New("quit")
