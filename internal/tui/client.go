package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"tank-arena/internal/game"
)

// Engine is what the client needs from a running session.
type Engine interface {
	GetSnapshot() *game.GameSnapshot
	SetInput(k game.KeyState)
	Fire()
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	Screen   tcell.Screen
	Engine   Engine
	Textures TextureLookup
	FPS      int           // redraw rate, default 30
	Hold     time.Duration // key latch window, default DefaultHold
	Logger   *zap.Logger
	Now      func() time.Time
}

// Client drives a terminal session: it polls keys, pushes the latched state
// to the engine and redraws at a fixed rate.
type Client struct {
	screen tcell.Screen
	engine Engine
	view   *View
	latch  *KeyLatch
	fps    int
	logger *zap.Logger
	now    func() time.Time

	last game.KeyState
}

// NewClient creates a client. The screen must already be initialized.
func NewClient(opts ClientOptions) *Client {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		screen: opts.Screen,
		engine: opts.Engine,
		view:   NewView(opts.Screen, opts.Textures),
		latch:  NewKeyLatch(opts.Hold),
		fps:    opts.FPS,
		logger: opts.Logger.Named("tui"),
		now:    opts.Now,
	}
}

// Run loops until ctx is cancelled or the player quits. On return the
// engine has been told that every key is released.
func (c *Client) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	go c.screen.ChannelEvents(events, quit)
	defer close(quit)
	defer c.engine.SetInput(game.KeyState{})

	ticker := time.NewTicker(time.Second / time.Duration(c.fps))
	defer ticker.Stop()

	c.view.Draw(c.engine.GetSnapshot())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !c.handle(ev) {
				c.logger.Debug("quit requested")
				return nil
			}

		case <-ticker.C:
			c.flushInput()
			c.view.Draw(c.engine.GetSnapshot())
		}
	}
}

// handle applies one terminal event. It returns false on quit.
func (c *Client) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch c.latch.Handle(ev, c.now()) {
		case ActionQuit:
			return false
		case ActionFire:
			c.engine.Fire()
		}
		c.flushInput()

	case *tcell.EventResize:
		c.screen.Sync()
	}
	return true
}

// flushInput sends the latched keys when they changed.
func (c *Client) flushInput() {
	k := c.latch.State(c.now())
	if k == c.last {
		return
	}
	c.last = k
	c.engine.SetInput(k)
}
