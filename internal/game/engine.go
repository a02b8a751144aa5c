package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tank-arena/internal/assets"
	"tank-arena/internal/config"
	"tank-arena/internal/geom"
)

// Outcome is the state of the session from the player's point of view.
type Outcome string

const (
	OutcomeRunning Outcome = "running"
	OutcomeDefeat  Outcome = "defeat"
	OutcomeVictory Outcome = "victory"
)

// TickStats describes one completed tick.
type TickStats struct {
	Tick     uint64
	Delta    float64
	Duration time.Duration
	Entities int
	Counts   [int(KindEffect) + 1]int // live entities per Kind
	Outcome  Outcome
}

// TickObserver is notified after every tick, outside the engine lock.
type TickObserver interface {
	ObserveTick(stats TickStats)
}

// EngineOptions configures NewEngine.
type EngineOptions struct {
	Config    config.AppConfig
	Provider  assets.Provider
	Logger    *zap.Logger
	Clock     Clock // defaults to a clamped wall clock
	Presenter Presenter
	Observers []TickObserver
}

// Engine is the real-time driver around one World. It owns the tick
// goroutine and serializes input, ticks and snapshot production.
type Engine struct {
	mu     sync.RWMutex
	world  *World
	arena  *Arena
	cfg    config.AppConfig
	logger *zap.Logger

	session string

	tickRate int
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
	doneChan chan struct{}

	observers []TickObserver
	outcome   Outcome

	// Immutable snapshots for lock-free render separation
	snapshotPool *SnapshotPool
	scratch      []Particle

	// Event sourcing for replay and debugging
	eventLog *EventLog
}

// NewEngine builds the arena and publishes the first snapshot. A failed
// arena load is fatal to the session.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	session := uuid.NewString()
	logger := opts.Logger.Named("engine").With(zap.String("session", session))
	eventLog := NewEventLog()
	eventLog.session = session
	eventLog.SetLogger(logger.Named("events"))

	world := NewWorld(WorldOptions{
		Config:    opts.Config,
		Provider:  opts.Provider,
		Clock:     opts.Clock,
		Presenter: opts.Presenter,
		Events:    eventLog,
		Logger:    logger,
		Seed:      opts.Config.Sim.Seed,
	})

	arena, err := NewArena(world)
	if err != nil {
		if closeErr := world.Close(); closeErr != nil {
			logger.Warn("cleanup after failed arena", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("build arena: %w", err)
	}

	e := &Engine{
		world:        world,
		arena:        arena,
		cfg:          opts.Config,
		logger:       logger,
		session:      session,
		tickRate:     opts.Config.Sim.TickRate,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
		observers:    opts.Observers,
		outcome:      OutcomeRunning,
		snapshotPool: NewSnapshotPool(opts.Config.Limits, opts.Config.Arena.MapSize),
		eventLog:     eventLog,
	}
	e.mu.Lock()
	e.produceSnapshot()
	e.mu.Unlock()
	return e, nil
}

// Session returns the session id.
func (e *Engine) Session() string { return e.session }

// Start runs the tick loop in the background until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("engine loop ended", zap.Error(err))
		}
	}()
}

// Run ticks at the configured rate until ctx is cancelled or Stop is
// called. It returns ctx.Err() on cancellation and nil on Stop.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()
	defer close(e.doneChan)

	ticker := time.NewTicker(e.cfg.Sim.TickInterval())
	defer ticker.Stop()

	e.logger.Info("engine started", zap.Int("tps", e.tickRate))
	defer e.logger.Info("engine stopped")

	for {
		select {
		case <-ticker.C:
			e.Step()
		case <-e.stopChan:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop ends the tick loop and waits for it to exit. Safe to call twice.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })

	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if running {
		<-e.doneChan
	}
}

// Step runs exactly one tick and publishes a snapshot.
func (e *Engine) Step() TickStats {
	start := time.Now()

	e.mu.Lock()
	dt := e.world.Tick()
	e.updateOutcome()
	stats := e.produceSnapshot()
	stats.Delta = dt
	stats.Tick = e.world.TickNumber()
	stats.Outcome = e.outcome
	e.eventLog.EmitSimple(EventTypeTick, stats.Tick, "", TickPayload{
		RNGSeed:     e.world.Seed(),
		EntityCount: stats.Entities,
		DeltaTimeNs: int64(dt * 1e9),
	})
	observers := e.observers
	e.mu.Unlock()

	stats.Duration = time.Since(start)
	if budget := e.cfg.Sim.TickInterval(); stats.Duration > budget {
		e.logger.Warn("tick overran its budget",
			zap.Uint64("tick", stats.Tick),
			zap.Duration("took", stats.Duration),
			zap.Duration("budget", budget))
	}
	for _, o := range observers {
		o.ObserveTick(stats)
	}
	return stats
}

// updateOutcome latches defeat or victory once.
func (e *Engine) updateOutcome() {
	if e.outcome != OutcomeRunning {
		return
	}
	switch {
	case e.arena.Player.ShouldDispose():
		e.outcome = OutcomeDefeat
	case len(e.arena.Enemies) > 0 && allFlagged(e.arena.Enemies):
		e.outcome = OutcomeVictory
	default:
		return
	}
	e.logger.Info("game over", zap.String("outcome", string(e.outcome)), zap.Uint64("tick", e.world.TickNumber()))
	e.eventLog.EmitSimple(EventTypeGameOver, e.world.TickNumber(), "", GameOverPayload{Outcome: string(e.outcome)})
}

func allFlagged(enemies []*EnemyTank) bool {
	for _, en := range enemies {
		if !en.ShouldDispose() {
			return false
		}
	}
	return true
}

// SetInput replaces the latched direction state.
func (e *Engine) SetInput(k KeyState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.world.Input() == k {
		return
	}
	e.world.SetInput(k)
	e.eventLog.EmitSimple(EventTypeInput, e.world.TickNumber(), "input", InputPayload{Keys: k})
}

// Fire queues a fire edge for the next tick.
func (e *Engine) Fire() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.world.PressFire()
	e.eventLog.EmitSimple(EventTypeInput, e.world.TickNumber(), "input", InputPayload{Keys: e.world.Input(), Fire: true})
}

// Outcome returns the session outcome so far.
func (e *Engine) Outcome() Outcome {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.outcome
}

// Close stops the loop, disposes every entity and stops the event log.
func (e *Engine) Close() error {
	e.Stop()
	e.mu.Lock()
	err := e.world.Close()
	e.mu.Unlock()
	e.eventLog.Stop()
	return err
}

// GetSnapshot returns the latest immutable snapshot for lock-free rendering
// This is the preferred method for the render loop
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshotPool.AcquireRead()
}

// produceSnapshot copies the registry into the next pool slot. Caller holds e.mu.
func (e *Engine) produceSnapshot() TickStats {
	var stats TickStats
	limits := e.snapshotPool.GetLimits()

	snap := e.snapshotPool.AcquireWrite()
	snap.TickNumber = e.world.TickNumber()
	snap.RNGSeed = e.world.Seed()
	snap.Delta = e.world.Delta()
	snap.Session = e.session
	snap.Camera = e.world.Camera()
	snap.MapSize = e.cfg.Arena.MapSize
	snap.Outcome = string(e.outcome)

	e.world.Each(func(ent Entity) bool {
		stats.Entities++
		if !ent.ShouldDispose() {
			stats.Counts[ent.Kind()]++
		}
		if len(snap.Entities) >= limits.MaxSnapshotItems {
			return true
		}

		pos := ent.Position()
		es := EntitySnapshot{
			ID:       uint64(ent.ID()),
			Kind:     ent.Kind().String(),
			X:        pos.X,
			Y:        pos.Y,
			Z:        pos.Z,
			Rotation: ent.Rotation(),
			Disposed: ent.ShouldDispose(),
		}
		if s, ok := ent.Collider().(geom.Sphere); ok {
			es.ColliderRadius = s.Radius
		}

		switch v := ent.(type) {
		case *TileMap:
			for _, t := range v.Tiles() {
				snap.Tiles = append(snap.Tiles, TileSnapshot(t))
			}
		case *PlayerTank:
			es.Health, es.Cooldown = v.Health(), v.Cooldown()
			snap.PlayerHealth = v.Health()
		case *EnemyTank:
			es.Health, es.Cooldown, es.Mode = v.Health(), v.Cooldown(), v.Mode().String()
			if !v.ShouldDispose() {
				snap.EnemiesAlive++
			}
		case *Bullet:
			es.Owner = v.Owner().String()
		case *Effect:
			es.Variant, es.Remaining = v.Variant().String(), v.Remaining()
			e.scratch = v.AppendParticles(e.scratch[:0])
			for _, pt := range e.scratch {
				if len(snap.Particles) >= limits.MaxParticles {
					break
				}
				snap.Particles = append(snap.Particles, ParticleSnapshot{
					Smoke:   pt.Kind == ParticleSmoke,
					X:       pt.Offset.X,
					Y:       pt.Offset.Y,
					Z:       pt.Offset.Z,
					Scale:   pt.Scale,
					Opacity: pt.Opacity,
				})
			}
		}
		snap.Entities = append(snap.Entities, es)
		return true
	})
	snap.EntityCount = stats.Entities

	e.snapshotPool.PublishWrite(snap)
	return stats
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}

// RecentEvents returns up to n recently flushed events.
func (e *Engine) RecentEvents(n int) []Event {
	return e.eventLog.Recent(n)
}

// GetLimits returns the current resource limits
func (e *Engine) GetLimits() config.ResourceLimits {
	return e.snapshotPool.GetLimits()
}
