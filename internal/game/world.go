package game

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"tank-arena/internal/assets"
	"tank-arena/internal/config"
	"tank-arena/internal/geom"
)

// Presenter mirrors registry membership into a presentation layer.
// Attach is called once after an entity is registered, Detach once just
// before it is disposed.
type Presenter interface {
	Attach(e Entity)
	Detach(e Entity)
}

type nopPresenter struct{}

func (nopPresenter) Attach(Entity) {}
func (nopPresenter) Detach(Entity) {}

type multiPresenter []Presenter

func (m multiPresenter) Attach(e Entity) {
	for _, p := range m {
		p.Attach(e)
	}
}

func (m multiPresenter) Detach(e Entity) {
	for i := len(m) - 1; i >= 0; i-- {
		m[i].Detach(e)
	}
}

// Presenters fans membership changes out to several presenters.
func Presenters(ps ...Presenter) Presenter {
	out := make(multiPresenter, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Spatial is the query capability entities use to find each other.
// Results are never cached across ticks.
type Spatial interface {
	// FirstOverlap returns the first entity in registration order whose
	// collider intersects probe and that accept admits, or nil.
	FirstOverlap(probe geom.Sphere, accept func(Entity) bool) Entity
	// FirstOf returns the first entity of the given category, or nil.
	FirstOf(c Category) Entity
}

// linearScan walks the registry. Entity counts stay in the tens.
type linearScan struct {
	w *World
}

func (s linearScan) FirstOverlap(probe geom.Sphere, accept func(Entity) bool) Entity {
	for _, e := range s.w.entities {
		c := e.Collider()
		if c == nil {
			continue
		}
		if accept != nil && !accept(e) {
			continue
		}
		if c.IntersectsSphere(probe) {
			return e
		}
	}
	return nil
}

func (s linearScan) FirstOf(c Category) Entity {
	for _, e := range s.w.entities {
		if e.Kind().Category() == c {
			return e
		}
	}
	return nil
}

// WorldOptions wires a World to its collaborators.
type WorldOptions struct {
	Config    config.AppConfig
	Provider  assets.Provider
	Clock     Clock
	Presenter Presenter
	Events    *EventLog
	Logger    *zap.Logger
	Seed      int64
}

// World owns every live entity of one session and drives the tick.
// It is not safe for concurrent use; Engine serializes access.
type World struct {
	cfg       config.AppConfig
	provider  assets.Provider
	clock     Clock
	presenter Presenter
	events    *EventLog
	logger    *zap.Logger
	spatial   Spatial

	entities []Entity
	pending  []*Pending
	nextID   EntityID

	rng     *rand.Rand
	seed    int64
	tick    uint64
	dt      float64
	camera  geom.Vec3
	input   KeyState
	fire    bool
	ticking bool
	closed  bool
}

// NewWorld creates an empty world.
func NewWorld(opts WorldOptions) *World {
	if opts.Clock == nil {
		opts.Clock = NewRealClock(opts.Config.Sim.MaxFrameDelta)
	}
	if opts.Presenter == nil {
		opts.Presenter = nopPresenter{}
	}
	if opts.Events == nil {
		opts.Events = NewEventLog()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	w := &World{
		cfg:       opts.Config,
		provider:  opts.Provider,
		clock:     opts.Clock,
		presenter: opts.Presenter,
		events:    opts.Events,
		logger:    opts.Logger.Named("world"),
		entities:  make([]Entity, 0, 64),
		rng:       rand.New(rand.NewSource(seed)),
		seed:      seed,
		camera:    geom.V(0, 0, opts.Config.Arena.CameraHeight),
	}
	w.spatial = linearScan{w: w}
	return w
}

// Query returns the spatial query capability.
func (w *World) Query() Spatial { return w.spatial }

// Config returns the session configuration.
func (w *World) Config() config.AppConfig { return w.cfg }

// Delta returns the elapsed time of the current tick.
func (w *World) Delta() float64 { return w.dt }

// TickNumber returns the number of ticks run so far.
func (w *World) TickNumber() uint64 { return w.tick }

// Seed returns the RNG seed the world was created with.
func (w *World) Seed() int64 { return w.seed }

// Camera returns the camera position. X/Y follow the player.
func (w *World) Camera() geom.Vec3 { return w.camera }

// Len returns the number of registered entities, flagged ones included.
func (w *World) Len() int { return len(w.entities) }

// Each calls fn for every registered entity in registration order until fn returns false.
func (w *World) Each(fn func(Entity) bool) {
	for _, e := range w.entities {
		if !fn(e) {
			return
		}
	}
}

// SetInput replaces the latched direction state.
func (w *World) SetInput(k KeyState) { w.input = k }

// Input returns the latched direction state.
func (w *World) Input() KeyState { return w.input }

// PressFire records a fire edge. It is consumed by the next tick.
func (w *World) PressFire() { w.fire = true }

// takeFire consumes the pending fire edge.
func (w *World) takeFire() bool {
	f := w.fire
	w.fire = false
	return f
}

// Spawn loads e and registers it immediately. Spawns made during a tick are
// visible to later queries in the same pass but first update next tick.
// A load failure releases anything acquired and leaves the registry unchanged.
func (w *World) Spawn(e Entity) error {
	b := e.core()
	if b.id != 0 || b.loaded {
		return fmt.Errorf("%s %d: %w", b.kind, b.id, ErrAlreadyRegistered)
	}
	if w.full() {
		return fmt.Errorf("spawn %s: %w", b.kind, ErrWorldFull)
	}
	if err := e.Load(w.provider, w.rng); err != nil {
		if relErr := b.release(); relErr != nil {
			w.logger.Warn("release after failed load", zap.Stringer("kind", b.kind), zap.Error(relErr))
		}
		return fmt.Errorf("load %s: %w", b.kind, err)
	}
	b.loaded = true
	w.register(e)
	return nil
}

// Pending is an in-flight two-phase spawn.
type Pending struct {
	entity  Entity
	rng     *rand.Rand
	loaded  chan struct{}
	settled chan struct{}
	err     error
}

// Entity returns the entity being spawned.
func (p *Pending) Entity() Entity { return p.entity }

// Done is closed once the world has registered the entity or dropped it.
func (p *Pending) Done() <-chan struct{} { return p.settled }

// Err returns the load error, valid after Done is closed.
func (p *Pending) Err() error {
	<-p.settled
	return p.err
}

// BeginSpawn starts loading e in the background and returns at once. The
// world registers it at the start of the next tick, after the sweep.
func (w *World) BeginSpawn(e Entity) *Pending {
	p := &Pending{
		entity:  e,
		rng:     rand.New(rand.NewSource(w.rng.Int63())),
		loaded:  make(chan struct{}),
		settled: make(chan struct{}),
	}
	b := e.core()
	if b.id != 0 || b.loaded {
		p.err = fmt.Errorf("%s %d: %w", b.kind, b.id, ErrAlreadyRegistered)
		close(p.loaded)
		close(p.settled)
		return p
	}

	w.pending = append(w.pending, p)
	provider := w.provider
	go func() {
		defer close(p.loaded)
		if err := e.Load(provider, p.rng); err != nil {
			p.err = fmt.Errorf("load %s: %w", b.kind, err)
		}
	}()
	return p
}

// resolvePending joins every background load begun before this tick.
func (w *World) resolvePending() {
	if len(w.pending) == 0 {
		return
	}
	batch := w.pending
	w.pending = nil

	for _, p := range batch {
		<-p.loaded
		b := p.entity.core()
		switch {
		case p.err != nil:
			if err := b.release(); err != nil {
				w.logger.Warn("release after failed load", zap.Stringer("kind", b.kind), zap.Error(err))
			}
			w.logger.Warn("deferred spawn failed", zap.Stringer("kind", b.kind), zap.Error(p.err))
		case w.closed || w.full():
			if w.closed {
				p.err = fmt.Errorf("spawn %s: world closed", b.kind)
			} else {
				p.err = fmt.Errorf("spawn %s: %w", b.kind, ErrWorldFull)
			}
			if err := b.release(); err != nil {
				w.logger.Warn("release dropped spawn", zap.Error(err))
			}
		default:
			b.loaded = true
			w.register(p.entity)
		}
		close(p.settled)
	}
}

func (w *World) full() bool {
	max := w.cfg.Limits.MaxEntities
	return max > 0 && len(w.entities) >= max
}

func (w *World) register(e Entity) {
	w.nextID++
	b := e.core()
	b.id = w.nextID
	w.entities = append(w.entities, e)
	w.presenter.Attach(e)
	w.logger.Debug("spawn", zap.Stringer("kind", b.kind), zap.Uint64("id", uint64(b.id)))
	w.events.EmitSimple(EventTypeSpawn, w.tick, "", SpawnPayload{
		EntityID: uint64(b.id),
		Kind:     b.kind.String(),
		X:        b.pos.X,
		Y:        b.pos.Y,
	})
}

// Tick runs one frame: sweep flagged entities, register finished background
// spawns, advance the clock, then update every live entity once in
// registration order. It returns the elapsed time used.
func (w *World) Tick() float64 {
	if w.ticking || w.closed {
		w.logger.DPanic("tick on busy or closed world")
		return 0
	}
	w.ticking = true
	defer func() { w.ticking = false }()

	w.sweep()
	w.resolvePending()

	w.dt = w.clock.Delta()
	w.tick++

	n := len(w.entities)
	for i := 0; i < n; i++ {
		e := w.entities[i]
		if e.ShouldDispose() {
			continue
		}
		e.Update(w, w.dt)
	}

	w.fire = false
	return w.dt
}

// sweep removes flagged entities from presentation and the registry, then
// disposes them. Survivors keep their relative order.
func (w *World) sweep() {
	kept := w.entities[:0]
	for _, e := range w.entities {
		if !e.ShouldDispose() {
			kept = append(kept, e)
			continue
		}
		w.presenter.Detach(e)
		if err := e.Dispose(); err != nil {
			w.logger.Error("dispose failed", zap.Stringer("kind", e.Kind()), zap.Uint64("id", uint64(e.ID())), zap.Error(err))
		} else {
			w.logger.Debug("dispose", zap.Stringer("kind", e.Kind()), zap.Uint64("id", uint64(e.ID())))
		}
		w.events.EmitSimple(EventTypeDispose, w.tick, "", DisposePayload{
			EntityID: uint64(e.ID()),
			Kind:     e.Kind().String(),
		})
	}
	for i := len(kept); i < len(w.entities); i++ {
		w.entities[i] = nil
	}
	w.entities = kept
}

// Close disposes every entity and drops pending spawns. The world cannot be
// ticked afterwards.
func (w *World) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.resolvePending()

	var errs []error
	for _, e := range w.entities {
		w.presenter.Detach(e)
		if err := e.Dispose(); err != nil && !errors.Is(err, ErrDisposed) {
			errs = append(errs, err)
		}
	}
	clear(w.entities)
	w.entities = w.entities[:0]
	return errors.Join(errs...)
}

// spawnExplosion puts an explosion at pos.
func (w *World) spawnExplosion(pos geom.Vec3) {
	w.BeginSpawn(NewExplosion(w.cfg.Effect, pos))
}
