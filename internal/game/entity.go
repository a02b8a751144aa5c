package game

import (
	"errors"
	"fmt"
	"math/rand"

	"tank-arena/internal/assets"
	"tank-arena/internal/geom"
)

var (
	// ErrNotLoaded is returned when an entity is registered or disposed before a successful load.
	ErrNotLoaded = errors.New("entity not loaded")
	// ErrAlreadyRegistered is returned when the same entity is spawned twice.
	ErrAlreadyRegistered = errors.New("entity already registered")
	// ErrDisposed is returned by a second Dispose call.
	ErrDisposed = errors.New("entity already disposed")
	// ErrWorldFull is returned when the registry is at its entity cap.
	ErrWorldFull = errors.New("entity limit reached")
)

// Kind is the closed set of entity variants.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindTile
	KindWall
	KindPlayer
	KindEnemy
	KindBullet
	KindEffect
)

// String returns the variant name used in logs and snapshots.
func (k Kind) String() string {
	switch k {
	case KindTile:
		return "tile"
	case KindWall:
		return "wall"
	case KindPlayer:
		return "player"
	case KindEnemy:
		return "enemy"
	case KindBullet:
		return "bullet"
	case KindEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// Category is the coarse tag collision filters work on.
type Category uint8

const (
	CategoryGeneral Category = iota
	CategoryPlayer
	CategoryEnemy
	CategoryBullet
)

// Category maps a variant to its collision category.
func (k Kind) Category() Category {
	switch k {
	case KindPlayer:
		return CategoryPlayer
	case KindEnemy:
		return CategoryEnemy
	case KindBullet:
		return CategoryBullet
	default:
		return CategoryGeneral
	}
}

func (c Category) String() string {
	switch c {
	case CategoryPlayer:
		return "player"
	case CategoryEnemy:
		return "enemy"
	case CategoryBullet:
		return "bullet"
	default:
		return "general"
	}
}

// EntityID identifies a registered entity. Zero means unregistered.
type EntityID uint64

// Entity is any simulated actor. The set of implementations is closed:
// TileMap, Wall, PlayerTank, EnemyTank, Bullet and Effect.
type Entity interface {
	ID() EntityID
	Kind() Kind
	Position() geom.Vec3
	Rotation() float64
	// Collider returns nil for entities that never collide.
	Collider() geom.Collider
	ShouldDispose() bool

	// Load acquires assets and derives the collider. rng is private to this
	// call so loads may run off the tick goroutine.
	Load(p assets.Provider, rng *rand.Rand) error
	Update(w *World, dt float64)
	Dispose() error

	core() *body
}

// body is the state every variant shares.
type body struct {
	id       EntityID
	kind     Kind
	pos      geom.Vec3
	rot      float64
	flagged  bool
	loaded   bool
	disposed bool

	provider assets.Provider
	handles  []assets.Handle
}

func newBody(kind Kind, pos geom.Vec3, rot float64) body {
	return body{kind: kind, pos: pos, rot: rot}
}

func (b *body) core() *body { return b }

func (b *body) ID() EntityID        { return b.id }
func (b *body) Kind() Kind          { return b.kind }
func (b *body) Position() geom.Vec3 { return b.pos }
func (b *body) Rotation() float64   { return b.rot }
func (b *body) ShouldDispose() bool { return b.flagged }

// flag requests disposal. It reports false if the entity was already flagged.
func (b *body) flag() bool {
	if b.flagged {
		return false
	}
	b.flagged = true
	return true
}

func (b *body) texture(p assets.Provider, name string) (assets.Handle, error) {
	b.provider = p
	h, err := p.Texture(name)
	if err != nil {
		return assets.Handle{}, err
	}
	b.handles = append(b.handles, h)
	return h, nil
}

func (b *body) model(p assets.Provider, name string) (assets.Model, error) {
	b.provider = p
	m, err := p.Model(name)
	if err != nil {
		return assets.Model{}, err
	}
	b.handles = append(b.handles, m.Handle)
	return m, nil
}

func (b *body) ground(p assets.Provider, rng *rand.Rand) (assets.Handle, error) {
	b.provider = p
	h, err := p.RandomGround(rng)
	if err != nil {
		return assets.Handle{}, err
	}
	b.handles = append(b.handles, h)
	return h, nil
}

// release returns every lease taken during Load.
func (b *body) release() error {
	var errs []error
	for _, h := range b.handles {
		if err := b.provider.Release(h); err != nil {
			errs = append(errs, err)
		}
	}
	b.handles = nil
	return errors.Join(errs...)
}

// Dispose releases owned resources. A second call returns ErrDisposed.
func (b *body) Dispose() error {
	if b.disposed {
		return fmt.Errorf("%s %d: %w", b.kind, b.id, ErrDisposed)
	}
	if !b.loaded {
		return fmt.Errorf("%s %d: %w", b.kind, b.id, ErrNotLoaded)
	}
	b.disposed = true
	return b.release()
}
