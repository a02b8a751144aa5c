package game

import (
	"sync/atomic"
	"time"

	"tank-arena/internal/config"
	"tank-arena/internal/geom"
)

// EntitySnapshot is an immutable copy of one entity for rendering
type EntitySnapshot struct {
	ID       uint64  `json:"id"`
	Kind     string  `json:"kind"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation"`
	Disposed bool    `json:"disposed"` // flagged, removed next tick

	// Collider, zero radius when none
	ColliderRadius float64 `json:"colliderRadius,omitempty"`

	// Tanks
	Health   int     `json:"health,omitempty"`
	Cooldown float64 `json:"cooldown,omitempty"`
	Mode     string  `json:"mode,omitempty"`

	// Bullets
	Owner string `json:"owner,omitempty"`

	// Effects
	Variant   string  `json:"variant,omitempty"`
	Remaining float64 `json:"remaining,omitempty"`
}

// ParticleSnapshot is an immutable effect particle in world space
type ParticleSnapshot struct {
	Smoke   bool    `json:"smoke"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Scale   float64 `json:"scale"`
	Opacity float64 `json:"opacity"`
}

// TileSnapshot is one ground cell
type TileSnapshot struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Texture string `json:"texture"`
}

// GameSnapshot is a complete immutable game state for rendering
// Slices are capped by the resource limits to prevent memory attacks
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`   // Monotonic sequence for ordering
	Timestamp  time.Time `json:"timestamp"`  // When snapshot was created
	TickNumber uint64    `json:"tickNumber"` // Game tick this represents
	RNGSeed    int64     `json:"rngSeed"`    // Seed for deterministic replay
	Delta      float64   `json:"delta"`      // Elapsed time of the tick
	Session    string    `json:"session"`

	Camera  geom.Vec3 `json:"camera"`
	MapSize int       `json:"mapSize"`

	// Capped slices (never grow beyond limits)
	Entities  []EntitySnapshot   `json:"entities"`
	Particles []ParticleSnapshot `json:"particles"`
	Tiles     []TileSnapshot     `json:"tiles"`

	// Aggregate stats
	EntityCount  int    `json:"entityCount"`
	EnemiesAlive int    `json:"enemiesAlive"`
	PlayerHealth int    `json:"playerHealth"`
	Outcome      string `json:"outcome"`
}

// Clone returns a deep copy the caller may modify.
func (s *GameSnapshot) Clone() GameSnapshot {
	c := *s
	c.Entities = append([]EntitySnapshot(nil), s.Entities...)
	c.Particles = append([]ParticleSnapshot(nil), s.Particles...)
	c.Tiles = append([]TileSnapshot(nil), s.Tiles...)
	return c
}

// Player returns the player entry, if present.
func (s *GameSnapshot) Player() (EntitySnapshot, bool) {
	for _, e := range s.Entities {
		if e.Kind == KindPlayer.String() {
			return e, true
		}
	}
	return EntitySnapshot{}, false
}

// SnapshotPool publishes immutable snapshots for lock-free readers.
// The producer fills a fresh snapshot each tick and swaps it in with one
// atomic store; a published snapshot is never written again, so readers
// may keep it as long as they like.
type SnapshotPool struct {
	limits   config.ResourceLimits
	tiles    int
	current  atomic.Pointer[GameSnapshot]
	sequence uint64 // producer only
}

// NewSnapshotPool creates a pool whose first read is an empty snapshot
func NewSnapshotPool(limits config.ResourceLimits, mapSize int) *SnapshotPool {
	pool := &SnapshotPool{limits: limits, tiles: mapSize * mapSize}
	pool.current.Store(&GameSnapshot{})
	return pool
}

// AcquireWrite returns an empty snapshot for the producer to fill.
// Slices are sized from the last publish so steady ticks do not regrow them.
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	prev := p.current.Load()
	p.sequence++
	return &GameSnapshot{
		Sequence:  p.sequence,
		Timestamp: time.Now(),
		Entities:  make([]EntitySnapshot, 0, capHint(len(prev.Entities), p.limits.MaxSnapshotItems)),
		Particles: make([]ParticleSnapshot, 0, capHint(len(prev.Particles), p.limits.MaxParticles)),
		Tiles:     make([]TileSnapshot, 0, p.tiles),
	}
}

// PublishWrite makes snap the latest snapshot. The producer must not touch
// snap afterwards.
func (p *SnapshotPool) PublishWrite(snap *GameSnapshot) {
	p.current.Store(snap)
}

// AcquireRead returns the latest published snapshot. Never nil.
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	return p.current.Load()
}

// GetLimits returns the resource limits
func (p *SnapshotPool) GetLimits() config.ResourceLimits {
	return p.limits
}

// capHint leaves a little headroom over the last length, bounded by limit.
func capHint(last, limit int) int {
	c := last + last/4 + 8
	if limit > 0 && c > limit {
		c = limit
	}
	return c
}
