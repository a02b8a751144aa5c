package game

import (
	"math/rand"

	"tank-arena/internal/assets"
	"tank-arena/internal/config"
	"tank-arena/internal/geom"
)

// Bullet flies in a straight line at constant speed and stops at the first
// entity it overlaps that is not on its owner's side.
type Bullet struct {
	body
	cfg      config.BulletConfig
	owner    Category
	collider geom.Sphere
	traveled float64
}

// NewBullet creates an unloaded bullet heading along angle. owner is
// CategoryPlayer or CategoryEnemy.
func NewBullet(cfg config.BulletConfig, pos geom.Vec3, angle float64, owner Category) *Bullet {
	return &Bullet{
		body:  newBody(KindBullet, pos, angle),
		cfg:   cfg,
		owner: owner,
	}
}

// Owner returns the side that fired the bullet.
func (b *Bullet) Owner() Category { return b.owner }

// Traveled returns the distance covered so far.
func (b *Bullet) Traveled() float64 { return b.traveled }

func (b *Bullet) Collider() geom.Collider { return b.collider }

func (b *Bullet) Load(p assets.Provider, _ *rand.Rand) error {
	if _, err := b.texture(p, "bullet"); err != nil {
		return err
	}
	b.collider = geom.Sphere{Center: b.pos, Radius: b.cfg.Radius}
	return nil
}

// Update advances the bullet and resolves at most one hit. Only the first
// qualifying entity in registration order takes damage.
func (b *Bullet) Update(w *World, dt float64) {
	step := b.cfg.Speed * dt
	d := geom.Forward(b.rot).Scale(step)
	b.pos = b.pos.Add(d)
	b.collider = b.collider.Translated(d)
	b.traveled += step

	hit := w.Query().FirstOverlap(b.collider, func(e Entity) bool {
		return e != b && e.Kind().Category() != b.owner
	})
	if hit != nil {
		b.flag()
		w.spawnExplosion(b.pos)
		switch target := hit.(type) {
		case *EnemyTank:
			target.Damage(w, b.cfg.Damage, b.id)
		case *PlayerTank:
			target.Hit(w, b.id)
		}
		return
	}

	if b.cfg.MaxTravel > 0 && b.traveled >= b.cfg.MaxTravel {
		b.flag()
	}
}
