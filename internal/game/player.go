package game

import (
	"math/rand"

	"tank-arena/internal/assets"
	"tank-arena/internal/config"
	"tank-arena/internal/geom"
)

// PlayerTank is the input-driven tank. It reads the world's latched key
// state each tick and fires on the fire edge.
type PlayerTank struct {
	tank
	cfg config.PlayerConfig
}

// NewPlayerTank creates an unloaded player tank at pos.
func NewPlayerTank(cfg config.PlayerConfig, geo config.TankConfig, pos geom.Vec3) *PlayerTank {
	return &PlayerTank{
		tank: newTank(KindPlayer, geo, pos, cfg.Health, "tank-body", "tank-turret"),
		cfg:  cfg,
	}
}

func (p *PlayerTank) Load(provider assets.Provider, _ *rand.Rand) error {
	return p.loadTank(provider)
}

// Update applies one tick of input. A move whose target overlaps anything
// except a projectile is dropped whole, rotation included.
func (p *PlayerTank) Update(w *World, dt float64) {
	if w.takeFire() && p.cooldown <= 0 {
		p.shoot(w, CategoryPlayer, p.cfg.ShootInterval)
	}
	p.cooldown -= dt

	keys := w.Input()
	rot := geom.WrapAngle(p.rot + keys.turn()*p.cfg.TurnSpeed*dt)
	d := geom.Forward(rot).Scale(keys.throttle() * p.cfg.MoveSpeed * dt)

	if p.blocked(w, p, d) {
		return
	}
	p.rot = rot
	p.move(d)
	w.camera.X, w.camera.Y = p.pos.X, p.pos.Y
}

// Hit applies one enemy bullet.
func (p *PlayerTank) Hit(w *World, source EntityID) {
	p.takeDamage(w, p.cfg.HitDamage, source)
}
