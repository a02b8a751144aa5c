package game

import (
	"fmt"

	"go.uber.org/zap"

	"tank-arena/internal/assets"
	"tank-arena/internal/config"
	"tank-arena/internal/geom"
)

// Required parts of the tank model.
const (
	PartBody   = "Body"
	PartTurret = "Turret"
)

// tank is the state both tank variants share: health, a fire cooldown and
// a sphere collider that tracks the position.
type tank struct {
	body
	geo      config.TankConfig
	skin     [2]string // body and turret texture names
	health   int
	cooldown float64
	collider geom.Sphere
}

func newTank(kind Kind, geo config.TankConfig, pos geom.Vec3, health int, bodyTex, turretTex string) tank {
	return tank{
		body:   newBody(kind, pos, 0),
		geo:    geo,
		skin:   [2]string{bodyTex, turretTex},
		health: health,
	}
}

// Health returns the remaining health.
func (t *tank) Health() int { return t.health }

// Cooldown returns the seconds until the tank may fire again.
func (t *tank) Cooldown() float64 { return t.cooldown }

func (t *tank) Collider() geom.Collider { return t.collider }

// loadTank leases the model and skins and derives the collider from the
// model bounds at the spawn position.
func (t *tank) loadTank(p assets.Provider) error {
	m, err := t.model(p, "tank")
	if err != nil {
		return err
	}
	for _, part := range []string{PartBody, PartTurret} {
		if !m.HasPart(part) {
			return fmt.Errorf("tank model has no %s part: %w", part, assets.ErrNotFound)
		}
	}
	for _, name := range t.skin {
		if _, err := t.texture(p, name); err != nil {
			return err
		}
	}

	s := m.Bounds.Translated(t.pos).BoundingSphere()
	s.Radius *= t.geo.ColliderScale
	t.collider = s
	return nil
}

// blocked reports whether the collider moved by d would touch any other
// non-projectile entity.
func (t *tank) blocked(w *World, self Entity, d geom.Vec3) bool {
	probe := t.collider.Translated(d)
	hit := w.Query().FirstOverlap(probe, func(e Entity) bool {
		return e != self && e.Kind().Category() != CategoryBullet
	})
	return hit != nil
}

// move translates position and collider together.
func (t *tank) move(d geom.Vec3) {
	t.pos = t.pos.Add(d)
	t.collider = t.collider.Translated(d)
}

// muzzle returns the bullet spawn point in front of the tank.
func (t *tank) muzzle() geom.Vec3 {
	return t.pos.
		Add(geom.Forward(t.rot).Scale(t.geo.MuzzleOffset)).
		Add(geom.V(0, 0, t.geo.MuzzleHeight))
}

// shoot spawns a bullet and a muzzle flash and resets the cooldown. A failed
// bullet spawn is logged and still costs the cooldown.
func (t *tank) shoot(w *World, owner Category, interval float64) {
	at := t.muzzle()
	if err := w.Spawn(NewBullet(w.cfg.Bullet, at, t.rot, owner)); err != nil {
		w.logger.Warn("bullet spawn failed", zap.Stringer("owner", owner), zap.Error(err))
	}
	w.BeginSpawn(NewMuzzleFlash(w.cfg.Effect, at, t.rot))
	w.events.EmitSimple(EventTypeFire, w.tick, sourceOf(t.id), FirePayload{
		EntityID: uint64(t.id),
		Owner:    owner.String(),
		X:        at.X,
		Y:        at.Y,
		Angle:    t.rot,
	})
	t.cooldown = interval
}

// takeDamage subtracts amount and flags the tank at zero health. Hits on an
// already flagged tank are ignored so it explodes once.
func (t *tank) takeDamage(w *World, amount int, source EntityID) {
	if t.flagged {
		return
	}
	t.health -= amount
	w.events.EmitSimple(EventTypeDamage, w.tick, sourceOf(source), DamagePayload{
		SourceID: uint64(source),
		TargetID: uint64(t.id),
		Damage:   amount,
		Health:   t.health,
	})
	if t.health > 0 {
		return
	}
	t.flag()
	w.spawnExplosion(t.pos)
	w.events.EmitSimple(EventTypeDestroyed, w.tick, sourceOf(source), DestroyedPayload{
		EntityID: uint64(t.id),
		Kind:     t.kind.String(),
		X:        t.pos.X,
		Y:        t.pos.Y,
	})
	w.logger.Info("tank destroyed", zap.Stringer("kind", t.kind), zap.Uint64("id", uint64(t.id)))
}
