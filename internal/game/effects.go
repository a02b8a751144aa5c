package game

import (
	"math/rand"

	"tank-arena/internal/assets"
	"tank-arena/internal/config"
	"tank-arena/internal/geom"
)

// EffectVariant selects how fire particles are spread.
type EffectVariant uint8

const (
	// EffectMuzzle sprays fire in a narrow cone along the barrel.
	EffectMuzzle EffectVariant = iota
	// EffectExplosion sprays fire in every direction.
	EffectExplosion
)

func (v EffectVariant) String() string {
	if v == EffectExplosion {
		return "explosion"
	}
	return "muzzle"
}

// ParticleKind separates fire from smoke.
type ParticleKind uint8

const (
	ParticleFire ParticleKind = iota
	ParticleSmoke
)

// Particle is one sub-element of an effect. Offset is relative to the
// effect origin; Angle and Speed are fixed at load time.
type Particle struct {
	Kind    ParticleKind
	Offset  geom.Vec3
	Angle   float64
	Speed   float64
	Scale   float64
	Opacity float64
}

// Effect is a short-lived cosmetic entity with no collider. Its motion
// decays with the remaining duration and it flags itself once that goes
// negative.
type Effect struct {
	body
	cfg       config.EffectConfig
	variant   EffectVariant
	remaining float64
	fire      []Particle
	smoke     []Particle
}

// NewMuzzleFlash creates an unloaded flash aimed along angle.
func NewMuzzleFlash(cfg config.EffectConfig, pos geom.Vec3, angle float64) *Effect {
	return &Effect{
		body:      newBody(KindEffect, pos, angle),
		cfg:       cfg,
		variant:   EffectMuzzle,
		remaining: cfg.Duration,
	}
}

// NewExplosion creates an unloaded explosion at pos.
func NewExplosion(cfg config.EffectConfig, pos geom.Vec3) *Effect {
	return &Effect{
		body:      newBody(KindEffect, pos, 0),
		cfg:       cfg,
		variant:   EffectExplosion,
		remaining: cfg.Duration,
	}
}

// Variant returns the effect variant.
func (f *Effect) Variant() EffectVariant { return f.variant }

// Remaining returns the seconds left before the effect flags itself.
func (f *Effect) Remaining() float64 { return f.remaining }

func (f *Effect) Collider() geom.Collider { return nil }

// Load rolls the particle set. Each particle leases its own texture.
func (f *Effect) Load(p assets.Provider, rng *rand.Rand) error {
	n := f.cfg.MinParticles + rng.Intn(f.cfg.MaxParticles-f.cfg.MinParticles+1)
	f.fire = make([]Particle, 0, n)
	f.smoke = make([]Particle, 0, n)

	for i := 0; i < n; i++ {
		var jitter float64
		if f.variant == EffectExplosion {
			jitter = rng.Float64() * geom.FullTurn
		} else {
			jitter = f.cfg.Jitter * rng.Float64() * randomSign(rng)
		}
		if _, err := f.texture(p, "fire"); err != nil {
			return err
		}
		f.fire = append(f.fire, Particle{
			Kind:    ParticleFire,
			Angle:   f.rot + jitter,
			Speed:   f.cfg.SpeedScale * rng.Float64(),
			Scale:   1,
			Opacity: 1,
		})

		if _, err := f.texture(p, "smoke"); err != nil {
			return err
		}
		size := f.cfg.Size
		f.smoke = append(f.smoke, Particle{
			Kind: ParticleSmoke,
			Offset: geom.V(
				rng.Float64()*size*randomSign(rng),
				rng.Float64()*size*randomSign(rng),
				rng.Float64()*size*randomSign(rng),
			),
			Scale:   1,
			Opacity: 1,
		})
	}
	return nil
}

func (f *Effect) Update(_ *World, dt float64) {
	f.remaining -= dt
	if f.remaining < 0 {
		f.flag()
	}

	k := dt * f.remaining * f.cfg.Decay
	for i := range f.fire {
		pt := &f.fire[i]
		pt.Offset = pt.Offset.Add(geom.Forward(pt.Angle).Scale(pt.Speed * k))
		pt.Scale = f.remaining
	}
	for i := range f.smoke {
		pt := &f.smoke[i]
		pt.Opacity = f.remaining
		pt.Offset.Z += f.cfg.SmokeRise * dt
	}
}

// AppendParticles appends every particle in world space to dst.
func (f *Effect) AppendParticles(dst []Particle) []Particle {
	for _, set := range [2][]Particle{f.fire, f.smoke} {
		for _, pt := range set {
			pt.Offset = f.pos.Add(pt.Offset)
			dst = append(dst, pt)
		}
	}
	return dst
}

// ParticleCount returns the number of fire plus smoke particles.
func (f *Effect) ParticleCount() int { return len(f.fire) + len(f.smoke) }

func randomSign(rng *rand.Rand) float64 {
	if rng.Float64() < 0.5 {
		return 1
	}
	return -1
}
