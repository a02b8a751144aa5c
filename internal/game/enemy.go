package game

import (
	"math"
	"math/rand"

	"tank-arena/internal/assets"
	"tank-arena/internal/config"
	"tank-arena/internal/geom"
)

// EnemyMode is the branch an enemy took on its last update.
type EnemyMode uint8

const (
	ModeRoam EnemyMode = iota
	ModeEngage
	// ModeIdle holds still while there is no player in the world.
	ModeIdle
)

func (m EnemyMode) String() string {
	switch m {
	case ModeEngage:
		return "engage"
	case ModeIdle:
		return "idle"
	default:
		return "roam"
	}
}

// EnemyTank hunts the player inside its detection range and roams
// otherwise. With no player in the world it only counts down its cooldown.
// The mode is re-evaluated every tick with no hysteresis.
type EnemyTank struct {
	tank
	cfg  config.EnemyConfig
	mode EnemyMode
}

// NewEnemyTank creates an unloaded enemy at pos.
func NewEnemyTank(cfg config.EnemyConfig, geo config.TankConfig, pos geom.Vec3) *EnemyTank {
	return &EnemyTank{
		tank: newTank(KindEnemy, geo, pos, cfg.Health, "tank-body-red", "tank-turret-red"),
		cfg:  cfg,
	}
}

// Mode returns the branch taken on the last update.
func (e *EnemyTank) Mode() EnemyMode { return e.mode }

// Load picks a whole-radian starting heading and leases the red skin.
func (e *EnemyTank) Load(p assets.Provider, rng *rand.Rand) error {
	e.rot = math.Floor(rng.Float64() * geom.FullTurn)
	return e.loadTank(p)
}

func (e *EnemyTank) Update(w *World, dt float64) {
	e.cooldown -= dt

	player := w.Query().FirstOf(CategoryPlayer)
	if player == nil {
		e.mode = ModeIdle
		return
	}
	if e.pos.DistanceTo(player.Position()) <= e.cfg.DetectionRange {
		e.mode = ModeEngage
		e.engage(w, player.Position(), dt)
	} else {
		e.mode = ModeRoam
		e.roam(w, dt)
	}
	e.rot = geom.WrapAngle(e.rot)
}

// engage steers toward target, closes in, and fires when the aim error
// measured before this tick's turn is inside the shoot angle.
func (e *EnemyTank) engage(w *World, target geom.Vec3, dt float64) {
	diff := geom.NormalizeDelta(geom.HeadingTo(e.pos, target) - e.rot)
	if math.Abs(diff) > e.cfg.Deadband {
		step := e.cfg.RotationSpeed * dt
		if diff > 0 {
			e.rot += step
		} else {
			e.rot -= step
		}
	}
	e.rot = geom.WrapAngle(e.rot)

	if e.pos.DistanceTo(target) > e.cfg.ApproachDistance {
		d := geom.Forward(e.rot).Scale(e.cfg.MoveSpeed * dt)
		if e.blocked(w, e, d) {
			e.rot += math.Pi / 2
		} else {
			e.move(d)
		}
	}

	if e.cooldown <= 0 && math.Abs(diff) < e.cfg.ShootAngle {
		e.shoot(w, CategoryEnemy, e.cfg.ShootInterval)
	}
}

// roam drives straight ahead and re-heads at random when blocked.
func (e *EnemyTank) roam(w *World, dt float64) {
	d := geom.Forward(e.rot).Scale(e.cfg.MoveSpeed * dt)
	if e.blocked(w, e, d) {
		e.rot = w.rng.Float64() * geom.FullTurn
		return
	}
	e.move(d)
}

// Damage subtracts amount from health.
func (e *EnemyTank) Damage(w *World, amount int, source EntityID) {
	e.takeDamage(w, amount, source)
}
