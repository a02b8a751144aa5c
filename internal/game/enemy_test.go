package game

import (
	"math"
	"testing"

	"tank-arena/internal/geom"
)

func spawnEnemy(t *testing.T, w *World, pos geom.Vec3, rot float64) *EnemyTank {
	t.Helper()
	e := NewEnemyTank(w.cfg.Enemy, w.cfg.Tank, pos)
	mustSpawn(t, w, e)
	e.rot = rot
	return e
}

// TestEnemyHoldsFireOutsideShootAngle checks a bearing of π/2 from rotation 0 does not fire
func TestEnemyHoldsFireOutsideShootAngle(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.01})
	spawnPlayer(t, w, geom.V(8, 5, 0))
	e := spawnEnemy(t, w, geom.V(5, 5, 0), 0)

	if got := geom.HeadingTo(e.Position(), geom.V(8, 5, 0)); math.Abs(got-math.Pi/2) > 1e-9 {
		t.Fatalf("Expected bearing π/2, got %f", got)
	}

	w.Tick()
	if e.Mode() != ModeEngage {
		t.Fatalf("Expected engage mode, got %s", e.Mode())
	}
	if n := countKind(w, KindBullet); n != 0 {
		t.Errorf("Enemy fired outside its shoot angle (%d bullets)", n)
	}
	if want := 2 * 0.01; math.Abs(e.Rotation()-want) > 1e-9 {
		t.Errorf("Expected enemy to turn toward the player by %f, got %f", want, e.Rotation())
	}
}

// TestEnemyFiresWhenAimed checks firing inside the shoot angle resets the cooldown
func TestEnemyFiresWhenAimed(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.01})
	spawnPlayer(t, w, geom.V(5, 1, 0))
	e := spawnEnemy(t, w, geom.V(5, 5, 0), 0.2)

	w.Tick()
	var bullet *Bullet
	w.Each(func(ent Entity) bool {
		if b, ok := ent.(*Bullet); ok {
			bullet = b
		}
		return true
	})
	if bullet == nil {
		t.Fatal("Expected the enemy to fire")
	}
	if bullet.Owner() != CategoryEnemy {
		t.Errorf("Expected enemy-owned bullet, got %s", bullet.Owner())
	}
	if e.Cooldown() != w.cfg.Enemy.ShootInterval {
		t.Errorf("Expected cooldown reset to %f, got %f", w.cfg.Enemy.ShootInterval, e.Cooldown())
	}

	// deadband: almost exactly on target, no correction
	w2, _ := newTestWorld(t, FixedClock{Step: 0.01})
	spawnPlayer(t, w2, geom.V(5, 1, 0))
	e2 := spawnEnemy(t, w2, geom.V(5, 5, 0), 0.02)
	w2.Tick()
	if e2.Rotation() != 0.02 {
		t.Errorf("Aim error inside the deadband should not rotate, got %f", e2.Rotation())
	}
}

// TestEnemyModeSwitch checks detection uses the fresh distance every tick
func TestEnemyModeSwitch(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.001})
	p := spawnPlayer(t, w, geom.V(13, 0, 0))
	e := spawnEnemy(t, w, geom.V(0, 0, 0), math.Pi) // roaming away from the player

	w.Tick()
	if e.Mode() != ModeRoam {
		t.Fatalf("Expected roam beyond detection range, got %s", e.Mode())
	}

	place(&p.tank, geom.V(11, 0, 0))
	w.Tick()
	if e.Mode() != ModeEngage {
		t.Fatalf("Expected engage on the very next tick, got %s", e.Mode())
	}

	place(&p.tank, geom.V(13, 0, 0))
	w.Tick()
	if e.Mode() != ModeRoam {
		t.Errorf("Expected immediate return to roam, got %s", e.Mode())
	}
}

// TestEnemyIdleWithoutPlayer holds position and heading when there is nobody to hunt
func TestEnemyIdleWithoutPlayer(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.1})
	e := spawnEnemy(t, w, geom.V(7, 7, 0), 1)
	e.cooldown = 1

	for i := 0; i < 3; i++ {
		w.Tick()
	}
	if e.Mode() != ModeIdle {
		t.Errorf("Expected idle, got %s", e.Mode())
	}
	if e.Position() != geom.V(7, 7, 0) {
		t.Errorf("Expected the enemy to stay at (7,7), got %+v", e.Position())
	}
	if e.Rotation() != 1 {
		t.Errorf("Expected heading 1 to hold, got %f", e.Rotation())
	}
	if math.Abs(e.Cooldown()-0.7) > 1e-9 {
		t.Errorf("Expected cooldown to keep counting down to 0.7, got %f", e.Cooldown())
	}
	if n := countKind(w, KindBullet); n != 0 {
		t.Errorf("Idle enemy fired %d bullets", n)
	}
}

// TestEnemyRoamsOutOfRange drives straight ahead when the player is beyond detection
func TestEnemyRoamsOutOfRange(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.1})
	spawnPlayer(t, w, geom.V(25, 5, 0))
	e := spawnEnemy(t, w, geom.V(5, 5, 0), 0)

	w.Tick()
	if e.Mode() != ModeRoam {
		t.Errorf("Expected roam, got %s", e.Mode())
	}
	want := geom.V(5, 5-0.15, 0)
	if e.Position().DistanceTo(want) > 1e-9 {
		t.Errorf("Expected position %+v, got %+v", want, e.Position())
	}
}

// TestEnemyRoamBlocked picks a new heading and stays put
func TestEnemyRoamBlocked(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.1})
	spawnPlayer(t, w, geom.V(25, 5, 0)) // out of detection range
	mustSpawn(t, w, NewWall(geom.V(5, 4, 0)))
	e := spawnEnemy(t, w, geom.V(5, 5.1, 0), 0) // facing the wall

	before := e.Position()
	w.Tick()
	if e.Position() != before {
		t.Errorf("Blocked roam moved the tank: %+v -> %+v", before, e.Position())
	}
	if e.Rotation() < 0 || e.Rotation() >= geom.FullTurn {
		t.Errorf("Rotation %f outside [0, 2π)", e.Rotation())
	}
}

// TestEnemyEngageBlockedTurns rotates a quarter turn when the approach is blocked
func TestEnemyEngageBlockedTurns(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.1})
	spawnPlayer(t, w, geom.V(5, 0, 0))
	mustSpawn(t, w, NewWall(geom.V(5, 4, 0)))
	e := spawnEnemy(t, w, geom.V(5, 5.1, 0), 0)

	before := e.Position()
	w.Tick()
	if e.Position() != before {
		t.Errorf("Blocked approach moved the tank: %+v -> %+v", before, e.Position())
	}
	if math.Abs(e.Rotation()-math.Pi/2) > 1e-9 {
		t.Errorf("Expected a quarter turn to π/2, got %f", e.Rotation())
	}
}

// TestEnemyStopsAtApproachDistance holds position when close to the player
func TestEnemyStopsAtApproachDistance(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.1})
	spawnPlayer(t, w, geom.V(5, 3.5, 0))
	e := spawnEnemy(t, w, geom.V(5, 5, 0), 0)

	w.Tick()
	if e.Position() != geom.V(5, 5, 0) {
		t.Errorf("Enemy within approach distance should not advance, got %+v", e.Position())
	}
}

// TestEnemyDamage applies variable damage and explodes once
func TestEnemyDamage(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.1})
	e := spawnEnemy(t, w, geom.V(5, 5, 0), 0)

	e.Damage(w, 35, 0)
	if e.Health() != 65 {
		t.Errorf("Expected 65 health, got %d", e.Health())
	}
	e.Damage(w, 65, 0)
	if !e.ShouldDispose() {
		t.Fatal("Enemy at zero health should be flagged")
	}
	e.Damage(w, 10, 0)

	w.Tick()
	if n := countKind(w, KindEffect); n != 1 {
		t.Errorf("Expected one explosion, got %d", n)
	}
}
