package game

import (
	"math"
	"testing"

	"tank-arena/internal/geom"
)

func spawnPlayer(t *testing.T, w *World, pos geom.Vec3) *PlayerTank {
	t.Helper()
	p := NewPlayerTank(w.cfg.Player, w.cfg.Tank, pos)
	mustSpawn(t, w, p)
	return p
}

func countKind(w *World, k Kind) int {
	n := 0
	w.Each(func(e Entity) bool {
		if e.Kind() == k {
			n++
		}
		return true
	})
	return n
}

// TestPlayerHitScenario walks the player from full health to destruction
func TestPlayerHitScenario(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.01})
	p := spawnPlayer(t, w, geom.V(7, 7, 0))

	p.Hit(w, 0)
	if p.Health() != 80 {
		t.Errorf("Expected health 80 after one hit, got %d", p.Health())
	}
	if p.ShouldDispose() {
		t.Error("Player should survive one hit")
	}

	for i := 0; i < 3; i++ {
		p.Hit(w, 0)
	}
	if p.Health() != 20 || p.ShouldDispose() {
		t.Errorf("Expected 20 health and alive after four hits, got %d (flagged=%v)", p.Health(), p.ShouldDispose())
	}

	p.Hit(w, 0)
	if p.Health() > 0 {
		t.Errorf("Expected health <= 0 after five hits, got %d", p.Health())
	}
	if !p.ShouldDispose() {
		t.Fatal("Player should be flagged for disposal")
	}

	// further hits on a flagged tank change nothing
	p.Hit(w, 0)
	if p.Health() != 0 {
		t.Errorf("Hits after flagging should be ignored, health %d", p.Health())
	}

	w.Tick()
	if countKind(w, KindPlayer) != 0 {
		t.Error("Player should be swept on the next tick")
	}
	if countKind(w, KindEffect) != 1 {
		t.Fatalf("Expected exactly one explosion, got %d", countKind(w, KindEffect))
	}
	w.Each(func(e Entity) bool {
		if fx, ok := e.(*Effect); ok {
			if fx.Variant() != EffectExplosion {
				t.Errorf("Expected explosion, got %s", fx.Variant())
			}
			if fx.Position() != geom.V(7, 7, 0) {
				t.Errorf("Expected explosion at player position, got %+v", fx.Position())
			}
		}
		return true
	})
}

// TestPlayerBlockedByWall checks a blocked move drops translation and rotation
func TestPlayerBlockedByWall(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.1})
	mustSpawn(t, w, NewWall(geom.V(1, 7, 0)))
	p := spawnPlayer(t, w, geom.V(2.1, 7, 0))
	p.rot = 1.5 * math.Pi // facing -x

	w.SetInput(KeyState{Up: true, Left: true})
	beforePos, beforeRot := p.Position(), p.Rotation()
	w.Tick()

	if p.Position() != beforePos {
		t.Errorf("Blocked move changed position: %+v -> %+v", beforePos, p.Position())
	}
	if p.Rotation() != beforeRot {
		t.Errorf("Blocked move changed rotation: %f -> %f", beforeRot, p.Rotation())
	}
	if p.Cooldown() >= 0 {
		t.Errorf("Cooldown should keep counting down while blocked, got %f", p.Cooldown())
	}
}

// TestPlayerMovement covers forward, backward, turning priority and the camera
func TestPlayerMovement(t *testing.T) {
	tests := []struct {
		name    string
		keys    KeyState
		wantPos geom.Vec3
		wantRot float64
	}{
		{"idle", KeyState{}, geom.V(7, 7, 0), 0},
		{"forward", KeyState{Up: true}, geom.V(7, 6.75, 0), 0},
		{"backward", KeyState{Down: true}, geom.V(7, 7.25, 0), 0},
		{"up wins over down", KeyState{Up: true, Down: true}, geom.V(7, 6.75, 0), 0},
		{"turn left", KeyState{Left: true}, geom.V(7, 7, 0), math.Pi * 0.1},
		{"turn right wraps", KeyState{Right: true}, geom.V(7, 7, 0), 2*math.Pi - math.Pi*0.1},
		{"left wins over right", KeyState{Left: true, Right: true}, geom.V(7, 7, 0), math.Pi * 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newTestWorld(t, FixedClock{Step: 0.1})
			p := spawnPlayer(t, w, geom.V(7, 7, 0))

			w.SetInput(tt.keys)
			w.Tick()

			if p.Position().DistanceTo(tt.wantPos) > 1e-9 {
				t.Errorf("Expected position %+v, got %+v", tt.wantPos, p.Position())
			}
			if math.Abs(p.Rotation()-tt.wantRot) > 1e-9 {
				t.Errorf("Expected rotation %f, got %f", tt.wantRot, p.Rotation())
			}
			cam := w.Camera()
			if cam.X != p.Position().X || cam.Y != p.Position().Y {
				t.Errorf("Camera %+v does not follow player %+v", cam, p.Position())
			}
			if cam.Z != w.cfg.Arena.CameraHeight {
				t.Errorf("Camera height changed to %f", cam.Z)
			}
		})
	}
}

// TestPlayerColliderTracksPosition checks the sphere moves with the tank
func TestPlayerColliderTracksPosition(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.1})
	p := spawnPlayer(t, w, geom.V(7, 7, 0))
	before := p.Collider().(geom.Sphere)

	w.SetInput(KeyState{Up: true})
	w.Tick()

	after := p.Collider().(geom.Sphere)
	moved := p.Position().Sub(geom.V(7, 7, 0))
	if after.Center.DistanceTo(before.Center.Add(moved)) > 1e-9 {
		t.Errorf("Collider center %+v did not follow move %+v", after.Center, moved)
	}
	if after.Radius != before.Radius {
		t.Errorf("Collider radius changed %f -> %f", before.Radius, after.Radius)
	}
}

// TestPlayerFireCooldown checks edge-triggered, cooldown-gated firing
func TestPlayerFireCooldown(t *testing.T) {
	w, _ := newTestWorld(t, FixedClock{Step: 0.1})
	p := spawnPlayer(t, w, geom.V(7, 7, 0))

	w.PressFire()
	w.Tick()
	if countKind(w, KindBullet) != 1 {
		t.Fatalf("Expected one bullet after firing, got %d", countKind(w, KindBullet))
	}
	if math.Abs(p.Cooldown()-1.9) > 1e-9 {
		t.Errorf("Expected cooldown 1.9, got %f", p.Cooldown())
	}

	var bullet *Bullet
	w.Each(func(e Entity) bool {
		if b, ok := e.(*Bullet); ok {
			bullet = b
		}
		return true
	})
	if bullet.Owner() != CategoryPlayer {
		t.Errorf("Expected player-owned bullet, got %s", bullet.Owner())
	}
	wantMuzzle := geom.V(7, 7-0.45, 0.5)
	if bullet.Position().DistanceTo(wantMuzzle) > 1e-9 {
		t.Errorf("Expected bullet at muzzle %+v, got %+v", wantMuzzle, bullet.Position())
	}

	// still cooling down: the edge is dropped
	w.PressFire()
	w.Tick()
	if countKind(w, KindBullet) != 1 {
		t.Errorf("Fire during cooldown should not spawn, got %d bullets", countKind(w, KindBullet))
	}
	// the muzzle flash from the first shot is now registered
	if countKind(w, KindEffect) != 1 {
		t.Errorf("Expected one muzzle flash, got %d", countKind(w, KindEffect))
	}
}
