package game

import (
	"errors"
	"testing"

	"tank-arena/internal/assets"
	"tank-arena/internal/geom"
)

// TestNewArena checks the default layout and registration order
func TestNewArena(t *testing.T) {
	w, lib := newTestWorld(t, FixedClock{Step: 1.0 / 60})
	a, err := NewArena(w)
	if err != nil {
		t.Fatalf("NewArena failed: %v", err)
	}

	if a.Map.Size() != 15 || len(a.Map.Tiles()) != 225 {
		t.Errorf("Expected 15x15 map, got size %d with %d tiles", a.Map.Size(), len(a.Map.Tiles()))
	}
	if a.Player.Position() != geom.V(7, 7, 0) {
		t.Errorf("Expected player at (7,7,0), got %+v", a.Player.Position())
	}
	if len(a.Enemies) != 2 {
		t.Fatalf("Expected 2 enemies, got %d", len(a.Enemies))
	}
	if a.Enemies[0].Position() != geom.V(3, 3, 0) || a.Enemies[1].Position() != geom.V(10, 10, 0) {
		t.Errorf("Unexpected enemy spawns %+v, %+v", a.Enemies[0].Position(), a.Enemies[1].Position())
	}
	if len(a.Walls) != 56 {
		t.Errorf("Expected 56 perimeter walls, got %d", len(a.Walls))
	}

	seen := map[geom.Vec3]bool{}
	for _, wall := range a.Walls {
		p := wall.Position()
		if seen[p] {
			t.Errorf("Duplicate wall at %+v", p)
		}
		seen[p] = true
		if p.X != 0 && p.X != 14 && p.Y != 0 && p.Y != 14 {
			t.Errorf("Wall at %+v is not on the perimeter", p)
		}
	}

	var kinds []Kind
	w.Each(func(e Entity) bool {
		kinds = append(kinds, e.Kind())
		return true
	})
	wantPrefix := []Kind{KindTile, KindPlayer, KindEnemy, KindEnemy, KindWall}
	for i, k := range wantPrefix {
		if kinds[i] != k {
			t.Errorf("Registration %d: expected %s, got %s", i, k, kinds[i])
		}
	}

	cam := w.Camera()
	if cam.X != 7 || cam.Y != 7 || cam.Z != 14 {
		t.Errorf("Expected camera over the player at height 14, got %+v", cam)
	}

	for _, e := range a.Enemies {
		if r := e.Rotation(); r != float64(int(r)) || r < 0 || r > 6 {
			t.Errorf("Expected whole-radian starting heading, got %f", r)
		}
	}

	for _, tile := range a.Map.Tiles() {
		tex, ok := lib.Lookup(tile.Texture)
		if !ok || !tex.Ground {
			t.Fatalf("Tile uses non-ground texture %q", tile.Texture)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if lib.Active() != 0 {
		t.Errorf("Expected every lease released on close, %d active", lib.Active())
	}
}

// TestArenaRunsWithoutPanics drives the default arena for a while
func TestArenaRunsWithoutPanics(t *testing.T) {
	w, lib := newTestWorld(t, FixedClock{Step: 1.0 / 60})
	a, err := NewArena(w)
	if err != nil {
		t.Fatal(err)
	}

	w.SetInput(KeyState{Up: true, Left: true})
	for i := 0; i < 60*20; i++ {
		if i%90 == 0 {
			w.PressFire()
		}
		w.Tick()
	}

	w.Each(func(e Entity) bool {
		p := e.Position()
		if e.Kind() == KindBullet || e.Kind() == KindEffect {
			return true
		}
		if p.X < -1 || p.X > 15 || p.Y < -1 || p.Y > 15 {
			t.Errorf("%s escaped the arena: %+v", e.Kind(), p)
		}
		return true
	})
	if a.Player.Health() > 100 {
		t.Errorf("Health grew to %d", a.Player.Health())
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if lib.Active() != 0 {
		t.Errorf("Leaked %d leases", lib.Active())
	}
}

// TestNewArenaMissingAssets is fatal when the tank model is absent
func TestNewArenaMissingAssets(t *testing.T) {
	m, err := assets.ParseManifest([]byte("textures:\n  - {name: g1, color: '#3d5c2e', ground: true}\n"))
	if err != nil {
		t.Fatal(err)
	}
	lib := assets.NewLibrary(m, "")
	w := NewWorld(WorldOptions{Config: testConfig(), Provider: lib, Clock: FixedClock{Step: 0.1}, Seed: 1})

	if _, err := NewArena(w); !errors.Is(err, assets.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	w.Close()
	if lib.Active() != 0 {
		t.Errorf("Expected no leases after failed arena, %d active", lib.Active())
	}
}
