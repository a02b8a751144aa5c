package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaults pins the gameplay constants the arena is tuned around
func TestDefaults(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults must validate: %v", err)
	}
	if cfg.Arena.MapSize != 15 || len(cfg.Arena.EnemySpawns) != 2 {
		t.Errorf("Expected 15x15 arena with 2 enemies, got %d and %d", cfg.Arena.MapSize, len(cfg.Arena.EnemySpawns))
	}
	if cfg.Player.Health != 100 || cfg.Player.HitDamage != 20 {
		t.Errorf("Expected 100 health and 20 damage per hit, got %d and %d", cfg.Player.Health, cfg.Player.HitDamage)
	}
	if cfg.Player.ShootInterval != 2 || cfg.Enemy.ShootInterval != 2 {
		t.Error("Expected a 2s shoot interval for both tanks")
	}
	if cfg.Bullet.MaxTravel != 30 {
		t.Errorf("Expected bullet max travel 30, got %f", cfg.Bullet.MaxTravel)
	}
	if cfg.Effect.MinParticles != 4 || cfg.Effect.MaxParticles != 9 {
		t.Errorf("Expected 4..9 particles, got %d..%d", cfg.Effect.MinParticles, cfg.Effect.MaxParticles)
	}
	if got := cfg.Sim.TickInterval(); got != time.Second/60 {
		t.Errorf("Expected 60 TPS interval, got %v", got)
	}
}

// TestLoadFile overlays a TOML file on the defaults
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.toml")
	data := `
[sim]
tick_rate = 30
seed = 7

[arena]
map_size = 21
enemy_spawns = [[4.0, 4.0, 0.0], [16.0, 4.0, 0.0], [10.0, 16.0, 0.0]]

[bullet]
max_travel = 0.0
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sim.TickRate != 30 || cfg.Sim.Seed != 7 {
		t.Errorf("Expected tick rate 30 and seed 7, got %d and %d", cfg.Sim.TickRate, cfg.Sim.Seed)
	}
	if cfg.Arena.MapSize != 21 || len(cfg.Arena.EnemySpawns) != 3 {
		t.Errorf("Expected 21x21 with 3 enemies, got %d and %d", cfg.Arena.MapSize, len(cfg.Arena.EnemySpawns))
	}
	if cfg.Arena.EnemySpawns[1] != [3]float64{16, 4, 0} {
		t.Errorf("Unexpected second spawn %v", cfg.Arena.EnemySpawns[1])
	}
	if cfg.Bullet.MaxTravel != 0 {
		t.Errorf("Expected unlimited travel, got %f", cfg.Bullet.MaxTravel)
	}
	// untouched sections keep their defaults
	if cfg.Player != DefaultPlayer() {
		t.Errorf("Player section changed: %+v", cfg.Player)
	}
}

// TestLoadMissingFile falls back to defaults
func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Missing file should not fail: %v", err)
	}
	def := DefaultArena()
	if cfg.Arena.MapSize != def.MapSize || cfg.Arena.PlayerSpawn != def.PlayerSpawn || len(cfg.Arena.EnemySpawns) != len(def.EnemySpawns) {
		t.Errorf("Expected default arena, got %+v", cfg.Arena)
	}
	if cfg.Bullet != DefaultBullet() {
		t.Errorf("Expected default bullet tuning, got %+v", cfg.Bullet)
	}
}

// TestLoadErrors rejects bad files and bad values
func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"syntax", "[sim\ntick_rate = 1", "parse config"},
		{"zero tick rate", "[sim]\ntick_rate = 0", "tick_rate"},
		{"tiny map", "[arena]\nmap_size = 2", "map_size"},
		{"particle range", "[effect]\nmin_particles = 9\nmax_particles = 4", "particle range"},
		{"negative speed", "[bullet]\nspeed = -1.0", "speeds"},
		{"zero input rate", "[server]\ninput_rps = 0.0", "input_rps"},
		{"zero ws cap", "[server]\nmax_ws_per_ip = 0", "max_ws_per_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestEnvOverrides wins over the file
func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = 4000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ARENA_PORT", "5000")
	t.Setenv("ARENA_SEED", "99")
	t.Setenv("ARENA_LOG_LEVEL", "debug")
	t.Setenv("DISABLE_DEBUG_SERVER", "true")
	t.Setenv("ARENA_BULLET_MAX_TRAVEL", "12.5")
	t.Setenv("ARENA_TICK_RATE", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Expected env port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Sim.Seed != 99 || cfg.Logging.Level != "debug" {
		t.Errorf("Expected seed 99 at debug, got %d at %s", cfg.Sim.Seed, cfg.Logging.Level)
	}
	if cfg.Debug.Enabled {
		t.Error("Expected debug server disabled")
	}
	if cfg.Bullet.MaxTravel != 12.5 {
		t.Errorf("Expected max travel 12.5, got %f", cfg.Bullet.MaxTravel)
	}
	if cfg.Sim.TickRate != 60 {
		t.Errorf("Unparseable tick rate should keep the default, got %d", cfg.Sim.TickRate)
	}
}
