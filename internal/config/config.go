// Package config provides centralized configuration management.
// Every gameplay constant lives here; the simulation reads them through the
// typed sections below and never hard-codes tuning values.
//
// Precedence: defaults < TOML file < environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// SIMULATION
// =============================================================================

// SimConfig controls the frame clock.
type SimConfig struct {
	TickRate      int     `toml:"tick_rate"`       // Ticks per second of the real-time driver
	MaxFrameDelta float64 `toml:"max_frame_delta"` // Upper bound on one tick's elapsed time (seconds)
	Seed          int64   `toml:"seed"`            // RNG seed, 0 = time based
}

// DefaultSim returns the default simulation settings.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:      60,
		MaxFrameDelta: 0.1, // a stalled frame must not teleport bullets through walls
	}
}

// TickInterval returns the wall-clock period of one tick.
func (c SimConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// =============================================================================
// ARENA LAYOUT
// =============================================================================

// ArenaConfig describes the tile map and initial placement.
type ArenaConfig struct {
	MapSize      int          `toml:"map_size"`      // Tiles per side; the outer ring is walls
	PlayerSpawn  [3]float64   `toml:"player_spawn"`  // Player start position
	EnemySpawns  [][3]float64 `toml:"enemy_spawns"`  // One enemy per entry
	CameraHeight float64      `toml:"camera_height"` // Camera Z, X/Y follow the player
	AssetDir     string       `toml:"asset_dir"`     // Directory holding manifest.yaml, empty = built-in set
}

// DefaultArena returns the classic 15x15 arena with two enemies.
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		MapSize:      15,
		PlayerSpawn:  [3]float64{7, 7, 0},
		EnemySpawns:  [][3]float64{{3, 3, 0}, {10, 10, 0}},
		CameraHeight: 14,
	}
}

// =============================================================================
// UNITS
// =============================================================================

// TankConfig holds values shared by both tank kinds.
type TankConfig struct {
	ColliderScale float64 `toml:"collider_scale"` // Sphere radius relative to the model's bounding sphere
	MuzzleOffset  float64 `toml:"muzzle_offset"`  // Forward distance of the muzzle from the tank center
	MuzzleHeight  float64 `toml:"muzzle_height"`  // Z offset of the muzzle
}

// DefaultTank returns the shared tank geometry.
func DefaultTank() TankConfig {
	return TankConfig{
		ColliderScale: 0.75,
		MuzzleOffset:  0.45,
		MuzzleHeight:  0.5,
	}
}

// PlayerConfig tunes the player-controlled tank.
type PlayerConfig struct {
	Health        int     `toml:"health"`
	MoveSpeed     float64 `toml:"move_speed"`     // units/s
	TurnSpeed     float64 `toml:"turn_speed"`     // rad/s
	ShootInterval float64 `toml:"shoot_interval"` // seconds
	HitDamage     int     `toml:"hit_damage"`     // Fixed damage taken per bullet
}

// DefaultPlayer returns the default player tuning.
func DefaultPlayer() PlayerConfig {
	return PlayerConfig{
		Health:        100,
		MoveSpeed:     2.5,
		TurnSpeed:     math.Pi,
		ShootInterval: 2,
		HitDamage:     20,
	}
}

// EnemyConfig tunes the autonomous tanks.
type EnemyConfig struct {
	Health           int     `toml:"health"`
	MoveSpeed        float64 `toml:"move_speed"`        // units/s
	RotationSpeed    float64 `toml:"rotation_speed"`    // rad/s while steering toward the player
	DetectionRange   float64 `toml:"detection_range"`   // Engage when the player is this close
	ShootInterval    float64 `toml:"shoot_interval"`    // seconds
	ShootAngle       float64 `toml:"shoot_angle"`       // Fire only when aim error is below this (rad)
	Deadband         float64 `toml:"deadband"`          // Aim errors below this are not corrected
	ApproachDistance float64 `toml:"approach_distance"` // Stop advancing when this close
}

// DefaultEnemy returns the default enemy tuning.
func DefaultEnemy() EnemyConfig {
	return EnemyConfig{
		Health:           100,
		MoveSpeed:        1.5,
		RotationSpeed:    2,
		DetectionRange:   12,
		ShootInterval:    2,
		ShootAngle:       0.5, // ≈28.6°
		Deadband:         0.05,
		ApproachDistance: 2,
	}
}

// BulletConfig tunes projectiles.
type BulletConfig struct {
	Speed     float64 `toml:"speed"`      // units/s
	Radius    float64 `toml:"radius"`     // Collider radius
	Damage    int     `toml:"damage"`     // Damage dealt to enemies
	MaxTravel float64 `toml:"max_travel"` // Silent disposal after this distance, 0 = unlimited
}

// DefaultBullet returns the default projectile tuning.
func DefaultBullet() BulletConfig {
	return BulletConfig{
		Speed:     9,
		Radius:    0.085,
		Damage:    20,
		MaxTravel: 30,
	}
}

// EffectConfig tunes muzzle flashes and explosions.
type EffectConfig struct {
	Duration     float64 `toml:"duration"`      // Lifetime in seconds
	MinParticles int     `toml:"min_particles"` // Inclusive
	MaxParticles int     `toml:"max_particles"` // Inclusive
	Size         float64 `toml:"size"`          // Particle radius, also the smoke jitter
	Jitter       float64 `toml:"jitter"`        // Max fire angle offset (rad)
	SpeedScale   float64 `toml:"speed_scale"`   // Fire speed is uniform in [0, SpeedScale)
	Decay        float64 `toml:"decay"`         // Fire motion multiplier
	SmokeRise    float64 `toml:"smoke_rise"`    // Smoke Z drift (units/s)
}

// DefaultEffect returns the default effect tuning.
func DefaultEffect() EffectConfig {
	return EffectConfig{
		Duration:     1,
		MinParticles: 4,
		MaxParticles: 9,
		Size:         0.1,
		Jitter:       math.Pi * 0.08,
		SpeedScale:   1.75 * 3,
		Decay:        0.75,
		SmokeRise:    3,
	}
}

// =============================================================================
// SERVER & OBSERVABILITY
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int      `toml:"port"`
	BroadcastHz  int      `toml:"broadcast_hz"` // Websocket snapshot rate
	CORSOrigins  []string `toml:"cors_origins"`
	EventLogPath string   `toml:"event_log_path"` // Empty disables the JSONL file

	// Per-client budgets. Reads are state, stats, events and frames; input
	// is POST /api/input plus websocket input messages.
	ReadRPS    float64 `toml:"read_rps"`
	ReadBurst  int     `toml:"read_burst"`
	InputRPS   float64 `toml:"input_rps"`
	InputBurst int     `toml:"input_burst"`
	MaxWSPerIP int     `toml:"max_ws_per_ip"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:        3000,
		BroadcastHz: 20,
		ReadRPS:     10,
		ReadBurst:   20,
		InputRPS:    60, // key repeat plus fire taps
		InputBurst:  30,
		MaxWSPerIP:  10,
	}
}

// DebugConfig configures the pprof/metrics listener.
type DebugConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

// DefaultDebug returns safe defaults.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only
	}
}

// LoggingConfig selects the zap encoder and level.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// DefaultLogging returns console logging at info.
func DefaultLogging() LoggingConfig {
	return LoggingConfig{Level: "info", Format: "console"}
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits caps what a session may allocate.
type ResourceLimits struct {
	MaxEntities      int `toml:"max_entities"`       // Registry cap; spawns beyond it are refused
	MaxSnapshotItems int `toml:"max_snapshot_items"` // Entities copied per snapshot
	MaxParticles     int `toml:"max_particles"`      // Effect particles copied per snapshot
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxEntities:      512,
		MaxSnapshotItems: 256,
		MaxParticles:     512,
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim     SimConfig      `toml:"sim"`
	Arena   ArenaConfig    `toml:"arena"`
	Tank    TankConfig     `toml:"tank"`
	Player  PlayerConfig   `toml:"player"`
	Enemy   EnemyConfig    `toml:"enemy"`
	Bullet  BulletConfig   `toml:"bullet"`
	Effect  EffectConfig   `toml:"effect"`
	Server  ServerConfig   `toml:"server"`
	Debug   DebugConfig    `toml:"debug"`
	Logging LoggingConfig  `toml:"logging"`
	Limits  ResourceLimits `toml:"limits"`
}

// Default returns the configuration with every section at its default.
func Default() AppConfig {
	return AppConfig{
		Sim:     DefaultSim(),
		Arena:   DefaultArena(),
		Tank:    DefaultTank(),
		Player:  DefaultPlayer(),
		Enemy:   DefaultEnemy(),
		Bullet:  DefaultBullet(),
		Effect:  DefaultEffect(),
		Server:  DefaultServer(),
		Debug:   DefaultDebug(),
		Logging: DefaultLogging(),
		Limits:  DefaultLimits(),
	}
}

// Load returns defaults overlaid with the TOML file at path (if it exists)
// and then with environment overrides. An empty path skips the file.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c AppConfig) Validate() error {
	switch {
	case c.Sim.TickRate <= 0:
		return fmt.Errorf("sim.tick_rate must be positive, got %d", c.Sim.TickRate)
	case c.Sim.MaxFrameDelta <= 0:
		return fmt.Errorf("sim.max_frame_delta must be positive, got %f", c.Sim.MaxFrameDelta)
	case c.Arena.MapSize < 3:
		return fmt.Errorf("arena.map_size must be at least 3, got %d", c.Arena.MapSize)
	case c.Player.MoveSpeed < 0 || c.Enemy.MoveSpeed < 0 || c.Bullet.Speed < 0:
		return errors.New("speeds must not be negative")
	case c.Effect.MinParticles < 0 || c.Effect.MaxParticles < c.Effect.MinParticles:
		return fmt.Errorf("effect particle range [%d, %d] is invalid", c.Effect.MinParticles, c.Effect.MaxParticles)
	case c.Effect.Duration <= 0:
		return fmt.Errorf("effect.duration must be positive, got %f", c.Effect.Duration)
	case c.Server.BroadcastHz <= 0:
		return fmt.Errorf("server.broadcast_hz must be positive, got %d", c.Server.BroadcastHz)
	case c.Server.ReadRPS <= 0 || c.Server.InputRPS <= 0:
		return errors.New("server read_rps and input_rps must be positive")
	case c.Server.ReadBurst < 1 || c.Server.InputBurst < 1 || c.Server.MaxWSPerIP < 1:
		return errors.New("server read_burst, input_burst and max_ws_per_ip must be at least 1")
	}
	return nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *AppConfig) {
	if v := getEnvInt("ARENA_TICK_RATE", 0); v > 0 {
		cfg.Sim.TickRate = v
	}
	if v := getEnvInt64("ARENA_SEED", 0); v != 0 {
		cfg.Sim.Seed = v
	}
	if v := getEnvInt("ARENA_PORT", 0); v > 0 {
		cfg.Server.Port = v
	}
	if v := os.Getenv("ARENA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ARENA_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("ARENA_ASSETS"); v != "" {
		cfg.Arena.AssetDir = v
	}
	if v := os.Getenv("ARENA_EVENT_LOG"); v != "" {
		cfg.Server.EventLogPath = v
	}
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Debug.Enabled = false
	}
	if v := getEnvFloat("ARENA_BULLET_MAX_TRAVEL", -1); v >= 0 {
		cfg.Bullet.MaxTravel = v
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
