package game

import (
	"fmt"

	"go.uber.org/zap"

	"tank-arena/internal/geom"
)

// Arena holds typed references to the entities of a freshly built session.
// The world remains the owner; these pointers go stale once disposed.
type Arena struct {
	Map     *TileMap
	Player  *PlayerTank
	Enemies []*EnemyTank
	Walls   []*Wall
}

// NewArena populates w with the map, the player, the enemies and the
// perimeter walls, in that order. Any load failure is returned and the
// session should be abandoned.
func NewArena(w *World) (*Arena, error) {
	cfg := w.cfg
	a := &Arena{}

	a.Map = NewTileMap(geom.V(0, 0, 0), cfg.Arena.MapSize)
	if err := w.Spawn(a.Map); err != nil {
		return nil, fmt.Errorf("arena map: %w", err)
	}

	a.Player = NewPlayerTank(cfg.Player, cfg.Tank, vec(cfg.Arena.PlayerSpawn))
	if err := w.Spawn(a.Player); err != nil {
		return nil, fmt.Errorf("arena player: %w", err)
	}
	w.camera.X, w.camera.Y = a.Player.pos.X, a.Player.pos.Y

	for i, at := range cfg.Arena.EnemySpawns {
		e := NewEnemyTank(cfg.Enemy, cfg.Tank, vec(at))
		if err := w.Spawn(e); err != nil {
			return nil, fmt.Errorf("arena enemy %d: %w", i, err)
		}
		a.Enemies = append(a.Enemies, e)
	}

	for _, cell := range perimeter(cfg.Arena.MapSize) {
		wall := NewWall(cell)
		if err := w.Spawn(wall); err != nil {
			return nil, fmt.Errorf("arena wall at (%.0f,%.0f): %w", cell.X, cell.Y, err)
		}
		a.Walls = append(a.Walls, wall)
	}

	w.logger.Info("arena ready",
		zap.Int("size", cfg.Arena.MapSize),
		zap.Int("enemies", len(a.Enemies)),
		zap.Int("walls", len(a.Walls)),
		zap.Int64("seed", w.seed))
	return a, nil
}

// perimeter returns every border cell of a size x size grid exactly once.
func perimeter(size int) []geom.Vec3 {
	edge := size - 1
	cells := make([]geom.Vec3, 0, 4*edge)
	for i := 0; i < edge; i++ {
		cells = append(cells,
			geom.V(float64(i), 0, 0),
			geom.V(float64(edge), float64(i), 0),
			geom.V(float64(edge-i), float64(edge), 0),
			geom.V(0, float64(edge-i), 0),
		)
	}
	return cells
}

func vec(v [3]float64) geom.Vec3 {
	return geom.V(v[0], v[1], v[2])
}
