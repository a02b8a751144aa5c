package game

import (
	"math/rand"

	"tank-arena/internal/assets"
	"tank-arena/internal/geom"
)

// Tile is one ground cell of the map.
type Tile struct {
	X, Y    int
	Texture string
}

// TileMap is the ground plane: size x size tiles, each with a randomly
// chosen ground texture. It never collides and never changes after load.
type TileMap struct {
	body
	size  int
	tiles []Tile
}

// NewTileMap creates an unloaded size x size map anchored at origin.
func NewTileMap(origin geom.Vec3, size int) *TileMap {
	return &TileMap{body: newBody(KindTile, origin, 0), size: size}
}

// Size returns the number of tiles per side.
func (m *TileMap) Size() int { return m.size }

// Tiles returns the tiles in column-major order. Callers must not modify it.
func (m *TileMap) Tiles() []Tile { return m.tiles }

func (m *TileMap) Collider() geom.Collider { return nil }

func (m *TileMap) Load(p assets.Provider, rng *rand.Rand) error {
	m.tiles = make([]Tile, 0, m.size*m.size)
	for i := 0; i < m.size; i++ {
		for j := 0; j < m.size; j++ {
			h, err := m.ground(p, rng)
			if err != nil {
				return err
			}
			m.tiles = append(m.tiles, Tile{
				X:       int(m.pos.X) + i,
				Y:       int(m.pos.Y) + j,
				Texture: h.Name,
			})
		}
	}
	return nil
}

func (m *TileMap) Update(*World, float64) {}
