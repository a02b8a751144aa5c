package game

import (
	"math/rand"

	"tank-arena/internal/assets"
	"tank-arena/internal/geom"
)

// Wall is a static unit cube on the arena perimeter.
type Wall struct {
	body
	box geom.Box
}

// NewWall creates an unloaded wall centered on pos.
func NewWall(pos geom.Vec3) *Wall {
	return &Wall{body: newBody(KindWall, pos, 0)}
}

func (w *Wall) Collider() geom.Collider { return w.box }

func (w *Wall) Load(p assets.Provider, _ *rand.Rand) error {
	if _, err := w.texture(p, "wall"); err != nil {
		return err
	}
	w.box = geom.BoxAround(w.pos, geom.V(0.5, 0.5, 0.5))
	return nil
}

func (w *Wall) Update(*World, float64) {}
