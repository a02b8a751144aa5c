// Package geom holds the small amount of 3D math the simulation needs:
// vectors, bounding volumes and planar heading helpers.
package geom

import "math"

// Vec3 is a position or displacement in world units.
// The arena floor is the XY plane; Z points up.
type Vec3 struct {
	X, Y, Z float64
}

// V is shorthand for Vec3{x, y, z}.
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v.X, -v.Y, -v.Z}
}

// Dot returns the dot product.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// LenSq returns the squared length.
func (v Vec3) LenSq() float64 {
	return v.Dot(v)
}

// Len returns the length.
func (v Vec3) Len() float64 {
	return math.Sqrt(v.LenSq())
}

// Normalize returns v scaled to unit length, or the zero vector if v is zero.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// DistanceTo returns the Euclidean distance between v and o.
func (v Vec3) DistanceTo(o Vec3) float64 {
	return v.Sub(o).Len()
}

// DistanceToSq returns the squared distance between v and o.
func (v Vec3) DistanceToSq(o Vec3) float64 {
	return v.Sub(o).LenSq()
}

// Clamp clamps every component of v into [min, max].
func (v Vec3) Clamp(min, max Vec3) Vec3 {
	return Vec3{
		X: math.Max(min.X, math.Min(max.X, v.X)),
		Y: math.Max(min.Y, math.Min(max.Y, v.Y)),
		Z: math.Max(min.Z, math.Min(max.Z, v.Z)),
	}
}
