package geom

import "math"

// Shape classifies a collider. An entity's shape never changes once loaded.
type Shape uint8

const (
	ShapeSphere Shape = iota + 1
	ShapeBox
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeSphere:
		return "sphere"
	case ShapeBox:
		return "box"
	default:
		return "unknown"
	}
}

// Collider is a bounding volume that can be tested against a moving sphere.
// All hot-path queries probe with a sphere, so that is the only test needed.
type Collider interface {
	Shape() Shape
	IntersectsSphere(s Sphere) bool
}

// Sphere is a bounding sphere.
type Sphere struct {
	Center Vec3
	Radius float64
}

// Shape implements Collider.
func (s Sphere) Shape() Shape { return ShapeSphere }

// IntersectsSphere reports whether the centers are closer than the sum of radii.
// Touching spheres do not intersect.
func (s Sphere) IntersectsSphere(o Sphere) bool {
	r := s.Radius + o.Radius
	return s.Center.DistanceToSq(o.Center) < r*r
}

// Translated returns a copy of s moved by d.
func (s Sphere) Translated(d Vec3) Sphere {
	return Sphere{Center: s.Center.Add(d), Radius: s.Radius}
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max Vec3
}

// BoxAround returns the box centered on c with the given half extents.
func BoxAround(c, half Vec3) Box {
	return Box{Min: c.Sub(half), Max: c.Add(half)}
}

// Shape implements Collider.
func (b Box) Shape() Shape { return ShapeBox }

// Center returns the midpoint of the box.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the extent of the box along each axis.
func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// ClosestPoint returns the point inside b nearest to p.
func (b Box) ClosestPoint(p Vec3) Vec3 {
	return p.Clamp(b.Min, b.Max)
}

// IntersectsSphere uses the closest point on the box to the sphere center.
// Like the sphere test, a sphere exactly touching a face does not intersect.
func (b Box) IntersectsSphere(s Sphere) bool {
	return b.ClosestPoint(s.Center).DistanceToSq(s.Center) < s.Radius*s.Radius
}

// Translated returns a copy of b moved by d.
func (b Box) Translated(d Vec3) Box {
	return Box{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Union returns the smallest box containing both b and o.
func (b Box) Union(o Box) Box {
	return Box{
		Min: Vec3{math.Min(b.Min.X, o.Min.X), math.Min(b.Min.Y, o.Min.Y), math.Min(b.Min.Z, o.Min.Z)},
		Max: Vec3{math.Max(b.Max.X, o.Max.X), math.Max(b.Max.Y, o.Max.Y), math.Max(b.Max.Z, o.Max.Z)},
	}
}

// BoundingSphere returns the sphere through the box corners, centered on the box.
// Load time only.
func (b Box) BoundingSphere() Sphere {
	return Sphere{Center: b.Center(), Radius: b.Size().Len() / 2}
}
