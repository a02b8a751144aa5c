package geom

import "math"

// FullTurn is one revolution in radians.
const FullTurn = 2 * math.Pi

// Heading angles use a flipped-Y convention shared by every mover:
// moving "forward" at angle a displaces by (sin a, -cos a).

// Forward returns the planar unit vector for heading a.
func Forward(a float64) Vec3 {
	return Vec3{X: math.Sin(a), Y: -math.Cos(a)}
}

// HeadingTo returns the heading that points from -> to, in the same convention
// as Forward. The direction is normalized first; a zero direction yields 0.
func HeadingTo(from, to Vec3) float64 {
	d := to.Sub(from).Normalize()
	if d.X == 0 && d.Y == 0 {
		return 0
	}
	return math.Atan2(d.X, -d.Y)
}

// WrapAngle maps a into [0, 2π).
func WrapAngle(a float64) float64 {
	a = math.Mod(a, FullTurn)
	if a < 0 {
		a += FullTurn
	}
	if a >= FullTurn {
		a = 0
	}
	return a
}

// NormalizeDelta maps an angle difference into (-π, π] by removing whole
// turns, so the sign gives the shortest turn direction.
func NormalizeDelta(d float64) float64 {
	d = math.Remainder(d, FullTurn)
	if d <= -math.Pi {
		d += FullTurn
	}
	return d
}
