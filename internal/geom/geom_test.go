package geom

import (
	"math"
	"math/rand"
	"testing"
)

// TestSphereIntersection covers overlap, touching and separation
func TestSphereIntersection(t *testing.T) {
	tests := []struct {
		name string
		a, b Sphere
		want bool
	}{
		{"same center", Sphere{V(0, 0, 0), 1}, Sphere{V(0, 0, 0), 1}, true},
		{"overlapping", Sphere{V(0, 0, 0), 1}, Sphere{V(1.5, 0, 0), 1}, true},
		{"touching", Sphere{V(0, 0, 0), 1}, Sphere{V(2, 0, 0), 1}, false},
		{"apart", Sphere{V(0, 0, 0), 1}, Sphere{V(0, 3, 0), 1}, false},
		{"z separated", Sphere{V(0, 0, 0), 0.5}, Sphere{V(0, 0, 1.2), 0.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.IntersectsSphere(tt.b); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestSphereIntersectionSymmetric checks intersects(a,b) == intersects(b,a)
func TestSphereIntersectionSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		a := Sphere{V(rng.Float64()*10, rng.Float64()*10, rng.Float64()), rng.Float64() * 2}
		b := Sphere{V(rng.Float64()*10, rng.Float64()*10, rng.Float64()), rng.Float64() * 2}
		if a.IntersectsSphere(b) != b.IntersectsSphere(a) {
			t.Fatalf("Asymmetric result for %+v and %+v", a, b)
		}
	}
}

// TestBoxIntersectsSphere uses the closest-point rule
func TestBoxIntersectsSphere(t *testing.T) {
	wall := BoxAround(V(0, 0, 0), V(0.5, 0.5, 0.5))

	tests := []struct {
		name string
		s    Sphere
		want bool
	}{
		{"center inside", Sphere{V(0.2, 0.1, 0), 0.1}, true},
		{"overlapping face", Sphere{V(0.8, 0, 0), 0.4}, true},
		{"touching face", Sphere{V(1.0, 0, 0), 0.5}, false},
		{"near corner but outside", Sphere{V(0.9, 0.9, 0), 0.5}, false},
		{"overlapping corner", Sphere{V(0.8, 0.8, 0), 0.5}, true},
		{"far away", Sphere{V(5, 5, 0), 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wall.IntersectsSphere(tt.s); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestBoundingSphere checks the box-derived sphere used at load time
func TestBoundingSphere(t *testing.T) {
	b := Box{Min: V(-1, -2, 0), Max: V(1, 2, 2)}
	s := b.BoundingSphere()

	if s.Center != V(0, 0, 1) {
		t.Errorf("Expected center (0,0,1), got %+v", s.Center)
	}
	want := math.Sqrt(4+16+4) / 2
	if math.Abs(s.Radius-want) > 1e-12 {
		t.Errorf("Expected radius %f, got %f", want, s.Radius)
	}
}

// TestNormalizeDelta checks range (-π, π] and congruence modulo 2π
func TestNormalizeDelta(t *testing.T) {
	inputs := []float64{0, math.Pi, -math.Pi, 3 * math.Pi, -3 * math.Pi, 0.1, -0.1,
		2*math.Pi + 0.3, -2*math.Pi - 0.3, 100.5, -77.25, 1e6}

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		inputs = append(inputs, (rng.Float64()-0.5)*200)
	}

	for _, d := range inputs {
		got := NormalizeDelta(d)
		if got <= -math.Pi || got > math.Pi {
			t.Errorf("NormalizeDelta(%f) = %f, outside (-π, π]", d, got)
		}
		turns := (d - got) / FullTurn
		if math.Abs(turns-math.Round(turns)) > 1e-6 {
			t.Errorf("NormalizeDelta(%f) = %f is not congruent modulo 2π", d, got)
		}
	}

	if got := NormalizeDelta(-math.Pi); got != math.Pi {
		t.Errorf("Expected -π to map to π, got %f", got)
	}
}

// TestWrapAngle checks the [0, 2π) range
func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{FullTurn, 0},
		{-math.Pi / 2, 1.5 * math.Pi},
		{FullTurn + 1, 1},
	}

	for _, tt := range tests {
		got := WrapAngle(tt.in)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("WrapAngle(%f): expected %f, got %f", tt.in, tt.want, got)
		}
		if got < 0 || got >= FullTurn {
			t.Errorf("WrapAngle(%f) = %f outside [0, 2π)", tt.in, got)
		}
	}
}

// TestHeadingConvention checks that Forward and HeadingTo agree
func TestHeadingConvention(t *testing.T) {
	tests := []struct {
		name string
		to   Vec3
		want float64
	}{
		{"negative y", V(0, -1, 0), 0},
		{"positive x", V(1, 0, 0), math.Pi / 2},
		{"positive y", V(0, 1, 0), math.Pi},
		{"negative x", V(-1, 0, 0), -math.Pi / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HeadingTo(V(0, 0, 0), tt.to)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected heading %f, got %f", tt.want, got)
			}
			f := Forward(got)
			if f.DistanceTo(tt.to) > 1e-9 {
				t.Errorf("Forward(%f) = %+v, expected %+v", got, f, tt.to)
			}
		})
	}
}
