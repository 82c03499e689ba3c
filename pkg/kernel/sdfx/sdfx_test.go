package sdfx

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/raycsg/pkg/interval"
	"github.com/chazu/raycsg/pkg/kernel"
)

const eps = 1e-6

func xRay(y, z float64) kernel.Ray {
	return kernel.Ray{Origin: [3]float64{-10, y, z}, Dir: [3]float64{1, 0, 0}}
}

// assertHits fails unless got matches want value by value within eps.
func assertHits(t *testing.T, got interval.Sequence, want ...float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("hits = %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > eps {
			t.Fatalf("hits = %v, want %v", got, want)
		}
	}
}

func mustCast(t *testing.T, k *SdfxKernel, s kernel.Solid, r kernel.Ray) interval.Sequence {
	t.Helper()
	hits, err := k.Cast(s, r)
	if err != nil {
		t.Fatalf("Cast failed: %v", err)
	}
	if err := hits.Validate(); err != nil {
		t.Fatalf("Cast returned malformed hits %v: %v", hits, err)
	}
	return hits
}

func TestCastSphere(t *testing.T) {
	k := New()
	s := k.Sphere(2)
	assertHits(t, mustCast(t, k, s, xRay(0, 0)), 8, 12)

	// Off-center chord: half-length sqrt(4 - 1).
	h := math.Sqrt(3)
	assertHits(t, mustCast(t, k, s, xRay(1, 0)), 10-h, 10+h)
}

func TestCastBox(t *testing.T) {
	k := New()
	// Box has its minimum corner at the origin.
	b := k.Box(10, 4, 4)
	assertHits(t, mustCast(t, k, b, xRay(2, 2)), 10, 20)

	down := kernel.Ray{Origin: [3]float64{5, 2, 30}, Dir: [3]float64{0, 0, -2}}
	assertHits(t, mustCast(t, k, b, down), 26, 30)
}

func TestCastCylinder(t *testing.T) {
	k := New()
	c := k.Cylinder(10, 3, 32)
	assertHits(t, mustCast(t, k, c, xRay(0, 0)), 7, 13)

	up := kernel.Ray{Origin: [3]float64{0, 0, -20}, Dir: [3]float64{0, 0, 1}}
	assertHits(t, mustCast(t, k, c, up), 15, 25)
}

func TestCastMiss(t *testing.T) {
	k := New()
	hits := mustCast(t, k, k.Sphere(2), xRay(5, 0))
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %v", hits)
	}

	// Pointing away from the solid.
	away := kernel.Ray{Origin: [3]float64{-10, 0, 0}, Dir: [3]float64{-1, 0, 0}}
	if hits := mustCast(t, k, k.Sphere(2), away); len(hits) != 0 {
		t.Fatalf("expected no hits, got %v", hits)
	}
}

func TestCastFromInside(t *testing.T) {
	k := New()
	r := kernel.Ray{Dir: [3]float64{0, 1, 0}}
	assertHits(t, mustCast(t, k, k.Sphere(2), r), 0, 2)
}

func TestCastClippedByMaxDistance(t *testing.T) {
	k := NewWithCast(kernel.CastSettings{MaxDistance: 10})
	assertHits(t, mustCast(t, k, k.Sphere(2), xRay(0, 0)), 8, 10)
}

func TestCastDegenerateRay(t *testing.T) {
	k := New()
	_, err := k.Cast(k.Sphere(1), kernel.Ray{})
	if !errors.Is(err, kernel.ErrDegenerateRay) {
		t.Fatalf("Cast error = %v, want ErrDegenerateRay", err)
	}
}

func TestTranslateAndRotate(t *testing.T) {
	k := New()
	moved := k.Translate(k.Sphere(1), 3, 0, 0)
	assertHits(t, mustCast(t, k, moved, xRay(0, 0)), 12, 14)

	// A half turn about Z maps the box onto x in [-10,0], y in [-4,0].
	turned := k.Rotate(k.Box(10, 4, 4), 0, 0, 180)
	assertHits(t, mustCast(t, k, turned, xRay(-2, 2)), 0, 10)

	min, max := turned.BoundingBox()
	if max[0] > eps || min[0] > -10+eps {
		t.Fatalf("rotated bounding box x range = [%v, %v], want about [-10, 0]", min[0], max[0])
	}
}

func TestNewWithCastDefaults(t *testing.T) {
	k := NewWithCast(kernel.CastSettings{Tolerance: 1e-3})
	cs := k.CastSettings()
	def := kernel.DefaultCastSettings()
	if cs.Tolerance != 1e-3 {
		t.Errorf("Tolerance = %v, want 1e-3", cs.Tolerance)
	}
	if cs.MaxDistance != def.MaxDistance || cs.MinStep != def.MinStep {
		t.Errorf("zero fields not defaulted: %+v", cs)
	}
}

// TestBooleanAgreesWithInterval casts the kernel's own boolean solids and
// compares them to combining the operand hit sequences.
func TestBooleanAgreesWithInterval(t *testing.T) {
	k := New()
	a := k.Sphere(2)
	b := k.Translate(k.Sphere(2), 3, 0, 0)

	tests := []struct {
		name  string
		op    interval.Op
		solid kernel.Solid
		want  []float64
	}{
		{"union", interval.Union, k.Union(a, b), []float64{8, 15}},
		{"intersect", interval.Intersect, k.Intersection(a, b), []float64{11, 12}},
		{"difference", interval.Difference, k.Difference(a, b), []float64{8, 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, y := range []float64{0, 0.5, 1.2} {
				r := xRay(y, 0)
				direct := mustCast(t, k, tt.solid, r)

				combined, err := interval.Combine(mustCast(t, k, a, r), mustCast(t, k, b, r), tt.op, true)
				if err != nil {
					t.Fatalf("Combine failed: %v", err)
				}
				norm, err := combined.Normalize()
				if err != nil {
					t.Fatalf("Normalize failed: %v", err)
				}
				assertHits(t, norm, direct...)
				if y == 0 {
					assertHits(t, norm, tt.want...)
				}
			}
		})
	}
}
