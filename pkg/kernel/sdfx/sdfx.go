// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/raycsg/pkg/interval"
	"github.com/chazu/raycsg/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// maxBisect bounds crossing refinement once the tolerance drops below
// float64 resolution.
const maxBisect = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cast kernel.CastSettings
}

// New returns a new SdfxKernel with default cast settings.
func New() *SdfxKernel {
	return NewWithCast(kernel.DefaultCastSettings())
}

// NewWithCast returns a new SdfxKernel using the given cast settings.
// Zero fields fall back to the defaults.
func NewWithCast(cs kernel.CastSettings) *SdfxKernel {
	def := kernel.DefaultCastSettings()
	if cs.MaxDistance <= 0 {
		cs.MaxDistance = def.MaxDistance
	}
	if cs.Tolerance <= 0 {
		cs.Tolerance = def.Tolerance
	}
	if cs.MinStep <= 0 {
		cs.MinStep = def.MinStep
	}
	return &SdfxKernel{cast: cs}
}

// CastSettings returns the settings used by Cast.
func (k *SdfxKernel) CastSettings() kernel.CastSettings {
	return k.cast
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Box creates a box with the given dimensions and its minimum corner at the
// origin. sdf.Box3D centers the box, so it is shifted by half-dimensions.
func (k *SdfxKernel) Box(x, y, z float64) kernel.Solid {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Box3D: %v", err))
	}
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	return wrap(sdf.Transform3D(s, m))
}

// Sphere creates a sphere centered at the origin.
func (k *SdfxKernel) Sphere(radius float64) kernel.Solid {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Sphere3D: %v", err))
	}
	return wrap(s)
}

// Cylinder creates a cylinder along Z, centered at the origin.
// The segments parameter is ignored since SDF represents smooth surfaces.
func (k *SdfxKernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Cylinder3D: %v", err))
	}
	return wrap(s)
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Cast marches r through s and returns the crossings as a hit sequence.
//
// The ray is clipped to the solid's bounding box and to MaxDistance, then
// sphere traced: each step advances by the distance bound, never less than
// MinStep. A sign change between two samples is bisected down to
// Tolerance. A ray that starts or ends inside the solid gets an entry at
// the clip start or an exit at the clip end, so the result always has
// even length.
func (k *SdfxKernel) Cast(s kernel.Solid, r kernel.Ray) (interval.Sequence, error) {
	r, err := r.Normalized()
	if err != nil {
		return nil, fmt.Errorf("sdfx: cast: %w", err)
	}
	sdf3 := unwrap(s)

	// Widen the box so faces lying on it are crossed rather than grazed.
	margin := 2 * k.cast.MinStep
	bb := sdf3.BoundingBox()
	lo := [3]float64{bb.Min.X - margin, bb.Min.Y - margin, bb.Min.Z - margin}
	hi := [3]float64{bb.Max.X + margin, bb.Max.Y + margin, bb.Max.Z + margin}
	t0, t1, ok := clip(lo, hi, r, 0, k.cast.MaxDistance)
	if !ok {
		return interval.Sequence{}, nil
	}

	eval := func(t float64) float64 {
		p := r.At(t)
		return sdf3.Evaluate(v3.Vec{X: p[0], Y: p[1], Z: p[2]})
	}

	hits := interval.Sequence{}
	t, d := t0, eval(t0)
	inside := d < 0
	if inside {
		hits = append(hits, t0)
	}
	for t < t1 {
		next := math.Min(t+math.Max(math.Abs(d), k.cast.MinStep), t1)
		dn := eval(next)
		if (dn < 0) != inside {
			hits = append(hits, k.bisect(eval, t, next, inside))
			inside = !inside
		}
		t, d = next, dn
	}
	if inside {
		hits = append(hits, t1)
	}
	return hits, nil
}

// bisect narrows [lo, hi] around the single crossing between a sample on
// the inside == inside side and one on the other side.
func (k *SdfxKernel) bisect(eval func(float64) float64, lo, hi float64, inside bool) float64 {
	for i := 0; i < maxBisect && hi-lo > k.cast.Tolerance; i++ {
		mid := 0.5 * (lo + hi)
		if (eval(mid) < 0) == inside {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

// clip intersects the ray parameter range [tmin, tmax] with the slab
// [lo, hi] on every axis.
func clip(lo, hi [3]float64, r kernel.Ray, tmin, tmax float64) (float64, float64, bool) {
	for i := 0; i < 3; i++ {
		if r.Dir[i] == 0 {
			if r.Origin[i] < lo[i] || r.Origin[i] > hi[i] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / r.Dir[i]
		ta := (lo[i] - r.Origin[i]) * inv
		tb := (hi[i] - r.Origin[i]) * inv
		if ta > tb {
			ta, tb = tb, ta
		}
		tmin = math.Max(tmin, ta)
		tmax = math.Min(tmax, tb)
		if tmin > tmax {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}
