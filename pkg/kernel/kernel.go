// Package kernel defines the abstract geometry kernel interface.
// Implementations provide primitive solids, kernel-side boolean operations
// and ray casting behind this interface. Ray casting turns a solid into the
// hit sequences consumed by the interval engine, so the rest of the system
// never looks inside a solid.
package kernel

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/raycsg/pkg/interval"
)

// ErrDegenerateRay is returned when a ray has no usable direction.
var ErrDegenerateRay = errors.New("degenerate ray")

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) Solid
	Sphere(radius float64) Solid
	Cylinder(height, radius float64, segments int) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// Cast returns the well-formed hit sequence of r against s, measured
	// in units of the normalized ray direction.
	Cast(s Solid, r Ray) (interval.Sequence, error)
}

// Ray is a half-line starting at Origin.
type Ray struct {
	Origin [3]float64 `json:"origin" yaml:"origin"`
	Dir    [3]float64 `json:"dir" yaml:"dir"`
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) [3]float64 {
	return [3]float64{
		r.Origin[0] + t*r.Dir[0],
		r.Origin[1] + t*r.Dir[1],
		r.Origin[2] + t*r.Dir[2],
	}
}

// Normalized returns r with a unit-length direction.
func (r Ray) Normalized() (Ray, error) {
	l := math.Sqrt(r.Dir[0]*r.Dir[0] + r.Dir[1]*r.Dir[1] + r.Dir[2]*r.Dir[2])
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return Ray{}, fmt.Errorf("kernel: direction %v: %w", r.Dir, ErrDegenerateRay)
	}
	r.Dir = [3]float64{r.Dir[0] / l, r.Dir[1] / l, r.Dir[2] / l}
	return r, nil
}

// CastSettings controls how a kernel marches a ray through a solid.
type CastSettings struct {
	MaxDistance float64 `yaml:"max_distance"` // rays are clipped at this parameter
	Tolerance   float64 `yaml:"tolerance"`    // crossings are located to within this distance
	MinStep     float64 `yaml:"min_step"`     // smallest march step; features thinner than this may be missed
}

// DefaultCastSettings returns the settings used when none are configured.
func DefaultCastSettings() CastSettings {
	return CastSettings{
		MaxDistance: 1e4,
		Tolerance:   1e-9,
		MinStep:     1e-4,
	}
}
