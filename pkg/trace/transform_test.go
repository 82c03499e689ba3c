package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chazu/raycsg/pkg/graph"
	"github.com/chazu/raycsg/pkg/kernel"
	"github.com/chazu/raycsg/pkg/kernel/sdfx"
)

func TestTransformStackOrder(t *testing.T) {
	k := sdfx.New()
	ts := newTransformStack()

	// Outer frame moves along x, inner frame turns a quarter about z.
	ts.push(graph.TransformData{Translation: &graph.Vec3{X: 20}})
	ts.push(graph.TransformData{Rotation: &graph.Vec3{Z: 90}})

	// Box x in [0,10], y in [0,2] turns onto x in [-2,0], y in [0,10],
	// then moves onto x in [18,20].
	s := ts.apply(k, k.Box(10, 2, 2))
	lo, hi := s.BoundingBox()
	assert.InDelta(t, 18, lo[0], eps)
	assert.InDelta(t, 20, hi[0], eps)
	assert.InDelta(t, 0, lo[1], eps)
	assert.InDelta(t, 10, hi[1], eps)

	hits, err := k.Cast(s, kernel.Ray{Origin: [3]float64{0, 5, 1}, Dir: [3]float64{1, 0, 0}})
	assert.NoError(t, err)
	assertHits(t, []float64{18, 20}, hits)

	ts.pop()
	ts.pop()
	ts.pop() // popping an empty stack is a no-op
	assert.Empty(t, ts.frames)
}
