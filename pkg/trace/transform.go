package trace

import (
	"github.com/chazu/raycsg/pkg/graph"
	"github.com/chazu/raycsg/pkg/kernel"
)

// transformStack accumulates spatial transforms during graph traversal.
// The last frame is the innermost placement.
type transformStack struct {
	frames []graph.TransformData
}

func newTransformStack() *transformStack {
	return &transformStack{}
}

func (ts *transformStack) push(td graph.TransformData) {
	ts.frames = append(ts.frames, td)
}

func (ts *transformStack) pop() {
	if len(ts.frames) > 0 {
		ts.frames = ts.frames[:len(ts.frames)-1]
	}
}

// apply places s in world space. Frames are applied innermost first, each
// rotating about the origin and then translating.
func (ts *transformStack) apply(k kernel.Kernel, s kernel.Solid) kernel.Solid {
	for i := len(ts.frames) - 1; i >= 0; i-- {
		s = applyFrame(k, s, ts.frames[i])
	}
	return s
}

func applyFrame(k kernel.Kernel, s kernel.Solid, td graph.TransformData) kernel.Solid {
	if r := td.Rotation; r != nil && !r.IsZero() {
		s = k.Rotate(s, r.X, r.Y, r.Z)
	}
	if t := td.Translation; t != nil && !t.IsZero() {
		s = k.Translate(s, t.X, t.Y, t.Z)
	}
	return s
}
