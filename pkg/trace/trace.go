// Package trace walks a scene graph and produces the hit sequences of a set
// of rays against each scene. Primitives are cast through a geometry kernel;
// Boolean nodes are resolved on the hit sequences with interval.CombineBatch.
package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/chazu/raycsg/pkg/graph"
	"github.com/chazu/raycsg/pkg/interval"
	"github.com/chazu/raycsg/pkg/kernel"
)

// ErrCycle is returned when the walk revisits a node on its own path.
var ErrCycle = errors.New("trace: cycle in scene graph")

// Result holds the hits of every ray against one scene.
type Result struct {
	Scene string       `json:"scene"`
	Root  graph.NodeID `json:"root"`
	// Hits[i] is the normalized hit sequence of ray i.
	Hits []interval.Sequence `json:"hits"`
	// Batch is the raw, compacted output of the last combine, one column
	// per ray. Nil for Reference results.
	Batch *interval.Batch `json:"-"`
}

// Measure returns the total length of solid crossed by each ray.
func (r Result) Measure() []float64 {
	out := make([]float64, len(r.Hits))
	for i, h := range r.Hits {
		out[i], _ = h.Measure()
	}
	return out
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithWorkers sets the number of goroutines used for casting and combining.
// Values below 1 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(t *Tracer) { t.workers = n }
}

// WithLogger sets the logger for per-node debug output.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracer) {
		if l != nil {
			t.logger = l
		}
	}
}

// Tracer evaluates scene graphs against rays. It is read-only with respect
// to the graph and safe for concurrent use.
type Tracer struct {
	kernel  kernel.Kernel
	workers int
	logger  *slog.Logger
}

// New returns a Tracer that builds and casts solids with k.
func New(k kernel.Kernel, opts ...Option) *Tracer {
	t := &Tracer{kernel: k, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	if t.workers < 1 {
		t.workers = runtime.NumCPU()
	}
	return t
}

// Trace returns one Result per scene root, in root order.
func (t *Tracer) Trace(ctx context.Context, g *graph.SceneGraph, rays []kernel.Ray) ([]Result, error) {
	if g == nil {
		return nil, nil
	}
	results := make([]Result, 0, len(g.Roots))
	for _, rootID := range g.Roots {
		root := g.Get(rootID)
		if root == nil {
			return nil, fmt.Errorf("trace: root %s does not exist", rootID.Short())
		}
		b, err := t.TraceNode(ctx, g, root, rays)
		if err != nil {
			return nil, fmt.Errorf("trace: scene %q: %w", root.Name, err)
		}
		hits, err := normalizeColumns(b)
		if err != nil {
			return nil, fmt.Errorf("trace: scene %q: %w", root.Name, err)
		}
		results = append(results, Result{Scene: root.Name, Root: rootID, Hits: hits, Batch: b})
	}
	return results, nil
}

// TraceNode returns the hits of rays against the solid rooted at n, one
// column per ray.
func (t *Tracer) TraceNode(ctx context.Context, g *graph.SceneGraph, n *graph.Node, rays []kernel.Ray) (*interval.Batch, error) {
	w := &walker{Tracer: t, g: g, rays: rays, ts: newTransformStack(), onPath: make(map[graph.NodeID]bool)}
	return w.walk(ctx, n)
}

// walker carries the state of one traversal.
type walker struct {
	*Tracer
	g      *graph.SceneGraph
	rays   []kernel.Ray
	ts     *transformStack
	onPath map[graph.NodeID]bool
}

// walk recursively traverses a node and its children.
func (w *walker) walk(ctx context.Context, n *graph.Node) (*interval.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.onPath[n.ID] {
		return nil, fmt.Errorf("%w at node %s", ErrCycle, n.ID.Short())
	}
	w.onPath[n.ID] = true
	defer delete(w.onPath, n.ID)

	switch n.Kind {
	case graph.NodePrimitive:
		return w.handlePrimitive(ctx, n)
	case graph.NodeTransform:
		return w.handleTransform(ctx, n)
	case graph.NodeBoolean:
		return w.handleBoolean(ctx, n)
	case graph.NodeGroup:
		return w.handleGroup(ctx, n)
	default:
		return nil, fmt.Errorf("unknown node kind: %v", n.Kind)
	}
}

// handlePrimitive places the primitive and casts every ray against it.
func (w *walker) handlePrimitive(ctx context.Context, n *graph.Node) (*interval.Batch, error) {
	solid, err := primitive(w.kernel, n)
	if err != nil {
		return nil, err
	}
	solid = w.ts.apply(w.kernel, solid)

	cols, err := castAll(ctx, w.kernel, solid, w.rays, w.workers)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.ID.Short(), err)
	}
	b := interval.FromColumns(cols...)
	w.logger.Debug("cast primitive", "node", n.ID.Short(), "data", fmt.Sprintf("%T", n.Data), "rows", b.Rows())
	return b, nil
}

// handleTransform pushes the transform, recurses into the child, then pops.
func (w *walker) handleTransform(ctx context.Context, n *graph.Node) (*interval.Batch, error) {
	td, ok := n.Data.(graph.TransformData)
	if !ok {
		return nil, fmt.Errorf("transform node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}
	if len(n.Children) != 1 {
		return nil, fmt.Errorf("transform node %s has %d children, want 1", n.ID.Short(), len(n.Children))
	}
	child, err := w.child(n, 0)
	if err != nil {
		return nil, err
	}

	w.ts.push(td)
	defer w.ts.pop()
	return w.walk(ctx, child)
}

// handleBoolean traces both operands and combines them column by column.
func (w *walker) handleBoolean(ctx context.Context, n *graph.Node) (*interval.Batch, error) {
	bd, ok := n.Data.(graph.BooleanData)
	if !ok {
		return nil, fmt.Errorf("boolean node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}
	if len(n.Children) != 2 {
		return nil, fmt.Errorf("boolean node %s has %d children, want 2", n.ID.Short(), len(n.Children))
	}

	var operands [2]*interval.Batch
	for i := range operands {
		child, err := w.child(n, i)
		if err != nil {
			return nil, err
		}
		if operands[i], err = w.walk(ctx, child); err != nil {
			return nil, err
		}
	}
	return w.combine(n, operands[0], operands[1], bd.Op)
}

// handleGroup folds the children together with Union.
func (w *walker) handleGroup(ctx context.Context, n *graph.Node) (*interval.Batch, error) {
	acc := interval.NewBatch(0, len(w.rays))
	for i := range n.Children {
		child, err := w.child(n, i)
		if err != nil {
			return nil, err
		}
		b, err := w.walk(ctx, child)
		if err != nil {
			return nil, err
		}
		if acc, err = w.combine(n, acc, b, interval.Union); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (w *walker) combine(n *graph.Node, a, b *interval.Batch, op interval.Op) (*interval.Batch, error) {
	out, err := interval.CombineBatch(a, b, op, true, interval.WithWorkers(w.workers))
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.ID.Short(), err)
	}
	out = out.Compact()
	w.logger.Debug("combine", "node", n.ID.Short(), "op", op, "rows", out.Rows())
	return out, nil
}

func (w *walker) child(n *graph.Node, i int) (*graph.Node, error) {
	c := w.g.Get(n.Children[i])
	if c == nil {
		return nil, fmt.Errorf("node %s: child %s does not exist", n.ID.Short(), n.Children[i].Short())
	}
	return c, nil
}

// primitive builds the kernel solid for a primitive node.
func primitive(k kernel.Kernel, n *graph.Node) (kernel.Solid, error) {
	switch d := n.Data.(type) {
	case graph.BoxData:
		return k.Box(d.Size.X, d.Size.Y, d.Size.Z), nil
	case graph.SphereData:
		return k.Sphere(d.Radius), nil
	case graph.CylinderData:
		return k.Cylinder(d.Height, d.Radius, 32), nil
	}
	return nil, fmt.Errorf("primitive node %s has unsupported data type %T", n.ID.Short(), n.Data)
}

func normalizeColumns(b *interval.Batch) ([]interval.Sequence, error) {
	hits := make([]interval.Sequence, b.Cols())
	for c := range hits {
		h, err := b.Column(c).Normalize()
		if err != nil {
			return nil, fmt.Errorf("ray %d: %w", c, err)
		}
		hits[c] = h
	}
	return hits, nil
}
