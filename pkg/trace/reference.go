package trace

import (
	"context"
	"fmt"

	"github.com/chazu/raycsg/pkg/graph"
	"github.com/chazu/raycsg/pkg/interval"
	"github.com/chazu/raycsg/pkg/kernel"
)

// Reference builds each scene as a single kernel solid, Booleans included,
// and casts the rays against it directly. The hit sequences it returns are
// the ground truth for Trace.
func (t *Tracer) Reference(ctx context.Context, g *graph.SceneGraph, rays []kernel.Ray) ([]Result, error) {
	if g == nil {
		return nil, nil
	}
	results := make([]Result, 0, len(g.Roots))
	for _, rootID := range g.Roots {
		root := g.Get(rootID)
		if root == nil {
			return nil, fmt.Errorf("trace: root %s does not exist", rootID.Short())
		}
		b := &solidBuilder{k: t.kernel, g: g, ts: newTransformStack(), onPath: make(map[graph.NodeID]bool)}
		solid, err := b.build(root)
		if err != nil {
			return nil, fmt.Errorf("trace: reference scene %q: %w", root.Name, err)
		}

		hits := make([]interval.Sequence, len(rays))
		if solid != nil {
			cols, err := castAll(ctx, t.kernel, solid, rays, t.workers)
			if err != nil {
				return nil, fmt.Errorf("trace: reference scene %q: %w", root.Name, err)
			}
			for i, c := range cols {
				if hits[i], err = c.Normalize(); err != nil {
					return nil, fmt.Errorf("trace: reference scene %q: ray %d: %w", root.Name, i, err)
				}
			}
		} else {
			for i := range hits {
				hits[i] = interval.Sequence{}
			}
		}
		results = append(results, Result{Scene: root.Name, Root: rootID, Hits: hits})
	}
	return results, nil
}

// solidBuilder turns a subgraph into one kernel solid. A nil solid stands
// for the empty set (an empty group).
type solidBuilder struct {
	k      kernel.Kernel
	g      *graph.SceneGraph
	ts     *transformStack
	onPath map[graph.NodeID]bool
}

func (b *solidBuilder) build(n *graph.Node) (kernel.Solid, error) {
	if b.onPath[n.ID] {
		return nil, fmt.Errorf("%w at node %s", ErrCycle, n.ID.Short())
	}
	b.onPath[n.ID] = true
	defer delete(b.onPath, n.ID)

	children := b.g.Children(n)
	if len(children) != len(n.Children) {
		return nil, fmt.Errorf("node %s has dangling children", n.ID.Short())
	}

	switch n.Kind {
	case graph.NodePrimitive:
		s, err := primitive(b.k, n)
		if err != nil {
			return nil, err
		}
		return b.ts.apply(b.k, s), nil

	case graph.NodeTransform:
		td, ok := n.Data.(graph.TransformData)
		if !ok || len(children) != 1 {
			return nil, fmt.Errorf("malformed transform node %s", n.ID.Short())
		}
		b.ts.push(td)
		defer b.ts.pop()
		return b.build(children[0])

	case graph.NodeBoolean:
		bd, ok := n.Data.(graph.BooleanData)
		if !ok || len(children) != 2 {
			return nil, fmt.Errorf("malformed boolean node %s", n.ID.Short())
		}
		x, err := b.build(children[0])
		if err != nil {
			return nil, err
		}
		y, err := b.build(children[1])
		if err != nil {
			return nil, err
		}
		return b.boolean(bd.Op, x, y)

	case graph.NodeGroup:
		var acc kernel.Solid
		for _, c := range children {
			s, err := b.build(c)
			if err != nil {
				return nil, err
			}
			if acc, err = b.boolean(interval.Union, acc, s); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
	return nil, fmt.Errorf("unknown node kind: %v", n.Kind)
}

// boolean applies op to x and y, either of which may be the empty set.
func (b *solidBuilder) boolean(op interval.Op, x, y kernel.Solid) (kernel.Solid, error) {
	switch op {
	case interval.Union:
		switch {
		case x == nil:
			return y, nil
		case y == nil:
			return x, nil
		}
		return b.k.Union(x, y), nil
	case interval.Intersect:
		if x == nil || y == nil {
			return nil, nil
		}
		return b.k.Intersection(x, y), nil
	case interval.Difference:
		if x == nil || y == nil {
			return x, nil
		}
		return b.k.Difference(x, y), nil
	}
	return nil, fmt.Errorf("unsupported operation %v: %w", op, interval.ErrInvalidArgument)
}
