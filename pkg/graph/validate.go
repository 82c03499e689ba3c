package graph

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/raycsg/pkg/interval"
)

// ValidationSeverity indicates whether a validation finding blocks tracing
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks tracing
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// ValidationResult bundles errors (blocking) and warnings (advisory).
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether the graph can be traced.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Validate runs all structural and geometric checks on the scene graph and
// returns every finding. An empty slice means the graph is valid. This
// function is read-only and never mutates the graph.
func Validate(g *SceneGraph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateNames(g)...)
	errs = append(errs, validateRoots(g)...)
	errs = append(errs, validateArity(g)...)
	errs = append(errs, validateDimensions(g)...)
	sort.SliceStable(errs, func(i, j int) bool {
		return errs[i].NodeID < errs[j].NodeID
	})
	return errs
}

// ValidateAll runs Validate and separates errors from warnings.
func ValidateAll(g *SceneGraph) ValidationResult {
	var result ValidationResult
	for _, e := range Validate(g) {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, e)
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	return result
}

// validateDAG checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
// If we encounter a gray node during traversal, we have found a cycle.
func validateDAG(g *SceneGraph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id.Short()),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray

		node, ok := g.Nodes[id]
		if !ok {
			// Dangling reference; handled by validateReferences.
			color[id] = black
			return false
		}

		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}

		color[id] = black
		return false
	}

	for _, id := range sortedIDs(g) {
		if color[id] == white {
			if visit(id) {
				// One cycle error is sufficient; stop early.
				break
			}
		}
	}

	return errs
}

// validateReferences checks that every child ID points to an existing node.
func validateReferences(g *SceneGraph) []ValidationError {
	var errs []ValidationError
	for _, node := range g.Nodes {
		for _, childID := range node.Children {
			if _, ok := g.Nodes[childID]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("child reference %s does not exist", childID.Short()),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateNames checks that every NameIndex entry points to an existing node
// and that no two nodes share a name.
func validateNames(g *SceneGraph) []ValidationError {
	var errs []ValidationError

	for name, id := range g.NameIndex {
		if _, ok := g.Nodes[id]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, id.Short()),
				Severity: SeverityError,
			})
		}
	}

	nameToNodes := make(map[string][]NodeID)
	for id, node := range g.Nodes {
		if node.Name != "" {
			nameToNodes[node.Name] = append(nameToNodes[node.Name], id)
		}
	}
	for name, ids := range nameToNodes {
		if len(ids) > 1 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes", name, len(ids)),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// validateRoots checks that every root exists and is a group, and warns
// about nodes unreachable from any root.
func validateRoots(g *SceneGraph) []ValidationError {
	var errs []ValidationError

	reachable := make(map[NodeID]bool)
	var queue []NodeID
	for _, rid := range g.Roots {
		n, ok := g.Nodes[rid]
		if !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", rid.Short()),
				Severity: SeverityError,
			})
			continue
		}
		if n.Kind != NodeGroup {
			errs = append(errs, ValidationError{
				NodeID:   rid,
				Message:  fmt.Sprintf("root is a %s node, want group", n.Kind),
				Severity: SeverityError,
			})
		}
		if !reachable[rid] {
			reachable[rid] = true
			queue = append(queue, rid)
		}
	}

	if len(g.Nodes) > 0 && len(g.Roots) == 0 {
		errs = append(errs, ValidationError{
			Message:  "graph has nodes but no scene; nothing will be traced",
			Severity: SeverityWarning,
		})
		return errs
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := g.Nodes[current]
		for _, cid := range node.Children {
			if _, ok := g.Nodes[cid]; ok && !reachable[cid] {
				reachable[cid] = true
				queue = append(queue, cid)
			}
		}
	}

	for _, id := range sortedIDs(g) {
		if !reachable[id] {
			n := g.Nodes[id]
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("%s node %s is not reachable from any scene", n.Kind, displayName(n)),
				Severity: SeverityWarning,
			})
		}
	}

	return errs
}

// validateArity checks the child count each node kind requires.
func validateArity(g *SceneGraph) []ValidationError {
	var errs []ValidationError
	for _, id := range sortedIDs(g) {
		n := g.Nodes[id]
		switch n.Kind {
		case NodePrimitive:
			if len(n.Children) != 0 {
				errs = append(errs, arityError(n, "primitive has %d children, want 0", len(n.Children)))
			}
		case NodeTransform:
			if len(n.Children) != 1 {
				errs = append(errs, arityError(n, "transform has %d children, want 1", len(n.Children)))
			}
		case NodeBoolean:
			bd, ok := n.Data.(BooleanData)
			if !ok {
				errs = append(errs, arityError(n, "boolean node has %T data", n.Data))
				continue
			}
			if _, err := interval.ParseOp(bd.Op.String()); err != nil {
				errs = append(errs, arityError(n, "unsupported boolean operation %v", bd.Op))
			}
			if len(n.Children) != 2 {
				errs = append(errs, arityError(n, "%v has %d operands, want 2", bd.Op, len(n.Children)))
			} else if n.Children[0] == n.Children[1] {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("%v of a solid with itself", bd.Op),
					Severity: SeverityWarning,
				})
			}
		case NodeGroup:
			if len(n.Children) == 0 {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("scene %s is empty", displayName(n)),
					Severity: SeverityWarning,
				})
			}
		}
	}
	return errs
}

func arityError(n *Node, format string, args ...any) ValidationError {
	return ValidationError{NodeID: n.ID, Message: fmt.Sprintf(format, args...), Severity: SeverityError}
}

// validateDimensions rejects primitives the kernel cannot build.
func validateDimensions(g *SceneGraph) []ValidationError {
	var errs []ValidationError
	bad := func(v float64) bool { return !(v > 0) || math.IsInf(v, 0) }
	for _, n := range g.Primitives() {
		var msg string
		switch d := n.Data.(type) {
		case BoxData:
			if bad(d.Size.X) || bad(d.Size.Y) || bad(d.Size.Z) {
				msg = fmt.Sprintf("box size %v must be positive", d.Size)
			}
		case SphereData:
			if bad(d.Radius) {
				msg = fmt.Sprintf("sphere radius %v must be positive", d.Radius)
			}
		case CylinderData:
			if bad(d.Height) || bad(d.Radius) {
				msg = fmt.Sprintf("cylinder height %v and radius %v must be positive", d.Height, d.Radius)
			}
		default:
			msg = fmt.Sprintf("primitive has unsupported data type %T", n.Data)
		}
		if msg != "" {
			errs = append(errs, ValidationError{NodeID: n.ID, Message: msg, Severity: SeverityError})
		}
	}
	return errs
}

func sortedIDs(g *SceneGraph) []NodeID {
	ids := make([]NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func displayName(n *Node) string {
	if n.Name != "" {
		return fmt.Sprintf("%q", n.Name)
	}
	return n.ID.Short()
}
