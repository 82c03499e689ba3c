package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/raycsg/pkg/graph"
	"github.com/chazu/raycsg/pkg/interval"
	zygo "github.com/glycerine/zygomys/zygo"
	"golang.org/x/text/unicode/norm"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms scene source code before passing it to
// zygomys. It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: outer-shell -> outer_shell
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
//  3. Line comments: ; and ;; become //, the zygomys comment syntax.
//
// All transformations respect string literal boundaries.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpSolidRef wraps a graph.NodeID so it can be passed between builtins.
type sexpSolidRef struct {
	id   graph.NodeID
	name string // human-readable name for error messages
}

func (n *sexpSolidRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(solid %q)", n.name)
	}
	return fmt.Sprintf("(solid %s)", n.id.Short())
}
func (n *sexpSolidRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a graph.Vec3.
type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// float reads the keyword argument key as a number. Missing keywords are an
// error; every dimension in the DSL is required.
func (a kwArgs) float(fn, key string) (float64, error) {
	v, ok := a.kw[key]
	if !ok {
		return 0, fmt.Errorf("%s requires :%s", fn, key)
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", fn, key, err)
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_union) and plain strings ("union").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toSolidRef extracts a NodeID from a sexpSolidRef.
func toSolidRef(s zygo.Sexp) (graph.NodeID, error) {
	if ref, ok := s.(*sexpSolidRef); ok {
		return ref.id, nil
	}
	return graph.ZeroID, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Graph building
// ---------------------------------------------------------------------------

// toName converts a string argument to a solid or scene name. Names are
// NFC-normalized so that visually identical names look up the same node.
func toName(s zygo.Sexp) (string, error) {
	str, err := toString(s)
	if err != nil {
		return "", err
	}
	return norm.NFC.String(str), nil
}

// builder owns the graph under construction for one evaluation. Anonymous
// nodes get IDs from per-kind counters, so evaluating the same source twice
// yields identical IDs.
type builder struct {
	g     *graph.SceneGraph
	count map[string]int
}

func newBuilder(g *graph.SceneGraph) *builder {
	return &builder{g: g, count: make(map[string]int)}
}

// add inserts an anonymous node of the given kind and returns a reference.
func (b *builder) add(kind string, nk graph.NodeKind, data graph.NodeData, children ...graph.NodeID) *sexpSolidRef {
	id := graph.NewNodeID(fmt.Sprintf("%s/%d", kind, b.count[kind]))
	b.count[kind]++
	b.g.AddNode(&graph.Node{ID: id, Kind: nk, Children: children, Data: data})
	return &sexpSolidRef{id: id}
}

// name attaches a user-visible name to an existing node.
func (b *builder) name(id graph.NodeID, name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if b.g.Lookup(name) != nil {
		return fmt.Errorf("%q is already defined", name)
	}
	n := b.g.Get(id)
	if n == nil {
		return fmt.Errorf("unknown solid %s", id.Short())
	}
	if n.Name != "" {
		return fmt.Errorf("solid is already named %q", n.Name)
	}
	n.Name = name
	b.g.NameIndex[name] = id
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all scene DSL builtins into a zygomys environment.
// The builtins operate on the builder's graph, populating it during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: graph.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (box :size (vec3 10 4 4))
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		v, ok := pa.kw["size"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("box requires :size")
		}
		size, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
		}
		return b.add("box", graph.NodePrimitive, graph.BoxData{Size: size}), nil
	})

	// -----------------------------------------------------------------------
	// (sphere :radius 2)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		r, err := parseArgs(args).float("sphere", "radius")
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.add("sphere", graph.NodePrimitive, graph.SphereData{Radius: r}), nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :height 10 :radius 3)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		h, err := pa.float("cylinder", "height")
		if err != nil {
			return zygo.SexpNull, err
		}
		r, err := pa.float("cylinder", "radius")
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.add("cylinder", graph.NodePrimitive, graph.CylinderData{Height: h, Radius: r}), nil
	})

	// -----------------------------------------------------------------------
	// (union a b) (intersect a b) (difference a b) (csg :union a b)
	// -----------------------------------------------------------------------
	boolean := func(fn string, op interval.Op, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("%s requires exactly 2 solids, got %d", fn, len(args))
		}
		var children [2]graph.NodeID
		for i, a := range args {
			id, err := toSolidRef(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", fn, i+1, err)
			}
			children[i] = id
		}
		return b.add(op.String(), graph.NodeBoolean, graph.BooleanData{Op: op}, children[:]...), nil
	}
	for _, op := range []interval.Op{interval.Union, interval.Intersect, interval.Difference} {
		env.AddFunction(op.String(), func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			return boolean(op.String(), op, args)
		})
	}
	env.AddFunction("csg", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("csg requires an operation")
		}
		s, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("csg: operation: %w", err)
		}
		op, err := interval.ParseOp(s)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("csg: %w", err)
		}
		return boolean("csg", op, args[1:])
	})

	// -----------------------------------------------------------------------
	// (place s :at (vec3 0 0 19) :rotate (vec3 0 0 90))
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("place requires exactly one solid, got %d", len(pa.positional))
		}
		childID, err := toSolidRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}

		td := graph.TransformData{}
		if v, ok := pa.kw["at"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: at: %w", err)
			}
			td.Translation = &vec
		}
		if v, ok := pa.kw["rotate"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: rotate: %w", err)
			}
			td.Rotation = &vec
		}

		return b.add("place", graph.NodeTransform, td, childID), nil
	})

	// -----------------------------------------------------------------------
	// (defsolid "lens" (intersect ...))
	// -----------------------------------------------------------------------
	env.AddFunction("defsolid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("defsolid requires a name and a solid")
		}
		solidName, err := toName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defsolid: name: %w", err)
		}
		id, err := toSolidRef(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defsolid: %w", err)
		}
		if err := b.name(id, solidName); err != nil {
			return zygo.SexpNull, fmt.Errorf("defsolid: %w", err)
		}
		return &sexpSolidRef{id: id, name: solidName}, nil
	})

	// -----------------------------------------------------------------------
	// (solid "lens")
	// -----------------------------------------------------------------------
	env.AddFunction("solid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("solid requires a name argument")
		}
		solidName, err := toName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("solid: name: %w", err)
		}
		n := b.g.Lookup(solidName)
		if n == nil || n.Kind == graph.NodeGroup {
			return zygo.SexpNull, fmt.Errorf("solid: no solid named %q", solidName)
		}
		return &sexpSolidRef{id: n.ID, name: solidName}, nil
	})

	// -----------------------------------------------------------------------
	// (scene "main" a b (list c d) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("scene", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("scene requires a name argument")
		}
		sceneName, err := toName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scene: name: %w", err)
		}
		if b.g.Lookup(sceneName) != nil {
			return zygo.SexpNull, fmt.Errorf("scene: %q is already defined", sceneName)
		}

		var children []graph.NodeID
		for i, a := range args[1:] {
			items := []zygo.Sexp{a}
			if _, isRef := a.(*sexpSolidRef); !isRef {
				if list, err := sexpListToSlice(a); err == nil {
					items = list
				}
			}
			for _, item := range items {
				id, err := toSolidRef(item)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("scene: child %d: %w", i+1, err)
				}
				children = append(children, id)
			}
		}

		id := graph.NewNodeID("scene/" + sceneName)
		b.g.AddNode(&graph.Node{
			ID:       id,
			Kind:     graph.NodeGroup,
			Name:     sceneName,
			Children: children,
			Data:     graph.GroupData{},
		})
		b.g.AddRoot(id)

		return &sexpSolidRef{id: id, name: sceneName}, nil
	})
}
