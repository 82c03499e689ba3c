package interval

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is returned for an unrecognised operation or for
// batches whose shapes cannot be combined.
var ErrInvalidArgument = errors.New("invalid argument")

// Op selects the Boolean operation applied by Combine.
type Op int

const (
	Union Op = iota + 1
	Intersect
	Difference // A minus B
)

func (o Op) String() string {
	switch o {
	case Union:
		return "union"
	case Intersect:
		return "intersect"
	case Difference:
		return "difference"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// ParseOp accepts the lower-case operation names plus a few common aliases.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "union", "or", "+":
		return Union, nil
	case "intersect", "intersection", "and", "&":
		return Intersect, nil
	case "difference", "diff", "subtract", "-":
		return Difference, nil
	}
	return 0, fmt.Errorf("interval: unknown operation %q: %w", s, ErrInvalidArgument)
}

// MarshalText encodes the operation by name.
func (o Op) MarshalText() ([]byte, error) {
	if _, err := ruleFor(o); err != nil {
		return nil, err
	}
	return []byte(o.String()), nil
}

// UnmarshalText accepts anything ParseOp does.
func (o *Op) UnmarshalText(b []byte) error {
	op, err := ParseOp(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// rule is the per-operation part of the merge-and-count routine. All three
// operations share the merge and the running depth; they differ only in the
// contribution of each crossing, the depth offset and which positions are
// kept.
type rule struct {
	// invertB flips the contribution of the second operand.
	invertB bool
	// offset is added to every depth value, including the implicit
	// depth before the first crossing.
	offset int
	// keep reports whether the crossing with depth cur, preceded by a
	// crossing with depth prev, is a boundary of the result.
	keep func(prev, cur int) bool
}

func keepInsideChange(prev, cur int) bool {
	return (prev != 0) != (cur != 0)
}

func keepDepthTwo(prev, cur int) bool {
	return prev == 2 || cur == 2
}

// ruleFor returns the rule for op, or an error wrapping ErrInvalidArgument.
func ruleFor(op Op) (rule, error) {
	switch op {
	case Union:
		return rule{keep: keepInsideChange}, nil
	case Intersect:
		return rule{keep: keepDepthTwo}, nil
	case Difference:
		// Inside A and outside B lands on depth 2 after the offset.
		return rule{invertB: true, offset: 1, keep: keepDepthTwo}, nil
	}
	return rule{}, fmt.Errorf("interval: unsupported operation %v: %w", op, ErrInvalidArgument)
}

// contribution is +1 for an entry and -1 for an exit, inverted for the
// second operand when the rule says so.
func (r rule) contribution(fromB, exit bool) int {
	c := 1
	if exit {
		c = -1
	}
	if fromB && r.invertB {
		c = -c
	}
	return c
}
