// Package engine provides the Lisp evaluation engine for raycsg scenes.
// It wraps zygomys in a sandboxed environment and produces a SceneGraph
// from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/raycsg/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Message string `json:"message"`
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides EvalTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// Engine wraps the zygomys interpreter for scene evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: EvalTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate takes Lisp source code and produces a new SceneGraph.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns graph + nil errors + nil error
//   - On parse/eval failure: returns nil graph + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*graph.SceneGraph, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		g, evalErrs, err := evaluate(source)
		ch <- evalResult{graph: g, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, e.timeout, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func evaluate(source string) (*graph.SceneGraph, []EvalError, error) {
	// Empty source is a valid program that produces an empty graph.
	if strings.TrimSpace(source) == "" {
		return graph.New(), nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	g := graph.New()
	registerBuiltins(env, newBuilder(g))

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}

	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}

	return g, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
