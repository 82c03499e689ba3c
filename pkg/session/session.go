// Package session runs the full raycsg pipeline: evaluate scene source,
// validate the resulting graph, trace rays through every scene and
// optionally verify the result against the kernel's own Booleans.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/raycsg/pkg/engine"
	"github.com/chazu/raycsg/pkg/graph"
	"github.com/chazu/raycsg/pkg/interval"
	"github.com/chazu/raycsg/pkg/kernel"
	"github.com/chazu/raycsg/pkg/kernel/sdfx"
	"github.com/chazu/raycsg/pkg/trace"
)

// VerifyTolerance is the largest difference allowed between a traced
// boundary and the reference boundary.
const VerifyTolerance = 1e-6

// Message is a JSON-serializable error or warning.
type Message struct {
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Node    string `json:"node,omitempty"`
	Message string `json:"message"`
}

// SceneResult holds the traced hits of one scene.
type SceneResult struct {
	Name    string              `json:"name"`
	Hits    []interval.Sequence `json:"hits"`
	Measure []float64           `json:"measure"`
	// Mismatches lists the rays whose hits differ from the reference.
	// Only set when verification ran.
	Mismatches []int `json:"mismatches,omitempty"`
}

// Pipeline stages, reported in Result.Stage when a run fails.
const (
	StageEvaluate = "evaluate"
	StageValidate = "validate"
	StageTrace    = "trace"
	StageVerify   = "verify"
)

// Result is the full, JSON-serializable outcome of a run.
type Result struct {
	ID       string        `json:"id"`
	Stage    string        `json:"stage,omitempty"` // stage that failed, if any
	Nodes    int           `json:"nodes"`
	Rays     int           `json:"rays"`
	Verified bool          `json:"verified"`
	Scenes   []SceneResult `json:"scenes"`
	Errors   []Message     `json:"errors"`
	Warnings []Message     `json:"warnings"`
}

// OK reports whether the run produced no errors.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Mismatched reports whether verification found any disagreement.
func (r Result) Mismatched() bool {
	for _, s := range r.Scenes {
		if len(s.Mismatches) > 0 {
			return true
		}
	}
	return false
}

// Options configures a Session. The zero value is usable.
type Options struct {
	Cast    kernel.CastSettings // zero fields use kernel.DefaultCastSettings
	Workers int                 // 0 selects runtime.NumCPU()
	Timeout time.Duration       // evaluation timeout, 0 for engine.EvalTimeout
	Logger  *slog.Logger        // nil for slog.Default()
}

// Session ties the engine, the kernel and the tracer together.
type Session struct {
	engine *engine.Engine
	tracer *trace.Tracer
	logger *slog.Logger
}

// New creates a Session backed by the sdfx kernel.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	k := sdfx.NewWithCast(opts.Cast)
	return &Session{
		engine: engine.NewEngine(engine.WithTimeout(opts.Timeout)),
		tracer: trace.New(k, trace.WithWorkers(opts.Workers), trace.WithLogger(logger)),
		logger: logger,
	}
}

func newResult() Result {
	return Result{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Scenes:   []SceneResult{},
		Errors:   []Message{},
		Warnings: []Message{},
	}
}

// Check evaluates and validates source without tracing. The graph is nil
// when evaluation failed.
func (s *Session) Check(source string) (*graph.SceneGraph, Result) {
	result := newResult()

	// Step 1: Evaluate the Lisp source into a scene graph.
	g, evalErrs, err := s.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		s.logger.Warn("evaluate failed", "error", err)
		result.Stage = StageEvaluate
		result.Errors = append(result.Errors, Message{Message: err.Error()})
		return nil, result
	}
	if len(evalErrs) > 0 {
		result.Stage = StageEvaluate
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, Message{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return nil, result
	}
	result.Nodes = g.NodeCount()

	// Step 2: Validate the graph.
	vr := graph.ValidateAll(g)
	for _, e := range vr.Errors {
		result.Errors = append(result.Errors, validationMessage(e))
	}
	if !vr.OK() {
		result.Stage = StageValidate
	}
	for _, w := range vr.Warnings {
		result.Warnings = append(result.Warnings, validationMessage(w))
	}
	s.logger.Debug("evaluated", "nodes", result.Nodes, "scenes", len(g.Roots),
		"errors", len(vr.Errors), "warnings", len(vr.Warnings))
	return g, result
}

// Run evaluates source and traces rays through every scene. With verify,
// each scene is also cast as a single kernel solid and every ray whose
// hits disagree is reported.
func (s *Session) Run(ctx context.Context, source string, rays []kernel.Ray, verify bool) Result {
	g, result := s.Check(source)
	result.Rays = len(rays)
	if g == nil || !result.OK() {
		return result
	}

	// Step 3: Trace.
	start := time.Now()
	traced, err := s.tracer.Trace(ctx, g, rays)
	if err != nil {
		s.logger.Warn("trace failed", "error", err)
		result.Stage = StageTrace
		result.Errors = append(result.Errors, Message{Message: "trace failed: " + err.Error()})
		return result
	}
	s.logger.Debug("traced", "scenes", len(traced), "rays", len(rays), "elapsed", time.Since(start))

	for _, tr := range traced {
		result.Scenes = append(result.Scenes, SceneResult{Name: tr.Scene, Hits: tr.Hits, Measure: tr.Measure()})
	}
	if !verify {
		return result
	}

	// Step 4: Verify against the kernel Booleans.
	ref, err := s.tracer.Reference(ctx, g, rays)
	if err != nil {
		result.Stage = StageVerify
		result.Errors = append(result.Errors, Message{Message: "reference trace failed: " + err.Error()})
		return result
	}
	result.Verified = true
	for i := range result.Scenes {
		sc := &result.Scenes[i]
		for r := range rays {
			if agree(sc.Hits[r], ref[i].Hits[r]) {
				continue
			}
			sc.Mismatches = append(sc.Mismatches, r)
			result.Warnings = append(result.Warnings, Message{
				Node:    traced[i].Root.Short(),
				Message: fmt.Sprintf("scene %q ray %d: traced %v, reference %v", sc.Name, r, sc.Hits[r], ref[i].Hits[r]),
			})
		}
	}
	return result
}

func validationMessage(e graph.ValidationError) Message {
	m := Message{Message: e.Message}
	if !e.NodeID.IsZero() {
		m.Node = e.NodeID.Short()
	}
	return m
}

// agree compares two normalized hit sequences boundary by boundary.
func agree(a, b interval.Sequence) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > VerifyTolerance {
			return false
		}
	}
	return true
}
