package session

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/raycsg/pkg/interval"
	"github.com/chazu/raycsg/pkg/kernel"
)

const lensSource = `
;; Two overlapping spheres.
(def a (sphere :radius 2))
(def b (place (sphere :radius 2) :at (vec3 3 0 0)))
(scene "lens" (intersect a b))
(scene "blob" (union a b))
`

func xRay(y float64) kernel.Ray {
	return kernel.Ray{Origin: [3]float64{-10, y, 0}, Dir: [3]float64{1, 0, 0}}
}

func newSession() *Session {
	return New(Options{Workers: 2})
}

func TestRunLens(t *testing.T) {
	res := newSession().Run(context.Background(), lensSource, []kernel.Ray{xRay(0), xRay(5)}, true)
	require.True(t, res.OK(), "errors: %v", res.Errors)
	assert.Empty(t, res.Stage)
	assert.Empty(t, res.Warnings)
	assert.True(t, res.Verified)
	assert.False(t, res.Mismatched())
	assert.Equal(t, 2, res.Rays)
	assert.Equal(t, 7, res.Nodes)

	require.Len(t, res.Scenes, 2)
	lens := res.Scenes[0]
	assert.Equal(t, "lens", lens.Name)
	require.Len(t, lens.Hits, 2)
	assert.InDeltaSlice(t, []float64{11, 12}, []float64(lens.Hits[0]), 1e-6)
	assert.Empty(t, lens.Hits[1])
	assert.InDelta(t, 1.0, lens.Measure[0], 1e-6)
	assert.Zero(t, lens.Measure[1])

	blob := res.Scenes[1]
	assert.Equal(t, "blob", blob.Name)
	assert.InDeltaSlice(t, []float64{8, 15}, []float64(blob.Hits[0]), 1e-6)
}

func TestRunResultJSON(t *testing.T) {
	res := newSession().Run(context.Background(), lensSource, []kernel.Ray{xRay(0), xRay(5)}, false)
	require.True(t, res.OK())

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded struct {
		ID     string `json:"id"`
		Scenes []struct {
			Name string      `json:"name"`
			Hits [][]float64 `json:"hits"`
		} `json:"scenes"`
		Errors   []Message `json:"errors"`
		Warnings []Message `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotNil(t, decoded.Errors, "errors should encode as an empty array")
	assert.NotNil(t, decoded.Warnings)
	require.Len(t, decoded.Scenes, 2)
	assert.Equal(t, []float64{}, decoded.Scenes[0].Hits[1])

	id, err := uuid.Parse(decoded.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotContains(t, string(data), "mismatches")
}

func TestRunEmptySource(t *testing.T) {
	for _, src := range []string{"", "   \n\t", ";; only a comment\n; and another"} {
		res := newSession().Run(context.Background(), src, []kernel.Ray{xRay(0)}, false)
		assert.True(t, res.OK(), "source %q: %v", src, res.Errors)
		assert.Empty(t, res.Scenes)
		assert.Zero(t, res.Nodes)
	}
}

func TestRunEvalErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"syntax error", "(scene \"s\" (sphere :radius 1)"},
		{"undefined solid", `(scene "s" (solid "missing"))`},
		{"undefined symbol", `(scene "s" nothing-here)`},
		{"missing argument", `(defsolid "s")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newSession().Run(context.Background(), tt.source, []kernel.Ray{xRay(0)}, false)
			require.False(t, res.OK())
			assert.Equal(t, StageEvaluate, res.Stage)
			assert.NotEmpty(t, res.Errors[0].Message)
			assert.Empty(t, res.Scenes)
		})
	}
}

func TestRunSyntaxErrorLine(t *testing.T) {
	res := newSession().Run(context.Background(), "(def r 1)\n(sphere :radius r", nil, false)
	require.False(t, res.OK())
	assert.NotEmpty(t, res.Errors[0].Message)
	assert.GreaterOrEqual(t, res.Errors[0].Line, 0)
}

func TestRunValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		substr string
	}{
		{"zero radius", `(scene "s" (sphere :radius 0))`, "radius 0 must be positive"},
		{"negative box", `(scene "s" (box :size (vec3 1 -1 1)))`, "box size"},
		{"flat cylinder", `(scene "s" (cylinder :height 0 :radius 1))`, "cylinder height 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newSession().Run(context.Background(), tt.source, []kernel.Ray{xRay(0)}, false)
			require.False(t, res.OK())
			assert.Equal(t, StageValidate, res.Stage)
			assert.Contains(t, res.Errors[0].Message, tt.substr)
			assert.NotEmpty(t, res.Errors[0].Node)
			assert.Empty(t, res.Scenes, "invalid graphs are not traced")
		})
	}
}

func TestRunWarnings(t *testing.T) {
	source := `
(defsolid "spare" (sphere :radius 1))
(def s (sphere :radius 2))
(scene "main" (difference s s))
(scene "nothing")
`
	res := newSession().Run(context.Background(), source, []kernel.Ray{xRay(0)}, true)
	require.True(t, res.OK(), "errors: %v", res.Errors)
	assert.Len(t, res.Warnings, 3)

	require.Len(t, res.Scenes, 2)
	assert.Equal(t, interval.Sequence{}, res.Scenes[0].Hits[0])
	assert.Equal(t, interval.Sequence{}, res.Scenes[1].Hits[0])
	assert.False(t, res.Mismatched())
}

func TestRunArithmetic(t *testing.T) {
	source := `
(def r (/ 10 5))
(def gap (+ r 1))
(scene "s" (place (sphere :radius r) :at (vec3 gap 0 0)))
`
	res := newSession().Run(context.Background(), source, []kernel.Ray{xRay(0)}, false)
	require.True(t, res.OK(), "errors: %v", res.Errors)
	assert.InDeltaSlice(t, []float64{11, 15}, []float64(res.Scenes[0].Hits[0]), 1e-6)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := newSession().Run(ctx, lensSource, []kernel.Ray{xRay(0)}, false)
	require.False(t, res.OK())
	assert.Equal(t, StageTrace, res.Stage)
	assert.Contains(t, res.Errors[0].Message, "trace failed")
}

func TestRunRepeated(t *testing.T) {
	s := newSession()
	var first []float64
	for i := 0; i < 10; i++ {
		res := s.Run(context.Background(), lensSource, []kernel.Ray{xRay(0.5)}, false)
		require.True(t, res.OK(), "iteration %d: %v", i, res.Errors)
		if first == nil {
			first = res.Scenes[0].Hits[0]
			continue
		}
		assert.Equal(t, first, []float64(res.Scenes[0].Hits[0]), "iteration %d", i)
	}
}

func TestCheckLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := New(Options{Logger: logger})

	g, res := s.Check(lensSource)
	require.NotNil(t, g)
	require.True(t, res.OK())
	assert.Len(t, g.Roots, 2)
	assert.Contains(t, buf.String(), "msg=evaluated")
	assert.Contains(t, buf.String(), "nodes=7")
}

func TestAgree(t *testing.T) {
	assert.True(t, agree(interval.Sequence{1, 2}, interval.Sequence{1 + 1e-9, 2}))
	assert.False(t, agree(interval.Sequence{1, 2}, interval.Sequence{1.1, 2}))
	assert.False(t, agree(interval.Sequence{1, 2}, interval.Sequence{}))
}

func TestRunAlternatingValidInvalid(t *testing.T) {
	s := newSession()
	sources := []string{
		lensSource,
		`(scene "s" (sphere :radius`,
		`(scene "s" (sphere :radius 1.5))`,
		`(scene "s" (sphere :radius -1))`,
		``,
		lensSource,
	}
	wantOK := []bool{true, false, true, false, true, true}
	for i, src := range sources {
		res := s.Run(context.Background(), src, []kernel.Ray{xRay(0)}, false)
		assert.Equal(t, wantOK[i], res.OK(), "source %d: %v", i, res.Errors)
	}
}

func TestRunFloatingPointDimensions(t *testing.T) {
	res := newSession().Run(context.Background(), `(scene "s" (box :size (vec3 2.5 0.75 0.75)))`,
		[]kernel.Ray{{Origin: [3]float64{-10, 0.375, 0.375}, Dir: [3]float64{1, 0, 0}}}, true)
	require.True(t, res.OK(), "errors: %v", res.Errors)
	assert.InDeltaSlice(t, []float64{10, 12.5}, []float64(res.Scenes[0].Hits[0]), 1e-6)
	assert.InDelta(t, 2.5, res.Scenes[0].Measure[0], 1e-6)
}
