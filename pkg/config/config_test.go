package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/raycsg/pkg/kernel"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, kernel.DefaultCastSettings(), cfg.Cast)
	assert.Equal(t, []kernel.Ray{{Origin: [3]float64{-100, 0, 0}, Dir: [3]float64{1, 0, 0}}}, cfg.Rays())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
rays:
  origin: [-10, 0, 0]
  direction: [1, 0, 0]
  grid: {u: [0, 1, 0], v: [0, 0, 1], nu: 3, nv: 2, spacing: 0.5}
  extra:
    - {origin: [0, -10, 0], dir: [0, 1, 0]}
cast:
  max_distance: 100
  tolerance: 1e-6
workers: 4
`))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 100.0, cfg.Cast.MaxDistance)
	assert.Equal(t, 1e-6, cfg.Cast.Tolerance)
	// Unset fields keep their defaults.
	assert.Equal(t, kernel.DefaultCastSettings().MinStep, cfg.Cast.MinStep)

	rays := cfg.Rays()
	require.Len(t, rays, 7)
	want := [][3]float64{
		{-10, -0.5, -0.25}, {-10, -0.5, 0.25},
		{-10, 0, -0.25}, {-10, 0, 0.25},
		{-10, 0.5, -0.25}, {-10, 0.5, 0.25},
	}
	for i, o := range want {
		assert.InDeltaSlice(t, o[:], rays[i].Origin[:], 1e-12, "ray %d", i)
		assert.Equal(t, [3]float64{1, 0, 0}, rays[i].Dir)
	}
	assert.Equal(t, kernel.Ray{Origin: [3]float64{0, -10, 0}, Dir: [3]float64{0, 1, 0}}, rays[6])
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		substr string
	}{
		{"unknown field", "rayz: {}", "failed to parse YAML"},
		{"bad type", "workers: many", "failed to parse YAML"},
		{"zero direction", "rays: {direction: [0, 0, 0]}", "direction must not be zero"},
		{"negative count", "rays: {grid: {nu: -1}}", "must not be negative"},
		{"negative spacing", "rays: {grid: {spacing: -1}}", "spacing must not be negative"},
		{"zero u", "rays: {grid: {u: [0, 0, 0], nu: 2}}", "grid u must not be zero"},
		{"zero v", "rays: {grid: {v: [0, 0, 0], nv: 2}}", "grid v must not be zero"},
		{"zero extra", "rays: {extra: [{origin: [0, 0, 0], dir: [0, 0, 0]}]}", "extra ray 0"},
		{"negative cast", "cast: {tolerance: -1}", "cast settings"},
		{"negative workers", "workers: -2", "workers must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rays.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
