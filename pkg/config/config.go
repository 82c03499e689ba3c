// Package config loads the ray set and cast parameters used by the trace
// command from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"

	"github.com/chazu/raycsg/pkg/kernel"
)

// Config is the top-level trace configuration.
type Config struct {
	Rays    RaySet              `yaml:"rays"`
	Cast    kernel.CastSettings `yaml:"cast"`
	Workers int                 `yaml:"workers"` // 0 selects runtime.NumCPU()
}

// RaySet describes a rectangular grid of parallel rays plus any number of
// explicit rays.
//
// Grid ray (i, j) starts at Origin + (i - (NU-1)/2)*Spacing*U +
// (j - (NV-1)/2)*Spacing*V, so the grid is centred on Origin. Rays are
// ordered with j varying fastest.
type RaySet struct {
	Origin    [3]float64   `yaml:"origin"`
	Direction [3]float64   `yaml:"direction"`
	Grid      Grid         `yaml:"grid"`
	Extra     []kernel.Ray `yaml:"extra,omitempty"`
}

// Grid spans the ray origins. Zero counts mean a single row or column.
type Grid struct {
	U       [3]float64 `yaml:"u"`
	V       [3]float64 `yaml:"v"`
	NU      int        `yaml:"nu"`
	NV      int        `yaml:"nv"`
	Spacing float64    `yaml:"spacing"`
}

// Default returns a single ray along +X starting at x = -100.
func Default() *Config {
	return &Config{
		Rays: RaySet{
			Origin:    [3]float64{-100, 0, 0},
			Direction: [3]float64{1, 0, 0},
			Grid: Grid{
				U:       [3]float64{0, 1, 0},
				V:       [3]float64{0, 0, 1},
				NU:      1,
				NV:      1,
				Spacing: 1,
			},
		},
		Cast: kernel.DefaultCastSettings(),
	}
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration describes at least one usable ray
// and sensible cast parameters.
func (c *Config) Validate() error {
	g := c.Rays.Grid
	if g.NU < 0 || g.NV < 0 {
		return fmt.Errorf("grid counts must not be negative (nu=%d, nv=%d)", g.NU, g.NV)
	}
	if g.Spacing < 0 {
		return fmt.Errorf("grid spacing must not be negative")
	}
	if vec(c.Rays.Direction).Norm() == 0 {
		return fmt.Errorf("ray direction must not be zero")
	}
	if g.Spacing > 0 {
		if g.NU > 1 && vec(g.U).Norm() == 0 {
			return fmt.Errorf("grid u must not be zero when nu > 1")
		}
		if g.NV > 1 && vec(g.V).Norm() == 0 {
			return fmt.Errorf("grid v must not be zero when nv > 1")
		}
	}
	for i, r := range c.Rays.Extra {
		if vec(r.Dir).Norm() == 0 {
			return fmt.Errorf("extra ray %d: direction must not be zero", i)
		}
	}
	if c.Cast.MaxDistance < 0 || c.Cast.Tolerance < 0 || c.Cast.MinStep < 0 {
		return fmt.Errorf("cast settings must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

// Rays expands the grid and appends the explicit rays.
func (c *Config) Rays() []kernel.Ray {
	rs := c.Rays
	g := rs.Grid
	origin, u, v := vec(rs.Origin), vec(g.U), vec(g.V)
	nu, nv := max(g.NU, 1), max(g.NV, 1)

	rays := make([]kernel.Ray, 0, rs.gridSize()+len(rs.Extra))
	for i := 0; i < nu; i++ {
		du := (float64(i) - float64(nu-1)/2) * g.Spacing
		for j := 0; j < nv; j++ {
			dv := (float64(j) - float64(nv-1)/2) * g.Spacing
			o := origin.Add(u.Mul(du)).Add(v.Mul(dv))
			rays = append(rays, kernel.Ray{Origin: [3]float64{o.X, o.Y, o.Z}, Dir: rs.Direction})
		}
	}
	return append(rays, rs.Extra...)
}

// gridSize is the number of grid rays. Zero counts act as one.
func (rs RaySet) gridSize() int {
	return max(rs.Grid.NU, 1) * max(rs.Grid.NV, 1)
}

func vec(a [3]float64) r3.Vector {
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}
