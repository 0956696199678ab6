// Package config loads the YAML case description of a diffusion problem
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/notargets/MPFAKernel/assembly"
	"github.com/notargets/MPFAKernel/material"
	"github.com/notargets/MPFAKernel/mpfa"
	"github.com/notargets/MPFAKernel/partitions"
	"gopkg.in/yaml.v3"
)

// Config is a complete case
type Config struct {
	Grid     GridConfig     `yaml:"grid"`
	Material MaterialConfig `yaml:"material"`
	Boundary BoundaryConfig `yaml:"boundary"`
	Solution SolutionConfig `yaml:"solution"`
	Solver   SolverConfig   `yaml:"solver"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GridConfig selects a generated grid or a mesh file
type GridConfig struct {
	// Type: "rectangular", "triangular", "hexahedral", "tetrahedral" or "file"
	Type  string    `yaml:"type"`
	Cells []int     `yaml:"cells"` // nx, ny[, nz]
	Size  []float64 `yaml:"size"`  // lx, ly[, lz]
	File  string    `yaml:"file"`

	Q            float64 `yaml:"q"`
	Perturbation float64 `yaml:"perturbation"`
	Seed         int64   `yaml:"seed"`
	Extrusion    float64 `yaml:"extrusion"`
}

// MaterialConfig names a material model and its parameters
type MaterialConfig struct {
	Model  string          `yaml:"model"`
	Params material.Params `yaml:"params"`
}

// BoundaryConfig assigns conditions to the sides of a box domain. Sides are
// "xmin", "xmax", "ymin", "ymax", "zmin", "zmax"; a face belongs to the side
// its outer normal points to.
type BoundaryConfig struct {
	Default string                `yaml:"default"` // Type of sides not listed
	Sides   map[string]SideConfig `yaml:"sides"`
}

// SideConfig is the condition of one side
type SideConfig struct {
	// Condition type, the boundary default when empty
	Type string `yaml:"type"`
	// Dirichlet value, the reference field when unset
	Value *float64 `yaml:"value"`
	// Neumann flux density leaving the domain
	Flux float64 `yaml:"flux"`
}

// SolutionConfig is the reference field u = constant + gradient·x used for
// Dirichlet values, and the volumetric source
type SolutionConfig struct {
	Constant float64   `yaml:"constant"`
	Gradient []float64 `yaml:"gradient"`
	Source   float64   `yaml:"source"`
}

// SolverConfig controls the global solve
type SolverConfig struct {
	Workers       int     `yaml:"workers"`
	Strategy      string  `yaml:"strategy"`
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`

	// Global linear solver: "auto", "dense" or "bicgstab"
	Linear          string  `yaml:"linear"`
	LinearTolerance float64 `yaml:"linear_tolerance"`
}

// LoggingConfig selects the log level and format
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// SideNames lists the recognized sides in axis order
var SideNames = []string{"xmin", "xmax", "ymin", "ymax", "zmin", "zmax"}

// Default returns a unit square with a unit isotropic tensor and Dirichlet
// values from u = x
func Default() *Config {
	return &Config{
		Grid: GridConfig{
			Type:  "rectangular",
			Cells: []int{10, 10},
			Size:  []float64{1, 1},
		},
		Material: MaterialConfig{
			Model:  "isotropic",
			Params: material.Params{"k": 1},
		},
		Boundary: BoundaryConfig{Default: "dirichlet"},
		Solution: SolutionConfig{Gradient: []float64{1, 0}},
		Solver: SolverConfig{
			Strategy:      "block",
			MaxIterations: 20,
			Tolerance:     1e-10,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and validates a case file. A relative mesh file name is taken
// relative to the directory of the case file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	// Mesh files are relative to the case file
	if f := cfg.Grid.File; f != "" && !filepath.IsAbs(f) {
		cfg.Grid.File = filepath.Join(filepath.Dir(path), f)
	}
	return cfg, nil
}

// Parse decodes a case on top of the defaults and validates it. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	// Maps merge on decode, parameters of another model must not leak in
	cfg.Material.Params = nil
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Material.Params == nil {
		cfg.Material.Params = Default().Material.Params
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Dim returns the spatial dimension of the grid
func (c *Config) Dim() int {
	switch c.Grid.Type {
	case "hexahedral", "tetrahedral", "file":
		return 3
	}
	return 2
}

// Validate checks the case for consistency
func (c *Config) Validate() error {
	g := &c.Grid
	dim := c.Dim()
	switch g.Type {
	case "rectangular", "triangular", "hexahedral", "tetrahedral":
		if len(g.Cells) != dim || len(g.Size) != dim {
			return fmt.Errorf("grid: %s needs %d cell counts and sizes, got %v and %v", g.Type, dim, g.Cells, g.Size)
		}
		for i := 0; i < dim; i++ {
			if g.Cells[i] <= 0 || g.Size[i] <= 0 {
				return fmt.Errorf("grid: cells %v and size %v must be positive", g.Cells, g.Size)
			}
		}
	case "file":
		if g.File == "" {
			return fmt.Errorf("grid: file type needs a file name")
		}
	default:
		return fmt.Errorf("grid: unknown type %q", g.Type)
	}
	if g.Q < 0 || g.Q >= 1 {
		return fmt.Errorf("grid: q=%g outside [0,1)", g.Q)
	}
	if g.Perturbation != 0 && (g.Type == "hexahedral" || g.Type == "file") {
		return fmt.Errorf("grid: %s grids cannot be perturbed", g.Type)
	}

	if _, err := material.New(c.Material.Model); err != nil {
		return fmt.Errorf("material: %w (have %s)", err, strings.Join(material.Names(), ", "))
	}

	if _, err := boundaryType(c.Boundary.Default); err != nil {
		return fmt.Errorf("boundary default: %w", err)
	}
	for name, side := range c.Boundary.Sides {
		idx := sideIndex(name)
		if idx < 0 {
			return fmt.Errorf("boundary: unknown side %q", name)
		}
		if idx >= 2*dim {
			return fmt.Errorf("boundary: side %q in a %dD case", name, dim)
		}
		if _, err := boundaryType(side.Type); err != nil {
			return fmt.Errorf("boundary %s: %w", name, err)
		}
	}

	if len(c.Solution.Gradient) > dim {
		return fmt.Errorf("solution: gradient %v has more than %d components", c.Solution.Gradient, dim)
	}

	if _, err := partitions.ParseStrategy(c.Solver.Strategy); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if _, err := assembly.ParseLinearSolver(c.Solver.Linear); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if c.Solver.Workers < 0 || c.Solver.MaxIterations < 0 || c.Solver.Tolerance < 0 || c.Solver.LinearTolerance < 0 {
		return fmt.Errorf("solver: workers, max_iterations and tolerance must not be negative")
	}
	return nil
}

func sideIndex(name string) int {
	for i, s := range SideNames {
		if s == name {
			return i
		}
	}
	return -1
}

// boundaryType parses a boundary condition type. Empty means Dirichlet.
func boundaryType(name string) (mpfa.FaceType, error) {
	if name == "" {
		return mpfa.Dirichlet, nil
	}
	ft, err := mpfa.ParseFaceType(name)
	if err != nil {
		return 0, err
	}
	if ft == mpfa.Interior {
		return 0, fmt.Errorf("interior is not a boundary condition")
	}
	return ft, nil
}
