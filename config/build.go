package config

import (
	"math"

	"github.com/notargets/MPFAKernel/assembly"
	"github.com/notargets/MPFAKernel/element"
	"github.com/notargets/MPFAKernel/grid"
	"github.com/notargets/MPFAKernel/material"
	"github.com/notargets/MPFAKernel/mpfa"
	"github.com/notargets/MPFAKernel/partitions"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// BuildGrid generates or loads the grid of the case
func (c *Config) BuildGrid() (*grid.Grid, error) {
	g := &c.Grid
	opts := grid.Options{
		Q:            g.Q,
		Perturbation: g.Perturbation,
		RandSeed:     g.Seed,
		Classifier:   c.Classifier(),
		Extrusion:    g.Extrusion,
	}
	switch g.Type {
	case "rectangular":
		return grid.NewRectangular(g.Cells[0], g.Cells[1], g.Size[0], g.Size[1], opts)
	case "triangular":
		return grid.NewTriangular(g.Cells[0], g.Cells[1], g.Size[0], g.Size[1], opts)
	case "hexahedral":
		return grid.NewHexahedral(g.Cells[0], g.Cells[1], g.Cells[2], g.Size[0], g.Size[1], g.Size[2], opts)
	case "tetrahedral":
		return grid.NewTetrahedral(g.Cells[0], g.Cells[1], g.Cells[2], g.Size[0], g.Size[1], g.Size[2], opts)
	}
	return grid.ReadMeshFile(g.File, opts)
}

// BuildMaterial allocates and initialises the material model
func (c *Config) BuildMaterial() (material.Model, error) {
	m, err := material.New(c.Material.Model)
	if err != nil {
		return nil, err
	}
	if err = m.Init(c.Dim(), c.Material.Params); err != nil {
		return nil, err
	}
	return m, nil
}

// Side returns the side a boundary face belongs to, from the dominant
// component of its outer normal
func Side(n r3.Vec) string {
	comps := []float64{n.X, n.Y, n.Z}
	axis := 0
	for i := 1; i < 3; i++ {
		if math.Abs(comps[i]) > math.Abs(comps[axis]) {
			axis = i
		}
	}
	if comps[axis] < 0 {
		return SideNames[2*axis]
	}
	return SideNames[2*axis+1]
}

func (c *Config) side(scvf element.SubControlVolumeFace) (SideConfig, bool) {
	s, ok := c.Boundary.Sides[Side(scvf.UnitOuterNormal)]
	return s, ok
}

// Classifier assigns boundary condition types by side. Sides without a type
// take the default one.
func (c *Config) Classifier() grid.BoundaryClassifier {
	def, _ := boundaryType(c.Boundary.Default)
	return func(scvf element.SubControlVolumeFace) mpfa.FaceType {
		if s, ok := c.side(scvf); ok && s.Type != "" {
			ft, _ := boundaryType(s.Type)
			return ft
		}
		return def
	}
}

// Reference evaluates the reference field u = constant + gradient·x
func (c *Config) Reference(x r3.Vec) float64 {
	u := c.Solution.Constant
	for i, g := range c.Solution.Gradient {
		u += g * []float64{x.X, x.Y, x.Z}[i]
	}
	return u
}

// BuildBoundary returns the boundary data of the case. Dirichlet values come
// from the side value, or the reference field; sides are looked up from the
// integration point's face normal, so the value function gets the face.
func (c *Config) BuildBoundary() assembly.Boundary {
	values := make(map[string]float64)
	for name, s := range c.Boundary.Sides {
		if s.Value != nil {
			values[name] = *s.Value
		}
	}
	return assembly.Boundary{
		Dirichlet: c.Reference,
		DirichletFace: func(scvf element.SubControlVolumeFace) (float64, bool) {
			v, ok := values[Side(scvf.UnitOuterNormal)]
			return v, ok
		},
		Neumann: func(scvf element.SubControlVolumeFace) float64 {
			s, _ := c.side(scvf)
			return s.Flux
		},
	}
}

// BuildSource returns the constant source of the case, nil if zero
func (c *Config) BuildSource() assembly.Source {
	q := c.Solution.Source
	if q == 0 {
		return nil
	}
	return func(r3.Vec) float64 { return q }
}

// SolverOptions converts the solver section
func (c *Config) SolverOptions(logger *zap.Logger) assembly.Options {
	strategy, _ := partitions.ParseStrategy(c.Solver.Strategy)
	linear, _ := assembly.ParseLinearSolver(c.Solver.Linear)
	return assembly.Options{
		Workers:         c.Solver.Workers,
		Strategy:        strategy,
		MaxIterations:   c.Solver.MaxIterations,
		Tolerance:       c.Solver.Tolerance,
		Linear:          linear,
		LinearTolerance: c.Solver.LinearTolerance,
		Logger:          logger,
	}
}
