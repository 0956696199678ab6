// Package assembly solves steady diffusion problems -∇·(K∇u) = q on a grid
// with the MPFA-O flux discretization
package assembly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/james-bowman/sparse"
	"github.com/notargets/MPFAKernel/element"
	"github.com/notargets/MPFAKernel/flux"
	"github.com/notargets/MPFAKernel/grid"
	"github.com/notargets/MPFAKernel/logging"
	"github.com/notargets/MPFAKernel/material"
	"github.com/notargets/MPFAKernel/mpfa"
	"github.com/notargets/MPFAKernel/partitions"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrSingularJacobian = errors.New("assembly: singular global system")

// Boundary holds the boundary data. Nil functions mean zero.
type Boundary struct {
	// Dirichlet potential at a boundary integration point
	Dirichlet func(x r3.Vec) float64
	// DirichletFace overrides Dirichlet for the faces it reports a value for
	DirichletFace func(scvf element.SubControlVolumeFace) (float64, bool)
	// Neumann flux density leaving the domain through a face
	Neumann func(scvf element.SubControlVolumeFace) float64
}

// Source is the volumetric source density q
type Source func(x r3.Vec) float64

// Options control the global solve
type Options struct {
	Workers  int // Partitions of the interaction volume pass, default GOMAXPROCS
	Strategy partitions.PartitionStrategy

	// Picard iterations for solution dependent tensors
	MaxIterations int
	Tolerance     float64

	// Global linear solve, relative residual tolerance of BiCGStab (default 1e-12)
	Linear          LinearSolver
	LinearTolerance float64

	Logger *zap.Logger
}

// Solution is the converged cell potential field
type Solution struct {
	U          []float64 // One value per cell
	Iterations int
	Residual   float64 // Max norm of the cell residuals
	Fluxes     []float64
}

// Assembler owns the interaction volumes of a grid and assembles the global
// cell-centered system from their transmissibilities. It implements
// mpfa.Problem for the volumes it owns.
type Assembler struct {
	grid   *grid.Grid
	model  material.Model
	bc     Boundary
	source Source
	opts   Options
	log    *zap.Logger

	ivs       []*mpfa.InteractionVolume
	layout    *partitions.PartitionLayout
	evaluator *flux.Evaluator

	// Potentials of all dofs, cells then ghosts
	u []float64
}

var _ mpfa.Problem = (*Assembler)(nil)

// New builds the interaction volumes of every grid vertex
func New(ctx context.Context, g *grid.Grid, model material.Model, bc Boundary, source Source, opts Options) (*Assembler, error) {
	if g == nil || model == nil {
		return nil, fmt.Errorf("assembly: grid and material model are required")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 20
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-10
	}
	if opts.LinearTolerance <= 0 {
		opts.LinearTolerance = 1e-12
	}
	log := logging.OrNop(opts.Logger)

	a := &Assembler{
		grid:   g,
		model:  model,
		bc:     bc,
		source: source,
		opts:   opts,
		log:    log,
		u:      make([]float64, g.NumDofs()),
	}
	a.applyDirichlet()

	seeds, err := g.Seeds()
	if err != nil {
		return nil, err
	}
	positions := make([]r3.Vec, len(seeds))
	for i, v := range g.SeedVertices() {
		positions[i] = g.Vertex(v)
	}
	pb := &partitions.PartitionBuilder{
		NumItems:      len(seeds),
		Positions:     positions,
		NumPartitions: opts.Workers,
		Strategy:      opts.Strategy,
	}
	if a.layout, err = pb.BuildPartitions(); err != nil {
		return nil, fmt.Errorf("assembly: %w", err)
	}
	stats := a.layout.PartitionStatistics()
	log.Debug("partitioned interaction volumes",
		zap.Int("volumes", len(seeds)),
		zap.Int("partitions", stats.NumPartitions),
		zap.Stringer("strategy", opts.Strategy),
		zap.Float64("imbalance", stats.Imbalance))

	a.ivs = make([]*mpfa.InteractionVolume, len(seeds))
	err = partitions.Run(ctx, a.layout, func(_ context.Context, i int) error {
		iv, err := mpfa.NewInteractionVolume(seeds[i], g, a)
		if err != nil {
			return fmt.Errorf("interaction volume %d (vertex %d): %w", i, g.SeedVertices()[i], err)
		}
		a.ivs[i] = iv
		return nil
	})
	if err != nil {
		return nil, err
	}
	if a.evaluator, err = flux.NewEvaluator(a.ivs); err != nil {
		return nil, err
	}
	if a.evaluator.NumFaces() != g.NumScvfs() {
		return nil, fmt.Errorf("assembly: interaction volumes cover %d of %d scvfs", a.evaluator.NumFaces(), g.NumScvfs())
	}
	log.Info("built interaction volumes",
		zap.Int("cells", g.NumScvs()),
		zap.Int("scvfs", g.NumScvfs()),
		zap.Int("volumes", len(a.ivs)))
	return a, nil
}

// applyDirichlet stores the boundary values in the ghost dofs
func (a *Assembler) applyDirichlet() {
	for i := 0; i < a.grid.NumScvfs(); i++ {
		scvf := a.grid.Scvf(i)
		if !scvf.Boundary || a.grid.FaceType(i) != mpfa.Dirichlet {
			continue
		}
		if a.bc.DirichletFace != nil {
			if v, ok := a.bc.DirichletFace(scvf); ok {
				a.u[scvf.OutsideScv] = v
				continue
			}
		}
		if a.bc.Dirichlet != nil {
			a.u[scvf.OutsideScv] = a.bc.Dirichlet(scvf.Ip)
		}
	}
}

// VolumeVariables returns the current potential of a dof
func (a *Assembler) VolumeVariables(scvIdx int) mpfa.VolumeVariables {
	return mpfa.VolumeVariables{a.u[scvIdx]}
}

// Neumann returns the boundary flux density of a face
func (a *Assembler) Neumann(scvf element.SubControlVolumeFace, _ int) float64 {
	if a.bc.Neumann == nil {
		return 0
	}
	return a.bc.Neumann(scvf)
}

func (a *Assembler) InteractionVolumes() []*mpfa.InteractionVolume { return a.ivs }

func (a *Assembler) Evaluator() *flux.Evaluator { return a.evaluator }

func (a *Assembler) Layout() *partitions.PartitionLayout { return a.layout }

// SetPotentials overwrites the cell potentials, e.g. as a Picard start value
func (a *Assembler) SetPotentials(u []float64) error {
	if len(u) != a.grid.NumScvs() {
		return fmt.Errorf("assembly: %d potentials for %d cells", len(u), a.grid.NumScvs())
	}
	copy(a.u, u)
	return nil
}

// SolveVolumes recomputes the transmissibilities and Neumann fluxes of every
// interaction volume with the current potentials
func (a *Assembler) SolveVolumes(ctx context.Context) error {
	tensor := material.TensorFunc(a.model)
	return partitions.Run(ctx, a.layout, func(_ context.Context, i int) error {
		iv := a.ivs[i]
		if err := iv.SolveLocalSystem(tensor); err != nil {
			return fmt.Errorf("interaction volume %d: %w", i, err)
		}
		return iv.AssembleNeumannFluxes(nil, 0)
	})
}

// Solve runs the linear solve, repeated as Picard iterations when the
// material depends on the solution
func (a *Assembler) Solve(ctx context.Context) (*Solution, error) {
	numCells := a.grid.NumScvs()
	nonlinear := a.model.SolutionDependent()

	sol := &Solution{}
	for it := 1; it <= a.opts.MaxIterations; it++ {
		if err := a.SolveVolumes(ctx); err != nil {
			return nil, err
		}
		jac, rhs, err := a.Assemble()
		if err != nil {
			return nil, err
		}
		x, linIts, err := linearSolve(a.opts.Linear, jac, rhs, a.u[:numCells], a.opts.LinearTolerance)
		if err != nil {
			return nil, err
		}

		var change float64
		for i := 0; i < numCells; i++ {
			change = math.Max(change, math.Abs(x[i]-a.u[i]))
			a.u[i] = x[i]
		}
		sol.Iterations = it
		a.log.Debug("global solve",
			zap.Int("iteration", it),
			zap.Int("nnz", jac.NNZ()),
			zap.Stringer("linear", a.opts.Linear),
			zap.Int("linear_iterations", linIts),
			zap.Float64("change", change))

		if !nonlinear {
			break
		}
		if change < a.opts.Tolerance {
			break
		}
		if it == a.opts.MaxIterations {
			a.log.Warn("picard iterations did not converge",
				zap.Int("iterations", it),
				zap.Float64("change", change))
		}
	}

	// Fluxes and residual belong to the final state
	if nonlinear {
		if err := a.SolveVolumes(ctx); err != nil {
			return nil, err
		}
	}
	res, err := a.Residual()
	if err != nil {
		return nil, err
	}
	for _, r := range res {
		sol.Residual = math.Max(sol.Residual, math.Abs(r))
	}
	if sol.Fluxes, err = a.evaluator.FluxAll(a.grid.NumScvfs(), flux.Values(a.u)); err != nil {
		return nil, err
	}
	sol.U = append([]float64(nil), a.u[:numCells]...)
	a.log.Info("solved",
		zap.Int("iterations", sol.Iterations),
		zap.Float64("residual", sol.Residual))
	return sol, nil
}

// Assemble builds the linear system J·u = rhs of the cell balances
//
//	Σ_scvf flux(scvf) = q·|V|
//
// with ghost potentials and Neumann fluxes moved to the right hand side
func (a *Assembler) Assemble() (*sparse.CSR, []float64, error) {
	n := a.grid.NumScvs()
	dok := sparse.NewDOK(n, n)
	rhs := make([]float64, n)

	for e := 0; e < n; e++ {
		scv := a.grid.Scv(e)
		if a.source != nil {
			rhs[e] += a.source(scv.Center) * scv.Volume * a.grid.ExtrusionFactor(scv)
		}
		for _, i := range a.grid.ScvfsOfElement(e) {
			iv, pair, err := a.evaluator.Lookup(i)
			if err != nil {
				return nil, nil, err
			}
			tij, err := iv.GetTransmissibilities(pair)
			if err != nil {
				return nil, nil, err
			}
			for k, dof := range iv.VolVarsStencil() {
				if dof < n {
					dok.Set(e, dof, dok.At(e, dof)+tij[k])
				} else {
					rhs[e] -= tij[k] * a.u[dof]
				}
			}
			neumann, err := iv.GetNeumannFlux(pair)
			if err != nil {
				return nil, nil, err
			}
			rhs[e] -= neumann
		}
	}
	return dok.ToCSR(), rhs, nil
}

// Residual returns Σ flux - q·|V| per cell for the current potentials
func (a *Assembler) Residual() ([]float64, error) {
	n := a.grid.NumScvs()
	phi := flux.Values(a.u)
	res := make([]float64, n)
	for e := 0; e < n; e++ {
		scv := a.grid.Scv(e)
		for _, i := range a.grid.ScvfsOfElement(e) {
			f, err := a.evaluator.Flux(i, phi)
			if err != nil {
				return nil, err
			}
			res[e] += f
		}
		if a.source != nil {
			res[e] -= a.source(scv.Center) * scv.Volume * a.grid.ExtrusionFactor(scv)
		}
	}
	return res, nil
}

// Potentials returns all dof values, cells then ghosts
func (a *Assembler) Potentials() []float64 { return a.u }
