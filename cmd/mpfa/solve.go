package main

import (
	"fmt"
	"io"
	"math"

	"github.com/notargets/MPFAKernel/assembly"
	"github.com/notargets/MPFAKernel/grid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var showCells bool

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve the case and report the deviation from the reference field",
	Long: `Builds the interaction volumes of every grid vertex, assembles the global
system and solves it (Picard iterations for solution dependent tensors).

The reference field u = constant + gradient·x of the case supplies the
Dirichlet values; the maximum cell deviation from it is reported, which
vanishes for linear solutions with consistent Neumann data.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		sol, err := a.Solve(cmd.Context())
		if err != nil {
			return err
		}
		logger.Debug("case solved", zap.String("config", configPath))
		return report(cmd.OutOrStdout(), g, sol)
	},
}

func init() {
	solveCmd.Flags().BoolVar(&showCells, "cells", false, "print the potential of every cell")
}

func report(w io.Writer, g *grid.Grid, sol *assembly.Solution) error {
	var maxErr, netFlux float64
	for e, u := range sol.U {
		maxErr = math.Max(maxErr, math.Abs(u-cfg.Reference(g.Scv(e).Center)))
	}
	for i := 0; i < g.NumScvfs(); i++ {
		if g.Scvf(i).Boundary {
			netFlux += sol.Fluxes[i]
		}
	}
	if _, err := fmt.Fprintf(w, "dimension:  %d\ncells:      %d\nsub faces:  %d\niterations: %d\nresidual:   %.3e\nmax error:  %.3e\nnet flux:   %.6e\n",
		g.Dimension(), g.NumScvs(), g.NumScvfs(), sol.Iterations, sol.Residual, maxErr, netFlux); err != nil {
		return err
	}
	if !showCells {
		return nil
	}
	for e, u := range sol.U {
		c := g.Scv(e).Center
		if _, err := fmt.Fprintf(w, "%6d %12.6f %12.6f %12.6f %14.8e\n", e, c.X, c.Y, c.Z, u); err != nil {
			return err
		}
	}
	return nil
}
