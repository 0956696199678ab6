// Command mpfa solves cell-centered diffusion problems described by a YAML
// case with the MPFA-O method
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/notargets/MPFAKernel/assembly"
	"github.com/notargets/MPFAKernel/config"
	"github.com/notargets/MPFAKernel/grid"
	"github.com/notargets/MPFAKernel/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mpfa",
	Short: "MPFA-O finite volume solver for anisotropic diffusion",
	Long: `Solves -div(K grad u) = q on generated or Gambit/Gmsh meshes with the
multi-point flux approximation (O-method). The case is read from a YAML file;
without one a unit square with u = x on the boundary is solved.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath == "" {
			cfg = config.Default()
		} else if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Logging.Development)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML case file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(solveCmd, stencilCmd)
}

// setup builds the grid and the assembler of the loaded case
func setup(ctx context.Context) (*grid.Grid, *assembly.Assembler, error) {
	g, err := cfg.BuildGrid()
	if err != nil {
		return nil, nil, err
	}
	model, err := cfg.BuildMaterial()
	if err != nil {
		return nil, nil, err
	}
	a, err := assembly.New(ctx, g, model, cfg.BuildBoundary(), cfg.BuildSource(), cfg.SolverOptions(logger))
	if err != nil {
		return nil, nil, err
	}
	return g, a, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
