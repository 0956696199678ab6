package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/notargets/MPFAKernel/mpfa"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var vertex int

var stencilCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Print the interaction volume of a grid vertex",
	Long: `Solves the local system of the interaction volume around one vertex and
prints its stencil, the face types and the transmissibility matrix T, one row
per local face (Dirichlet faces included) and one column per stencil entry.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		if err = a.SolveVolumes(cmd.Context()); err != nil {
			return err
		}
		for i, v := range g.SeedVertices() {
			if v == vertex {
				return printVolume(cmd.OutOrStdout(), vertex, a.InteractionVolumes()[i])
			}
		}
		return fmt.Errorf("vertex %d has no interaction volume (grid has %d vertices)", vertex, g.NumVertices())
	},
}

func init() {
	stencilCmd.Flags().IntVar(&vertex, "vertex", 0, "grid vertex index")
}

func printVolume(w io.Writer, v int, iv *mpfa.InteractionVolume) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "vertex %d, boundary %v\n", v, iv.OnBoundary())
	fmt.Fprintf(&buf, "stencil: %v\n", iv.VolVarsStencil())
	scvs, faces := iv.LocalScvs(), iv.LocalScvfs()
	for i := range faces {
		f := &faces[i]
		fmt.Fprintf(&buf, "face %d: scvf %d, %v, dof %d -> %d\n", i, f.InsideGlobalScvfIndex(), f.FaceType(),
			scvs[f.InsideLocalScvIndex()].GlobalIndex(), f.OutsideGlobalScvIndex())
	}
	if T := iv.Transmissibilities(); T != nil {
		fmt.Fprintf(&buf, "T =\n%.6f\n", mat.Formatted(T, mat.Squeeze()))
	} else {
		buf.WriteString("not solved\n")
	}
	_, err := buf.WriteTo(w)
	return err
}
