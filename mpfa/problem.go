package mpfa

import (
	"github.com/notargets/MPFAKernel/element"
	"gonum.org/v1/gonum/mat"
)

// VolumeVariables is the state stored at one degree of freedom
type VolumeVariables []float64

// Problem supplies the state and boundary fluxes an interaction volume needs
type Problem interface {
	// VolumeVariables returns the current state at a cell (or ghost) dof
	VolumeVariables(scvIdx int) VolumeVariables
	// Neumann returns the flux density of equation eqIdx leaving the domain
	// through a boundary face
	Neumann(scvf element.SubControlVolumeFace, eqIdx int) float64
}

// TensorFunc evaluates the diffusion tensor of a cell. The returned matrix is
// only read and must be at least dim×dim.
type TensorFunc func(elementIdx int, volVars VolumeVariables, scv element.SubControlVolume) mat.Matrix

// UpwindFunc converts a physical boundary flux into a potential equivalent
// one, typically the mobility of the inside cell
type UpwindFunc func(volVars VolumeVariables) float64
