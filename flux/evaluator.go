// Package flux evaluates face fluxes from solved interaction volumes
package flux

import (
	"errors"
	"fmt"

	"github.com/notargets/MPFAKernel/mpfa"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrUnknownFace = errors.New("flux: scvf not covered by any interaction volume")

// PotentialFunc returns the potential of a stencil dof located at pos. Cell
// dofs sit at cell centers, ghost dofs at boundary integration points.
type PotentialFunc func(dof int, pos r3.Vec) float64

// Values reads potentials from a dof vector
func Values(u []float64) PotentialFunc {
	return func(dof int, _ r3.Vec) float64 { return u[dof] }
}

// WithGravity corrects a pressure field for gravity: φ = p - ρ·g·x
func WithGravity(p PotentialFunc, density float64, g r3.Vec) PotentialFunc {
	return func(dof int, pos r3.Vec) float64 {
		return p(dof, pos) - density*r3.Dot(g, pos)
	}
}

// faceRef locates a global scvf inside its interaction volume
type faceRef struct {
	iv   int
	pair mpfa.LocalIndexPair
}

// Evaluator maps every global scvf to the interaction volume providing its flux
type Evaluator struct {
	ivs   []*mpfa.InteractionVolume
	faces map[int]faceRef
}

// NewEvaluator indexes the faces of a set of interaction volumes. A face
// claimed by two volumes is an error.
func NewEvaluator(ivs []*mpfa.InteractionVolume) (*Evaluator, error) {
	ev := &Evaluator{
		ivs:   ivs,
		faces: make(map[int]faceRef),
	}
	for i, iv := range ivs {
		for _, scvf := range iv.GlobalScvfs() {
			if prev, dup := ev.faces[scvf]; dup {
				return nil, fmt.Errorf("flux: scvf %d claimed by interaction volumes %d and %d", scvf, prev.iv, i)
			}
			pair, err := iv.GetLocalIndexPair(scvf)
			if err != nil {
				return nil, fmt.Errorf("flux: interaction volume %d: %w", i, err)
			}
			ev.faces[scvf] = faceRef{iv: i, pair: pair}
		}
	}
	return ev, nil
}

// NumFaces returns how many global scvfs are covered
func (ev *Evaluator) NumFaces() int { return len(ev.faces) }

// Lookup returns the interaction volume of a face and its local index pair
func (ev *Evaluator) Lookup(scvf int) (*mpfa.InteractionVolume, mpfa.LocalIndexPair, error) {
	ref, ok := ev.faces[scvf]
	if !ok {
		return nil, mpfa.LocalIndexPair{}, fmt.Errorf("%w: %d", ErrUnknownFace, scvf)
	}
	return ev.ivs[ref.iv], ref.pair, nil
}

// Stencil returns the dofs and transmissibilities of a face flux
func (ev *Evaluator) Stencil(scvf int) (dofs []int, tij []float64, err error) {
	iv, pair, err := ev.Lookup(scvf)
	if err != nil {
		return nil, nil, err
	}
	if tij, err = iv.GetTransmissibilities(pair); err != nil {
		return nil, nil, err
	}
	return iv.VolVarsStencil(), tij, nil
}

// Flux evaluates the flux across a face along its outer normal, including
// the Neumann boundary contribution
func (ev *Evaluator) Flux(scvf int, phi PotentialFunc) (float64, error) {
	iv, pair, err := ev.Lookup(scvf)
	if err != nil {
		return 0, err
	}
	tij, err := iv.GetTransmissibilities(pair)
	if err != nil {
		return 0, err
	}
	stencil := iv.VolVarsStencil()
	positions := iv.VolVarsPositions()
	var flux float64
	for i, t := range tij {
		flux += t * phi(stencil[i], positions[i])
	}
	neumann, err := iv.GetNeumannFlux(pair)
	if err != nil {
		return 0, err
	}
	return flux + neumann, nil
}

// FluxAll evaluates the flux of every scvf in 0..numScvfs-1
func (ev *Evaluator) FluxAll(numScvfs int, phi PotentialFunc) ([]float64, error) {
	fluxes := make([]float64, numScvfs)
	for i := range fluxes {
		f, err := ev.Flux(i, phi)
		if err != nil {
			return nil, err
		}
		fluxes[i] = f
	}
	return fluxes, nil
}
