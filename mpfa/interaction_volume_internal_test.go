package mpfa

import (
	"errors"
	"testing"

	"github.com/notargets/MPFAKernel/element"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// cornerGeometry is the unit square cell seen from its vertex at the origin.
// Face 0 is the bottom half edge, face 1 the left half edge; both end on the
// boundary with ghost dofs 1 and 2.
type cornerGeometry struct {
	scvs  []element.SubControlVolume
	scvfs []element.SubControlVolumeFace
}

func newCornerGeometry() *cornerGeometry {
	return &cornerGeometry{
		scvs: []element.SubControlVolume{
			{Index: 0, ElementIndex: 0, Center: r3.Vec{X: 0.5, Y: 0.5}, Volume: 1},
		},
		scvfs: []element.SubControlVolumeFace{
			{
				Index: 0, InsideScv: 0, OutsideScv: 1, Boundary: true,
				Area: 0.5, UnitOuterNormal: r3.Vec{Y: -1},
				Center: r3.Vec{X: 0.25}, Ip: r3.Vec{X: 0.5},
			},
			{
				Index: 1, InsideScv: 0, OutsideScv: 2, Boundary: true,
				Area: 0.5, UnitOuterNormal: r3.Vec{X: -1},
				Center: r3.Vec{Y: 0.25}, Ip: r3.Vec{Y: 0.5},
			},
		},
	}
}

func (g *cornerGeometry) Dimension() int { return 2 }
func (g *cornerGeometry) NumScvs() int { return len(g.scvs) }
func (g *cornerGeometry) NumScvfs() int { return len(g.scvfs) }
func (g *cornerGeometry) Scv(i int) element.SubControlVolume { return g.scvs[i] }
func (g *cornerGeometry) Scvf(i int) element.SubControlVolumeFace { return g.scvfs[i] }
func (g *cornerGeometry) ExtrusionFactor(element.SubControlVolume) float64 { return 1 }

func cornerSeed(bottom, left FaceType) *Seed {
	return &Seed{
		ScvSeeds: []ScvSeed{{GlobalIndex: 0, LocalScvfIndices: []int{0, 1}}},
		ScvfSeeds: []ScvfSeed{
			{FaceType: bottom, InsideLocalScv: 0, OutsideLocalScv: -1, InsideGlobalScvf: 0, OutsideGlobalScvf: -1},
			{FaceType: left, InsideLocalScv: 0, OutsideLocalScv: -1, InsideGlobalScvf: 1, OutsideGlobalScvf: -1},
		},
		Boundary: true,
	}
}

type constantProblem struct {
	flux    float64
	volVars VolumeVariables
}

func (p *constantProblem) VolumeVariables(int) VolumeVariables { return p.volVars }
func (p *constantProblem) Neumann(element.SubControlVolumeFace, int) float64 {
	return p.flux
}

func identity(int, VolumeVariables, element.SubControlVolume) mat.Matrix {
	return mat.NewDiagDense(2, []float64{1, 1})
}

func TestCornerPureDirichlet(t *testing.T) {
	iv, err := NewInteractionVolume(cornerSeed(Dirichlet, Dirichlet), newCornerGeometry(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, iv.VolVarsStencil())
	assert.Equal(t, []r3.Vec{{X: 0.5, Y: 0.5}, {X: 0.5}, {Y: 0.5}}, iv.VolVarsPositions())
	assert.Equal(t, 0, iv.NumFluxFaces())

	_, err = iv.GetTransmissibilities(LocalIndexPair{})
	assert.ErrorIs(t, err, ErrNotSolved)

	require.NoError(t, iv.SolveLocalSystem(identity))
	assert.Nil(t, iv.AinvB)
	assert.Nil(t, iv.CAinv)

	tij, err := iv.GetTransmissibilities(LocalIndexPair{Index: 0})
	require.NoError(t, err)
	assert.InDeltaSlicef(t, []float64{1, -1, 0}, tij, 1e-12, "bottom face")
	tij, err = iv.GetTransmissibilities(LocalIndexPair{Index: 1})
	require.NoError(t, err)
	assert.InDeltaSlicef(t, []float64{1, 0, -1}, tij, 1e-12, "left face")

	flux, err := iv.GetNeumannFlux(LocalIndexPair{Index: 0})
	require.NoError(t, err)
	assert.Zero(t, flux)
}

func TestPureDirichletMatchesGeneralAssembly(t *testing.T) {
	iv, err := NewInteractionVolume(cornerSeed(Dirichlet, Dirichlet), newCornerGeometry(), nil)
	require.NoError(t, err)
	ws, err := iv.evaluateOmegas(identity)
	require.NoError(t, err)

	A, B, C, D := iv.assembleLocalMatrices(ws)
	assert.Nil(t, A)
	assert.Nil(t, B)
	assert.Nil(t, C)
	T := iv.assemblePureDirichletSystem(ws)
	assert.True(t, mat.EqualApprox(D, T, 1e-14))
}

func TestCornerNeumann(t *testing.T) {
	prob := &constantProblem{flux: 3, volVars: VolumeVariables{2}}
	iv, err := NewInteractionVolume(cornerSeed(Neumann, Dirichlet), newCornerGeometry(), prob)
	require.NoError(t, err)
	// The Neumann face has no ghost
	assert.Equal(t, []int{0, 2}, iv.VolVarsStencil())
	assert.Equal(t, 1, iv.NumFluxFaces())

	require.NoError(t, iv.SolveLocalSystem(identity))
	require.NoError(t, iv.AssembleNeumannFluxes(nil, 0))

	tij, err := iv.GetTransmissibilities(LocalIndexPair{Index: 0})
	require.NoError(t, err)
	assert.InDeltaSlicef(t, []float64{0, 0}, tij, 1e-12, "neumann row")
	flux, err := iv.GetNeumannFlux(LocalIndexPair{Index: 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, flux, 1e-12)

	tij, err = iv.GetTransmissibilities(LocalIndexPair{Index: 1})
	require.NoError(t, err)
	assert.InDeltaSlicef(t, []float64{1, -1}, tij, 1e-12, "dirichlet row")
	flux, err = iv.GetNeumannFlux(LocalIndexPair{Index: 1})
	require.NoError(t, err)
	assert.InDelta(t, 0, flux, 1e-12)

	mobility := func(vv VolumeVariables) float64 { return vv[0] }
	require.NoError(t, iv.AssembleNeumannFluxes(mobility, 0))
	flux, err = iv.GetNeumannFlux(LocalIndexPair{Index: 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, flux, 1e-12)

	zero := func(VolumeVariables) float64 { return 0 }
	assert.Error(t, iv.AssembleNeumannFluxes(zero, 0))
}

func TestLocalIndexPairLookup(t *testing.T) {
	iv, err := NewInteractionVolume(cornerSeed(Dirichlet, Dirichlet), newCornerGeometry(), nil)
	require.NoError(t, err)
	pair, err := iv.GetLocalIndexPair(1)
	require.NoError(t, err)
	assert.Equal(t, LocalIndexPair{Index: 1}, pair)

	_, err = iv.GetLocalIndexPair(7)
	assert.True(t, errors.Is(err, ErrFaceNotFound))

	require.NoError(t, iv.SolveLocalSystem(identity))
	_, err = iv.GetTransmissibilities(LocalIndexPair{Index: 5})
	assert.ErrorIs(t, err, ErrFaceNotFound)
}

func TestSeedGeometryMismatch(t *testing.T) {
	geom := newCornerGeometry()

	// An interior face where the geometry has a boundary
	seed := cornerSeed(Dirichlet, Dirichlet)
	seed.ScvfSeeds[0].FaceType = Interior
	_, err := NewInteractionVolume(seed, geom, nil)
	assert.ErrorIs(t, err, ErrInvalidSeed)

	seed = cornerSeed(Dirichlet, Dirichlet)
	seed.ScvSeeds[0].LocalScvfIndices = []int{0}
	_, err = NewInteractionVolume(seed, geom, nil)
	assert.ErrorIs(t, err, ErrInvalidSeed)

	seed = cornerSeed(Dirichlet, Dirichlet)
	seed.Boundary = false
	_, err = NewInteractionVolume(seed, geom, nil)
	assert.ErrorIs(t, err, ErrInvalidSeed)

	_, err = NewInteractionVolume(&Seed{}, geom, nil)
	assert.ErrorIs(t, err, ErrEmptySeed)

	// Both directions on one face collapse the local basis
	seed = cornerSeed(Dirichlet, Dirichlet)
	seed.ScvSeeds[0].LocalScvfIndices = []int{0, 0}
	_, err = NewInteractionVolume(seed, geom, nil)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestTensorErrors(t *testing.T) {
	iv, err := NewInteractionVolume(cornerSeed(Dirichlet, Dirichlet), newCornerGeometry(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, iv.SolveLocalSystem(nil), ErrInvalidTensor)

	small := func(int, VolumeVariables, element.SubControlVolume) mat.Matrix {
		return mat.NewDense(1, 1, []float64{1})
	}
	assert.ErrorIs(t, iv.SolveLocalSystem(small), ErrInvalidTensor)
	assert.False(t, iv.Solved())
}

func TestSingularLocalSystem(t *testing.T) {
	iv, err := NewInteractionVolume(cornerSeed(Neumann, Dirichlet), newCornerGeometry(), &constantProblem{})
	require.NoError(t, err)
	zero := func(int, VolumeVariables, element.SubControlVolume) mat.Matrix {
		return mat.NewDense(2, 2, nil)
	}
	assert.ErrorIs(t, iv.SolveLocalSystem(zero), ErrSingularSystem)
	assert.False(t, iv.Solved())
	assert.Nil(t, iv.Transmissibilities())
	_, err = iv.GetTransmissibilities(LocalIndexPair{Index: 0})
	assert.ErrorIs(t, err, ErrNotSolved)
}

func TestInnerNormalsAreDual(t *testing.T) {
	basis := []r3.Vec{{X: 1, Y: 0.2, Z: 0.1}, {X: -0.3, Y: 1, Z: 0.2}, {X: 0.1, Y: 0.4, Z: 1.5}}
	nu, det, err := innerNormals(basis, 3)
	require.NoError(t, err)
	for i := range nu {
		for j := range basis {
			want := 0.0
			if i == j {
				want = det
			}
			assert.InDelta(t, want, r3.Dot(nu[i], basis[j]), 1e-12)
		}
	}

	nu, det, err = innerNormals(basis[:2], 2)
	require.NoError(t, err)
	for i := range nu {
		for j := 0; j < 2; j++ {
			want := 0.0
			if i == j {
				want = det
			}
			got := nu[i].X*basis[j].X + nu[i].Y*basis[j].Y
			assert.InDelta(t, want, got, 1e-12)
		}
	}
}
