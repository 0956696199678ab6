package mpfa_test

import (
	"math"
	"testing"

	"github.com/notargets/MPFAKernel/element"
	"github.com/notargets/MPFAKernel/grid"
	"github.com/notargets/MPFAKernel/mpfa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// linearField is u(x) = u0 + grad·x under a constant tensor
type linearField struct {
	u0   float64
	grad r3.Vec
	K    *mat.Dense
	dim  int
}

func (f *linearField) value(x r3.Vec) float64 { return f.u0 + r3.Dot(f.grad, x) }

// exactFlux is -K∇u·n integrated over the face
func (f *linearField) exactFlux(scvf element.SubControlVolumeFace) float64 {
	g := []float64{f.grad.X, f.grad.Y, f.grad.Z}[:f.dim]
	n := []float64{scvf.UnitOuterNormal.X, scvf.UnitOuterNormal.Y, scvf.UnitOuterNormal.Z}[:f.dim]
	var kg mat.VecDense
	kg.MulVec(f.K, mat.NewVecDense(f.dim, g))
	return -scvf.Area * floats.Dot(kg.RawVector().Data, n)
}

func (f *linearField) VolumeVariables(int) mpfa.VolumeVariables { return nil }

func (f *linearField) Neumann(scvf element.SubControlVolumeFace, _ int) float64 {
	return f.exactFlux(scvf) / scvf.Area
}

func (f *linearField) tensor(int, mpfa.VolumeVariables, element.SubControlVolume) mat.Matrix {
	return f.K
}

func isotropic(dim int) *mat.Dense {
	K := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		K.Set(i, i, 1)
	}
	return K
}

func solvedVolumes(t *testing.T, g *grid.Grid, prob mpfa.Problem, tensor mpfa.TensorFunc) []*mpfa.InteractionVolume {
	t.Helper()
	seeds, err := g.Seeds()
	require.NoError(t, err)
	ivs := make([]*mpfa.InteractionVolume, len(seeds))
	for i, seed := range seeds {
		iv, err := mpfa.NewInteractionVolume(seed, g, prob)
		require.NoError(t, err)
		require.NoError(t, iv.SolveLocalSystem(tensor))
		require.NoError(t, iv.AssembleNeumannFluxes(nil, 0))
		ivs[i] = iv
	}
	return ivs
}

// faceFlux evaluates the flux of a global scvf from the given potentials
func faceFlux(t *testing.T, iv *mpfa.InteractionVolume, scvf int, u func(i int) float64) float64 {
	t.Helper()
	pair, err := iv.GetLocalIndexPair(scvf)
	require.NoError(t, err)
	tij, err := iv.GetTransmissibilities(pair)
	require.NoError(t, err)
	var flux float64
	for i := range tij {
		flux += tij[i] * u(i)
	}
	neumann, err := iv.GetNeumannFlux(pair)
	require.NoError(t, err)
	return flux + neumann
}

func TestConstantPotentialHasNoFlux(t *testing.T) {
	K := mat.NewDense(2, 2, []float64{2, 0.5, 0.5, 1})
	field := &linearField{K: K, dim: 2}
	g, err := grid.NewTriangular(5, 4, 1, 1, grid.Options{Perturbation: 0.2, RandSeed: 11})
	require.NoError(t, err)

	for _, iv := range solvedVolumes(t, g, field, field.tensor) {
		for _, scvf := range iv.GlobalScvfs() {
			pair, err := iv.GetLocalIndexPair(scvf)
			require.NoError(t, err)
			tij, err := iv.GetTransmissibilities(pair)
			require.NoError(t, err)
			assert.InDelta(t, 0, floats.Sum(tij), 1e-12)
		}
	}
}

func TestTwoPointReductionOnOrthogonalGrid(t *testing.T) {
	field := &linearField{K: isotropic(2), dim: 2}
	g, err := grid.NewRectangular(3, 3, 3, 3, grid.Options{})
	require.NoError(t, err)

	for _, iv := range solvedVolumes(t, g, field, field.tensor) {
		positions := iv.VolVarsPositions()
		for li, scvf := range iv.LocalScvfs() {
			tij, err := iv.GetTransmissibilities(mpfa.LocalIndexPair{Index: li})
			require.NoError(t, err)

			in := scvf.InsideLocalScvIndex()
			out := scvf.OutsideLocalScvIndex()
			if scvf.Boundary() {
				// Ghost dofs follow the cells in face order
				for j, dof := range iv.VolVarsStencil() {
					if dof == scvf.OutsideGlobalScvIndex() {
						out = j
					}
				}
			}
			want := scvf.Area() / r3.Norm(r3.Sub(positions[out], positions[in]))
			for j := range tij {
				switch j {
				case in:
					assert.InDelta(t, want, tij[j], 1e-12)
				case out:
					assert.InDelta(t, -want, tij[j], 1e-12)
				default:
					assert.InDelta(t, 0, tij[j], 1e-12)
				}
			}
		}
	}
}

func TestOutsideViewIsNegated(t *testing.T) {
	K := mat.NewDense(2, 2, []float64{1.5, -0.3, -0.3, 0.8})
	field := &linearField{u0: 1, grad: r3.Vec{X: 0.4, Y: -1.2}, K: K, dim: 2}
	right := func(scvf element.SubControlVolumeFace) mpfa.FaceType {
		if scvf.UnitOuterNormal.X > 0.5 {
			return mpfa.Neumann
		}
		return mpfa.Dirichlet
	}
	g, err := grid.NewRectangular(4, 4, 1, 1, grid.Options{Perturbation: 0.15, RandSeed: 5, Classifier: right})
	require.NoError(t, err)

	checked := 0
	for _, iv := range solvedVolumes(t, g, field, field.tensor) {
		for _, scvf := range iv.LocalScvfs() {
			if scvf.Boundary() {
				continue
			}
			in, err := iv.GetLocalIndexPair(scvf.InsideGlobalScvfIndex())
			require.NoError(t, err)
			out, err := iv.GetLocalIndexPair(scvf.OutsideGlobalScvfIndex())
			require.NoError(t, err)
			assert.False(t, in.Flipped)
			assert.True(t, out.Flipped)
			assert.Equal(t, in.Index, out.Index)

			tIn, err := iv.GetTransmissibilities(in)
			require.NoError(t, err)
			tOut, err := iv.GetTransmissibilities(out)
			require.NoError(t, err)
			floats.Scale(-1, tOut)
			assert.InDeltaSlicef(t, tIn, tOut, 1e-14, "scvf %d", scvf.InsideGlobalScvfIndex())

			nIn, err := iv.GetNeumannFlux(in)
			require.NoError(t, err)
			nOut, err := iv.GetNeumannFlux(out)
			require.NoError(t, err)
			assert.Equal(t, nIn, -nOut)
			checked++
		}
	}
	assert.Positive(t, checked)
}

func TestInteriorVolumesHaveNoNeumannFlux(t *testing.T) {
	field := &linearField{grad: r3.Vec{X: 1}, K: isotropic(2), dim: 2}
	neumann := func(element.SubControlVolumeFace) mpfa.FaceType { return mpfa.Neumann }
	g, err := grid.NewTriangular(3, 3, 1, 1, grid.Options{Classifier: neumann})
	require.NoError(t, err)

	interior := 0
	for _, iv := range solvedVolumes(t, g, field, field.tensor) {
		if iv.OnBoundary() {
			continue
		}
		interior++
		for _, scvf := range iv.GlobalScvfs() {
			pair, err := iv.GetLocalIndexPair(scvf)
			require.NoError(t, err)
			flux, err := iv.GetNeumannFlux(pair)
			require.NoError(t, err)
			assert.Zero(t, flux)
		}
	}
	assert.Equal(t, 4, interior)
}

func TestFivePointStencil(t *testing.T) {
	field := &linearField{K: isotropic(2), dim: 2}
	g, err := grid.NewRectangular(3, 3, 3, 3, grid.Options{})
	require.NoError(t, err)
	ivs := solvedVolumes(t, g, field, field.tensor)

	// Center cell 4, neighbors 1 (below), 3 (left), 5 (right), 7 (above)
	u := make([]float64, g.NumDofs())
	u[1] = 1

	perNeighbor := make(map[int]float64)
	for _, scvf := range g.ScvfsOfElement(4) {
		f := g.Scvf(scvf)
		iv := ivs[f.VertexIndex]
		stencil := iv.VolVarsStencil()
		perNeighbor[f.OutsideScv] += faceFlux(t, iv, scvf, func(i int) float64 { return u[stencil[i]] })
	}
	want := map[int]float64{1: -1, 3: 0, 5: 0, 7: 0}
	for n, w := range want {
		assert.InDeltaf(t, w, perNeighbor[n], 1e-10, "face to cell %d", n)
	}
	assert.Len(t, perNeighbor, 4)
}

func checkLinearExactness(t *testing.T, g *grid.Grid, field *linearField) {
	t.Helper()
	for _, iv := range solvedVolumes(t, g, field, field.tensor) {
		positions := iv.VolVarsPositions()
		for _, scvf := range iv.GlobalScvfs() {
			got := faceFlux(t, iv, scvf, func(i int) float64 { return field.value(positions[i]) })
			want := field.exactFlux(g.Scvf(scvf))
			assert.InDeltaf(t, want, got, 1e-10*math.Max(1, math.Abs(want)), "scvf %d", scvf)
		}
	}
}

func TestLinearExactnessTriangles(t *testing.T) {
	K := mat.NewDense(2, 2, []float64{2, 0.5, 0.5, 1})
	field := &linearField{u0: 0.3, grad: r3.Vec{X: 1.5, Y: -0.7}, K: K, dim: 2}
	top := func(scvf element.SubControlVolumeFace) mpfa.FaceType {
		if scvf.UnitOuterNormal.Y > 0.5 {
			return mpfa.Neumann
		}
		return mpfa.Dirichlet
	}
	g, err := grid.NewTriangular(4, 5, 2, 1, grid.Options{Perturbation: 0.2, RandSeed: 1, Classifier: top, Q: 0.3})
	require.NoError(t, err)
	checkLinearExactness(t, g, field)
}

func TestLinearExactnessQuads(t *testing.T) {
	K := mat.NewDense(2, 2, []float64{1, -0.4, -0.4, 3})
	field := &linearField{u0: -1, grad: r3.Vec{X: -0.5, Y: 2}, K: K, dim: 2}
	g, err := grid.NewRectangular(5, 5, 1, 1, grid.Options{Perturbation: 0.2, RandSeed: 2})
	require.NoError(t, err)
	checkLinearExactness(t, g, field)
}

func TestLinearExactnessTetrahedra(t *testing.T) {
	K := mat.NewDense(3, 3, []float64{
		3, 0.5, 0.2,
		0.5, 2, 0.3,
		0.2, 0.3, 1,
	})
	field := &linearField{u0: 2, grad: r3.Vec{X: 1, Y: -2, Z: 0.5}, K: K, dim: 3}
	bottom := func(scvf element.SubControlVolumeFace) mpfa.FaceType {
		if scvf.UnitOuterNormal.Z < -0.5 {
			return mpfa.Neumann
		}
		return mpfa.Dirichlet
	}
	g, err := grid.NewTetrahedral(2, 2, 2, 1, 1, 1, grid.Options{Perturbation: 0.1, RandSeed: 4, Classifier: bottom})
	require.NoError(t, err)
	checkLinearExactness(t, g, field)
}

func TestStencilFollowsSeedOrder(t *testing.T) {
	field := &linearField{K: isotropic(2), dim: 2}
	g, err := grid.NewRectangular(2, 2, 1, 1, grid.Options{})
	require.NoError(t, err)
	seeds, err := g.Seeds()
	require.NoError(t, err)

	for _, seed := range seeds {
		iv, err := mpfa.NewInteractionVolume(seed, g, field)
		require.NoError(t, err)
		want := seed.GlobalScvIndices()
		for _, fs := range seed.ScvfSeeds {
			if fs.FaceType == mpfa.Dirichlet {
				want = append(want, g.Scvf(fs.InsideGlobalScvf).OutsideScv)
			}
		}
		assert.Equal(t, want, iv.VolVarsStencil())
		assert.Len(t, iv.VolVarsPositions(), len(want))
		assert.Nil(t, iv.Transmissibilities())
	}
}
