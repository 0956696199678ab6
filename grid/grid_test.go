package grid

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/notargets/MPFAKernel/element"
	"github.com/notargets/MPFAKernel/mpfa"
	"github.com/notargets/MPFAKernel/utils"
	"github.com/notargets/gocfd/DG3D/mesh"
	gutils "github.com/notargets/gocfd/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func checkClosedCells(t *testing.T, g *Grid) {
	t.Helper()
	for e := 0; e < g.NumScvs(); e++ {
		var sum r3.Vec
		for _, i := range g.ScvfsOfElement(e) {
			scvf := g.Scvf(i)
			assert.Equal(t, e, scvf.InsideScv)
			sum = r3.Add(sum, r3.Scale(scvf.Area, scvf.UnitOuterNormal))
		}
		assert.InDeltaf(t, 0, r3.Norm(sum), 1e-12, "element %d is not closed", e)
	}
}

func checkFacePairs(t *testing.T, g *Grid) {
	t.Helper()
	type key struct{ face, vertex int }
	seen := make(map[key]element.SubControlVolumeFace)
	ghosts := make(map[int]bool)
	for i := 0; i < g.NumScvfs(); i++ {
		scvf := g.Scvf(i)
		assert.Equal(t, i, scvf.Index)
		if scvf.Boundary {
			assert.GreaterOrEqual(t, scvf.OutsideScv, g.NumScvs())
			assert.Less(t, scvf.OutsideScv, g.NumDofs())
			assert.False(t, ghosts[scvf.OutsideScv], "ghost %d reused", scvf.OutsideScv)
			ghosts[scvf.OutsideScv] = true
			continue
		}
		k := key{scvf.FaceIndex, scvf.VertexIndex}
		other, ok := seen[k]
		if !ok {
			seen[k] = scvf
			continue
		}
		assert.Equal(t, scvf.InsideScv, other.OutsideScv)
		assert.Equal(t, scvf.OutsideScv, other.InsideScv)
		assert.InDelta(t, other.Area, scvf.Area, 1e-14)
		assert.InDelta(t, 0, r3.Norm(r3.Add(scvf.UnitOuterNormal, other.UnitOuterNormal)), 1e-14)
		assert.Equal(t, other.Ip, scvf.Ip)
	}
	assert.Len(t, ghosts, g.NumBoundaryScvfs())
}

func totalVolume(g *Grid) float64 {
	var vol float64
	for e := 0; e < g.NumScvs(); e++ {
		vol += g.Scv(e).Volume
	}
	return vol
}

func TestRectangularGrid(t *testing.T) {
	g, err := NewRectangular(2, 2, 1, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Dimension())
	assert.Equal(t, 4, g.NumScvs())
	assert.Equal(t, 32, g.NumScvfs())
	assert.Equal(t, 16, g.NumBoundaryScvfs())
	assert.Equal(t, 20, g.NumDofs())
	for e := 0; e < g.NumScvs(); e++ {
		assert.InDelta(t, 0.25, g.Scv(e).Volume, 1e-14)
	}
	assert.Equal(t, r3.Vec{X: 0.25, Y: 0.25}, g.Scv(0).Center)

	// Bottom edge of element 0, sub face at the origin
	scvf := g.Scvf(0)
	assert.True(t, scvf.Boundary)
	assert.Equal(t, 0, scvf.VertexIndex)
	assert.InDelta(t, 0.25, scvf.Area, 1e-14)
	assert.InDelta(t, -1, scvf.UnitOuterNormal.Y, 1e-14)
	assert.Equal(t, r3.Vec{X: 0.25}, scvf.Ip)
	assert.Equal(t, mpfa.Dirichlet, g.FaceType(0))

	checkClosedCells(t, g)
	checkFacePairs(t, g)

	lo, hi := g.Bounds()
	assert.Equal(t, r3.Vec{}, lo)
	assert.Equal(t, r3.Vec{X: 1, Y: 1}, hi)
}

func TestIntegrationPointParameter(t *testing.T) {
	g, err := NewRectangular(1, 1, 1, 1, Options{Q: 0.5})
	require.NoError(t, err)
	scvf := g.Scvf(0)
	assert.InDelta(t, 0.25, scvf.Ip.X, 1e-14)

	_, err = NewRectangular(1, 1, 1, 1, Options{Q: 1})
	assert.Error(t, err)
}

func TestTriangularPerturbedGrid(t *testing.T) {
	g, err := NewTriangular(4, 3, 2, 1.5, Options{Perturbation: 0.2, RandSeed: 7})
	require.NoError(t, err)
	assert.Equal(t, 24, g.NumScvs())
	assert.InDelta(t, 3, totalVolume(g), 1e-12)
	checkClosedCells(t, g)
	checkFacePairs(t, g)

	// Same seed, same grid
	again, err := NewTriangular(4, 3, 2, 1.5, Options{Perturbation: 0.2, RandSeed: 7})
	require.NoError(t, err)
	for v := 0; v < g.NumVertices(); v++ {
		assert.Equal(t, g.Vertex(v), again.Vertex(v))
	}
}

func TestTetrahedralGrid(t *testing.T) {
	g, err := NewTetrahedral(2, 2, 2, 1, 1, 1, Options{Perturbation: 0.1, RandSeed: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, g.Dimension())
	assert.Equal(t, 48, g.NumScvs())
	assert.Equal(t, 48*4*3, g.NumScvfs())
	assert.InDelta(t, 1, totalVolume(g), 1e-12)
	checkClosedCells(t, g)
	checkFacePairs(t, g)
}

func TestHexahedralGrid(t *testing.T) {
	g, err := NewHexahedral(2, 1, 1, 2, 1, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, g.NumScvs())
	assert.Equal(t, 2*6*4, g.NumScvfs())
	assert.InDelta(t, 1, g.Scv(0).Volume, 1e-14)
	for _, i := range g.ScvfsOfElement(0) {
		assert.InDelta(t, 0.25, g.Scvf(i).Area, 1e-14)
	}
	checkClosedCells(t, g)
	checkFacePairs(t, g)

	_, err = NewHexahedral(2, 2, 2, 1, 1, 1, Options{Perturbation: 0.1})
	assert.Error(t, err)
}

func TestExtrusion(t *testing.T) {
	g, err := NewRectangular(1, 1, 1, 1, Options{Extrusion: 3})
	require.NoError(t, err)
	assert.Equal(t, 3.0, g.ExtrusionFactor(g.Scv(0)))

	h, err := NewHexahedral(1, 1, 1, 1, 1, 1, Options{Extrusion: 3})
	require.NoError(t, err)
	assert.Equal(t, 1.0, h.ExtrusionFactor(h.Scv(0)))
}

func TestClassifier(t *testing.T) {
	right := func(scvf element.SubControlVolumeFace) mpfa.FaceType {
		if scvf.UnitOuterNormal.X > 0.5 {
			return mpfa.Neumann
		}
		return mpfa.Dirichlet
	}
	g, err := NewRectangular(2, 1, 1, 1, Options{Classifier: right})
	require.NoError(t, err)
	numNeumann := 0
	for i := 0; i < g.NumScvfs(); i++ {
		if g.FaceType(i) == mpfa.Neumann {
			numNeumann++
			assert.True(t, g.Scvf(i).Boundary)
		}
	}
	assert.Equal(t, 2, numNeumann)

	bad := func(element.SubControlVolumeFace) mpfa.FaceType { return mpfa.Interior }
	_, err = NewRectangular(2, 1, 1, 1, Options{Classifier: bad})
	assert.Error(t, err)
}

func TestInvalidInput(t *testing.T) {
	_, err := NewRectangular(0, 1, 1, 1, Options{})
	assert.Error(t, err)

	verts := []r3.Vec{{}, {X: 1}, {Y: 1}}
	_, err = New(3, verts, []Cell{{Type: utils.Tri, Vertices: []int{0, 1, 2}}}, Options{})
	assert.Error(t, err, "triangle in a 3D mesh")

	_, err = New(2, verts, nil, Options{})
	assert.Error(t, err)

	// Collinear triangle
	flat := []r3.Vec{{}, {X: 1}, {X: 2}}
	_, err = New(2, flat, []Cell{{Type: utils.Tri, Vertices: []int{0, 1, 2}}}, Options{})
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = ReadMeshFile("testdata/does-not-exist.neu", Options{})
	assert.Error(t, err)
}

func TestSeeds(t *testing.T) {
	g, err := NewRectangular(2, 2, 1, 1, Options{})
	require.NoError(t, err)
	seeds, err := g.Seeds()
	require.NoError(t, err)
	require.Len(t, seeds, 9)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, g.SeedVertices())

	for i, s := range seeds {
		require.NoErrorf(t, s.Validate(2), "seed %d", i)
	}

	corner := seeds[0]
	assert.True(t, corner.OnBoundary())
	assert.Equal(t, []int{0}, corner.GlobalScvIndices())
	require.Len(t, corner.ScvfSeeds, 2)
	for _, fs := range corner.ScvfSeeds {
		assert.Equal(t, mpfa.Dirichlet, fs.FaceType)
	}

	center := seeds[4]
	assert.False(t, center.OnBoundary())
	if diff := cmp.Diff([]int{0, 1, 2, 3}, center.GlobalScvIndices()); diff != "" {
		t.Errorf("center cells mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, center.ScvfSeeds, 4)
	for _, fs := range center.ScvfSeeds {
		assert.Equal(t, mpfa.Interior, fs.FaceType)
		assert.Less(t, fs.InsideLocalScv, fs.OutsideLocalScv)
		assert.Equal(t, g.Scvf(fs.InsideGlobalScvf).OutsideScv, g.Scvf(fs.OutsideGlobalScvf).InsideScv)
		assert.Equal(t, 4, g.Scvf(fs.InsideGlobalScvf).VertexIndex)
	}
	assert.Len(t, center.GlobalScvfIndices(), 8)

	tets, err := NewTetrahedral(1, 1, 1, 1, 1, 1, Options{})
	require.NoError(t, err)
	seeds, err = tets.Seeds()
	require.NoError(t, err)
	require.Len(t, seeds, 8)
	for i, s := range seeds {
		require.NoErrorf(t, s.Validate(3), "tet seed %d", i)
	}
	// Vertex 0 lies on the shared diagonal and sees all 6 tets
	assert.Len(t, seeds[0].ScvSeeds, 6)
}

func TestReadMeshFile(t *testing.T) {
	g, err := ReadMeshFile("testdata/cube.neu", Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, g.Dimension())
	assert.Equal(t, 565, g.NumScvs())
	assert.Equal(t, 565*4*3, g.NumScvfs())
	assert.Equal(t, 175, g.NumVertices())
	assert.InDelta(t, 1, totalVolume(g), 1e-12)
	checkClosedCells(t, g)
	checkFacePairs(t, g)

	lo, hi := g.Bounds()
	assert.InDelta(t, 0, r3.Norm(lo), 1e-12)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(hi, r3.Vec{X: 1, Y: 1, Z: 1})), 1e-12)

	seeds, err := g.Seeds()
	require.NoError(t, err)
	require.Len(t, seeds, 175)
	for i, s := range seeds {
		require.NoErrorf(t, s.Validate(3), "seed %d", i)
	}
}

func TestFromMeshRejectsOtherElements(t *testing.T) {
	msh := &mesh.Mesh{
		Vertices: [][]float64{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
			{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
		},
		EtoV:         [][]int{{0, 1, 2, 3, 4, 5, 6, 7}},
		ElementTypes: []gutils.ElementType{gutils.Hex},
	}
	_, err := FromMesh(msh, Options{})
	assert.Error(t, err)

	msh.EtoV = [][]int{{0, 1, 3, 4}}
	msh.ElementTypes = []gutils.ElementType{gutils.Tet}
	g, err := FromMesh(msh, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0/6, g.Scv(0).Volume, 1e-14)
}
