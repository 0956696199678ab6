package mpfa

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// LocalScv is the corner of one cell inside an interaction volume. The local
// basis runs from the cell center to the integration points of the dim faces
// meeting at the vertex; the inner normals are its dual basis.
type LocalScv struct {
	localIndex  int
	globalIndex int
	center      r3.Vec

	innerNormals     []r3.Vec
	detX             float64
	localScvfIndices []int
}

func newLocalScv(localIdx int, seed ScvSeed, center r3.Vec, basis []r3.Vec, dim int) (LocalScv, error) {
	nu, det, err := innerNormals(basis, dim)
	if err != nil {
		return LocalScv{}, err
	}
	faces := make([]int, len(seed.LocalScvfIndices))
	copy(faces, seed.LocalScvfIndices)
	return LocalScv{
		localIndex:       localIdx,
		globalIndex:      seed.GlobalIndex,
		center:           center,
		innerNormals:     nu,
		detX:             det,
		localScvfIndices: faces,
	}, nil
}

func (s *LocalScv) LocalIndex() int { return s.localIndex }
func (s *LocalScv) GlobalIndex() int { return s.globalIndex }
func (s *LocalScv) Center() r3.Vec { return s.center }
func (s *LocalScv) InnerNormal(dir int) r3.Vec { return s.innerNormals[dir] }
func (s *LocalScv) DetX() float64 { return s.detX }
func (s *LocalScv) LocalScvfIndex(dir int) int { return s.localScvfIndices[dir] }

// LocalScvf is one face of an interaction volume seen from its inside cell
type LocalScvf struct {
	faceType FaceType

	insideLocalScv  int
	outsideLocalScv int

	insideGlobalScvf  int
	outsideGlobalScvf int
	// Dof index of the outside value: the neighbor cell or the boundary ghost
	outsideGlobalScv int

	unitOuterNormal r3.Vec
	area            float64
	ip              r3.Vec
}

func (f *LocalScvf) FaceType() FaceType { return f.faceType }
func (f *LocalScvf) Boundary() bool { return f.faceType != Interior }
func (f *LocalScvf) InsideLocalScvIndex() int { return f.insideLocalScv }
func (f *LocalScvf) OutsideLocalScvIndex() int { return f.outsideLocalScv }
func (f *LocalScvf) InsideGlobalScvfIndex() int {
	return f.insideGlobalScvf
}
func (f *LocalScvf) OutsideGlobalScvfIndex() int {
	return f.outsideGlobalScvf
}
func (f *LocalScvf) OutsideGlobalScvIndex() int { return f.outsideGlobalScv }
func (f *LocalScvf) UnitOuterNormal() r3.Vec { return f.unitOuterNormal }
func (f *LocalScvf) Area() float64 { return f.area }
func (f *LocalScvf) Ip() r3.Vec { return f.ip }
