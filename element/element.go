package element

// Dimensionality represents the spatial dimension of a mesh
type Dimensionality uint8

const (
	D0 Dimensionality = iota // 0D (points)
	D1                       // 1D (lines, edges)
	D2                       // 2D (triangles, quadrilaterals)
	D3                       // 3D (tetrahedra, hexahedra)
)

// Int returns the dimension as a loop bound
func (d Dimensionality) Int() int { return int(d) }

// Geometry gives read-only access to the cell-centered finite volume geometry
// of a mesh. Sub control volumes are indexed 0..NumScvs-1, sub control volume
// faces 0..NumScvfs-1. Indices at or above NumScvs name boundary (ghost) values.
type Geometry interface {
	Dimension() int
	NumScvs() int
	NumScvfs() int

	Scv(scvIdx int) SubControlVolume
	Scvf(scvfIdx int) SubControlVolumeFace

	// ExtrusionFactor is the thickness of lower dimensional domains
	// (cross section in 1D, depth in 2D); 1 in 3D
	ExtrusionFactor(scv SubControlVolume) float64
}
