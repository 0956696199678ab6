package utils

import "fmt"

// GeometryType identifies the shape of an element
type GeometryType uint8

const (
	// 3D element types
	Tet GeometryType = iota // Tetrahedron
	Hex                     // Hexahedron

	// 2D element types
	Tri       // Triangle
	Rectangle // Rectangle/Quadrilateral
)

// Local face tables. Each face lists its local vertices as a closed polygon
// (consecutive entries share an edge), so sub-faces can be cut around a vertex.
var (
	triFaces = [][]int{{0, 1}, {1, 2}, {2, 0}}

	quadFaces = [][]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}

	// Same face numbering as the tetrahedral connectivity helpers
	tetFaces = [][]int{
		{0, 1, 2}, // Face 0
		{0, 1, 3}, // Face 1
		{1, 2, 3}, // Face 2
		{0, 2, 3}, // Face 3
	}

	// Bottom 0-1-2-3 counter clockwise, top 4-5-6-7 above them
	hexFaces = [][]int{
		{0, 3, 2, 1}, // z = min
		{4, 5, 6, 7}, // z = max
		{0, 1, 5, 4}, // y = min
		{1, 2, 6, 5}, // x = max
		{2, 3, 7, 6}, // y = max
		{3, 0, 4, 7}, // x = min
	}
)

func (gt GeometryType) String() string {
	switch gt {
	case Tet:
		return "Tet"
	case Hex:
		return "Hex"
	case Tri:
		return "Tri"
	case Rectangle:
		return "Rectangle"
	}
	return fmt.Sprintf("GeometryType(%d)", uint8(gt))
}

// Dimension returns the topological dimension of the element, 0 if unknown
func (gt GeometryType) Dimension() int {
	switch gt {
	case Tet, Hex:
		return 3
	case Tri, Rectangle:
		return 2
	}
	return 0
}

// NumVertices returns the number of corner vertices
func (gt GeometryType) NumVertices() int {
	switch gt {
	case Tet:
		return 4
	case Hex:
		return 8
	case Tri:
		return 3
	case Rectangle:
		return 4
	}
	return 0
}

// FaceVertices returns the local vertex polygons of every face. The returned
// slices are shared and must not be modified.
func (gt GeometryType) FaceVertices() [][]int {
	switch gt {
	case Tet:
		return tetFaces
	case Hex:
		return hexFaces
	case Tri:
		return triFaces
	case Rectangle:
		return quadFaces
	}
	return nil
}

// NumFaces returns the number of faces per element
func (gt GeometryType) NumFaces() int {
	return len(gt.FaceVertices())
}
