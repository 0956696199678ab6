package element

import "gonum.org/v1/gonum/spatial/r3"

// SubControlVolume is the control volume of one cell. In the cell-centered
// scheme there is exactly one per element, sharing its index.
type SubControlVolume struct {
	Index        int
	ElementIndex int

	Center r3.Vec // Vertex average of the element, Z = 0 in 2D
	Volume float64
}

// SubControlVolumeFace is the part of an element face attached to one of its
// vertices. An interior face is represented twice, once from each side, with
// opposite normals.
type SubControlVolumeFace struct {
	Index int

	// Cell on the side the normal points away from
	InsideScv int
	// Neighbor cell, or a ghost index >= NumScvs on the boundary
	// naming the boundary value attached to this face
	OutsideScv int
	Boundary   bool

	// Geometry of the sub face
	Area            float64
	UnitOuterNormal r3.Vec
	Center          r3.Vec // Centroid of the sub face
	Ip              r3.Vec // Integration point where the face potential lives

	// Topology
	VertexIndex int // Mesh vertex the sub face is attached to
	FaceIndex   int // Unique element face it is cut from
}
