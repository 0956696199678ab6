package utils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FaceConnector matches element faces across a mesh given only its
// element-to-vertex connectivity
type FaceConnector struct {
	// Mesh dimensions
	K        int // Total elements
	NumFaces int // Unique faces (interior faces counted once)

	// Input connectivity
	EToV  [][]int        // Element → global vertex ids
	Types []GeometryType // Element → shape

	// Element-to-element connectivity, boundary faces connect to themselves:
	// EToE[k][f] == k and EToF[k][f] == f
	EToE [][]int
	EToF [][]int

	// Unique face numbering
	FaceID    [][]int   // [elem][localFace] → unique face
	FaceOwner []FaceRef // [uniqueFace] → first element (lowest index) that has it
}

// FaceRef addresses one local face of one element
type FaceRef struct {
	Element int
	Face    int
}

// NewFaceConnector creates a face connector from element connectivity
func NewFaceConnector(EToV [][]int, types []GeometryType) (*FaceConnector, error) {
	K := len(EToV)
	if K <= 0 {
		return nil, fmt.Errorf("invalid dimensions: K=%d", K)
	}
	if len(types) != K {
		return nil, fmt.Errorf("types length %d does not match K=%d", len(types), K)
	}
	for k, verts := range EToV {
		if nv := types[k].NumVertices(); nv == 0 || len(verts) != nv {
			return nil, fmt.Errorf("element %d: %v needs %d vertices, got %d",
				k, types[k], nv, len(verts))
		}
	}

	fc := &FaceConnector{
		K:     K,
		EToV:  EToV,
		Types: types,
	}
	if err := fc.buildConnectivity(); err != nil {
		return nil, err
	}
	return fc, nil
}

// FaceKey builds a canonical signature for a face from its global vertex ids
func FaceKey(verts []int) string {
	v := make([]int, len(verts))
	copy(v, verts)
	sort.Ints(v)
	parts := make([]string, len(v))
	for i, id := range v {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "-")
}

// GlobalFaceVertices returns the global vertex ids of a local face, in polygon order
func (fc *FaceConnector) GlobalFaceVertices(elem, face int) []int {
	local := fc.Types[elem].FaceVertices()[face]
	v := make([]int, len(local))
	for i, lv := range local {
		v[i] = fc.EToV[elem][lv]
	}
	return v
}

// buildConnectivity pairs element faces through their canonical signature
func (fc *FaceConnector) buildConnectivity() error {
	type faceSignature struct {
		elem  int
		face  int
		count int
	}

	fc.EToE = make([][]int, fc.K)
	fc.EToF = make([][]int, fc.K)
	fc.FaceID = make([][]int, fc.K)

	faceMap := make(map[string]*faceSignature)

	for e := 0; e < fc.K; e++ {
		nf := fc.Types[e].NumFaces()
		fc.EToE[e] = make([]int, nf)
		fc.EToF[e] = make([]int, nf)
		fc.FaceID[e] = make([]int, nf)

		for f := 0; f < nf; f++ {
			// Self-connection by default
			fc.EToE[e][f] = e
			fc.EToF[e][f] = f

			key := FaceKey(fc.GlobalFaceVertices(e, f))
			if existing, found := faceMap[key]; found {
				if existing.count > 1 {
					return fmt.Errorf("face %s shared by more than two elements (element %d)", key, e)
				}
				existing.count++
				fc.EToE[e][f] = existing.elem
				fc.EToF[e][f] = existing.face
				fc.EToE[existing.elem][existing.face] = e
				fc.EToF[existing.elem][existing.face] = f
				fc.FaceID[e][f] = fc.FaceID[existing.elem][existing.face]
				continue
			}
			faceMap[key] = &faceSignature{elem: e, face: f, count: 1}
			fc.FaceID[e][f] = len(fc.FaceOwner)
			fc.FaceOwner = append(fc.FaceOwner, FaceRef{Element: e, Face: f})
		}
	}
	fc.NumFaces = len(fc.FaceOwner)

	return nil
}

// IsBoundary reports whether local face f of element e lies on the domain boundary
func (fc *FaceConnector) IsBoundary(e, f int) bool {
	return fc.EToE[e][f] == e && fc.EToF[e][f] == f
}

// Verify checks that the connectivity is symmetric and face numbering is consistent
func (fc *FaceConnector) Verify() error {
	for e := 0; e < fc.K; e++ {
		for f := range fc.EToE[e] {
			if fc.IsBoundary(e, f) {
				owner := fc.FaceOwner[fc.FaceID[e][f]]
				if owner.Element != e || owner.Face != f {
					return fmt.Errorf("boundary face %d of element %d not owned by it", f, e)
				}
				continue
			}
			n, nf := fc.EToE[e][f], fc.EToF[e][f]
			if fc.EToE[n][nf] != e || fc.EToF[n][nf] != f {
				return fmt.Errorf("asymmetric connection: element %d face %d -> element %d face %d",
					e, f, n, nf)
			}
			if fc.FaceID[n][nf] != fc.FaceID[e][f] {
				return fmt.Errorf("face id mismatch between element %d face %d and element %d face %d",
					e, f, n, nf)
			}
		}
	}
	return nil
}
