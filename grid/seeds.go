package grid

import (
	"fmt"

	"github.com/notargets/MPFAKernel/mpfa"
)

// Seeds builds one interaction volume seed per mesh vertex, in vertex order.
// Vertices not used by any cell get no seed.
//
// The cells around a vertex are numbered in ascending order. Each face
// touching the vertex is seen from the first cell that reaches it, which is
// the lower index of its two cells.
func (g *Grid) Seeds() ([]*mpfa.Seed, error) {
	seeds := make([]*mpfa.Seed, 0, len(g.vertices))
	for v := range g.vertices {
		if len(g.vertexCells[v]) == 0 {
			continue
		}
		seed, err := g.vertexSeed(v)
		if err != nil {
			return nil, fmt.Errorf("grid: vertex %d: %w", v, err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

// SeedVertices returns the vertex each seed returned by Seeds belongs to
func (g *Grid) SeedVertices() []int {
	var verts []int
	for v := range g.vertices {
		if len(g.vertexCells[v]) > 0 {
			verts = append(verts, v)
		}
	}
	return verts
}

func (g *Grid) vertexSeed(v int) (*mpfa.Seed, error) {
	fc := g.connector
	cells := g.vertexCells[v] // ascending by construction
	localScv := make(map[int]int, len(cells))
	for i, c := range cells {
		localScv[c] = i
	}

	seed := &mpfa.Seed{ScvSeeds: make([]mpfa.ScvSeed, len(cells))}
	localScvf := make(map[int]int) // unique face → local scvf
	for i, e := range cells {
		seed.ScvSeeds[i].GlobalIndex = e
		for f := range fc.FaceID[e] {
			k := g.vertexPosition(e, f, v)
			if k < 0 {
				continue
			}
			id := fc.FaceID[e][f]
			if _, seen := localScvf[id]; !seen {
				inside := g.elemFaceScvfs[e][f][k]
				fs := mpfa.ScvfSeed{
					FaceType:          g.faceTypes[inside],
					InsideLocalScv:    i,
					OutsideLocalScv:   -1,
					InsideGlobalScvf:  inside,
					OutsideGlobalScvf: -1,
				}
				if fs.FaceType == mpfa.Interior {
					n, nf := fc.EToE[e][f], fc.EToF[e][f]
					nk := g.vertexPosition(n, nf, v)
					if nk < 0 {
						return nil, fmt.Errorf("face %d lost vertex on element %d", id, n)
					}
					fs.OutsideLocalScv = localScv[n]
					fs.OutsideGlobalScvf = g.elemFaceScvfs[n][nf][nk]
				} else {
					seed.Boundary = true
				}
				localScvf[id] = len(seed.ScvfSeeds)
				seed.ScvfSeeds = append(seed.ScvfSeeds, fs)
			}
			seed.ScvSeeds[i].LocalScvfIndices = append(seed.ScvSeeds[i].LocalScvfIndices, localScvf[id])
		}
		if got := len(seed.ScvSeeds[i].LocalScvfIndices); got != g.dim {
			return nil, fmt.Errorf("element %d has %d faces at the vertex, need %d", e, got, g.dim)
		}
	}
	return seed, nil
}

// vertexPosition returns the position of vertex v in the polygon of a local
// face, -1 if the face does not touch it
func (g *Grid) vertexPosition(elem, face, v int) int {
	for k, gv := range g.connector.GlobalFaceVertices(elem, face) {
		if gv == v {
			return k
		}
	}
	return -1
}
