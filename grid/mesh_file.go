package grid

import (
	"fmt"

	"github.com/notargets/MPFAKernel/utils"
	"github.com/notargets/gocfd/DG3D/mesh"
	"github.com/notargets/gocfd/DG3D/mesh/readers"
	gutils "github.com/notargets/gocfd/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// ReadMeshFile loads a tetrahedral mesh (Gambit neutral, Gmsh, ...) and builds
// its grid. Second order tets keep their corner nodes only.
func ReadMeshFile(path string, opts Options) (*Grid, error) {
	msh, err := readers.ReadMeshFile(path)
	if err != nil {
		return nil, fmt.Errorf("grid: reading %s: %w", path, err)
	}
	return FromMesh(msh, opts)
}

// FromMesh builds the grid of an already loaded mesh
func FromMesh(msh *mesh.Mesh, opts Options) (*Grid, error) {
	verts := make([]r3.Vec, len(msh.Vertices))
	for i, v := range msh.Vertices {
		verts[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}

	cells := make([]Cell, len(msh.EtoV))
	for k := range msh.EtoV {
		if et := msh.ElementTypes[k]; et != gutils.Tet && et != gutils.Tet10 {
			return nil, fmt.Errorf("grid: element %d is %v, only tetrahedral meshes are supported", k, et)
		}
		nodes := msh.EtoV[k]
		if len(nodes) < 4 {
			return nil, fmt.Errorf("grid: tetrahedral element %d has %d nodes", k, len(nodes))
		}
		cells[k] = Cell{Type: utils.Tet, Vertices: append([]int(nil), nodes[:4]...)}
	}
	return New(3, verts, cells, opts)
}
