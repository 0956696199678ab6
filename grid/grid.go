package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/MPFAKernel/element"
	"github.com/notargets/MPFAKernel/mpfa"
	"github.com/notargets/MPFAKernel/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrDegenerate = errors.New("grid: degenerate element")

// Cell is one element of the input mesh
type Cell struct {
	Type     utils.GeometryType
	Vertices []int
}

// BoundaryClassifier assigns a boundary condition type to a boundary sub
// control volume face. It must not return mpfa.Interior.
type BoundaryClassifier func(scvf element.SubControlVolumeFace) mpfa.FaceType

// Options control how the finite volume geometry is built
type Options struct {
	// Q places the integration point on each sub face:
	// Ip = faceCenter + Q·(vertex - faceCenter), 0 <= Q < 1
	Q float64

	// Perturbation moves interior vertices of the generated grids by up to
	// this fraction of the cell size, reproducible through RandSeed
	Perturbation float64
	RandSeed     int64

	// Classifier defaults to Dirichlet everywhere
	Classifier BoundaryClassifier

	// Extrusion is the depth of 2D domains, default 1
	Extrusion float64
}

// Grid is a cell-centered finite volume geometry built from an unstructured
// mesh. Every element is one sub control volume; every (element face, face
// vertex) pair is one sub control volume face.
type Grid struct {
	dim       int
	vertices  []r3.Vec
	cells     []Cell
	connector *utils.FaceConnector
	q         float64
	extrusion float64

	scvs      []element.SubControlVolume
	scvfs     []element.SubControlVolumeFace
	faceTypes []mpfa.FaceType

	// elemFaceScvfs[elem][face][k] is the sub face at vertex k of the face polygon
	elemFaceScvfs [][][]int
	vertexCells   [][]int

	numBoundaryScvfs int
}

// subFace is the part of a unique face attached to one of its vertices
type subFace struct {
	area   float64
	center r3.Vec
	ip     r3.Vec
}

// faceGeometry is computed once per unique face from its owner
type faceGeometry struct {
	normal r3.Vec // Unit normal pointing away from the owner
	center r3.Vec
	area   float64
	sub    map[int]subFace // Keyed by global vertex id
}

// New builds the grid geometry of a mesh of dimension dim
func New(dim int, vertices []r3.Vec, cells []Cell, opts Options) (*Grid, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("grid: unsupported dimension %d", dim)
	}
	if opts.Q < 0 || opts.Q >= 1 {
		return nil, fmt.Errorf("grid: integration point parameter Q=%g outside [0,1)", opts.Q)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("grid: no cells")
	}

	EToV := make([][]int, len(cells))
	types := make([]utils.GeometryType, len(cells))
	for k, c := range cells {
		if c.Type.Dimension() != dim {
			return nil, fmt.Errorf("grid: cell %d is a %v in a %dD mesh", k, c.Type, dim)
		}
		for _, v := range c.Vertices {
			if v < 0 || v >= len(vertices) {
				return nil, fmt.Errorf("grid: cell %d references vertex %d, have %d", k, v, len(vertices))
			}
		}
		EToV[k] = c.Vertices
		types[k] = c.Type
	}
	fc, err := utils.NewFaceConnector(EToV, types)
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}

	g := &Grid{
		dim:       dim,
		vertices:  vertices,
		cells:     cells,
		connector: fc,
		q:         opts.Q,
		extrusion: 1,
	}
	if dim == 2 && opts.Extrusion > 0 {
		g.extrusion = opts.Extrusion
	}

	g.buildScvs()
	faces, err := g.buildFaceGeometry()
	if err != nil {
		return nil, err
	}
	g.buildScvfs(faces)
	if err = g.computeVolumes(faces); err != nil {
		return nil, err
	}
	if err = g.classify(opts.Classifier); err != nil {
		return nil, err
	}

	g.vertexCells = make([][]int, len(vertices))
	for k, c := range cells {
		for _, v := range c.Vertices {
			g.vertexCells[v] = append(g.vertexCells[v], k)
		}
	}
	return g, nil
}

func (g *Grid) buildScvs() {
	g.scvs = make([]element.SubControlVolume, len(g.cells))
	for k, c := range g.cells {
		var center r3.Vec
		for _, v := range c.Vertices {
			center = r3.Add(center, g.vertices[v])
		}
		g.scvs[k] = element.SubControlVolume{
			Index:        k,
			ElementIndex: k,
			Center:       r3.Scale(1/float64(len(c.Vertices)), center),
		}
	}
}

func (g *Grid) buildFaceGeometry() ([]faceGeometry, error) {
	fc := g.connector
	faces := make([]faceGeometry, fc.NumFaces)
	for id, owner := range fc.FaceOwner {
		poly := fc.GlobalFaceVertices(owner.Element, owner.Face)
		pts := make([]r3.Vec, len(poly))
		var center r3.Vec
		for i, v := range poly {
			pts[i] = g.vertices[v]
			center = r3.Add(center, pts[i])
		}
		center = r3.Scale(1/float64(len(pts)), center)

		var areaNormal r3.Vec
		if g.dim == 2 {
			d := r3.Sub(pts[1], pts[0])
			areaNormal = r3.Vec{X: d.Y, Y: -d.X}
		} else {
			areaNormal = newell(pts)
		}
		area := r3.Norm(areaNormal)
		if area == 0 {
			return nil, fmt.Errorf("%w: element %d face %d has zero area", ErrDegenerate, owner.Element, owner.Face)
		}
		normal := r3.Scale(1/area, areaNormal)
		if r3.Dot(normal, r3.Sub(center, g.scvs[owner.Element].Center)) < 0 {
			normal = r3.Scale(-1, normal)
		}

		fg := faceGeometry{
			normal: normal,
			center: center,
			area:   area,
			sub:    make(map[int]subFace, len(poly)),
		}
		n := len(pts)
		for i, v := range poly {
			p := pts[i]
			var sf subFace
			if g.dim == 2 {
				sf.area = r3.Norm(r3.Sub(center, p))
				sf.center = r3.Scale(0.5, r3.Add(p, center))
			} else {
				next := r3.Scale(0.5, r3.Add(p, pts[(i+1)%n]))
				prev := r3.Scale(0.5, r3.Add(p, pts[(i+n-1)%n]))
				quad := []r3.Vec{p, next, center, prev}
				sf.area = r3.Norm(newell(quad))
				sf.center = r3.Scale(0.25, r3.Add(r3.Add(p, next), r3.Add(center, prev)))
			}
			sf.ip = r3.Add(center, r3.Scale(g.q, r3.Sub(p, center)))
			fg.sub[v] = sf
		}
		faces[id] = fg
	}
	return faces, nil
}

// newell returns the area weighted normal of a closed polygon
func newell(pts []r3.Vec) r3.Vec {
	var n r3.Vec
	for i := range pts {
		n = r3.Add(n, r3.Cross(pts[i], pts[(i+1)%len(pts)]))
	}
	return r3.Scale(0.5, n)
}

func (g *Grid) buildScvfs(faces []faceGeometry) {
	fc := g.connector
	numScvs := len(g.scvs)
	g.elemFaceScvfs = make([][][]int, fc.K)
	for e := 0; e < fc.K; e++ {
		nf := fc.Types[e].NumFaces()
		g.elemFaceScvfs[e] = make([][]int, nf)
		for f := 0; f < nf; f++ {
			id := fc.FaceID[e][f]
			fg := &faces[id]
			owner := fc.FaceOwner[id]
			normal := fg.normal
			if owner.Element != e || owner.Face != f {
				normal = r3.Scale(-1, normal)
			}
			boundary := fc.IsBoundary(e, f)

			poly := fc.GlobalFaceVertices(e, f)
			g.elemFaceScvfs[e][f] = make([]int, len(poly))
			for k, v := range poly {
				sf := fg.sub[v]
				scvf := element.SubControlVolumeFace{
					Index:           len(g.scvfs),
					InsideScv:       e,
					OutsideScv:      fc.EToE[e][f],
					Boundary:        boundary,
					Area:            sf.area,
					UnitOuterNormal: normal,
					Center:          sf.center,
					Ip:              sf.ip,
					VertexIndex:     v,
					FaceIndex:       id,
				}
				if boundary {
					scvf.OutsideScv = numScvs + g.numBoundaryScvfs
					g.numBoundaryScvfs++
				}
				g.elemFaceScvfs[e][f][k] = scvf.Index
				g.scvfs = append(g.scvfs, scvf)
			}
		}
	}
}

// computeVolumes applies the divergence theorem to x/dim over each element
func (g *Grid) computeVolumes(faces []faceGeometry) error {
	fc := g.connector
	for e := range g.scvs {
		var vol float64
		for f := range fc.FaceID[e] {
			fg := &faces[fc.FaceID[e][f]]
			n := fg.normal
			if owner := fc.FaceOwner[fc.FaceID[e][f]]; owner.Element != e || owner.Face != f {
				n = r3.Scale(-1, n)
			}
			vol += r3.Dot(fg.center, n) * fg.area
		}
		vol /= float64(g.dim)
		if vol <= 0 || math.IsNaN(vol) {
			return fmt.Errorf("%w: element %d has volume %g", ErrDegenerate, e, vol)
		}
		g.scvs[e].Volume = vol
	}
	return nil
}

func (g *Grid) classify(classifier BoundaryClassifier) error {
	g.faceTypes = make([]mpfa.FaceType, len(g.scvfs))
	for i := range g.scvfs {
		scvf := &g.scvfs[i]
		if !scvf.Boundary {
			g.faceTypes[i] = mpfa.Interior
			continue
		}
		ft := mpfa.Dirichlet
		if classifier != nil {
			ft = classifier(*scvf)
		}
		if ft != mpfa.Dirichlet && ft != mpfa.Neumann {
			return fmt.Errorf("grid: boundary scvf %d classified as %v", i, ft)
		}
		g.faceTypes[i] = ft
	}
	return nil
}

func (g *Grid) Dimension() int { return g.dim }

func (g *Grid) NumScvs() int { return len(g.scvs) }

func (g *Grid) NumScvfs() int { return len(g.scvfs) }

func (g *Grid) Scv(scvIdx int) element.SubControlVolume { return g.scvs[scvIdx] }

func (g *Grid) Scvf(scvfIdx int) element.SubControlVolumeFace { return g.scvfs[scvfIdx] }

func (g *Grid) ExtrusionFactor(element.SubControlVolume) float64 { return g.extrusion }

// NumBoundaryScvfs returns the number of ghost dofs
func (g *Grid) NumBoundaryScvfs() int { return g.numBoundaryScvfs }

// NumDofs counts cell and ghost dofs; ghost dof i belongs to the boundary
// scvf with OutsideScv == i
func (g *Grid) NumDofs() int { return len(g.scvs) + g.numBoundaryScvfs }

func (g *Grid) NumVertices() int { return len(g.vertices) }

func (g *Grid) Vertex(i int) r3.Vec { return g.vertices[i] }

func (g *Grid) Cells() []Cell { return g.cells }

// FaceType returns the boundary condition type of a sub control volume face
func (g *Grid) FaceType(scvfIdx int) mpfa.FaceType { return g.faceTypes[scvfIdx] }

// ScvfsOfElement lists the sub control volume faces of an element
func (g *Grid) ScvfsOfElement(elem int) []int {
	var idx []int
	for _, face := range g.elemFaceScvfs[elem] {
		idx = append(idx, face...)
	}
	return idx
}

// Bounds returns the axis aligned bounding box of the vertices
func (g *Grid) Bounds() (lo, hi r3.Vec) {
	lo = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi = r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, v := range g.vertices {
		lo = r3.Vec{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
		hi = r3.Vec{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
	}
	return lo, hi
}
