package grid

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/notargets/MPFAKernel/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// Kuhn split of the unit cube into 6 tetrahedra around the 0-6 diagonal,
// conforming when every cube uses the same split
var kuhnTets = [6][4]int{
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
	{0, 5, 1, 6},
}

// NewRectangular builds an nx×ny quadrilateral grid of [0,lx]×[0,ly]
func NewRectangular(nx, ny int, lx, ly float64, opts Options) (*Grid, error) {
	verts, err := lattice2D(nx, ny, lx, ly, opts)
	if err != nil {
		return nil, err
	}
	cells := make([]Cell, 0, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v00, v10, v11, v01 := corners2D(i, j, nx)
			cells = append(cells, Cell{Type: utils.Rectangle, Vertices: []int{v00, v10, v11, v01}})
		}
	}
	return New(2, verts, cells, opts)
}

// NewTriangular builds an nx×ny grid of [0,lx]×[0,ly] with every square cut
// into two triangles along its rising diagonal
func NewTriangular(nx, ny int, lx, ly float64, opts Options) (*Grid, error) {
	verts, err := lattice2D(nx, ny, lx, ly, opts)
	if err != nil {
		return nil, err
	}
	cells := make([]Cell, 0, 2*nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v00, v10, v11, v01 := corners2D(i, j, nx)
			cells = append(cells,
				Cell{Type: utils.Tri, Vertices: []int{v00, v10, v11}},
				Cell{Type: utils.Tri, Vertices: []int{v00, v11, v01}},
			)
		}
	}
	return New(2, verts, cells, opts)
}

// NewHexahedral builds an nx×ny×nz brick grid of [0,lx]×[0,ly]×[0,lz].
// Perturbation is rejected since it would warp the faces.
func NewHexahedral(nx, ny, nz int, lx, ly, lz float64, opts Options) (*Grid, error) {
	if opts.Perturbation != 0 {
		return nil, fmt.Errorf("grid: hexahedral grids cannot be perturbed")
	}
	verts, err := lattice3D(nx, ny, nz, lx, ly, lz, opts)
	if err != nil {
		return nil, err
	}
	cells := make([]Cell, 0, nx*ny*nz)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c := corners3D(i, j, k, nx, ny)
				cells = append(cells, Cell{Type: utils.Hex, Vertices: c[:]})
			}
		}
	}
	return New(3, verts, cells, opts)
}

// NewTetrahedral builds an nx×ny×nz grid of [0,lx]×[0,ly]×[0,lz] with every
// brick split into 6 tetrahedra
func NewTetrahedral(nx, ny, nz int, lx, ly, lz float64, opts Options) (*Grid, error) {
	verts, err := lattice3D(nx, ny, nz, lx, ly, lz, opts)
	if err != nil {
		return nil, err
	}
	cells := make([]Cell, 0, 6*nx*ny*nz)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c := corners3D(i, j, k, nx, ny)
				for _, tet := range kuhnTets {
					cells = append(cells, Cell{
						Type:     utils.Tet,
						Vertices: []int{c[tet[0]], c[tet[1]], c[tet[2]], c[tet[3]]},
					})
				}
			}
		}
	}
	return New(3, verts, cells, opts)
}

func corners2D(i, j, nx int) (v00, v10, v11, v01 int) {
	v00 = j*(nx+1) + i
	v10 = v00 + 1
	v01 = v00 + nx + 1
	v11 = v01 + 1
	return
}

// corners3D numbers the brick corners bottom counter clockwise, then top
func corners3D(i, j, k, nx, ny int) [8]int {
	id := func(i, j, k int) int { return (k*(ny+1)+j)*(nx+1) + i }
	return [8]int{
		id(i, j, k), id(i+1, j, k), id(i+1, j+1, k), id(i, j+1, k),
		id(i, j, k+1), id(i+1, j, k+1), id(i+1, j+1, k+1), id(i, j+1, k+1),
	}
}

func lattice2D(nx, ny int, lx, ly float64, opts Options) ([]r3.Vec, error) {
	if nx <= 0 || ny <= 0 || lx <= 0 || ly <= 0 {
		return nil, fmt.Errorf("grid: invalid dimensions %dx%d on %gx%g", nx, ny, lx, ly)
	}
	dx, dy := lx/float64(nx), ly/float64(ny)
	p, err := newPerturber(opts, math.Min(dx, dy))
	if err != nil {
		return nil, err
	}
	verts := make([]r3.Vec, 0, (nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			v := r3.Vec{X: float64(i) * dx, Y: float64(j) * dy}
			if i > 0 && i < nx && j > 0 && j < ny {
				v = p.move(v, 2)
			}
			verts = append(verts, v)
		}
	}
	return verts, nil
}

func lattice3D(nx, ny, nz int, lx, ly, lz float64, opts Options) ([]r3.Vec, error) {
	if nx <= 0 || ny <= 0 || nz <= 0 || lx <= 0 || ly <= 0 || lz <= 0 {
		return nil, fmt.Errorf("grid: invalid dimensions %dx%dx%d on %gx%gx%g", nx, ny, nz, lx, ly, lz)
	}
	dx, dy, dz := lx/float64(nx), ly/float64(ny), lz/float64(nz)
	p, err := newPerturber(opts, math.Min(dx, math.Min(dy, dz)))
	if err != nil {
		return nil, err
	}
	verts := make([]r3.Vec, 0, (nx+1)*(ny+1)*(nz+1))
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				v := r3.Vec{X: float64(i) * dx, Y: float64(j) * dy, Z: float64(k) * dz}
				if i > 0 && i < nx && j > 0 && j < ny && k > 0 && k < nz {
					v = p.move(v, 3)
				}
				verts = append(verts, v)
			}
		}
	}
	return verts, nil
}

// perturber displaces interior vertices uniformly in [-amount, amount] per axis
type perturber struct {
	rng    *rand.Rand
	amount float64
}

func newPerturber(opts Options, h float64) (*perturber, error) {
	// Beyond 1/4 of the cell size elements may fold
	if opts.Perturbation < 0 || opts.Perturbation > 0.25 {
		return nil, fmt.Errorf("grid: perturbation %g outside [0, 0.25]", opts.Perturbation)
	}
	p := &perturber{amount: opts.Perturbation * h}
	if p.amount > 0 {
		p.rng = rand.New(rand.NewSource(opts.RandSeed))
	}
	return p, nil
}

func (p *perturber) move(v r3.Vec, dim int) r3.Vec {
	if p.rng == nil {
		return v
	}
	shift := func() float64 { return p.amount * (2*p.rng.Float64() - 1) }
	v.X += shift()
	v.Y += shift()
	if dim == 3 {
		v.Z += shift()
	}
	return v
}
