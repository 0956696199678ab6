package mpfa

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// detTolerance bounds |det| relative to the product of the basis lengths
const detTolerance = 1e-12

// innerNormals returns the dual basis of the local basis together with its
// determinant: nu[i]·basis[j] = det·δij
func innerNormals(basis []r3.Vec, dim int) ([]r3.Vec, float64, error) {
	if len(basis) != dim {
		return nil, 0, fmt.Errorf("%w: %d basis vectors in %dD", ErrInvalidGeometry, len(basis), dim)
	}
	var (
		nu  = make([]r3.Vec, dim)
		det float64
	)
	switch dim {
	case 2:
		// nu0 = R·b1, nu1 = Rᵀ·b0 with R the clockwise rotation
		nu[0] = r3.Vec{X: basis[1].Y, Y: -basis[1].X}
		nu[1] = r3.Vec{X: -basis[0].Y, Y: basis[0].X}
		det = basis[0].X*basis[1].Y - basis[0].Y*basis[1].X
	case 3:
		nu[0] = r3.Cross(basis[1], basis[2])
		nu[1] = r3.Cross(basis[2], basis[0])
		nu[2] = r3.Cross(basis[0], basis[1])
		det = r3.Dot(basis[0], nu[0])
	default:
		return nil, 0, fmt.Errorf("%w: unsupported dimension %d", ErrInvalidGeometry, dim)
	}

	scale := 1.0
	for _, b := range basis {
		scale *= r3.Norm(b)
	}
	if scale == 0 || math.Abs(det) <= detTolerance*scale {
		return nil, 0, fmt.Errorf("%w: local basis is singular (det=%g)", ErrInvalidGeometry, det)
	}
	return nu, det, nil
}

// mulTensor returns K·v using the leading dim×dim block of K
func mulTensor(K mat.Matrix, v r3.Vec, dim int) r3.Vec {
	in := [3]float64{v.X, v.Y, v.Z}
	var out [3]float64
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			out[i] += K.At(i, j) * in[j]
		}
	}
	return r3.Vec{X: out[0], Y: out[1], Z: out[2]}
}

func addTo(m *mat.Dense, i, j int, v float64) {
	m.Set(i, j, m.At(i, j)+v)
}

// positions builds an index lookup: pos[set[k]] = k, -1 for members not in set
func positions(set []int, n int) []int {
	pos := make([]int, n)
	for i := range pos {
		pos[i] = -1
	}
	for k, idx := range set {
		pos[idx] = k
	}
	return pos
}
