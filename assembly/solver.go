package assembly

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrNotConverged = errors.New("assembly: linear solver did not converge")

// LinearSolver selects how the global system is solved
type LinearSolver uint8

const (
	// Auto uses dense LU up to DenseLimit unknowns, BiCGStab above
	Auto LinearSolver = iota
	// Dense converts the system to a dense matrix and factorizes it, O(n³)
	Dense
	// BiCGStab iterates on the sparse system with Jacobi preconditioning
	BiCGStab
)

// DenseLimit is the largest system Auto solves with dense LU
const DenseLimit = 2000

func (s LinearSolver) String() string {
	switch s {
	case Auto:
		return "auto"
	case Dense:
		return "dense"
	case BiCGStab:
		return "bicgstab"
	}
	return fmt.Sprintf("LinearSolver(%d)", int(s))
}

// ParseLinearSolver converts a solver name to a LinearSolver
func ParseLinearSolver(name string) (LinearSolver, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return Auto, nil
	case "dense", "lu":
		return Dense, nil
	case "bicgstab", "iterative":
		return BiCGStab, nil
	}
	return 0, fmt.Errorf("unknown linear solver %q", name)
}

// linearSolve solves jac·x = rhs, x0 is the initial guess of iterative solves
func linearSolve(kind LinearSolver, jac *sparse.CSR, rhs, x0 []float64, tol float64) ([]float64, int, error) {
	n, _ := jac.Dims()
	if kind == Dense || (kind == Auto && n <= DenseLimit) {
		x, err := solveDense(jac, rhs)
		return x, 1, err
	}
	return solveBiCGStab(jac, rhs, x0, tol, 10*n+100)
}

func solveDense(jac *sparse.CSR, rhs []float64) ([]float64, error) {
	var lu mat.LU
	lu.Factorize(jac.ToDense())
	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, mat.NewVecDense(len(rhs), rhs)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularJacobian, err)
	}
	return x.RawVector().Data, nil
}

// mulVec computes dst = A·x, MulVecTo accumulates into dst
func mulVec(dst []float64, A *sparse.CSR, x []float64) {
	for i := range dst {
		dst[i] = 0
	}
	A.MulVecTo(dst, false, x)
}

// solveBiCGStab runs right preconditioned BiCGStab until the residual norm
// drops below tol·|rhs|
func solveBiCGStab(A *sparse.CSR, b, x0 []float64, tol float64, maxIter int) ([]float64, int, error) {
	n := len(b)
	invDiag := make([]float64, n)
	for i := 0; i < n; i++ {
		d := A.At(i, i)
		if d == 0 {
			return nil, 0, fmt.Errorf("%w: zero diagonal in row %d", ErrSingularJacobian, i)
		}
		invDiag[i] = 1 / d
	}

	x := make([]float64, n)
	if len(x0) == n {
		copy(x, x0)
	}
	r := make([]float64, n)
	mulVec(r, A, x)
	floats.SubTo(r, b, r)

	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		bnorm = 1
	}
	limit := tol * bnorm
	if floats.Norm(r, 2) <= limit {
		return x, 0, nil
	}

	rhat := append([]float64(nil), r...)
	p := make([]float64, n)
	v := make([]float64, n)
	y := make([]float64, n)
	s := make([]float64, n)
	z := make([]float64, n)
	t := make([]float64, n)
	rho, alpha, omega := 1.0, 1.0, 1.0

	for it := 1; it <= maxIter; it++ {
		rhoNew := floats.Dot(rhat, r)
		if rhoNew == 0 || omega == 0 {
			return nil, it, fmt.Errorf("%w: breakdown after %d iterations", ErrNotConverged, it)
		}
		beta := (rhoNew / rho) * (alpha / omega)
		for i := range p {
			p[i] = r[i] + beta*(p[i]-omega*v[i])
		}
		floats.MulTo(y, invDiag, p)
		mulVec(v, A, y)
		alpha = rhoNew / floats.Dot(rhat, v)
		floats.AddScaledTo(s, r, -alpha, v)
		if floats.Norm(s, 2) <= limit {
			floats.AddScaled(x, alpha, y)
			return x, it, nil
		}

		floats.MulTo(z, invDiag, s)
		mulVec(t, A, z)
		tt := floats.Dot(t, t)
		if tt == 0 {
			return nil, it, fmt.Errorf("%w: breakdown after %d iterations", ErrNotConverged, it)
		}
		omega = floats.Dot(t, s) / tt
		floats.AddScaled(x, alpha, y)
		floats.AddScaled(x, omega, z)
		floats.AddScaledTo(r, s, -omega, t)

		res := floats.Norm(r, 2)
		if math.IsNaN(res) {
			return nil, it, fmt.Errorf("%w: residual is NaN", ErrNotConverged)
		}
		if res <= limit {
			return x, it, nil
		}
		rho = rhoNew
	}
	return nil, maxIter, fmt.Errorf("%w in %d iterations", ErrNotConverged, maxIter)
}
