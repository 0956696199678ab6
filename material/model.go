// Package material implements diffusion tensor models for the flux discretization
package material

import (
	"fmt"
	"sort"

	"github.com/notargets/MPFAKernel/element"
	"github.com/notargets/MPFAKernel/mpfa"
	"gonum.org/v1/gonum/mat"
)

// Params holds named material parameters
type Params map[string]float64

// Values returns the parameters named by keys, and whether all were found
func (p Params) Values(keys ...string) ([]float64, bool) {
	vals := make([]float64, len(keys))
	for i, k := range keys {
		v, ok := p[k]
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

// Model defines diffusion tensor models
type Model interface {
	Init(ndim int, prms Params) error // Init initialises this structure

	// Tensor returns the ndim×ndim tensor of a cell. The result is only read
	// by callers and may be shared between calls.
	Tensor(elementIdx int, volVars mpfa.VolumeVariables, scv element.SubControlVolume) mat.Matrix

	// SolutionDependent reports whether Tensor depends on volVars
	SolutionDependent() bool
}

// New diffusion tensor model
func New(name string) (model Model, err error) {
	allocator, ok := allocators[name]
	if !ok {
		return nil, fmt.Errorf("model %q is not available in 'material' database", name)
	}
	return allocator(), nil
}

// Names lists the available models
func Names() []string {
	names := make([]string, 0, len(allocators))
	for name := range allocators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// allocators holds all available models
var allocators = map[string]func() Model{}

// TensorFunc adapts a model to the interaction volume solve
func TensorFunc(m Model) mpfa.TensorFunc {
	return m.Tensor
}

// Scalar returns the tensor function of a uniform scalar coefficient k·I
func Scalar(k float64, ndim int) mpfa.TensorFunc {
	K := mat.NewDiagDense(ndim, nil)
	for i := 0; i < ndim; i++ {
		K.SetDiag(i, k)
	}
	return func(int, mpfa.VolumeVariables, element.SubControlVolume) mat.Matrix { return K }
}

// Potential returns the primary variable stored in volume variables, 0 if none
func Potential(volVars mpfa.VolumeVariables) float64 {
	if len(volVars) == 0 {
		return 0
	}
	return volVars[0]
}

// checkSPD rejects tensors that are not symmetric positive definite
func checkSPD(name string, K *mat.SymDense) error {
	var chol mat.Cholesky
	if ok := chol.Factorize(K); !ok {
		return fmt.Errorf("%s model: tensor is not positive definite:\n%v",
			name, mat.Formatted(K, mat.Prefix("  ")))
	}
	return nil
}

func checkDim(name string, ndim int) error {
	if ndim != 2 && ndim != 3 {
		return fmt.Errorf("%s model: unsupported dimension %d", name, ndim)
	}
	return nil
}

// diagonal builds the constant diagonal tensor from "k" (isotropic) or
// the per axis values "kx", "ky" (and "kz" in 3D)
func diagonal(name string, ndim int, prms Params) (*mat.SymDense, error) {
	keys := []string{"kx", "ky"}
	if ndim == 3 {
		keys = append(keys, "kz")
	}
	vals, found := prms.Values(keys...)
	if !found {
		k, ok := prms["k"]
		if !ok {
			return nil, fmt.Errorf("%s model: either 'k' (isotropic) or %v must be given in database of material parameters", name, keys)
		}
		vals = make([]float64, ndim)
		for i := range vals {
			vals[i] = k
		}
	}
	K := mat.NewSymDense(ndim, nil)
	for i, v := range vals {
		K.SetSym(i, i, v)
	}
	return K, checkSPD(name, K)
}
