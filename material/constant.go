package material

import (
	"fmt"
	"math"

	"github.com/notargets/MPFAKernel/element"
	"github.com/notargets/MPFAKernel/mpfa"
	"gonum.org/v1/gonum/mat"
)

// Constant is a tensor that is the same in every cell
//
//	isotropic    k·I                        ("k")
//	anisotropic  diag(kx, ky[, kz])          ("kx", "ky", "kz" or "k")
//	rotated      R(θ)·diag(k1, k2)·R(θ)ᵀ     ("k1", "k2", "angle" in degrees, "kz" in 3D)
//	full         symmetric entries          ("kxx", "kxy", "kyy"[, "kxz", "kyz", "kzz"])
type Constant struct {
	name string
	K    *mat.SymDense
}

// add models to factory
func init() {
	allocators["isotropic"] = func() Model { return &Constant{name: "isotropic"} }
	allocators["anisotropic"] = func() Model { return &Constant{name: "anisotropic"} }
	allocators["rotated"] = func() Model { return &Constant{name: "rotated"} }
	allocators["full"] = func() Model { return &Constant{name: "full"} }
}

// Init initialises this structure
func (o *Constant) Init(ndim int, prms Params) (err error) {
	if err = checkDim(o.name, ndim); err != nil {
		return
	}
	switch o.name {
	case "isotropic":
		k, ok := prms["k"]
		if !ok {
			return fmt.Errorf("isotropic model: 'k' must be given in database of material parameters")
		}
		o.K, err = diagonal(o.name, ndim, Params{"k": k})
		return
	case "anisotropic":
		o.K, err = diagonal(o.name, ndim, prms)
		return
	case "rotated":
		o.K, err = rotated(ndim, prms)
		return
	case "full":
		o.K, err = full(ndim, prms)
		return
	}
	return fmt.Errorf("constant model %q unknown", o.name)
}

// Tensor returns the shared constant tensor
func (o *Constant) Tensor(int, mpfa.VolumeVariables, element.SubControlVolume) mat.Matrix {
	return o.K
}

func (o *Constant) SolutionDependent() bool { return false }

func rotated(ndim int, prms Params) (*mat.SymDense, error) {
	vals, found := prms.Values("k1", "k2", "angle")
	if !found {
		return nil, fmt.Errorf("rotated model: 'k1', 'k2' and 'angle' must be given in database of material parameters")
	}
	k1, k2 := vals[0], vals[1]
	s, c := math.Sincos(vals[2] * math.Pi / 180)

	K := mat.NewSymDense(ndim, nil)
	K.SetSym(0, 0, c*c*k1+s*s*k2)
	K.SetSym(0, 1, c*s*(k1-k2))
	K.SetSym(1, 1, s*s*k1+c*c*k2)
	if ndim == 3 {
		kz, ok := prms["kz"]
		if !ok {
			return nil, fmt.Errorf("rotated model: 'kz' must be given in 3D")
		}
		K.SetSym(2, 2, kz)
	}
	return K, checkSPD("rotated", K)
}

func full(ndim int, prms Params) (*mat.SymDense, error) {
	keys := [][]string{
		{"kxx", "kxy", "kxz"},
		{"kxy", "kyy", "kyz"},
		{"kxz", "kyz", "kzz"},
	}
	K := mat.NewSymDense(ndim, nil)
	for i := 0; i < ndim; i++ {
		for j := i; j < ndim; j++ {
			v, ok := prms[keys[i][j]]
			if !ok && i == j {
				return nil, fmt.Errorf("full model: '%s' must be given in database of material parameters", keys[i][j])
			}
			K.SetSym(i, j, v)
		}
	}
	return K, checkSPD("full", K)
}
