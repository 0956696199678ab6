package material

import (
	"fmt"
	"math"

	"github.com/notargets/MPFAKernel/element"
	"github.com/notargets/MPFAKernel/mpfa"
	"gonum.org/v1/gonum/mat"
)

// Exponential implements a potential dependent isotropic tensor
//
//	kten = k0 · exp(alpha · u) · I
type Exponential struct {
	K0, Alpha float64
	ndim      int
}

// Polynomial implements a model with nonlinear coefficient
//
//	kten = kval(u) * kcte
//
//	kval = a0  +  a1 u  +  a2 u² +  a3 u³
type Polynomial struct {
	a0, a1, a2, a3 float64
	Kcte           *mat.SymDense
}

// add models to factory
func init() {
	allocators["exponential"] = func() Model { return new(Exponential) }
	allocators["polynomial"] = func() Model { return new(Polynomial) }
}

// Init initialises this structure
func (o *Exponential) Init(ndim int, prms Params) error {
	if err := checkDim("exponential", ndim); err != nil {
		return err
	}
	vals, found := prms.Values("k0", "alpha")
	if !found {
		return fmt.Errorf("exponential model: 'k0' and 'alpha' must be given in database of material parameters")
	}
	if vals[0] <= 0 {
		return fmt.Errorf("exponential model: k0=%g must be positive", vals[0])
	}
	o.K0, o.Alpha, o.ndim = vals[0], vals[1], ndim
	return nil
}

// Kval computes k(u)
func (o *Exponential) Kval(u float64) float64 {
	return o.K0 * math.Exp(o.Alpha*u)
}

func (o *Exponential) Tensor(_ int, volVars mpfa.VolumeVariables, _ element.SubControlVolume) mat.Matrix {
	k := o.Kval(Potential(volVars))
	diag := make([]float64, o.ndim)
	for i := range diag {
		diag[i] = k
	}
	return mat.NewDiagDense(o.ndim, diag)
}

func (o *Exponential) SolutionDependent() bool { return o.Alpha != 0 }

// Init initialises this structure
func (o *Polynomial) Init(ndim int, prms Params) (err error) {
	if err = checkDim("polynomial", ndim); err != nil {
		return
	}
	// a[i] parameters default to zero except a0
	o.a0 = 1
	if v, ok := prms["a0"]; ok {
		o.a0 = v
	}
	o.a1, o.a2, o.a3 = prms["a1"], prms["a2"], prms["a3"]
	o.Kcte, err = diagonal("polynomial", ndim, prms)
	return
}

// Kval computes k(u)
func (o *Polynomial) Kval(u float64) float64 {
	return o.a0 + o.a1*u + o.a2*u*u + o.a3*u*u*u
}

// DkDu computes dk/du
func (o *Polynomial) DkDu(u float64) float64 {
	return o.a1 + 2.0*o.a2*u + 3.0*o.a3*u*u
}

// Tensor computes ktensor = kval(u) * kcte
func (o *Polynomial) Tensor(_ int, volVars mpfa.VolumeVariables, _ element.SubControlVolume) mat.Matrix {
	var kten mat.SymDense
	kten.ScaleSym(o.Kval(Potential(volVars)), o.Kcte)
	return &kten
}

func (o *Polynomial) SolutionDependent() bool {
	return o.a1 != 0 || o.a2 != 0 || o.a3 != 0
}
