package mpfa

import (
	"fmt"

	"github.com/notargets/MPFAKernel/element"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// LocalIndexPair addresses a face of an interaction volume from one side.
// Flipped is set when the face is seen from its outside cell, in which case
// transmissibilities and fluxes change sign.
type LocalIndexPair struct {
	Index   int
	Flipped bool
}

// InteractionVolume is the MPFA-O interaction volume around one vertex.
//
// Row i of the transmissibility matrix T maps the potentials at the
// VolVarsStencil dofs to the flux across local face i, taken along the unit
// outer normal of its inside cell (positive when leaving that cell).
// The stencil lists the seed cells first, then one ghost dof per Dirichlet
// face in face order.
type InteractionVolume struct {
	geometry element.Geometry
	problem  Problem
	dim      int

	onBoundary        bool
	globalScvfIndices []int

	localScvs  []LocalScv
	localScvfs []LocalScvf

	volVarsStencil   []int
	volVarsPositions []r3.Vec

	// Faces carrying an unknown (interior + Neumann) and Dirichlet faces,
	// plus their inverse lookups (-1 when not a member)
	fluxFaceIndexSet      []int
	dirichletFaceIndexSet []int
	fluxFacePos           []int
	dirichletFacePos      []int

	T     *mat.Dense // [numFaces × numPotentials]
	AinvB *mat.Dense // [numFluxFaces × numPotentials]
	CAinv *mat.Dense // [numFaces × numFluxFaces]

	neumannFluxes []float64
	solved        bool
}

// NewInteractionVolume binds a seed to the mesh geometry. No linear algebra is
// done here; call SolveLocalSystem before querying transmissibilities.
// problem may be nil when neither state dependent tensors nor Neumann fluxes
// are used.
func NewInteractionVolume(seed *Seed, geometry element.Geometry, problem Problem) (*InteractionVolume, error) {
	if seed == nil {
		return nil, ErrEmptySeed
	}
	dim := geometry.Dimension()
	if err := seed.Validate(dim); err != nil {
		return nil, err
	}

	iv := &InteractionVolume{
		geometry:          geometry,
		problem:           problem,
		dim:               dim,
		onBoundary:        seed.OnBoundary(),
		globalScvfIndices: seed.GlobalScvfIndices(),
	}
	if err := iv.createLocalEntities(seed); err != nil {
		return nil, err
	}

	numScvs := len(iv.localScvs)
	numScvfs := len(iv.localScvfs)
	maxNumVolVars := numScvs + numScvfs

	// Boundary vol vars are placed at the end
	iv.volVarsStencil = make([]int, 0, maxNumVolVars)
	iv.volVarsPositions = make([]r3.Vec, 0, maxNumVolVars)
	for _, scv := range iv.localScvs {
		iv.volVarsStencil = append(iv.volVarsStencil, scv.GlobalIndex())
		iv.volVarsPositions = append(iv.volVarsPositions, scv.Center())
	}

	for localScvfIdx := range iv.localScvfs {
		scvf := &iv.localScvfs[localScvfIdx]
		if scvf.faceType == Dirichlet {
			iv.volVarsStencil = append(iv.volVarsStencil, scvf.outsideGlobalScv)
			iv.volVarsPositions = append(iv.volVarsPositions, scvf.ip)
			iv.dirichletFaceIndexSet = append(iv.dirichletFaceIndexSet, localScvfIdx)
		} else {
			iv.fluxFaceIndexSet = append(iv.fluxFaceIndexSet, localScvfIdx)
		}
	}
	iv.fluxFacePos = positions(iv.fluxFaceIndexSet, numScvfs)
	iv.dirichletFacePos = positions(iv.dirichletFaceIndexSet, numScvfs)

	iv.neumannFluxes = make([]float64, len(iv.fluxFaceIndexSet))

	return iv, nil
}

func (iv *InteractionVolume) createLocalEntities(seed *Seed) error {
	numScvs := iv.geometry.NumScvs()
	numScvfs := iv.geometry.NumScvfs()

	iv.localScvfs = make([]LocalScvf, len(seed.ScvfSeeds))
	for i, fs := range seed.ScvfSeeds {
		if fs.InsideGlobalScvf >= numScvfs || fs.OutsideGlobalScvf >= numScvfs {
			return fmt.Errorf("%w: face %d global index out of range", ErrInvalidSeed, i)
		}
		// The "inside" scv face carries the geometry
		scvf := iv.geometry.Scvf(fs.InsideGlobalScvf)
		insideGlobal := seed.ScvSeeds[fs.InsideLocalScv].GlobalIndex
		if scvf.InsideScv != insideGlobal {
			return fmt.Errorf("%w: face %d (global %d) belongs to scv %d, seed says %d",
				ErrInvalidSeed, i, fs.InsideGlobalScvf, scvf.InsideScv, insideGlobal)
		}
		if scvf.Boundary != fs.Boundary() {
			return fmt.Errorf("%w: %v face %d has boundary=%v in the geometry",
				ErrInvalidSeed, fs.FaceType, i, scvf.Boundary)
		}
		outsideLocal, outsideGlobalScvf := -1, -1
		if !fs.Boundary() {
			outsideLocal = fs.OutsideLocalScv
			outsideGlobalScvf = fs.OutsideGlobalScvf
			outside := iv.geometry.Scvf(outsideGlobalScvf)
			if outside.InsideScv != seed.ScvSeeds[outsideLocal].GlobalIndex || scvf.OutsideScv != outside.InsideScv {
				return fmt.Errorf("%w: face %d outside indices do not match the geometry", ErrInvalidSeed, i)
			}
		}

		iv.localScvfs[i] = LocalScvf{
			faceType:          fs.FaceType,
			insideLocalScv:    fs.InsideLocalScv,
			outsideLocalScv:   outsideLocal,
			insideGlobalScvf:  fs.InsideGlobalScvf,
			outsideGlobalScvf: outsideGlobalScvf,
			outsideGlobalScv:  scvf.OutsideScv,
			unitOuterNormal:   scvf.UnitOuterNormal,
			area:              scvf.Area,
			ip:                scvf.Ip,
		}
	}

	iv.localScvs = make([]LocalScv, len(seed.ScvSeeds))
	for i, ss := range seed.ScvSeeds {
		if ss.GlobalIndex < 0 || ss.GlobalIndex >= numScvs {
			return fmt.Errorf("%w: scv %d global index %d out of range", ErrInvalidSeed, i, ss.GlobalIndex)
		}
		scv := iv.geometry.Scv(ss.GlobalIndex)
		basis := make([]r3.Vec, iv.dim)
		for dir, f := range ss.LocalScvfIndices {
			basis[dir] = r3.Sub(iv.localScvfs[f].ip, scv.Center)
		}
		localScv, err := newLocalScv(i, ss, scv.Center, basis, iv.dim)
		if err != nil {
			return fmt.Errorf("scv %d (global %d): %w", i, ss.GlobalIndex, err)
		}
		iv.localScvs[i] = localScv
	}
	return nil
}

// SolveLocalSystem computes the transmissibilities for the given tensor
// field. It has to be called again whenever the tensors change.
func (iv *InteractionVolume) SolveLocalSystem(tensor TensorFunc) error {
	if tensor == nil {
		return fmt.Errorf("%w: nil tensor function", ErrInvalidTensor)
	}
	iv.solved = false

	omegas, err := iv.evaluateOmegas(tensor)
	if err != nil {
		return err
	}

	// If only dirichlet faces are present, assemble T directly
	if len(iv.fluxFaceIndexSet) == 0 {
		iv.T = iv.assemblePureDirichletSystem(omegas)
		iv.AinvB, iv.CAinv = nil, nil
		iv.solved = true
		return nil
	}

	A, B, C, D := iv.assembleLocalMatrices(omegas)

	var Ainv mat.Dense
	if err := Ainv.Inverse(A); err != nil {
		return fmt.Errorf("%w: %v", ErrSingularSystem, err)
	}

	var AinvB, CAinv, T mat.Dense
	AinvB.Mul(&Ainv, B)
	CAinv.Mul(C, &Ainv)
	T.Mul(&CAinv, B)
	T.Add(&T, D)

	iv.AinvB, iv.CAinv, iv.T = &AinvB, &CAinv, &T
	iv.solved = true
	return nil
}

// omegaSet holds, per local face, the omega factors of its inside and (for
// interior faces) outside sub control volume, one per local direction
type omegaSet struct {
	pos [][]float64
	neg [][]float64
}

// evaluateOmegas computes the flux approximation coefficients
//
//	w[dir] = -area * (K·nu_dir)·n / det * extrusion
//
// with the tensor evaluated once per sub control volume
func (iv *InteractionVolume) evaluateOmegas(tensor TensorFunc) (*omegaSet, error) {
	tensors := make([]mat.Matrix, len(iv.localScvs))
	extrusion := make([]float64, len(iv.localScvs))
	for i := range iv.localScvs {
		scv := iv.geometry.Scv(iv.localScvs[i].globalIndex)
		var volVars VolumeVariables
		if iv.problem != nil {
			volVars = iv.problem.VolumeVariables(scv.Index)
		}
		K := tensor(scv.ElementIndex, volVars, scv)
		if K == nil {
			return nil, fmt.Errorf("%w: nil tensor for scv %d", ErrInvalidTensor, scv.Index)
		}
		if r, c := K.Dims(); r < iv.dim || c < iv.dim {
			return nil, fmt.Errorf("%w: %dx%d tensor for scv %d in %dD", ErrInvalidTensor, r, c, scv.Index, iv.dim)
		}
		tensors[i] = K
		extrusion[i] = iv.geometry.ExtrusionFactor(scv)
	}

	ws := &omegaSet{
		pos: make([][]float64, len(iv.localScvfs)),
		neg: make([][]float64, len(iv.localScvfs)),
	}
	for i := range iv.localScvfs {
		scvf := &iv.localScvfs[i]
		p := scvf.insideLocalScv
		ws.pos[i] = iv.calculateOmegas(&iv.localScvs[p], scvf, tensors[p], extrusion[p])
		if scvf.faceType == Interior {
			n := scvf.outsideLocalScv
			ws.neg[i] = iv.calculateOmegas(&iv.localScvs[n], scvf, tensors[n], extrusion[n])
		}
	}
	return ws, nil
}

func (iv *InteractionVolume) calculateOmegas(scv *LocalScv, scvf *LocalScvf, K mat.Matrix, extrusion float64) []float64 {
	w := make([]float64, iv.dim)
	for dir := 0; dir < iv.dim; dir++ {
		kn := mulTensor(K, scv.innerNormals[dir], iv.dim)
		w[dir] = -scvf.area * extrusion * r3.Dot(kn, scvf.unitOuterNormal) / scv.detX
	}
	return w
}

// assembleLocalMatrices builds the blocks of the local system
//
//	A·uf = B·u            (flux continuity on faces with an unknown)
//	f    = C·uf + D·u     (flux across every face)
//
// A, B and C are nil when there are no faces with an unknown
func (iv *InteractionVolume) assembleLocalMatrices(ws *omegaSet) (A, B, C, D *mat.Dense) {
	var (
		numScvs       = len(iv.localScvs)
		numFaces      = len(iv.localScvfs)
		numFluxFaces  = len(iv.fluxFaceIndexSet)
		numPotentials = len(iv.volVarsStencil)
	)
	if numFluxFaces > 0 {
		A = mat.NewDense(numFluxFaces, numFluxFaces, nil)
		B = mat.NewDense(numFluxFaces, numPotentials, nil)
		C = mat.NewDense(numFaces, numFluxFaces, nil)
	}
	D = mat.NewDense(numFaces, numPotentials, nil)

	for rowIdx := range iv.localScvfs {
		scvf := &iv.localScvfs[rowIdx]
		hasUnknown := scvf.faceType.HasUnknown()
		fluxRow := iv.fluxFacePos[rowIdx]

		// Entries of the "positive" sub volume
		posIdx := scvf.insideLocalScv
		posScv := &iv.localScvs[posIdx]
		posW := ws.pos[rowIdx]
		for dir := 0; dir < iv.dim; dir++ {
			cur := posScv.localScvfIndices[dir]
			if iv.localScvfs[cur].faceType.HasUnknown() {
				col := iv.fluxFacePos[cur]
				addTo(C, rowIdx, col, posW[dir])
				if hasUnknown {
					addTo(A, fluxRow, col, posW[dir])
				}
			} else {
				col := numScvs + iv.dirichletFacePos[cur]
				addTo(D, rowIdx, col, posW[dir])
				if hasUnknown {
					addTo(B, fluxRow, col, -posW[dir])
				}
			}

			// Cell center potential
			addTo(D, rowIdx, posIdx, -posW[dir])
			if hasUnknown {
				addTo(B, fluxRow, posIdx, posW[dir])
			}
		}

		if scvf.faceType != Interior {
			continue
		}

		// Entries of the "negative" sub volume, flux continuity across the face
		negIdx := scvf.outsideLocalScv
		negScv := &iv.localScvs[negIdx]
		negW := ws.neg[rowIdx]
		for dir := 0; dir < iv.dim; dir++ {
			cur := negScv.localScvfIndices[dir]
			if iv.localScvfs[cur].faceType.HasUnknown() {
				addTo(A, fluxRow, iv.fluxFacePos[cur], -negW[dir])
			} else {
				addTo(B, fluxRow, numScvs+iv.dirichletFacePos[cur], negW[dir])
			}
			addTo(B, fluxRow, negIdx, -negW[dir])
		}
	}
	return A, B, C, D
}

// assemblePureDirichletSystem builds T when every face has a known potential
func (iv *InteractionVolume) assemblePureDirichletSystem(ws *omegaSet) *mat.Dense {
	var (
		numScvs       = len(iv.localScvs)
		numFaces      = len(iv.localScvfs)
		numPotentials = len(iv.volVarsStencil)
		T             = mat.NewDense(numFaces, numPotentials, nil)
	)
	for rowIdx := range iv.localScvfs {
		posIdx := iv.localScvfs[rowIdx].insideLocalScv
		posScv := &iv.localScvs[posIdx]
		posW := ws.pos[rowIdx]
		for dir := 0; dir < iv.dim; dir++ {
			col := numScvs + iv.dirichletFacePos[posScv.localScvfIndices[dir]]
			addTo(T, rowIdx, col, posW[dir])
			addTo(T, rowIdx, posIdx, -posW[dir])
		}
	}
	return T
}

// AssembleNeumannFluxes evaluates the Neumann boundary fluxes of equation
// eqIdx, converted to potential equivalents with upwind (1 if nil).
// It does nothing for interaction volumes away from the boundary.
func (iv *InteractionVolume) AssembleNeumannFluxes(upwind UpwindFunc, eqIdx int) error {
	if !iv.onBoundary {
		return nil
	}
	for fluxFaceIdx, localScvfIdx := range iv.fluxFaceIndexSet {
		localScvf := &iv.localScvfs[localScvfIdx]
		if localScvf.faceType != Neumann {
			continue
		}
		if iv.problem == nil {
			return fmt.Errorf("neumann face %d needs a problem", localScvfIdx)
		}
		scvf := iv.geometry.Scvf(localScvf.insideGlobalScvf)
		neumannFlux := iv.problem.Neumann(scvf, eqIdx) * scvf.Area

		// Recover -k*grad(u)
		if upwind != nil {
			factor := upwind(iv.problem.VolumeVariables(scvf.InsideScv))
			if factor == 0 {
				return fmt.Errorf("zero upwind factor at scvf %d", scvf.Index)
			}
			neumannFlux /= factor
		}
		iv.neumannFluxes[fluxFaceIdx] = neumannFlux
	}
	return nil
}

// GetLocalIndexPair finds the local face for a global sub control volume face
func (iv *InteractionVolume) GetLocalIndexPair(globalScvf int) (LocalIndexPair, error) {
	for localIdx := range iv.localScvfs {
		scvf := &iv.localScvfs[localIdx]
		if scvf.insideGlobalScvf == globalScvf {
			return LocalIndexPair{Index: localIdx}, nil
		}
		if !scvf.Boundary() && scvf.outsideGlobalScvf == globalScvf {
			return LocalIndexPair{Index: localIdx, Flipped: true}, nil
		}
	}
	return LocalIndexPair{}, fmt.Errorf("%w: scvf %d", ErrFaceNotFound, globalScvf)
}

func (iv *InteractionVolume) checkPair(pair LocalIndexPair) error {
	if !iv.solved {
		return ErrNotSolved
	}
	if pair.Index < 0 || pair.Index >= len(iv.localScvfs) {
		return fmt.Errorf("%w: local index %d", ErrFaceNotFound, pair.Index)
	}
	return nil
}

// GetTransmissibilities returns the transmissibility row of a face, matching
// VolVarsStencil, negated when seen from the outside
func (iv *InteractionVolume) GetTransmissibilities(pair LocalIndexPair) ([]float64, error) {
	if err := iv.checkPair(pair); err != nil {
		return nil, err
	}
	tij := mat.Row(nil, pair.Index, iv.T)
	if pair.Flipped {
		floats.Scale(-1, tij)
	}
	return tij, nil
}

// GetNeumannFlux returns the contribution of the Neumann boundary fluxes to
// the flux across a face. It is exactly zero away from the boundary and when
// no face carries an unknown.
func (iv *InteractionVolume) GetNeumannFlux(pair LocalIndexPair) (float64, error) {
	if !iv.onBoundary || len(iv.fluxFaceIndexSet) == 0 {
		return 0, nil
	}
	if err := iv.checkPair(pair); err != nil {
		return 0, err
	}
	flux := floats.Dot(iv.CAinv.RawRowView(pair.Index), iv.neumannFluxes)
	if pair.Flipped {
		return -flux, nil
	}
	return flux, nil
}

func (iv *InteractionVolume) Solved() bool { return iv.solved }

func (iv *InteractionVolume) OnBoundary() bool { return iv.onBoundary }

// VolVarsStencil returns the dofs the face fluxes depend on. The slice is
// shared and must not be modified.
func (iv *InteractionVolume) VolVarsStencil() []int { return iv.volVarsStencil }

// VolVarsPositions returns where the stencil values live, cell centers then
// Dirichlet integration points
func (iv *InteractionVolume) VolVarsPositions() []r3.Vec { return iv.volVarsPositions }

// GlobalScvfs returns every global face whose flux this volume provides
func (iv *InteractionVolume) GlobalScvfs() []int { return iv.globalScvfIndices }

func (iv *InteractionVolume) NumFaces() int { return len(iv.localScvfs) }

func (iv *InteractionVolume) NumFluxFaces() int { return len(iv.fluxFaceIndexSet) }

func (iv *InteractionVolume) LocalScvs() []LocalScv { return iv.localScvs }

func (iv *InteractionVolume) LocalScvfs() []LocalScvf { return iv.localScvfs }

// Transmissibilities returns T, nil before the first solve
func (iv *InteractionVolume) Transmissibilities() mat.Matrix {
	if iv.T == nil {
		return nil
	}
	return iv.T
}
