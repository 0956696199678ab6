package mpfa

import "fmt"

// ScvSeed is the topology of one sub control volume inside an interaction volume
type ScvSeed struct {
	GlobalIndex int
	// LocalScvfIndices[dir] is the local face spanning local coordinate direction dir
	LocalScvfIndices []int
}

// ScvfSeed is the topology of one face inside an interaction volume. It is
// seen from the inside sub control volume; the outside fields are -1 on the
// domain boundary.
type ScvfSeed struct {
	FaceType FaceType

	InsideLocalScv  int
	OutsideLocalScv int

	InsideGlobalScvf  int
	OutsideGlobalScvf int
}

// Boundary reports whether the face has no outside sub control volume
func (s ScvfSeed) Boundary() bool {
	return s.FaceType != Interior
}

// Seed is the topology of one interaction volume. It is built once by a
// connectivity builder and reused as long as the mesh topology is unchanged.
// Its ordering defines the local numbering used by the interaction volume and
// by every consumer of VolVarsStencil.
type Seed struct {
	ScvSeeds  []ScvSeed
	ScvfSeeds []ScvfSeed
	Boundary  bool
}

// OnBoundary reports whether the interaction volume touches the domain boundary
func (s *Seed) OnBoundary() bool { return s.Boundary }

// GlobalScvIndices returns the global sub control volume indices in local order
func (s *Seed) GlobalScvIndices() []int {
	idx := make([]int, len(s.ScvSeeds))
	for i, scv := range s.ScvSeeds {
		idx[i] = scv.GlobalIndex
	}
	return idx
}

// GlobalScvfIndices returns every global face covered by the seed: for each
// local face the inside index followed by the outside one, if any
func (s *Seed) GlobalScvfIndices() []int {
	idx := make([]int, 0, 2*len(s.ScvfSeeds))
	for _, scvf := range s.ScvfSeeds {
		idx = append(idx, scvf.InsideGlobalScvf)
		if !scvf.Boundary() {
			idx = append(idx, scvf.OutsideGlobalScvf)
		}
	}
	return idx
}

// Validate checks the seed for a mesh of dimension dim
func (s *Seed) Validate(dim int) error {
	if len(s.ScvSeeds) == 0 {
		return ErrEmptySeed
	}
	numScvs := len(s.ScvSeeds)
	numScvfs := len(s.ScvfSeeds)
	if numScvfs == 0 {
		return fmt.Errorf("%w: no faces", ErrInvalidSeed)
	}

	hasBoundaryFace := false
	for i, scvf := range s.ScvfSeeds {
		if scvf.FaceType > Neumann {
			return fmt.Errorf("%w: face %d has unknown type %v", ErrInvalidSeed, i, scvf.FaceType)
		}
		if scvf.InsideLocalScv < 0 || scvf.InsideLocalScv >= numScvs {
			return fmt.Errorf("%w: face %d inside scv %d out of range", ErrInvalidSeed, i, scvf.InsideLocalScv)
		}
		if scvf.InsideGlobalScvf < 0 {
			return fmt.Errorf("%w: face %d has no inside global face", ErrInvalidSeed, i)
		}
		if scvf.Boundary() {
			hasBoundaryFace = true
			if scvf.OutsideLocalScv != -1 {
				return fmt.Errorf("%w: %v face %d has an outside scv", ErrInvalidSeed, scvf.FaceType, i)
			}
			continue
		}
		if scvf.OutsideLocalScv < 0 || scvf.OutsideLocalScv >= numScvs ||
			scvf.OutsideLocalScv == scvf.InsideLocalScv {
			return fmt.Errorf("%w: interior face %d outside scv %d invalid", ErrInvalidSeed, i, scvf.OutsideLocalScv)
		}
		if scvf.OutsideGlobalScvf < 0 {
			return fmt.Errorf("%w: interior face %d has no outside global face", ErrInvalidSeed, i)
		}
	}
	if hasBoundaryFace && !s.Boundary {
		return fmt.Errorf("%w: boundary faces in an interior seed", ErrInvalidSeed)
	}

	for i, scv := range s.ScvSeeds {
		if len(scv.LocalScvfIndices) != dim {
			return fmt.Errorf("%w: scv %d has %d local directions, need %d",
				ErrInvalidSeed, i, len(scv.LocalScvfIndices), dim)
		}
		for dir, f := range scv.LocalScvfIndices {
			if f < 0 || f >= numScvfs {
				return fmt.Errorf("%w: scv %d direction %d face %d out of range", ErrInvalidSeed, i, dir, f)
			}
			face := s.ScvfSeeds[f]
			if face.InsideLocalScv != i && face.OutsideLocalScv != i {
				return fmt.Errorf("%w: scv %d direction %d uses face %d it does not touch", ErrInvalidSeed, i, dir, f)
			}
		}
	}
	return nil
}
