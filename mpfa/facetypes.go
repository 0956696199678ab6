package mpfa

import (
	"fmt"
	"strings"
)

// FaceType classifies a sub control volume face inside an interaction volume
type FaceType uint8

const (
	// Interior faces are shared by two sub control volumes and carry an unknown
	Interior FaceType = iota
	// Dirichlet faces have a known potential
	Dirichlet
	// Neumann faces have a known flux and carry an unknown potential
	Neumann
)

func (ft FaceType) String() string {
	switch ft {
	case Interior:
		return "interior"
	case Dirichlet:
		return "dirichlet"
	case Neumann:
		return "neumann"
	}
	return fmt.Sprintf("FaceType(%d)", uint8(ft))
}

// HasUnknown reports whether the face potential is solved for locally
func (ft FaceType) HasUnknown() bool {
	return ft != Dirichlet
}

// ParseFaceType converts a name (case insensitive) to a FaceType
func ParseFaceType(name string) (FaceType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "interior":
		return Interior, nil
	case "dirichlet":
		return Dirichlet, nil
	case "neumann":
		return Neumann, nil
	}
	return 0, fmt.Errorf("unknown face type %q", name)
}
