package mpfa

import "errors"

// Configuration errors indicate a broken mesh or connectivity builder.
var (
	ErrEmptySeed       = errors.New("mpfa: seed has no sub control volumes")
	ErrInvalidSeed     = errors.New("mpfa: inconsistent interaction volume seed")
	ErrInvalidGeometry = errors.New("mpfa: degenerate sub control volume geometry")
	ErrInvalidTensor   = errors.New("mpfa: tensor has wrong dimensions")
	ErrSingularSystem  = errors.New("mpfa: singular local system")
)

// Query errors indicate a caller bug.
var (
	ErrNotSolved    = errors.New("mpfa: local system not solved")
	ErrFaceNotFound = errors.New("mpfa: face not part of interaction volume")
)
