package scene

import "errors"

var (
	// ErrInvalidField is returned by a component's validate/applyDelta
	// when a field fails a local shape check (enum, "exactly one of",
	// finite-float, non-negative length, ...).
	ErrInvalidField = errors.New("scene: invalid field")

	// ErrDanglingReference is returned when a component references an ID
	// that the registry does not know to be alive.
	ErrDanglingReference = errors.New("scene: dangling reference")

	// ErrNotFound is returned when an operation names an ID the registry
	// has no live component for.
	ErrNotFound = errors.New("scene: component not found")

	// ErrInUse is returned by Delete when other live components still
	// reference the target.
	ErrInUse = errors.New("scene: component in use")

	// ErrWrongKind is returned when an ID's kind doesn't match the table
	// an operation is addressing.
	ErrWrongKind = errors.New("scene: wrong kind")

	// ErrNoDelegate is returned when a Table capability is invoked and no
	// delegate (or no delegate supporting that capability) is attached.
	ErrNoDelegate = errors.New("scene: no delegate")
)
