package models

import "errors"

// Sentinel errors for the versioning core.
var (
	// ErrEncoding indicates content that cannot be canonically serialized.
	// Fatal to the single operation, never to the system.
	ErrEncoding = errors.New("content not canonically serializable")

	// ErrPersistence indicates the atomic version+ledger write did not
	// complete. Callers must treat the mutation as not having happened.
	ErrPersistence = errors.New("persistence failed")

	// ErrIncompleteResolution indicates a manual merge was missing a decision
	// for at least one conflicted field. Rejected before any write.
	ErrIncompleteResolution = errors.New("manual resolution missing for conflicted field")

	// ErrUnknownStrategy indicates an unrecognized merge strategy name.
	ErrUnknownStrategy = errors.New("unknown merge strategy")

	// ErrVerificationRunning indicates a verification run was rejected
	// because another run is already in flight.
	ErrVerificationRunning = errors.New("verification already running")

	// ErrEntryNotFound indicates a ledger entry lookup for an id that was
	// never assigned.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrInvalidRange indicates a verification range with start < 1 or
	// end < start.
	ErrInvalidRange = errors.New("invalid verification range")
)
