package budget

import "errors"

var (
	// ErrValidation covers malformed or empty allocation input and
	// non-positive spend amounts. Blocks the write.
	ErrValidation = errors.New("invalid budget input")

	// ErrDuplicate is returned when an allocation record already exists
	// for the (user, transaction) pair. The caller must update instead.
	ErrDuplicate = errors.New("allocation already exists for transaction")

	// ErrNotFound is returned when a referenced record is absent.
	ErrNotFound = errors.New("allocation record not found")

	// ErrNoMatchingCategory reports that a spend touched no allocation
	// record. Informational: the category simply is not budgeted yet, and
	// callers recording an expense must not fail on it.
	ErrNoMatchingCategory = errors.New("no allocation record contains category")

	// ErrStorage wraps persistence failures so callers can tell a missing
	// record from a write that never landed.
	ErrStorage = errors.New("budget storage failure")
)
