package domain

import (
	"errors"
	"fmt"
)

// ErrContactNotFound is the sentinel matched by every ContactNotFoundError.
var ErrContactNotFound = errors.New("contact not found")

// ContactNotFoundError is returned when an id does not map to an occupied slot.
// Never-issued and deleted ids produce the same error.
type ContactNotFoundError struct {
	ID ID
}

func (e *ContactNotFoundError) Error() string {
	return fmt.Sprintf("contact %d not found", e.ID)
}

// Is makes errors.Is(err, ErrContactNotFound) succeed.
func (e *ContactNotFoundError) Is(target error) bool {
	return target == ErrContactNotFound
}

// IsNotFound reports whether err is (or wraps) a ContactNotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound)
}

// ErrCorruptSnapshot is returned when a loaded snapshot violates the registry invariants.
var ErrCorruptSnapshot = errors.New("corrupt registry snapshot")

// ErrStoreConflict is returned by a ContactStore when the persisted state no
// longer matches the caller's view, typically because another process wrote
// to the same store. Nothing is changed; reloading resolves it.
var ErrStoreConflict = errors.New("store changed by another writer")
