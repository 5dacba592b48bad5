/*
errors.go - Error taxonomy for the absence tracker

ERROR CATEGORIES:
  1. Validation  - malformed entity or query, raised before any write
  2. Conflict    - a write would put a second entry into an occupied slot
  3. Not found   - lookups through outer surfaces; store deletes never raise it
  4. Unavailable - the persistence medium could not be opened

USAGE:
  Every structured error unwraps to its sentinel:

    if errors.Is(err, absence.ErrConflict) {
        // controller bug: the edit was aborted, prior state is intact
    }

SEE ALSO:
  - validate.go: Produces ValidationError
  - store/sqlite/sqlite.go: Maps SQLite constraint failures to ConflictError
*/
package absence

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed entities: missing required
	// fields, dates outside the fixed calendar format, unknown enum values.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a write would create a second live entry
	// for an already occupied (employee, date) slot.
	ErrConflict = errors.New("slot already occupied")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable is returned by every operation of a store whose
	// medium could not be opened.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError names the occupied slot and the record already holding it.
type ConflictError struct {
	EmployeeID EmployeeID
	Date       Date
	ExistingID EntryID
}

func (e *ConflictError) Error() string {
	if e.ExistingID == "" {
		return fmt.Sprintf("slot %s/%s already occupied", e.EmployeeID, e.Date)
	}
	return fmt.Sprintf("slot %s/%s already occupied by entry %s", e.EmployeeID, e.Date, e.ExistingID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type NotFoundError struct {
	Kind string // "employee", "entry", "backup"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageUnavailableError keeps the reason the medium could not be opened.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	if e.Cause == nil {
		return ErrStorageUnavailable.Error()
	}
	return fmt.Sprintf("%s: %v", ErrStorageUnavailable, e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error { return ErrStorageUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsUnavailable(err error) bool { return errors.Is(err, ErrStorageUnavailable) }
