package store

import (
	"context"

	"github.com/warp/absence-tracker/absence"
)

// Unavailable stands in for a store whose medium could not be opened.
// It constructs successfully and every operation fails with the same
// StorageUnavailableError, so callers get an immediate answer instead of
// hanging on a medium that will never come up.
type Unavailable struct {
	err *absence.StorageUnavailableError
}

var _ absence.RecordStore = (*Unavailable)(nil)

func NewUnavailable(cause error) *Unavailable {
	return &Unavailable{err: &absence.StorageUnavailableError{Cause: cause}}
}

// Err returns the error every operation fails with.
func (u *Unavailable) Err() error { return u.err }

func (u *Unavailable) ListEmployees(context.Context) ([]absence.Employee, error) {
	return nil, u.err
}

func (u *Unavailable) ListEmployeesByActive(context.Context, bool) ([]absence.Employee, error) {
	return nil, u.err
}

func (u *Unavailable) PutEmployee(context.Context, absence.Employee) error { return u.err }

func (u *Unavailable) DeleteEmployee(context.Context, absence.EmployeeID) error { return u.err }

func (u *Unavailable) QueryEntriesByDateRange(context.Context, absence.Date, absence.Date) ([]absence.Entry, error) {
	return nil, u.err
}

func (u *Unavailable) ListEntriesByEmployee(context.Context, absence.EmployeeID) ([]absence.Entry, error) {
	return nil, u.err
}

func (u *Unavailable) FindEntryByEmployeeAndDate(context.Context, absence.EmployeeID, absence.Date) (*absence.Entry, error) {
	return nil, u.err
}

func (u *Unavailable) PutEntry(context.Context, absence.Entry) error { return u.err }

func (u *Unavailable) UpsertEntryBySlot(context.Context, absence.Entry) (absence.Entry, error) {
	return absence.Entry{}, u.err
}

func (u *Unavailable) ReplaceSlot(context.Context, absence.Entry) error { return u.err }

func (u *Unavailable) DeleteEntry(context.Context, absence.EntryID) error { return u.err }

func (u *Unavailable) ExportAll(context.Context) (absence.BackupData, error) {
	return absence.BackupData{}, u.err
}

func (u *Unavailable) ClearAll(context.Context) error { return u.err }

func (u *Unavailable) ImportAll(context.Context, absence.BackupData) error { return u.err }
