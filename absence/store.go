/*
store.go - Persistence interface for employees and absence entries

PURPOSE:
  Defines the boundary between the tracker's logic and the database.
  Implementations own all persisted state; nothing above them caches.

COLLECTIONS:
  employees: keyed by id, looked up by active flag
  entries:   keyed by id, looked up by employee, by date and by the
             unique composite (employee, date)

UNIQUENESS:
  Implementations MUST enforce one entry per slot themselves. PutEntry fails
  with ConflictError instead of creating a second record; UpsertEntryBySlot
  resolves the conflict atomically by replacing the slot's record and keeping
  its id; ReplaceSlot does the same but keeps the id of the written value.

DELETES:
  DeleteEmployee and DeleteEntry are delete-if-exists. Deleting an employee
  never touches its entries.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable SQLite store
  - absence/store/memory.go: In-memory store for tests and ephemeral runs
  - absence/store/unavailable.go: Placeholder when the medium cannot open

SEE ALSO:
  - query.go: Month/employee derivations on top of RecordStore
  - controller.go: The only writer of entries
*/
package absence

import "context"

// =============================================================================
// RECORD STORE
// =============================================================================

type RecordStore interface {
	// ListEmployees returns all employees, unordered.
	ListEmployees(ctx context.Context) ([]Employee, error)

	// ListEmployeesByActive returns employees whose active flag matches.
	ListEmployeesByActive(ctx context.Context, active bool) ([]Employee, error)

	// PutEmployee inserts or replaces by id.
	PutEmployee(ctx context.Context, e Employee) error

	// DeleteEmployee removes the employee record only.
	DeleteEmployee(ctx context.Context, id EmployeeID) error

	// QueryEntriesByDateRange returns entries with from <= date <= to.
	QueryEntriesByDateRange(ctx context.Context, from, to Date) ([]Entry, error)

	// ListEntriesByEmployee returns every entry referencing the employee.
	ListEntriesByEmployee(ctx context.Context, employeeID EmployeeID) ([]Entry, error)

	// FindEntryByEmployeeAndDate is a point lookup on the slot.
	// Returns (nil, nil) when the slot is empty.
	FindEntryByEmployeeAndDate(ctx context.Context, employeeID EmployeeID, date Date) (*Entry, error)

	// PutEntry inserts or replaces by id. Returns ConflictError if another
	// record already occupies the entry's slot.
	PutEntry(ctx context.Context, e Entry) error

	// UpsertEntryBySlot writes e into its slot, reusing the id of the record
	// already there. Returns the stored value.
	UpsertEntryBySlot(ctx context.Context, e Entry) (Entry, error)

	// ReplaceSlot writes e into its slot with e's own id, removing any other
	// record holding that slot. Both happen or neither does.
	ReplaceSlot(ctx context.Context, e Entry) error

	// DeleteEntry removes an entry by id.
	DeleteEntry(ctx context.Context, id EntryID) error

	// ExportAll returns a snapshot of both collections.
	ExportAll(ctx context.Context) (BackupData, error)

	// ClearAll empties both collections.
	ClearAll(ctx context.Context) error

	// ImportAll replaces all state with the snapshot. Either everything is
	// loaded or the previous state is kept.
	ImportAll(ctx context.Context, data BackupData) error
}
