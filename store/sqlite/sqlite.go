/*
Package sqlite provides a SQLite-backed implementation of absence.RecordStore.

PURPOSE:
  Durable storage for employees and absence entries in a single local file.

KEY TABLES:
  employees: Employee records (idx_employees_active for the by-active lookup)
  entries:   Absence entries

INDEXES:
  - idx_entries_employee:      by-employee lookup
  - idx_entries_date:          month/day range queries (hot path)
  - idx_entries_employee_date: UNIQUE, enforces one entry per slot

UNIQUENESS:
  The store does not trust callers. PutEntry surfaces a violation of
  idx_entries_employee_date as absence.ConflictError and writes nothing.
  UpsertEntryBySlot looks up the slot and writes inside one transaction,
  reusing the id of the record already there. ReplaceSlot evicts the holder
  and writes the given record in one transaction.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which is all
  SQLite supports for writes anyway.

MIGRATION:
  Schema is applied on New() by goose from the embedded migrations/ FS.

USAGE:
  store, err := sqlite.New("./absence.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - absence/store.go: Interface definition
  - absence/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/absence-tracker/absence"
	"github.com/warp/absence-tracker/store/sqlite/migrations"
)

// Store implements absence.RecordStore using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
	log logrus.FieldLogger
}

var _ absence.RecordStore = (*Store)(nil)

type Option func(*Store)

// WithLogger routes migration output through the given logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock sets the clock used for export timestamps and created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens (or creates) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per-connection and SQLite
	// serializes writers regardless.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// gooseMu guards goose's package-level configuration.
var gooseMu sync.Mutex

func (s *Store) migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	if s.log != nil {
		goose.SetLogger(s.log)
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

const employeeColumns = "id, name, active, sort_order"

// ListEmployees returns all employees.
func (s *Store) ListEmployees(ctx context.Context) ([]absence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryEmployees(ctx, s.db, "SELECT "+employeeColumns+" FROM employees")
}

// ListEmployeesByActive returns employees by active flag.
func (s *Store) ListEmployeesByActive(ctx context.Context, active bool) ([]absence.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryEmployees(ctx, s.db, "SELECT "+employeeColumns+" FROM employees WHERE active = ?", active)
}

// PutEmployee inserts or replaces an employee.
func (s *Store) PutEmployee(ctx context.Context, e absence.Employee) error {
	if err := absence.ValidateEmployee(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.putEmployee(ctx, s.db, e)
}

func (s *Store) putEmployee(ctx context.Context, db dbtx, e absence.Employee) error {
	query := `
		INSERT INTO employees (id, name, active, sort_order, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			sort_order = excluded.sort_order
	`

	_, err := db.ExecContext(ctx, query,
		e.ID, e.Name, e.Active, e.SortOrder,
		s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// DeleteEmployee removes an employee. Its entries are kept.
func (s *Store) DeleteEmployee(ctx context.Context, id absence.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
	return err
}

func queryEmployees(ctx context.Context, db dbtx, query string, args ...any) ([]absence.Employee, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	employees := make([]absence.Employee, 0)
	for rows.Next() {
		var e absence.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Active, &e.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// =============================================================================
// ENTRY STORE
// =============================================================================

const entryColumns = "id, employee_id, date, category, duration, note, updated_at"

// QueryEntriesByDateRange returns entries in [from, to]. Dates are stored as
// fixed-width text so string comparison is chronological.
func (s *Store) QueryEntriesByDateRange(ctx context.Context, from, to absence.Date) ([]absence.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, employee_id ASC
	`
	return queryEntries(ctx, s.db, query, from, to)
}

// ListEntriesByEmployee returns the entries of one employee by date.
func (s *Store) ListEntriesByEmployee(ctx context.Context, employeeID absence.EmployeeID) ([]absence.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE employee_id = ?
		ORDER BY date ASC
	`
	return queryEntries(ctx, s.db, query, employeeID)
}

// FindEntryByEmployeeAndDate looks up a slot. Returns (nil, nil) if empty.
func (s *Store) FindEntryByEmployeeAndDate(ctx context.Context, employeeID absence.EmployeeID, date absence.Date) (*absence.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return findBySlot(ctx, s.db, employeeID, date)
}

func findBySlot(ctx context.Context, db dbtx, employeeID absence.EmployeeID, date absence.Date) (*absence.Entry, error) {
	entries, err := queryEntries(ctx, db,
		"SELECT "+entryColumns+" FROM entries WHERE employee_id = ? AND date = ?",
		employeeID, date,
	)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// PutEntry inserts or replaces by id.
func (s *Store) PutEntry(ctx context.Context, e absence.Entry) error {
	if err := absence.ValidateEntry(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return putEntry(ctx, s.db, e)
}

// UpsertEntryBySlot writes e into its slot atomically, reusing the id of the
// record already there.
func (s *Store) UpsertEntryBySlot(ctx context.Context, e absence.Entry) (absence.Entry, error) {
	if err := absence.ValidateEntry(e); err != nil {
		return absence.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return absence.Entry{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := findBySlot(ctx, tx, e.EmployeeID, e.Date)
	if err != nil {
		return absence.Entry{}, err
	}
	if existing != nil {
		e.ID = existing.ID
	}
	if err := putEntry(ctx, tx, e); err != nil {
		return absence.Entry{}, err
	}

	if err := tx.Commit(); err != nil {
		return absence.Entry{}, fmt.Errorf("failed to commit entry: %w", err)
	}
	return e, nil
}

// ReplaceSlot evicts whatever else holds e's slot and writes e, in one
// transaction.
func (s *Store) ReplaceSlot(ctx context.Context, e absence.Entry) error {
	if err := absence.ValidateEntry(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM entries WHERE employee_id = ? AND date = ? AND id <> ?",
			e.EmployeeID, e.Date, e.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to clear slot: %w", err)
		}
		return putEntry(ctx, tx, e)
	})
}

func putEntry(ctx context.Context, db dbtx, e absence.Entry) error {
	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			date = excluded.date,
			category = excluded.category,
			duration = excluded.duration,
			note = excluded.note,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		e.ID, e.EmployeeID, e.Date, e.Category, e.Duration,
		nullString(e.Note), e.UpdatedAt,
	)
	if err != nil {
		if isSlotUniquenessError(err) {
			conflict := &absence.ConflictError{EmployeeID: e.EmployeeID, Date: e.Date}
			if holder, lookupErr := findBySlot(ctx, db, e.EmployeeID, e.Date); lookupErr == nil && holder != nil {
				conflict.ExistingID = holder.ID
			}
			return conflict
		}
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

// DeleteEntry removes an entry by id.
func (s *Store) DeleteEntry(ctx context.Context, id absence.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	return err
}

func queryEntries(ctx context.Context, db dbtx, query string, args ...any) ([]absence.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]absence.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (absence.Entry, error) {
	var (
		e    absence.Entry
		note sql.NullString
	)

	err := rows.Scan(&e.ID, &e.EmployeeID, &e.Date, &e.Category, &e.Duration, &note, &e.UpdatedAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}
	e.Note = note.String
	return e, nil
}

// =============================================================================
// BULK OPERATIONS
// =============================================================================

// ExportAll returns a snapshot of both tables.
func (s *Store) ExportAll(ctx context.Context) (absence.BackupData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees, err := queryEmployees(ctx, s.db,
		"SELECT "+employeeColumns+" FROM employees ORDER BY sort_order, id")
	if err != nil {
		return absence.BackupData{}, err
	}
	entries, err := queryEntries(ctx, s.db,
		"SELECT "+entryColumns+" FROM entries ORDER BY date, employee_id")
	if err != nil {
		return absence.BackupData{}, err
	}

	return absence.BackupData{
		Employees: employees,
		Entries:   entries,
		Meta: absence.BackupMeta{
			Version:    absence.BackupVersion,
			ExportedAt: absence.EpochMillis(s.now()),
		},
	}, nil
}

// ClearAll deletes every employee and entry.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, clearTables)
}

// ImportAll replaces both tables with the snapshot in one transaction.
func (s *Store) ImportAll(ctx context.Context, data absence.BackupData) error {
	if err := absence.ValidateBackup(data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := clearTables(ctx, tx); err != nil {
			return err
		}
		for _, e := range data.Employees {
			if err := s.putEmployee(ctx, tx, e); err != nil {
				return err
			}
		}
		for _, e := range data.Entries {
			if err := putEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func clearTables(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"entries", "employees"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isSlotUniquenessError reports a violation of idx_entries_employee_date.
// SQLite names the columns, not the index, in the message.
func isSlotUniquenessError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return false
	}
	return strings.Contains(sqliteErr.Error(), "entries.employee_id")
}
