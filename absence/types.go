/*
types.go - Core data model for the absence tracker

PURPOSE:
  Defines the two persisted collections (Employee, Entry), the closed
  enumerations they use (Category, Duration) and the backup snapshot format.

SLOT:
  The addressable unit (EmployeeID, Date). At most one Entry exists per slot.
  CategoryNone is never stored: an empty slot IS the "none" state.

JSON:
  Field names follow the backup format ({employees, entries, meta}) so that
  exported files can be re-imported by any version of the tracker.

SEE ALSO:
  - date.go: Date type and month arithmetic
  - store.go: RecordStore interface
  - controller.go: The single write path for entries
*/
package absence

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type EntryID string

// =============================================================================
// CATEGORY - What kind of absence
// =============================================================================

type Category string

const (
	CategoryNone     Category = "NONE"
	CategoryFree     Category = "FREE"
	CategoryVacation Category = "VACATION"
	CategorySick     Category = "SICK"
)

// Categories lists the storable categories in report order.
var Categories = []Category{CategoryFree, CategoryVacation, CategorySick}

func (c Category) Valid() bool {
	switch c {
	case CategoryNone, CategoryFree, CategoryVacation, CategorySick:
		return true
	}
	return false
}

// Storable reports whether an entry may carry this category.
func (c Category) Storable() bool { return c.Valid() && c != CategoryNone }

// =============================================================================
// DURATION - Full day or one half
// =============================================================================

type Duration string

const (
	DurationFull   Duration = "FULL"
	DurationHalfAM Duration = "HALF_AM"
	DurationHalfPM Duration = "HALF_PM"
)

var (
	oneDay  = decimal.NewFromInt(1)
	halfDay = decimal.NewFromFloat(0.5)
)

func (d Duration) Valid() bool {
	switch d {
	case DurationFull, DurationHalfAM, DurationHalfPM:
		return true
	}
	return false
}

// Days is the day count this duration contributes to a tally.
func (d Duration) Days() decimal.Decimal {
	if d == DurationFull {
		return oneDay
	}
	return halfDay
}

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID        EmployeeID `json:"id"`
	Name      string     `json:"name"`
	Active    bool       `json:"active"`
	SortOrder int        `json:"sortOrder"`
}

// =============================================================================
// ENTRY - One absence in one slot
// =============================================================================

type Entry struct {
	ID         EntryID    `json:"id"`
	EmployeeID EmployeeID `json:"employeeId"`
	Date       Date       `json:"date"`
	Category   Category   `json:"category"`
	Duration   Duration   `json:"duration"`
	Note       string     `json:"note,omitempty"`
	UpdatedAt  int64      `json:"updatedAt"` // epoch milliseconds
}

// Slot identifies the (employee, date) cell an entry occupies.
type Slot struct {
	EmployeeID EmployeeID
	Date       Date
}

func (e Entry) Slot() Slot { return Slot{EmployeeID: e.EmployeeID, Date: e.Date} }

func cloneEntry(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// =============================================================================
// BACKUP SNAPSHOT
// =============================================================================

// BackupVersion tags every exported snapshot.
const BackupVersion = "1.0"

type BackupMeta struct {
	Version    string `json:"version"`
	ExportedAt int64  `json:"exportedAt"` // epoch milliseconds
}

// BackupData is a point-in-time copy of both collections.
// Import and export are all-or-nothing.
type BackupData struct {
	Employees []Employee `json:"employees"`
	Entries   []Entry    `json:"entries"`
	Meta      BackupMeta `json:"meta"`
}

// EpochMillis converts a wall-clock time to the timestamp format used by
// Entry.UpdatedAt and BackupMeta.ExportedAt.
func EpochMillis(t time.Time) int64 { return t.UnixMilli() }
