package absence

import (
	"context"
	"sort"
	"time"
)

// =============================================================================
// QUERY LAYER - Read-only derivations over a RecordStore
// =============================================================================

// Query derives the views the UI and the report need. It never writes.
type Query struct {
	Store RecordStore
}

func NewQuery(store RecordStore) *Query {
	return &Query{Store: store}
}

// EntriesForMonth returns every entry dated within the month, using the real
// length of that month.
func (q *Query) EntriesForMonth(ctx context.Context, year int, month time.Month) ([]Entry, error) {
	from, to, err := MonthBounds(year, month)
	if err != nil {
		return nil, err
	}
	return q.Store.QueryEntriesByDateRange(ctx, from, to)
}

// EntriesForDate returns the entries of a single day.
func (q *Query) EntriesForDate(ctx context.Context, date Date) ([]Entry, error) {
	if _, err := ParseDate(string(date)); err != nil {
		return nil, err
	}
	return q.Store.QueryEntriesByDateRange(ctx, date, date)
}

// Entry returns the slot's entry, or nil when the slot is empty.
func (q *Query) Entry(ctx context.Context, employeeID EmployeeID, date Date) (*Entry, error) {
	if err := validateSlot(employeeID, date); err != nil {
		return nil, err
	}
	return q.Store.FindEntryByEmployeeAndDate(ctx, employeeID, date)
}

// SortedEmployees returns all employees in display order.
func (q *Query) SortedEmployees(ctx context.Context) ([]Employee, error) {
	employees, err := q.Store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	SortEmployees(employees)
	return employees, nil
}

// ActiveEmployees returns the employees that appear in reports.
func (q *Query) ActiveEmployees(ctx context.Context) ([]Employee, error) {
	employees, err := q.Store.ListEmployeesByActive(ctx, true)
	if err != nil {
		return nil, err
	}
	SortEmployees(employees)
	return employees, nil
}

// EntriesForEmployee filters entries to one employee, sorted by date.
func EntriesForEmployee(employeeID EmployeeID, entries []Entry) []Entry {
	result := make([]Entry, 0)
	for _, e := range entries {
		if e.EmployeeID == employeeID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date < result[j].Date
	})
	return result
}

// SortEmployees orders by SortOrder, ties broken by id.
func SortEmployees(employees []Employee) {
	sort.SliceStable(employees, func(i, j int) bool {
		if employees[i].SortOrder != employees[j].SortOrder {
			return employees[i].SortOrder < employees[j].SortOrder
		}
		return employees[i].ID < employees[j].ID
	})
}
