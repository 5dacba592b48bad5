// Package store provides in-process RecordStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/absence-tracker/absence"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps both collections in maps. Entries are indexed by slot
// (unique) and by employee; date ranges and the active flag are answered by
// scanning.
type Memory struct {
	mu         sync.RWMutex
	employees  map[absence.EmployeeID]absence.Employee
	entries    map[absence.EntryID]absence.Entry
	bySlot     map[absence.Slot]absence.EntryID
	byEmployee map[absence.EmployeeID]map[absence.EntryID]bool
	now        func() time.Time
}

var _ absence.RecordStore = (*Memory)(nil)

func NewMemory() *Memory {
	m := &Memory{now: time.Now}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.employees = make(map[absence.EmployeeID]absence.Employee)
	m.entries = make(map[absence.EntryID]absence.Entry)
	m.bySlot = make(map[absence.Slot]absence.EntryID)
	m.byEmployee = make(map[absence.EmployeeID]map[absence.EntryID]bool)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) ListEmployees(_ context.Context) ([]absence.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]absence.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		result = append(result, e)
	}
	return result, nil
}

func (m *Memory) ListEmployeesByActive(_ context.Context, active bool) ([]absence.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]absence.Employee, 0)
	for _, e := range m.employees {
		if e.Active == active {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) PutEmployee(_ context.Context, e absence.Employee) error {
	if err := absence.ValidateEmployee(e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) DeleteEmployee(_ context.Context, id absence.EmployeeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.employees, id)
	return nil
}

// =============================================================================
// ENTRIES
// =============================================================================

func (m *Memory) QueryEntriesByDateRange(_ context.Context, from, to absence.Date) ([]absence.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]absence.Entry, 0)
	for _, e := range m.entries {
		if e.Date.InRange(from, to) {
			result = append(result, e)
		}
	}
	sortEntries(result)
	return result, nil
}

func (m *Memory) ListEntriesByEmployee(_ context.Context, employeeID absence.EmployeeID) ([]absence.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]absence.Entry, 0, len(m.byEmployee[employeeID]))
	for id := range m.byEmployee[employeeID] {
		result = append(result, m.entries[id])
	}
	sortEntries(result)
	return result, nil
}

func (m *Memory) FindEntryByEmployeeAndDate(_ context.Context, employeeID absence.EmployeeID, date absence.Date) (*absence.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySlot[absence.Slot{EmployeeID: employeeID, Date: date}]
	if !ok {
		return nil, nil
	}
	e := m.entries[id]
	return &e, nil
}

func (m *Memory) PutEntry(_ context.Context, e absence.Entry) error {
	if err := absence.ValidateEntry(e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(e)
}

func (m *Memory) UpsertEntryBySlot(_ context.Context, e absence.Entry) (absence.Entry, error) {
	if err := absence.ValidateEntry(e); err != nil {
		return absence.Entry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.bySlot[e.Slot()]; ok {
		e.ID = existing
	}
	if err := m.putLocked(e); err != nil {
		return absence.Entry{}, err
	}
	return e, nil
}

// ReplaceSlot evicts any other holder of e's slot and writes e under one lock.
func (m *Memory) ReplaceSlot(_ context.Context, e absence.Entry) error {
	if err := absence.ValidateEntry(e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if holder, ok := m.bySlot[e.Slot()]; ok && holder != e.ID {
		m.unindexLocked(m.entries[holder])
		delete(m.entries, holder)
	}
	return m.putLocked(e)
}

// putLocked writes by id while keeping the slot index unique.
func (m *Memory) putLocked(e absence.Entry) error {
	if holder, ok := m.bySlot[e.Slot()]; ok && holder != e.ID {
		return &absence.ConflictError{EmployeeID: e.EmployeeID, Date: e.Date, ExistingID: holder}
	}
	if old, ok := m.entries[e.ID]; ok {
		m.unindexLocked(old)
	}
	m.entries[e.ID] = e
	m.bySlot[e.Slot()] = e.ID
	if m.byEmployee[e.EmployeeID] == nil {
		m.byEmployee[e.EmployeeID] = make(map[absence.EntryID]bool)
	}
	m.byEmployee[e.EmployeeID][e.ID] = true
	return nil
}

func (m *Memory) unindexLocked(e absence.Entry) {
	delete(m.bySlot, e.Slot())
	delete(m.byEmployee[e.EmployeeID], e.ID)
	if len(m.byEmployee[e.EmployeeID]) == 0 {
		delete(m.byEmployee, e.EmployeeID)
	}
}

func (m *Memory) DeleteEntry(_ context.Context, id absence.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok {
		m.unindexLocked(e)
		delete(m.entries, id)
	}
	return nil
}

// =============================================================================
// BULK OPERATIONS
// =============================================================================

func (m *Memory) ExportAll(_ context.Context) (absence.BackupData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data := absence.BackupData{
		Employees: make([]absence.Employee, 0, len(m.employees)),
		Entries:   make([]absence.Entry, 0, len(m.entries)),
		Meta: absence.BackupMeta{
			Version:    absence.BackupVersion,
			ExportedAt: absence.EpochMillis(m.now()),
		},
	}
	for _, e := range m.employees {
		data.Employees = append(data.Employees, e)
	}
	absence.SortEmployees(data.Employees)
	for _, e := range m.entries {
		data.Entries = append(data.Entries, e)
	}
	sortEntries(data.Entries)
	return data, nil
}

func (m *Memory) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

// ImportAll loads into fresh maps and swaps them in only on success.
func (m *Memory) ImportAll(_ context.Context, data absence.BackupData) error {
	if err := absence.ValidateBackup(data); err != nil {
		return err
	}

	staged := &Memory{now: m.now}
	staged.reset()
	for _, e := range data.Employees {
		staged.employees[e.ID] = e
	}
	for _, e := range data.Entries {
		if err := staged.putLocked(e); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = staged.employees
	m.entries = staged.entries
	m.bySlot = staged.bySlot
	m.byEmployee = staged.byEmployee
	return nil
}

func sortEntries(entries []absence.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date < entries[j].Date
		}
		return entries[i].EmployeeID < entries[j].EmployeeID
	})
}
