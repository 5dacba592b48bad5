package absence

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultEmployeeNames seeds an empty roster.
var DefaultEmployeeNames = []string{"Anna", "Bernd", "Clara", "David", "Emilia", "Felix", "Greta", "Hannes"}

// Roster manages employee records. Removing an employee keeps its entries.
type Roster struct {
	Store RecordStore
	Log   logrus.FieldLogger
	NewID func() EmployeeID
}

func NewRoster(store RecordStore, log logrus.FieldLogger) *Roster {
	if log == nil {
		log = discardLogger()
	}
	return &Roster{
		Store: store,
		Log:   log,
		NewID: func() EmployeeID { return EmployeeID(uuid.NewString()) },
	}
}

// List returns all employees in display order.
func (r *Roster) List(ctx context.Context) ([]Employee, error) {
	return NewQuery(r.Store).SortedEmployees(ctx)
}

// Add creates an active employee at the end of the display order.
func (r *Roster) Add(ctx context.Context, name string) (Employee, error) {
	employees, err := r.Store.ListEmployees(ctx)
	if err != nil {
		return Employee{}, err
	}

	next := 0
	for _, e := range employees {
		if e.SortOrder >= next {
			next = e.SortOrder + 1
		}
	}

	emp := Employee{
		ID:        r.NewID(),
		Name:      strings.TrimSpace(name),
		Active:    true,
		SortOrder: next,
	}
	if err := ValidateEmployee(emp); err != nil {
		return Employee{}, err
	}
	if err := r.Store.PutEmployee(ctx, emp); err != nil {
		return Employee{}, err
	}

	r.Log.WithFields(logrus.Fields{"employee_id": emp.ID, "name": emp.Name}).Info("employee added")
	return emp, nil
}

// Get returns one employee or a NotFoundError.
func (r *Roster) Get(ctx context.Context, id EmployeeID) (Employee, error) {
	employees, err := r.Store.ListEmployees(ctx)
	if err != nil {
		return Employee{}, err
	}
	for _, e := range employees {
		if e.ID == id {
			return e, nil
		}
	}
	return Employee{}, &NotFoundError{Kind: "employee", ID: string(id)}
}

// Update replaces name, active flag and sort order of an existing employee.
func (r *Roster) Update(ctx context.Context, emp Employee) (Employee, error) {
	emp.Name = strings.TrimSpace(emp.Name)
	if err := ValidateEmployee(emp); err != nil {
		return Employee{}, err
	}
	if _, err := r.Get(ctx, emp.ID); err != nil {
		return Employee{}, err
	}

	if err := r.Store.PutEmployee(ctx, emp); err != nil {
		return Employee{}, err
	}
	return emp, nil
}

// Remove deletes the employee record. Entries referencing it stay behind as
// history and are skipped by reports.
func (r *Roster) Remove(ctx context.Context, id EmployeeID) error {
	if err := r.Store.DeleteEmployee(ctx, id); err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	r.Log.WithField("employee_id", id).Info("employee removed")
	return nil
}

// SeedIfEmpty fills an empty roster with DefaultEmployeeNames and returns
// the number of employees created.
func (r *Roster) SeedIfEmpty(ctx context.Context) (int, error) {
	employees, err := r.Store.ListEmployees(ctx)
	if err != nil {
		return 0, err
	}
	if len(employees) > 0 {
		return 0, nil
	}

	for i, name := range DefaultEmployeeNames {
		emp := Employee{ID: r.NewID(), Name: name, Active: true, SortOrder: i}
		if err := r.Store.PutEmployee(ctx, emp); err != nil {
			return i, fmt.Errorf("failed to seed %s: %w", name, err)
		}
	}

	r.Log.WithField("count", len(DefaultEmployeeNames)).Info("seeded default employees")
	return len(DefaultEmployeeNames), nil
}
