package absence

import (
	"fmt"
	"strings"
)

// ValidateEmployee checks the shape of an employee record.
func ValidateEmployee(e Employee) error {
	if strings.TrimSpace(string(e.ID)) == "" {
		return &ValidationError{Field: "employee.id", Message: "required"}
	}
	if strings.TrimSpace(e.Name) == "" {
		return &ValidationError{Field: "employee.name", Message: "required"}
	}
	return nil
}

// ValidateEntry checks the shape of an entry about to be stored.
// CategoryNone is rejected: an empty slot is represented by no record.
func ValidateEntry(e Entry) error {
	if strings.TrimSpace(string(e.ID)) == "" {
		return &ValidationError{Field: "entry.id", Message: "required"}
	}
	if err := validateSlot(e.EmployeeID, e.Date); err != nil {
		return err
	}
	if !e.Category.Storable() {
		return &ValidationError{Field: "entry.category", Message: fmt.Sprintf("must be one of FREE, VACATION, SICK, got %q", e.Category)}
	}
	if !e.Duration.Valid() {
		return &ValidationError{Field: "entry.duration", Message: fmt.Sprintf("must be one of FULL, HALF_AM, HALF_PM, got %q", e.Duration)}
	}
	return nil
}

// ValidateEdit checks a controller edit. Duration is ignored for NONE.
func ValidateEdit(in EditInput) error {
	if err := validateSlot(in.EmployeeID, in.Date); err != nil {
		return err
	}
	if !in.Category.Valid() {
		return &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", in.Category)}
	}
	if in.Category != CategoryNone && !in.Duration.Valid() {
		return &ValidationError{Field: "duration", Message: fmt.Sprintf("unknown duration %q", in.Duration)}
	}
	return nil
}

// ValidateBackup checks a whole snapshot before anything is cleared, so an
// import is never partially applied.
func ValidateBackup(b BackupData) error {
	if strings.TrimSpace(b.Meta.Version) == "" {
		return &ValidationError{Field: "meta.version", Message: "required"}
	}

	employeeIDs := make(map[EmployeeID]bool, len(b.Employees))
	for i, e := range b.Employees {
		if err := ValidateEmployee(e); err != nil {
			return fmt.Errorf("employees[%d]: %w", i, err)
		}
		if employeeIDs[e.ID] {
			return &ValidationError{Field: fmt.Sprintf("employees[%d].id", i), Message: "duplicate id " + quote(string(e.ID))}
		}
		employeeIDs[e.ID] = true
	}

	entryIDs := make(map[EntryID]bool, len(b.Entries))
	slots := make(map[Slot]EntryID, len(b.Entries))
	for i, e := range b.Entries {
		if err := ValidateEntry(e); err != nil {
			return fmt.Errorf("entries[%d]: %w", i, err)
		}
		if entryIDs[e.ID] {
			return &ValidationError{Field: fmt.Sprintf("entries[%d].id", i), Message: "duplicate id " + quote(string(e.ID))}
		}
		entryIDs[e.ID] = true
		if existing, ok := slots[e.Slot()]; ok {
			return &ConflictError{EmployeeID: e.EmployeeID, Date: e.Date, ExistingID: existing}
		}
		slots[e.Slot()] = e.ID
	}
	return nil
}

func validateSlot(employeeID EmployeeID, date Date) error {
	if strings.TrimSpace(string(employeeID)) == "" {
		return &ValidationError{Field: "employeeId", Message: "required"}
	}
	if _, err := ParseDate(string(date)); err != nil {
		return err
	}
	return nil
}
