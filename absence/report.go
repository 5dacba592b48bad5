package absence

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TALLY - Day counts per category
// =============================================================================

// Tally has one field per storable category. FULL counts 1 day, each half 0.5.
type Tally struct {
	Free     decimal.Decimal `json:"free"`
	Vacation decimal.Decimal `json:"vacation"`
	Sick     decimal.Decimal `json:"sick"`
}

func (t *Tally) Add(e Entry) {
	days := e.Duration.Days()
	switch e.Category {
	case CategoryFree:
		t.Free = t.Free.Add(days)
	case CategoryVacation:
		t.Vacation = t.Vacation.Add(days)
	case CategorySick:
		t.Sick = t.Sick.Add(days)
	}
}

func (t Tally) Plus(o Tally) Tally {
	return Tally{
		Free:     t.Free.Add(o.Free),
		Vacation: t.Vacation.Add(o.Vacation),
		Sick:     t.Sick.Add(o.Sick),
	}
}

func (t Tally) Total() decimal.Decimal { return t.Free.Add(t.Vacation).Add(t.Sick) }

// Of returns the count for one category.
func (t Tally) Of(c Category) decimal.Decimal {
	switch c {
	case CategoryFree:
		return t.Free
	case CategoryVacation:
		return t.Vacation
	case CategorySick:
		return t.Sick
	}
	return decimal.Zero
}

// =============================================================================
// MONTHLY REPORT
// =============================================================================

type ReportLine struct {
	Date     Date            `json:"date"`
	Category Category        `json:"category"`
	Duration Duration        `json:"duration"`
	Days     decimal.Decimal `json:"days"`
	Note     string          `json:"note,omitempty"`
}

type EmployeeReport struct {
	Employee Employee     `json:"employee"`
	Lines    []ReportLine `json:"lines"`
	Tally    Tally        `json:"tally"`
}

type MonthlyReport struct {
	Year      int              `json:"year"`
	Month     time.Month       `json:"month"`
	Employees []EmployeeReport `json:"employees"`
	Total     Tally            `json:"total"`
}

// BuildMonthlyReport lists, for every active employee in display order, the
// entries of the month and their tally. Entries outside the month and
// entries of unknown or inactive employees are ignored.
func BuildMonthlyReport(year int, month time.Month, employees []Employee, entries []Entry) (MonthlyReport, error) {
	from, to, err := MonthBounds(year, month)
	if err != nil {
		return MonthlyReport{}, err
	}

	inMonth := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Date.InRange(from, to) {
			inMonth = append(inMonth, e)
		}
	}

	active := make([]Employee, 0, len(employees))
	for _, emp := range employees {
		if emp.Active {
			active = append(active, emp)
		}
	}
	SortEmployees(active)

	report := MonthlyReport{Year: year, Month: month, Employees: make([]EmployeeReport, 0, len(active))}
	for _, emp := range active {
		section := EmployeeReport{Employee: emp, Lines: make([]ReportLine, 0)}
		for _, e := range EntriesForEmployee(emp.ID, inMonth) {
			section.Tally.Add(e)
			section.Lines = append(section.Lines, ReportLine{
				Date:     e.Date,
				Category: e.Category,
				Duration: e.Duration,
				Days:     e.Duration.Days(),
				Note:     e.Note,
			})
		}
		report.Total = report.Total.Plus(section.Tally)
		report.Employees = append(report.Employees, section)
	}
	return report, nil
}

// ForEmployee returns the section of one employee.
func (r MonthlyReport) ForEmployee(id EmployeeID) (EmployeeReport, bool) {
	for _, section := range r.Employees {
		if section.Employee.ID == id {
			return section, true
		}
	}
	return EmployeeReport{}, false
}
