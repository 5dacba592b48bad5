/*
Package report renders monthly absence reports as .xlsx workbooks.

LAYOUT:
  Overview sheet: one row per active employee with Free / Vacation / Sick /
                  Total day counts and a total row.
  Per-employee:   one sheet per employee listing the entries of the month
                  by date, followed by the tally.

Day counts are written as numbers (1 for FULL, 0.5 for each half) so the
sheets can be summed in a spreadsheet.

SEE ALSO:
  - absence/report.go: BuildMonthlyReport
*/
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/warp/absence-tracker/absence"
	"github.com/xuri/excelize/v2"
)

const (
	overviewSheet = "Overview"
	maxSheetName  = 31
)

var categoryLabels = map[absence.Category]string{
	absence.CategoryFree:     "Free",
	absence.CategoryVacation: "Vacation",
	absence.CategorySick:     "Sick",
}

var durationLabels = map[absence.Duration]string{
	absence.DurationFull:   "Full day",
	absence.DurationHalfAM: "Half day (AM)",
	absence.DurationHalfPM: "Half day (PM)",
}

// Filename returns the download name of a workbook.
func Filename(r absence.MonthlyReport, employee *absence.Employee) string {
	if employee == nil {
		return fmt.Sprintf("absences-%04d-%02d.xlsx", r.Year, int(r.Month))
	}
	return fmt.Sprintf("absences-%04d-%02d-%s.xlsx", r.Year, int(r.Month), sanitizeSheetName(employee.Name))
}

// WriteWorkbook writes the overview sheet and one sheet per employee.
func WriteWorkbook(w io.Writer, r absence.MonthlyReport) error {
	f := excelize.NewFile()
	defer f.Close()

	b, err := newBuilder(f)
	if err != nil {
		return err
	}
	if err := f.SetSheetName("Sheet1", overviewSheet); err != nil {
		return err
	}
	if err := b.overview(overviewSheet, r); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(overviewSheet): true}
	for _, section := range r.Employees {
		name := uniqueSheetName(sanitizeSheetName(section.Employee.Name), used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", name, err)
		}
		if err := b.employee(name, r, section); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

// WriteEmployeeWorkbook writes a single-sheet workbook for one employee.
// It returns a NotFoundError if the employee has no section in the report.
func WriteEmployeeWorkbook(w io.Writer, r absence.MonthlyReport, id absence.EmployeeID) error {
	section, ok := r.ForEmployee(id)
	if !ok {
		return &absence.NotFoundError{Kind: "employee", ID: string(id)}
	}

	f := excelize.NewFile()
	defer f.Close()

	b, err := newBuilder(f)
	if err != nil {
		return err
	}
	name := sanitizeSheetName(section.Employee.Name)
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return err
	}
	if err := b.employee(name, r, section); err != nil {
		return err
	}
	return f.Write(w)
}

// =============================================================================
// SHEET BUILDERS
// =============================================================================

type builder struct {
	f      *excelize.File
	header int
	total  int
}

func newBuilder(f *excelize.File) (*builder, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E8EEF7"}},
	})
	if err != nil {
		return nil, err
	}
	total, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Border: []excelize.Border{{Type: "top", Color: "#000000", Style: 1}},
	})
	if err != nil {
		return nil, err
	}
	return &builder{f: f, header: header, total: total}, nil
}

func (b *builder) overview(sheet string, r absence.MonthlyReport) error {
	title := fmt.Sprintf("Absences %04d-%02d", r.Year, int(r.Month))
	if err := b.row(sheet, 1, title); err != nil {
		return err
	}
	if err := b.styledRow(sheet, 3, b.header, tallyHeader("Employee")...); err != nil {
		return err
	}

	row := 4
	for _, section := range r.Employees {
		if err := b.tallyRow(sheet, row, section.Employee.Name, section.Tally); err != nil {
			return err
		}
		row++
	}
	if err := b.tallyRow(sheet, row, "Total", r.Total); err != nil {
		return err
	}
	if err := b.style(sheet, row, 5, b.total); err != nil {
		return err
	}
	return b.f.SetColWidth(sheet, "A", "A", 24)
}

func (b *builder) employee(sheet string, r absence.MonthlyReport, section absence.EmployeeReport) error {
	title := fmt.Sprintf("%s - %04d-%02d", section.Employee.Name, r.Year, int(r.Month))
	if err := b.row(sheet, 1, title); err != nil {
		return err
	}
	if err := b.styledRow(sheet, 3, b.header, "Date", "Category", "Duration", "Days", "Note"); err != nil {
		return err
	}

	row := 4
	for _, line := range section.Lines {
		err := b.row(sheet, row,
			string(line.Date),
			categoryLabels[line.Category],
			durationLabels[line.Duration],
			line.Days.InexactFloat64(),
			line.Note,
		)
		if err != nil {
			return err
		}
		row++
	}

	row++
	if err := b.styledRow(sheet, row, b.header, tallyHeader("")...); err != nil {
		return err
	}
	if err := b.tallyRow(sheet, row+1, "Days", section.Tally); err != nil {
		return err
	}
	if err := b.style(sheet, row+1, 5, b.total); err != nil {
		return err
	}
	if err := b.f.SetColWidth(sheet, "A", "C", 14); err != nil {
		return err
	}
	return b.f.SetColWidth(sheet, "E", "E", 32)
}

// tallyHeader labels the columns written by tallyRow.
func tallyHeader(first string) []string {
	header := []string{first}
	for _, c := range absence.Categories {
		header = append(header, categoryLabels[c])
	}
	return append(header, "Total")
}

func (b *builder) tallyRow(sheet string, row int, label string, t absence.Tally) error {
	values := []any{label}
	for _, c := range absence.Categories {
		values = append(values, t.Of(c).InexactFloat64())
	}
	values = append(values, t.Total().InexactFloat64())
	return b.row(sheet, row, values...)
}

func (b *builder) row(sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return b.f.SetSheetRow(sheet, cell, &values)
}

func (b *builder) styledRow(sheet string, row, style int, values ...string) error {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := b.row(sheet, row, cells...); err != nil {
		return err
	}
	return b.style(sheet, row, len(values), style)
}

func (b *builder) style(sheet string, row, cols, style int) error {
	from, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(cols, row)
	if err != nil {
		return err
	}
	return b.f.SetCellStyle(sheet, from, to, style)
}

// =============================================================================
// SHEET NAMES
// =============================================================================

// sanitizeSheetName drops the characters Excel forbids and truncates to the
// 31 character limit.
func sanitizeSheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	cleaned = strings.Trim(cleaned, "'")
	if cleaned == "" {
		cleaned = "Employee"
	}
	if runes := []rune(cleaned); len(runes) > maxSheetName {
		cleaned = string(runes[:maxSheetName])
	}
	return cleaned
}

// uniqueSheetName appends " (n)" until the name is unused. Excel compares
// sheet names case-insensitively, so used holds lowercased names.
func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		runes := []rune(name)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		candidate = string(runes) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
