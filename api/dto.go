/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

EXCEPTION:
  /api/export and /api/import speak the backup document format
  ({employees, entries, meta}, camelCase) so exported files stay portable.

SEE ALSO:
  - handlers.go: Uses these types
  - absence/types.go: Domain model
*/
package api

import (
	"github.com/warp/absence-tracker/absence"
)

// DismissAfterMS is how long clients should show a command notice.
const DismissAfterMS = 3000

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	SortOrder int    `json:"sort_order"`
}

type CreateEmployeeRequest struct {
	Name string `json:"name"`
}

// UpdateEmployeeRequest changes only the fields that are present.
type UpdateEmployeeRequest struct {
	Name      *string `json:"name"`
	Active    *bool   `json:"active"`
	SortOrder *int    `json:"sort_order"`
}

type SeedResponse struct {
	Created int `json:"created"`
}

func toEmployeeDTO(e absence.Employee) EmployeeDTO {
	return EmployeeDTO{ID: string(e.ID), Name: e.Name, Active: e.Active, SortOrder: e.SortOrder}
}

func toEmployeeDTOs(employees []absence.Employee) []EmployeeDTO {
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	return dtos
}

// =============================================================================
// ENTRIES
// =============================================================================

type EntryDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Category   string `json:"category"`
	Duration   string `json:"duration"`
	Note       string `json:"note,omitempty"`
	UpdatedAt  int64  `json:"updated_at"`
}

func toEntryDTO(e absence.Entry) EntryDTO {
	return EntryDTO{
		ID:         string(e.ID),
		EmployeeID: string(e.EmployeeID),
		Date:       string(e.Date),
		Category:   string(e.Category),
		Duration:   string(e.Duration),
		Note:       e.Note,
		UpdatedAt:  e.UpdatedAt,
	}
}

func toEntryDTOs(entries []absence.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

// =============================================================================
// COMMANDS
// =============================================================================

// EditRequest sets one slot. Category "NONE" clears it.
type EditRequest struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Category   string `json:"category"`
	Duration   string `json:"duration"`
	Note       string `json:"note"`
}

type CopyPreviousDayRequest struct {
	Date string `json:"date"`
}

type CommandResponse struct {
	Notice         string    `json:"notice"`
	DismissAfterMS int       `json:"dismiss_after_ms"`
	Entry          *EntryDTO `json:"entry,omitempty"`
	Affected       int       `json:"affected"`
	UndoDepth      int       `json:"undo_depth"`
}

func toCommandResponse(res absence.Result, undoDepth int) CommandResponse {
	resp := CommandResponse{
		Notice:         string(res.Notice),
		DismissAfterMS: DismissAfterMS,
		Affected:       res.Affected,
		UndoDepth:      undoDepth,
	}
	if res.Entry != nil {
		dto := toEntryDTO(*res.Entry)
		resp.Entry = &dto
	}
	return resp
}

// =============================================================================
// REPORTS
// =============================================================================

type TallyDTO struct {
	Free     float64 `json:"free"`
	Vacation float64 `json:"vacation"`
	Sick     float64 `json:"sick"`
	Total    float64 `json:"total"`
}

type ReportLineDTO struct {
	Date     string  `json:"date"`
	Category string  `json:"category"`
	Duration string  `json:"duration"`
	Days     float64 `json:"days"`
	Note     string  `json:"note,omitempty"`
}

type EmployeeReportDTO struct {
	Employee EmployeeDTO     `json:"employee"`
	Lines    []ReportLineDTO `json:"lines"`
	Tally    TallyDTO        `json:"tally"`
}

type ReportDTO struct {
	Year      int                 `json:"year"`
	Month     int                 `json:"month"`
	Employees []EmployeeReportDTO `json:"employees"`
	Total     TallyDTO            `json:"total"`
}

func toTallyDTO(t absence.Tally) TallyDTO {
	return TallyDTO{
		Free:     t.Free.InexactFloat64(),
		Vacation: t.Vacation.InexactFloat64(),
		Sick:     t.Sick.InexactFloat64(),
		Total:    t.Total().InexactFloat64(),
	}
}

func toReportDTO(r absence.MonthlyReport) ReportDTO {
	dto := ReportDTO{
		Year:      r.Year,
		Month:     int(r.Month),
		Employees: make([]EmployeeReportDTO, len(r.Employees)),
		Total:     toTallyDTO(r.Total),
	}
	for i, section := range r.Employees {
		lines := make([]ReportLineDTO, len(section.Lines))
		for j, l := range section.Lines {
			lines[j] = ReportLineDTO{
				Date:     string(l.Date),
				Category: string(l.Category),
				Duration: string(l.Duration),
				Days:     l.Days.InexactFloat64(),
				Note:     l.Note,
			}
		}
		dto.Employees[i] = EmployeeReportDTO{
			Employee: toEmployeeDTO(section.Employee),
			Lines:    lines,
			Tally:    toTallyDTO(section.Tally),
		}
	}
	return dto
}

// =============================================================================
// BACKUPS
// =============================================================================

type ArchiveDTO struct {
	Key       string `json:"key"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is returned for error cases.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
