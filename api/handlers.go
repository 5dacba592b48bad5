/*
handlers.go - HTTP API handlers for the absence tracker

PURPOSE:
  Exposes the roster, the month grid queries, the edit controller, backups
  and reports via a JSON API. Handlers parse, delegate and serialize; all
  rules live in the absence package.

ENDPOINTS:
  Employees:
    GET    /api/employees                     Sorted employees
    POST   /api/employees                     Add employee
    PUT    /api/employees/{id}                Update employee
    DELETE /api/employees/{id}                Remove employee (entries kept)
    POST   /api/employees/seed                Seed default names if empty
    GET    /api/employees/{id}/entries        Entries of one employee

  Grid:
    GET    /api/entries?year=&month=          Entries of a month
    GET    /api/entries?date=                 Entries of a day
    GET    /api/slots/{employeeID}/{date}     One slot (404 when empty)

  Commands:
    POST   /api/edits                         Apply edit
    POST   /api/undo                          Undo last edit
    POST   /api/copy-previous-day             Copy previous day

  Data:
    GET    /api/export                        Backup document
    POST   /api/import                        Replace everything
    GET    /api/backups                       List archives
    POST   /api/backups                       Create archive
    POST   /api/backups/{key}/restore         Restore archive

  Reports:
    GET    /api/reports/{year}/{month}            JSON
    GET    /api/reports/{year}/{month}/workbook   .xlsx

ERROR HANDLING:
  statusFor maps the error taxonomy to HTTP status:
  - 400: Validation errors, invalid input
  - 413: Import body over MaxImportBytes
  - 404: Resource not found
  - 409: Slot conflict
  - 503: Storage unavailable
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/absence-tracker/absence"
	"github.com/warp/absence-tracker/backup"
	"github.com/warp/absence-tracker/report"
)

// DefaultMaxImportBytes bounds request bodies of /api/import.
const DefaultMaxImportBytes = 32 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      absence.RecordStore
	Controller *absence.Controller
	Query      *absence.Query
	Roster     *absence.Roster
	Backups    *backup.Service // nil disables the backup endpoints
	Metrics    *Metrics
	Log        logrus.FieldLogger

	MaxImportBytes int64
}

// NewHandler wires the handler around one store and its controller.
func NewHandler(store absence.RecordStore, ctrl *absence.Controller, backups *backup.Service, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Store:      store,
		Controller: ctrl,
		Query:      absence.NewQuery(store),
		Roster:     absence.NewRoster(store, log),
		Backups:    backups,
		Metrics:    NewMetrics(ctrl.UndoDepth),
		Log:        log,

		MaxImportBytes: DefaultMaxImportBytes,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees in display order.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Roster.List(r.Context())
	if err != nil {
		h.fail(w, "Failed to list employees", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTOs(employees))
}

// CreateEmployee adds an employee at the end of the display order.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	emp, err := h.Roster.Add(r.Context(), req.Name)
	if err != nil {
		h.fail(w, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// UpdateEmployee changes name, active flag or sort order.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id := absence.EmployeeID(chi.URLParam(r, "id"))

	var req UpdateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	emp, err := h.Roster.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get employee", err)
		return
	}
	if req.Name != nil {
		emp.Name = *req.Name
	}
	if req.Active != nil {
		emp.Active = *req.Active
	}
	if req.SortOrder != nil {
		emp.SortOrder = *req.SortOrder
	}

	emp, err = h.Roster.Update(r.Context(), emp)
	if err != nil {
		h.fail(w, "Failed to update employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// DeleteEmployee removes the employee record. Entries stay as history.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id := absence.EmployeeID(chi.URLParam(r, "id"))
	if err := h.Roster.Remove(r.Context(), id); err != nil {
		h.fail(w, "Failed to delete employee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SeedEmployees fills an empty roster with the default names.
func (h *Handler) SeedEmployees(w http.ResponseWriter, r *http.Request) {
	created, err := h.Roster.SeedIfEmpty(r.Context())
	if err != nil {
		h.fail(w, "Failed to seed employees", err)
		return
	}
	writeJSON(w, http.StatusOK, SeedResponse{Created: created})
}

// GetEmployeeEntries returns one employee's entries, optionally limited to
// a month.
func (h *Handler) GetEmployeeEntries(w http.ResponseWriter, r *http.Request) {
	id := absence.EmployeeID(chi.URLParam(r, "id"))
	ctx := r.Context()

	var (
		entries []absence.Entry
		err     error
	)
	if r.URL.Query().Get("year") != "" || r.URL.Query().Get("month") != "" {
		year, month, perr := parseYearMonth(r.URL.Query().Get("year"), r.URL.Query().Get("month"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid month", perr)
			return
		}
		entries, err = h.Query.EntriesForMonth(ctx, year, month)
		entries = absence.EntriesForEmployee(id, entries)
	} else {
		entries, err = h.Store.ListEntriesByEmployee(ctx, id)
	}
	if err != nil {
		h.fail(w, "Failed to get entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// =============================================================================
// GRID HANDLERS
// =============================================================================

// ListEntries returns the entries of a month (?year=&month=) or a day (?date=).
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var (
		entries []absence.Entry
		err     error
	)
	switch {
	case q.Get("date") != "":
		entries, err = h.Query.EntriesForDate(ctx, absence.Date(q.Get("date")))
	case q.Get("year") != "" || q.Get("month") != "":
		year, month, perr := parseYearMonth(q.Get("year"), q.Get("month"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid month", perr)
			return
		}
		entries, err = h.Query.EntriesForMonth(ctx, year, month)
	default:
		writeError(w, http.StatusBadRequest, "year and month, or date, required", nil)
		return
	}
	if err != nil {
		h.fail(w, "Failed to list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// GetSlot returns the entry occupying one slot.
func (h *Handler) GetSlot(w http.ResponseWriter, r *http.Request) {
	employeeID := absence.EmployeeID(chi.URLParam(r, "employeeID"))
	date := absence.Date(chi.URLParam(r, "date"))

	entry, err := h.Query.Entry(r.Context(), employeeID, date)
	if err != nil {
		h.fail(w, "Failed to get slot", err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "Slot is empty", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// ApplyEdit sets one slot.
func (h *Handler) ApplyEdit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start := time.Now()
	res, err := h.Controller.ApplyEdit(r.Context(), absence.EditInput{
		EmployeeID: absence.EmployeeID(req.EmployeeID),
		Date:       absence.Date(req.Date),
		Category:   absence.Category(req.Category),
		Duration:   absence.Duration(req.Duration),
		Note:       req.Note,
	})
	h.Metrics.Observe("apply_edit", err, time.Since(start))
	if err != nil {
		h.fail(w, "Failed to apply edit", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommandResponse(res, h.Controller.UndoDepth()))
}

// Undo reverts the most recent edit.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := h.Controller.Undo(r.Context())
	h.Metrics.Observe("undo", err, time.Since(start))
	if err != nil {
		h.fail(w, "Failed to undo", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommandResponse(res, h.Controller.UndoDepth()))
}

// CopyPreviousDay makes a day look like the day before.
func (h *Handler) CopyPreviousDay(w http.ResponseWriter, r *http.Request) {
	var req CopyPreviousDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start := time.Now()
	res, err := h.Controller.CopyFromPreviousDay(r.Context(), absence.Date(req.Date))
	h.Metrics.Observe("copy_previous_day", err, time.Since(start))
	if err != nil {
		h.fail(w, fmt.Sprintf("Failed to copy previous day (%d slots changed)", res.Affected), err)
		return
	}
	writeJSON(w, http.StatusOK, toCommandResponse(res, h.Controller.UndoDepth()))
}

// =============================================================================
// DATA HANDLERS
// =============================================================================

// Export returns the backup document as a download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.Controller.Export(r.Context())
	if err != nil {
		h.fail(w, "Failed to export", err)
		return
	}
	name := fmt.Sprintf("absences-%s.json", time.UnixMilli(data.Meta.ExportedAt).UTC().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	writeJSON(w, http.StatusOK, data)
}

// Import replaces everything with the posted backup document. The body may
// be plain JSON or an xz archive.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := backup.Decode(http.MaxBytesReader(w, r.Body, h.MaxImportBytes))
	if err != nil {
		h.fail(w, "Invalid backup document", err)
		return
	}

	start := time.Now()
	res, err := h.Controller.Import(r.Context(), data)
	h.Metrics.Observe("import", err, time.Since(start))
	if err != nil {
		h.fail(w, "Failed to import", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommandResponse(res, h.Controller.UndoDepth()))
}

// ListBackups returns stored archives, newest first.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if !h.backupsEnabled(w) {
		return
	}
	archives, err := h.Backups.List(r.Context())
	if err != nil {
		h.fail(w, "Failed to list backups", err)
		return
	}
	dtos := make([]ArchiveDTO, len(archives))
	for i, a := range archives {
		dtos[i] = toArchiveDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBackup stores a new archive.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	if !h.backupsEnabled(w) {
		return
	}
	start := time.Now()
	archive, err := h.Backups.Backup(r.Context())
	h.Metrics.Observe("backup", err, time.Since(start))
	if err != nil {
		h.fail(w, "Failed to create backup", err)
		return
	}
	writeJSON(w, http.StatusCreated, toArchiveDTO(archive))
}

// RestoreBackup replaces everything with a stored archive.
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	if !h.backupsEnabled(w) {
		return
	}
	start := time.Now()
	res, err := h.Backups.Restore(r.Context(), chi.URLParam(r, "key"))
	h.Metrics.Observe("restore", err, time.Since(start))
	if err != nil {
		h.fail(w, "Failed to restore backup", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommandResponse(res, h.Controller.UndoDepth()))
}

func (h *Handler) backupsEnabled(w http.ResponseWriter) bool {
	if h.Backups == nil {
		writeError(w, http.StatusServiceUnavailable, "Backups are not configured", nil)
		return false
	}
	return true
}

func toArchiveDTO(a backup.Archive) ArchiveDTO {
	return ArchiveDTO{Key: a.Key, Size: a.Size, CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339)}
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetReport returns the monthly report as JSON.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

// GetReportWorkbook returns the monthly report as .xlsx, for everyone or,
// with ?employee_id=, for one employee.
func (h *Handler) GetReportWorkbook(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.buildReport(w, r)
	if !ok {
		return
	}

	var (
		buf      bytes.Buffer
		err      error
		filename = report.Filename(rep, nil)
	)
	if id := r.URL.Query().Get("employee_id"); id != "" {
		err = report.WriteEmployeeWorkbook(&buf, rep, absence.EmployeeID(id))
		if section, found := rep.ForEmployee(absence.EmployeeID(id)); found {
			filename = report.Filename(rep, &section.Employee)
		}
	} else {
		err = report.WriteWorkbook(&buf, rep)
	}
	if err != nil {
		h.fail(w, "Failed to render workbook", err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, &buf)
}

func (h *Handler) buildReport(w http.ResponseWriter, r *http.Request) (absence.MonthlyReport, bool) {
	year, month, err := parseYearMonth(chi.URLParam(r, "year"), chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return absence.MonthlyReport{}, false
	}

	employees, err := h.Query.ActiveEmployees(r.Context())
	if err != nil {
		h.fail(w, "Failed to list employees", err)
		return absence.MonthlyReport{}, false
	}
	entries, err := h.Query.EntriesForMonth(r.Context(), year, month)
	if err != nil {
		h.fail(w, "Failed to list entries", err)
		return absence.MonthlyReport{}, false
	}

	rep, err := absence.BuildMonthlyReport(year, month, employees, entries)
	if err != nil {
		h.fail(w, "Failed to build report", err)
		return absence.MonthlyReport{}, false
	}
	return rep, true
}

// =============================================================================
// HELPERS
// =============================================================================

func parseYearMonth(y, m string) (int, time.Month, error) {
	year, err := strconv.Atoi(y)
	if err != nil {
		return 0, 0, &absence.ValidationError{Field: "year", Message: fmt.Sprintf("not a number: %q", y)}
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return 0, 0, &absence.ValidationError{Field: "month", Message: fmt.Sprintf("not a number: %q", m)}
	}
	if _, _, err := absence.MonthBounds(year, time.Month(month)); err != nil {
		return 0, 0, err
	}
	return year, time.Month(month), nil
}

// statusFor maps the error taxonomy to an HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, absence.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, absence.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, absence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, absence.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Server-side failures are logged.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).WithField("status", status).Error(message)
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
