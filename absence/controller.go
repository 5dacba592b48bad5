/*
controller.go - The single write path for absence entries

PURPOSE:
  Applies edits to slots, keeps the one-entry-per-slot invariant through the
  store's natural-key upsert, and records a reversible delta for each edit.

EDIT FLOW:
  1. Validate input (nothing is written on failure)
  2. Look up the slot's current entry
  3. NONE  -> delete the entry if present, otherwise no-op
     other -> upsert by slot, reusing the existing id
  4. Record {next, prev} on the undo stack ONLY after the write succeeded

UNDO:
  prev present         -> restore prev verbatim (same id and fields)
  prev absent, next    -> re-lookup the slot and delete whatever is there
  both absent          -> no-op

COPY FROM PREVIOUS DAY:
  Makes the target day look like the day before for every known employee.
  Overwrites, never merges, and is not undo-tracked.

CONCURRENCY:
  Commands are serialized with a mutex. There is one logical writer; the
  lock keeps the read-then-write of a command from interleaving with another
  request served by the HTTP layer.

SEE ALSO:
  - undo.go: Bounded history
  - store.go: UpsertEntryBySlot contract
*/
package absence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// COMMAND RESULTS
// =============================================================================

// Notice is transient feedback for the caller. The caller decides how long
// to show it.
type Notice string

const (
	NoticeSaved         Notice = "saved"
	NoticeUndone        Notice = "undone"
	NoticeNothingToUndo Notice = "nothing-to-undo"
	NoticeCopied        Notice = "copied"
	NoticeNothingToCopy Notice = "nothing-to-copy"
	NoticeImported      Notice = "imported"
)

type Result struct {
	Notice Notice
	// Entry is the slot's value after the command; nil for an empty slot
	// or for bulk commands.
	Entry *Entry
	// Affected counts slots written or cleared.
	Affected int
}

// EditInput sets one slot. Duration is ignored for CategoryNone.
type EditInput struct {
	EmployeeID EmployeeID
	Date       Date
	Category   Category
	Duration   Duration
	Note       string
}

// =============================================================================
// CONTROLLER
// =============================================================================

type Controller struct {
	store RecordStore
	undo  *UndoStack
	log   logrus.FieldLogger
	now   func() time.Time
	newID func() EntryID

	mu sync.Mutex
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithIDGenerator(fn func() EntryID) Option {
	return func(c *Controller) { c.newID = fn }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = l }
}

func WithUndoCapacity(n int) Option {
	return func(c *Controller) { c.undo = NewUndoStack(n) }
}

func NewController(store RecordStore, opts ...Option) *Controller {
	c := &Controller{
		store: store,
		undo:  NewUndoStack(UndoCapacity),
		log:   discardLogger(),
		now:   time.Now,
		newID: func() EntryID { return EntryID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UndoDepth reports how many edits are currently reversible.
func (c *Controller) UndoDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.undo.Len()
}

// ApplyEdit sets the slot (in.EmployeeID, in.Date) to the given category.
func (c *Controller) ApplyEdit(ctx context.Context, in EditInput) (Result, error) {
	if err := ValidateEdit(in); err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.log.WithFields(logrus.Fields{
		"employee_id": in.EmployeeID,
		"date":        in.Date,
		"category":    in.Category,
	})

	existing, err := c.store.FindEntryByEmployeeAndDate(ctx, in.EmployeeID, in.Date)
	if err != nil {
		return Result{}, fmt.Errorf("failed to look up slot: %w", err)
	}

	if in.Category == CategoryNone {
		if existing != nil {
			if err := c.store.DeleteEntry(ctx, existing.ID); err != nil {
				return Result{}, fmt.Errorf("failed to clear slot: %w", err)
			}
		}
		c.undo.Push(UndoAction{Next: nil, Prev: existing})
		log.WithField("cleared", existing != nil).Debug("edit applied")
		return Result{Notice: NoticeSaved, Affected: boolToInt(existing != nil)}, nil
	}

	next := Entry{
		ID:         c.newID(),
		EmployeeID: in.EmployeeID,
		Date:       in.Date,
		Category:   in.Category,
		Duration:   in.Duration,
		Note:       in.Note,
		UpdatedAt:  EpochMillis(c.now()),
	}
	if existing != nil {
		next.ID = existing.ID
	}

	stored, err := c.store.UpsertEntryBySlot(ctx, next)
	if err != nil {
		return Result{}, fmt.Errorf("failed to write slot: %w", err)
	}

	c.undo.Push(UndoAction{Next: &stored, Prev: existing})
	log.WithField("entry_id", stored.ID).Debug("edit applied")
	return Result{Notice: NoticeSaved, Entry: cloneEntry(&stored), Affected: 1}, nil
}

// Undo reverts the most recent recorded edit.
func (c *Controller) Undo(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	action, ok := c.undo.Pop()
	if !ok {
		return Result{Notice: NoticeNothingToUndo}, nil
	}

	restored, err := c.revert(ctx, action)
	if err != nil {
		// The inverse was not committed; keep it reversible.
		c.undo.Push(action)
		return Result{}, fmt.Errorf("failed to undo: %w", err)
	}

	if slot, touched := action.Slot(); touched {
		c.log.WithFields(logrus.Fields{
			"employee_id": slot.EmployeeID,
			"date":        slot.Date,
		}).Debug("edit reverted")
	}
	res := Result{Notice: NoticeUndone, Entry: restored}
	if _, touched := action.Slot(); touched {
		res.Affected = 1
	}
	return res, nil
}

func (c *Controller) revert(ctx context.Context, action UndoAction) (*Entry, error) {
	switch {
	case action.Prev != nil:
		prev := *action.Prev
		// A bulk copy may have refilled the slot under a different id.
		if err := c.store.ReplaceSlot(ctx, prev); err != nil {
			return nil, err
		}
		return cloneEntry(&prev), nil

	case action.Next != nil:
		current, err := c.store.FindEntryByEmployeeAndDate(ctx, action.Next.EmployeeID, action.Next.Date)
		if err != nil {
			return nil, err
		}
		if current != nil {
			if err := c.store.DeleteEntry(ctx, current.ID); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return nil, nil
}

// CopyFromPreviousDay makes date look like the day before for every known
// employee. It keeps going after a failed slot and reports all failures.
func (c *Controller) CopyFromPreviousDay(ctx context.Context, date Date) (Result, error) {
	if _, err := ParseDate(string(date)); err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	yesterday := date.Previous()
	previous, err := c.store.QueryEntriesByDateRange(ctx, yesterday, yesterday)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load %s: %w", yesterday, err)
	}
	if len(previous) == 0 {
		return Result{Notice: NoticeNothingToCopy}, nil
	}

	employees, err := c.store.ListEmployees(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list employees: %w", err)
	}
	SortEmployees(employees)

	byEmployee := make(map[EmployeeID]Entry, len(previous))
	for _, e := range previous {
		byEmployee[e.EmployeeID] = e
	}

	var (
		errs     []error
		affected int
		now      = EpochMillis(c.now())
	)
	for _, emp := range employees {
		if src, ok := byEmployee[emp.ID]; ok {
			_, err := c.store.UpsertEntryBySlot(ctx, Entry{
				ID:         c.newID(),
				EmployeeID: emp.ID,
				Date:       date,
				Category:   src.Category,
				Duration:   src.Duration,
				UpdatedAt:  now,
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("employee %s: %w", emp.ID, err))
				continue
			}
			affected++
			continue
		}

		current, err := c.store.FindEntryByEmployeeAndDate(ctx, emp.ID, date)
		if err != nil {
			errs = append(errs, fmt.Errorf("employee %s: %w", emp.ID, err))
			continue
		}
		if current == nil {
			continue
		}
		if err := c.store.DeleteEntry(ctx, current.ID); err != nil {
			errs = append(errs, fmt.Errorf("employee %s: %w", emp.ID, err))
			continue
		}
		affected++
	}

	c.log.WithFields(logrus.Fields{
		"date":     date,
		"affected": affected,
		"failed":   len(errs),
	}).Info("copied previous day")

	if len(errs) > 0 {
		return Result{Affected: affected}, errors.Join(errs...)
	}
	return Result{Notice: NoticeCopied, Affected: affected}, nil
}

// Import replaces the whole store with a validated snapshot. The undo history
// refers to the replaced state and is dropped.
func (c *Controller) Import(ctx context.Context, data BackupData) (Result, error) {
	if err := ValidateBackup(data); err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.ImportAll(ctx, data); err != nil {
		return Result{}, fmt.Errorf("failed to import backup: %w", err)
	}
	c.undo.Clear()

	c.log.WithFields(logrus.Fields{
		"employees": len(data.Employees),
		"entries":   len(data.Entries),
	}).Info("backup imported")
	return Result{Notice: NoticeImported, Affected: len(data.Entries)}, nil
}

// Export returns a snapshot of the store.
func (c *Controller) Export(ctx context.Context) (BackupData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ExportAll(ctx)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
