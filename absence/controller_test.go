package absence_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/absence-tracker/absence"
	"github.com/warp/absence-tracker/absence/store"
	"github.com/warp/absence-tracker/store/sqlite"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newController(t *testing.T, rs absence.RecordStore) *absence.Controller {
	t.Helper()
	seq := 0
	return absence.NewController(rs,
		absence.WithClock(func() time.Time { return fixedNow }),
		absence.WithIDGenerator(func() absence.EntryID {
			seq++
			return absence.EntryID(fmt.Sprintf("id-%d", seq))
		}),
	)
}

// forEachStore runs fn once per RecordStore implementation, each on a fresh
// empty store.
func forEachStore(t *testing.T, fn func(t *testing.T, rs absence.RecordStore)) {
	t.Helper()
	stores := []struct {
		name string
		open func(t *testing.T) absence.RecordStore
	}{
		{"memory", func(*testing.T) absence.RecordStore { return store.NewMemory() }},
		{"sqlite", func(t *testing.T) absence.RecordStore {
			db, err := sqlite.New(":memory:", sqlite.WithClock(func() time.Time { return fixedNow }))
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return db
		}},
	}
	for _, st := range stores {
		t.Run(st.name, func(t *testing.T) {
			fn(t, st.open(t))
		})
	}
}

func edit(emp, date string, cat absence.Category, dur absence.Duration) absence.EditInput {
	return absence.EditInput{
		EmployeeID: absence.EmployeeID(emp),
		Date:       absence.Date(date),
		Category:   cat,
		Duration:   dur,
	}
}

func slot(t *testing.T, rs absence.RecordStore, emp, date string) *absence.Entry {
	t.Helper()
	e, err := rs.FindEntryByEmployeeAndDate(context.Background(), absence.EmployeeID(emp), absence.Date(date))
	require.NoError(t, err)
	return e
}

func countSlot(t *testing.T, rs absence.RecordStore, emp, date string) int {
	t.Helper()
	entries, err := rs.QueryEntriesByDateRange(context.Background(), absence.Date(date), absence.Date(date))
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if e.EmployeeID == absence.EmployeeID(emp) {
			n++
		}
	}
	return n
}

// =============================================================================
// APPLY EDIT
// =============================================================================


func TestApplyEdit_CreatesEntry(t *testing.T) {
	forEachStore(t, func(t *testing.T, rs absence.RecordStore) {
		ctrl := newController(t, rs)

		res, err := ctrl.ApplyEdit(context.Background(), edit("a", "2024-03-04", absence.CategoryVacation, absence.DurationFull))
		require.NoError(t, err)

		assert.Equal(t, absence.NoticeSaved, res.Notice)
		require.NotNil(t, res.Entry)
		assert.Equal(t, absence.EntryID("id-1"), res.Entry.ID)
		assert.Equal(t, fixedNow.UnixMilli(), res.Entry.UpdatedAt)
		assert.Equal(t, 1, ctrl.UndoDepth())
		assert.Equal(t, res.Entry, slot(t, rs, "a", "2024-03-04"))
	})
}

func TestApplyEdit_OneEntryPerSlot(t *testing.T) {
	forEachStore(t, func(t *testing.T, rs absence.RecordStore) {
		ctx := context.Background()
		ctrl := newController(t, rs)

		// GIVEN: a sequence of edits on the same slot
		for _, cat := range []absence.Category{
			absence.CategoryFree, absence.CategorySick, absence.CategoryNone,
			absence.CategoryVacation, absence.CategoryVacation, absence.CategoryFree,
		} {
			_, err := ctrl.ApplyEdit(ctx, edit("a", "2024-03-04", cat, absence.DurationHalfPM))
			require.NoError(t, err)

			// THEN: at most one entry exists after every step
			assert.LessOrEqual(t, countSlot(t, rs, "a", "2024-03-04"), 1)
		}
		assert.Equal(t, 1, countSlot(t, rs, "a", "2024-03-04"))
	})
}

func TestApplyEdit_NoneRemovesEntry(t *testing.T) {
	forEachStore(t, func(t *testing.T, rs absence.RecordStore) {
		ctx := context.Background()
		ctrl := newController(t, rs)

		_, err := ctrl.ApplyEdit(ctx, edit("a", "2024-03-04", absence.CategorySick, absence.DurationFull))
		require.NoError(t, err)

		res, err := ctrl.ApplyEdit(ctx, edit("a", "2024-03-04", absence.CategoryNone, ""))
		require.NoError(t, err)
		assert.Nil(t, res.Entry)
		assert.Equal(t, 1, res.Affected)

		assert.Nil(t, slot(t, rs, "a", "2024-03-04"))
		month, err := absence.NewQuery(rs).EntriesForMonth(ctx, 2024, time.March)
		require.NoError(t, err)
		assert.Empty(t, month)
	})
}

func TestApplyEdit_NoneOnEmptySlotIsRecordedNoOp(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	ctrl := newController(t, mem)

	res, err := ctrl.ApplyEdit(ctx, edit("a", "2024-03-04", absence.CategoryNone, ""))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Affected)
	assert.Equal(t, 1, ctrl.UndoDepth())

	res, err = ctrl.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, absence.NoticeUndone, res.Notice)
	assert.Equal(t, 0, res.Affected)
	assert.Nil(t, slot(t, mem, "a", "2024-03-04"))
}

func TestApplyEdit_Idempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, rs absence.RecordStore) {
		ctx := context.Background()
		ctrl := newController(t, rs)
		in := edit("a", "2024-03-04", absence.CategoryFree, absence.DurationHalfAM)

		first, err := ctrl.ApplyEdit(ctx, in)
		require.NoError(t, err)
		afterFirst, err := rs.ExportAll(ctx)
		require.NoError(t, err)

		second, err := ctrl.ApplyEdit(ctx, in)
		require.NoError(t, err)
		afterSecond, err := rs.ExportAll(ctx)
		require.NoError(t, err)

		assert.Equal(t, first.Entry.ID, second.Entry.ID)
		assert.Equal(t, afterFirst.Entries, afterSecond.Entries)
	})
}

func TestApplyEdit_ValidationWritesNothing(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	ctrl := newController(t, mem)

	tests := []struct {
		name string
		in   absence.EditInput
	}{
		{"empty employee", edit("", "2024-03-04", absence.CategoryFree, absence.DurationFull)},
		{"impossible date", edit("a", "2023-02-29", absence.CategoryFree, absence.DurationFull)},
		{"wrong date format", edit("a", "4.3.2024", absence.CategoryFree, absence.DurationFull)},
		{"unknown category", edit("a", "2024-03-04", "HOLIDAY", absence.DurationFull)},
		{"unknown duration", edit("a", "2024-03-04", absence.CategoryFree, "EVENING")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctrl.ApplyEdit(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, absence.IsClientError(err))
		})
	}

	data, err := mem.ExportAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, data.Entries)
	assert.Equal(t, 0, ctrl.UndoDepth())
}

// =============================================================================
// UNDO
// =============================================================================

func TestUndo_RestoresPriorState(t *testing.T) {
	tests := []struct {
		name  string
		prior *absence.EditInput
		next  absence.EditInput
	}{
		{
			name: "create on empty slot",
			next: edit("a", "2024-03-04", absence.CategorySick, absence.DurationFull),
		},
		{
			name:  "overwrite",
			prior: ptr(edit("a", "2024-03-04", absence.CategoryVacation, absence.DurationHalfAM)),
			next:  edit("a", "2024-03-04", absence.CategorySick, absence.DurationFull),
		},
		{
			name:  "clear",
			prior: ptr(edit("a", "2024-03-04", absence.CategoryFree, absence.DurationHalfPM)),
			next:  edit("a", "2024-03-04", absence.CategoryNone, ""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forEachStore(t, func(t *testing.T, rs absence.RecordStore) {
				ctx := context.Background()
				ctrl := newController(t, rs)

				// GIVEN: the slot in state S0
				if tt.prior != nil {
					_, err := ctrl.ApplyEdit(ctx, *tt.prior)
					require.NoError(t, err)
				}
				before := slot(t, rs, "a", "2024-03-04")

				// WHEN: an edit is applied and undone
				_, err := ctrl.ApplyEdit(ctx, tt.next)
				require.NoError(t, err)
				res, err := ctrl.Undo(ctx)
				require.NoError(t, err)

				// THEN: the slot is exactly S0
				assert.Equal(t, absence.NoticeUndone, res.Notice)
				assert.Equal(t, before, slot(t, rs, "a", "2024-03-04"))
				assert.Equal(t, before, res.Entry)
			})
		})
	}
}

func TestUndo_StackBound(t *testing.T) {
	forEachStore(t, func(t *testing.T, rs absence.RecordStore) {
		ctx := context.Background()
		ctrl := newController(t, rs)

		// GIVEN: 25 edits on 25 different days
		start := absence.Date("2024-03-01")
		for i := 0; i < 25; i++ {
			_, err := ctrl.ApplyEdit(ctx, absence.EditInput{
				EmployeeID: "a", Date: start.AddDays(i), Category: absence.CategoryFree, Duration: absence.DurationFull,
			})
			require.NoError(t, err)
		}
		assert.Equal(t, absence.UndoCapacity, ctrl.UndoDepth())

		// WHEN: undoing 20 times
		for i := 0; i < 20; i++ {
			res, err := ctrl.Undo(ctx)
			require.NoError(t, err)
			assert.Equal(t, absence.NoticeUndone, res.Notice)
		}

		// THEN: the 21st is a no-op and the first five edits survive
		res, err := ctrl.Undo(ctx)
		require.NoError(t, err)
		assert.Equal(t, absence.NoticeNothingToUndo, res.Notice)

		entries, err := rs.ListEntriesByEmployee(ctx, "a")
		require.NoError(t, err)
		require.Len(t, entries, 5)
		assert.Equal(t, absence.Date("2024-03-05"), entries[4].Date)
	})
}

// refillAfterClear leaves a's 2024-03-05 slot refilled by a copy under a new
// id, with the clear of the original entry on top of the undo stack. It
// returns the original entry and the copied one.
func refillAfterClear(t *testing.T, ctrl *absence.Controller, rs absence.RecordStore) (original, copied *absence.Entry) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, rs.PutEmployee(ctx, absence.Employee{ID: "a", Name: "Anna", Active: true}))

	_, err := ctrl.ApplyEdit(ctx, edit("a", "2024-03-05", absence.CategoryFree, absence.DurationFull))
	require.NoError(t, err)
	original = slot(t, rs, "a", "2024-03-05")
	_, err = ctrl.ApplyEdit(ctx, edit("a", "2024-03-05", absence.CategoryNone, ""))
	require.NoError(t, err)
	require.NoError(t, rs.PutEntry(ctx, absence.Entry{
		ID: "yesterday", EmployeeID: "a", Date: "2024-03-04", Category: absence.CategorySick, Duration: absence.DurationFull,
	}))
	_, err = ctrl.CopyFromPreviousDay(ctx, "2024-03-05")
	require.NoError(t, err)

	copied = slot(t, rs, "a", "2024-03-05")
	require.NotNil(t, copied)
	require.NotEqual(t, original.ID, copied.ID)
	return original, copied
}

func TestUndo_AfterCopyRefilledSlot(t *testing.T) {
	forEachStore(t, func(t *testing.T, rs absence.RecordStore) {
		ctrl := newController(t, rs)
		original, _ := refillAfterClear(t, ctrl, rs)

		// WHEN: the clear is undone
		_, err := ctrl.Undo(context.Background())
		require.NoError(t, err)

		// THEN: the original entry is back and the slot still holds one entry
		assert.Equal(t, original, slot(t, rs, "a", "2024-03-05"))
		assert.Equal(t, 1, countSlot(t, rs, "a", "2024-03-05"))
	})
}

// flakyStore fails entry writes while failWrites is set.
type flakyStore struct {
	absence.RecordStore
	failWrites bool
}

var errDisk = errors.New("disk full")

func (f *flakyStore) UpsertEntryBySlot(ctx context.Context, e absence.Entry) (absence.Entry, error) {
	if f.failWrites {
		return absence.Entry{}, errDisk
	}
	return f.RecordStore.UpsertEntryBySlot(ctx, e)
}

func (f *flakyStore) DeleteEntry(ctx context.Context, id absence.EntryID) error {
	if f.failWrites {
		return errDisk
	}
	return f.RecordStore.DeleteEntry(ctx, id)
}

func (f *flakyStore) ReplaceSlot(ctx context.Context, e absence.Entry) error {
	if f.failWrites {
		return errDisk
	}
	return f.RecordStore.ReplaceSlot(ctx, e)
}

func TestApplyEdit_FailedWriteIsNotUndoable(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{RecordStore: store.NewMemory(), failWrites: true}
	ctrl := newController(t, fs)

	_, err := ctrl.ApplyEdit(ctx, edit("a", "2024-03-04", absence.CategorySick, absence.DurationFull))
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, 0, ctrl.UndoDepth())

	fs.failWrites = false
	_, err = ctrl.ApplyEdit(ctx, edit("a", "2024-03-04", absence.CategorySick, absence.DurationFull))
	require.NoError(t, err)
	fs.failWrites = true
	_, err = ctrl.ApplyEdit(ctx, edit("a", "2024-03-04", absence.CategoryNone, ""))
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, 1, ctrl.UndoDepth())
}

func TestUndo_FailedRevertStaysUndoable(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{RecordStore: store.NewMemory()}
	ctrl := newController(t, fs)

	_, err := ctrl.ApplyEdit(ctx, edit("a", "2024-03-04", absence.CategorySick, absence.DurationFull))
	require.NoError(t, err)

	fs.failWrites = true
	_, err = ctrl.Undo(ctx)
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, 1, ctrl.UndoDepth())

	fs.failWrites = false
	_, err = ctrl.Undo(ctx)
	require.NoError(t, err)
	assert.Nil(t, slot(t, fs, "a", "2024-03-04"))
}

func TestUndo_FailedRestoreKeepsRefilledSlot(t *testing.T) {
	forEachStore(t, func(t *testing.T, rs absence.RecordStore) {
		ctx := context.Background()
		fs := &flakyStore{RecordStore: rs}
		ctrl := newController(t, fs)
		original, copied := refillAfterClear(t, ctrl, fs)

		// WHEN: restoring the cleared entry fails
		fs.failWrites = true
		_, err := ctrl.Undo(ctx)
		require.ErrorIs(t, err, errDisk)

		// THEN: the copied entry is untouched and the clear is still undoable
		assert.Equal(t, copied, slot(t, fs, "a", "2024-03-05"))
		assert.Equal(t, 2, ctrl.UndoDepth())

		fs.failWrites = false
		_, err = ctrl.Undo(ctx)
		require.NoError(t, err)
		assert.Equal(t, original, slot(t, fs, "a", "2024-03-05"))
	})
}

// =============================================================================
// COPY FROM PREVIOUS DAY
// =============================================================================

func TestCopyFromPreviousDay(t *testing.T) {
	forEachStore(t, func(t *testing.T, rs absence.RecordStore) {
		ctx := context.Background()
		ctrl := newController(t, rs)
		require.NoError(t, rs.PutEmployee(ctx, absence.Employee{ID: "A", Name: "Anna", Active: true, SortOrder: 0}))
		require.NoError(t, rs.PutEmployee(ctx, absence.Employee{ID: "B", Name: "Bernd", Active: true, SortOrder: 1}))

		// GIVEN: A on vacation yesterday, B sick today
		_, err := ctrl.ApplyEdit(ctx, edit("A", "2024-03-04", absence.CategoryVacation, absence.DurationFull))
		require.NoError(t, err)
		_, err = ctrl.ApplyEdit(ctx, edit("B", "2024-03-05", absence.CategorySick, absence.DurationFull))
		require.NoError(t, err)
		depth := ctrl.UndoDepth()

		// WHEN: copying into today
		res, err := ctrl.CopyFromPreviousDay(ctx, "2024-03-05")
		require.NoError(t, err)

		// THEN: A mirrors yesterday with a fresh id, B is cleared, undo untouched
		assert.Equal(t, absence.NoticeCopied, res.Notice)
		assert.Equal(t, 2, res.Affected)

		a := slot(t, rs, "A", "2024-03-05")
		require.NotNil(t, a)
		assert.Equal(t, absence.CategoryVacation, a.Category)
		assert.Equal(t, absence.DurationFull, a.Duration)
		assert.NotEqual(t, slot(t, rs, "A", "2024-03-04").ID, a.ID)
		assert.Nil(t, slot(t, rs, "B", "2024-03-05"))
		assert.Equal(t, depth, ctrl.UndoDepth())
	})
}

func TestCopyFromPreviousDay_NothingToCopy(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	ctrl := newController(t, mem)
	require.NoError(t, mem.PutEmployee(ctx, absence.Employee{ID: "B", Name: "Bernd", Active: true}))
	_, err := ctrl.ApplyEdit(ctx, edit("B", "2024-03-01", absence.CategorySick, absence.DurationFull))
	require.NoError(t, err)

	// Across a month boundary: 2024-02-29 is empty
	res, err := ctrl.CopyFromPreviousDay(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, absence.NoticeNothingToCopy, res.Notice)
	assert.NotNil(t, slot(t, mem, "B", "2024-03-01"))
}

func TestCopyFromPreviousDay_InvalidDate(t *testing.T) {
	ctrl := newController(t, store.NewMemory())
	_, err := ctrl.CopyFromPreviousDay(context.Background(), "2024-02-30")
	assert.True(t, absence.IsClientError(err))
}

// =============================================================================
// IMPORT / EXPORT
// =============================================================================

func TestExportImportRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, src absence.RecordStore) {
		ctx := context.Background()
		ctrl := newController(t, src)

		// GIVEN: N employees and M entries inserted in scrambled order
		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, src.PutEmployee(ctx, absence.Employee{ID: absence.EmployeeID(id), Name: "Name " + id, Active: id != "b"}))
		}
		for _, in := range []absence.EditInput{
			edit("b", "2024-03-09", absence.CategorySick, absence.DurationFull),
			edit("a", "2024-01-02", absence.CategoryFree, absence.DurationHalfAM),
			edit("c", "2024-03-09", absence.CategoryVacation, absence.DurationHalfPM),
		} {
			_, err := ctrl.ApplyEdit(ctx, in)
			require.NoError(t, err)
		}
		exported, err := ctrl.Export(ctx)
		require.NoError(t, err)

		// WHEN: imported into a memory store
		dst := store.NewMemory()
		res, err := newController(t, dst).Import(ctx, exported)
		require.NoError(t, err)
		assert.Equal(t, absence.NoticeImported, res.Notice)

		// THEN: the same records exist
		again, err := dst.ExportAll(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, exported.Employees, again.Employees)
		assert.ElementsMatch(t, exported.Entries, again.Entries)
	})
}

func TestImport_ClearsUndoAndRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	ctrl := newController(t, mem)
	_, err := ctrl.ApplyEdit(ctx, edit("a", "2024-03-04", absence.CategorySick, absence.DurationFull))
	require.NoError(t, err)

	_, err = ctrl.Import(ctx, absence.BackupData{})
	assert.True(t, absence.IsClientError(err))
	assert.Equal(t, 1, ctrl.UndoDepth())

	_, err = ctrl.Import(ctx, absence.BackupData{Meta: absence.BackupMeta{Version: absence.BackupVersion}})
	require.NoError(t, err)
	assert.Equal(t, 0, ctrl.UndoDepth())
	assert.Nil(t, slot(t, mem, "a", "2024-03-04"))
}

// =============================================================================
// UNAVAILABLE STORE
// =============================================================================

func TestController_UnavailableStore(t *testing.T) {
	ctx := context.Background()
	ctrl := newController(t, store.NewUnavailable(errors.New("no medium")))

	_, err := ctrl.ApplyEdit(ctx, edit("a", "2024-03-04", absence.CategorySick, absence.DurationFull))
	assert.True(t, absence.IsUnavailable(err))
	assert.Equal(t, 0, ctrl.UndoDepth())

	_, err = ctrl.CopyFromPreviousDay(ctx, "2024-03-04")
	assert.True(t, absence.IsUnavailable(err))

	_, err = ctrl.Export(ctx)
	assert.True(t, absence.IsUnavailable(err))
}

func ptr[T any](v T) *T { return &v }
