package absence_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/absence-tracker/absence"
	"github.com/warp/absence-tracker/absence/store"
)

func newRoster(mem *store.Memory) *absence.Roster {
	r := absence.NewRoster(mem, nil)
	seq := 0
	r.NewID = func() absence.EmployeeID {
		seq++
		return absence.EmployeeID(fmt.Sprintf("emp-%d", seq))
	}
	return r
}

func TestRoster_SeedIfEmpty(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	r := newRoster(mem)

	n, err := r.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(absence.DefaultEmployeeNames), n)

	// WHEN: seeding again
	n, err = r.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(absence.DefaultEmployeeNames))
	assert.Equal(t, "Anna", list[0].Name)
	assert.Equal(t, "Hannes", list[len(list)-1].Name)
}

func TestRoster_AddUpdateRemove(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	r := newRoster(mem)

	anna, err := r.Add(ctx, "  Anna ")
	require.NoError(t, err)
	assert.Equal(t, "Anna", anna.Name)
	assert.True(t, anna.Active)
	assert.Equal(t, 0, anna.SortOrder)

	bernd, err := r.Add(ctx, "Bernd")
	require.NoError(t, err)
	assert.Equal(t, 1, bernd.SortOrder)

	_, err = r.Add(ctx, "   ")
	assert.True(t, absence.IsClientError(err))

	anna.Active = false
	anna.Name = "Anna K."
	updated, err := r.Update(ctx, anna)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	got, err := r.Get(ctx, anna.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anna K.", got.Name)

	_, err = r.Update(ctx, absence.Employee{ID: "missing", Name: "X"})
	assert.True(t, absence.IsNotFound(err))

	// GIVEN: an entry for Bernd; WHEN: Bernd is removed; THEN: the entry stays
	require.NoError(t, mem.PutEntry(ctx, absence.Entry{
		ID: "e1", EmployeeID: bernd.ID, Date: "2024-03-05", Category: absence.CategoryFree, Duration: absence.DurationFull,
	}))
	require.NoError(t, r.Remove(ctx, bernd.ID))
	_, err = r.Get(ctx, bernd.ID)
	assert.True(t, absence.IsNotFound(err))

	entries, err := mem.ListEntriesByEmployee(ctx, bernd.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// readOnlyStore rejects employee writes.
type readOnlyStore struct {
	absence.RecordStore
}

func (readOnlyStore) PutEmployee(context.Context, absence.Employee) error { return errDisk }

func TestRoster_PassesStoreErrorsThrough(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutEmployee(ctx, absence.Employee{ID: "a", Name: "Anna", Active: true}))
	r := newRoster(mem)
	r.Store = readOnlyStore{RecordStore: mem}

	_, err := r.Add(ctx, "Bernd")
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, errDisk.Error(), err.Error())

	_, err = r.Update(ctx, absence.Employee{ID: "a", Name: "Anna K.", Active: true})
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, errDisk.Error(), err.Error())
}
