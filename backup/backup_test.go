package backup_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/absence-tracker/absence"
	"github.com/warp/absence-tracker/absence/store"
	"github.com/warp/absence-tracker/backup"
)

func sampleData() absence.BackupData {
	return absence.BackupData{
		Employees: []absence.Employee{{ID: "a", Name: "Anna", Active: true}},
		Entries: []absence.Entry{{
			ID: "e1", EmployeeID: "a", Date: "2024-03-05",
			Category: absence.CategoryVacation, Duration: absence.DurationFull,
			Note: "Lisbon", UpdatedAt: 1709600000000,
		}},
		Meta: absence.BackupMeta{Version: absence.BackupVersion, ExportedAt: 1709600000000},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, backup.Encode(&buf, sampleData(), compress))

		if compress {
			assert.Equal(t, byte(0xFD), buf.Bytes()[0])
		} else {
			assert.True(t, strings.HasPrefix(buf.String(), "{"))
		}

		got, err := backup.Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, sampleData(), got)
	}
}

func TestCodec_DecodeMalformed(t *testing.T) {
	_, err := backup.Decode(strings.NewReader("not json"))
	assert.True(t, absence.IsClientError(err))

	// xz magic followed by garbage
	_, err = backup.Decode(strings.NewReader("\xFD7zXZ\x00garbage"))
	assert.True(t, absence.IsClientError(err))

	// a valid xz stream cut short
	var buf bytes.Buffer
	require.NoError(t, backup.Encode(&buf, sampleData(), true))
	_, err = backup.Decode(bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
	assert.True(t, absence.IsClientError(err))
}

func TestCodec_DecodeKeepsMaxBytesError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, backup.Encode(&buf, sampleData(), false))

	limited := http.MaxBytesReader(nil, io.NopCloser(&buf), 16)
	_, err := backup.Decode(limited)

	var tooLarge *http.MaxBytesError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(16), tooLarge.Limit)
	assert.False(t, absence.IsClientError(err))
}

func TestFileSink(t *testing.T) {
	ctx := context.Background()
	sink, err := backup.NewFileSink(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, backup.DriverFilesystem, sink.Driver())

	archive, err := sink.Put(ctx, "absence-1.json", strings.NewReader("{}"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), archive.Size)

	list, err := sink.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "absence-1.json", list[0].Key)

	_, err = sink.Get(ctx, "absence-2.json")
	assert.True(t, absence.IsNotFound(err))

	_, err = sink.Put(ctx, "../escape.json", strings.NewReader("{}"))
	assert.True(t, absence.IsClientError(err))
}

func newService(t *testing.T, compress bool) (*backup.Service, *absence.Controller, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ctrl := absence.NewController(mem)
	sink, err := backup.NewFileSink(t.TempDir())
	require.NoError(t, err)

	svc := backup.NewService(ctrl, sink, compress, nil)
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, ctrl, mem
}

func TestService_BackupAndRestore(t *testing.T) {
	ctx := context.Background()

	for _, compress := range []bool{false, true} {
		svc, ctrl, mem := newService(t, compress)

		// GIVEN: a store with data and an archive of it
		require.NoError(t, mem.ImportAll(ctx, sampleData()))
		archive, err := svc.Backup(ctx)
		require.NoError(t, err)
		if compress {
			assert.True(t, strings.HasSuffix(archive.Key, ".json.xz"))
		} else {
			assert.True(t, strings.HasSuffix(archive.Key, ".json"))
		}

		// WHEN: the data changes and the archive is restored
		_, err = ctrl.ApplyEdit(ctx, absence.EditInput{EmployeeID: "a", Date: "2024-03-05", Category: absence.CategoryNone})
		require.NoError(t, err)

		res, err := svc.Restore(ctx, archive.Key)
		require.NoError(t, err)
		assert.Equal(t, absence.NoticeImported, res.Notice)

		// THEN: the entry is back and the undo history is gone
		got, err := mem.FindEntryByEmployeeAndDate(ctx, "a", "2024-03-05")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Lisbon", got.Note)
		assert.Equal(t, 0, ctrl.UndoDepth())
	}
}

func TestService_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t, false)

	first, err := svc.Backup(ctx)
	require.NoError(t, err)
	second, err := svc.Backup(ctx)
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Key, list[0].Key)
	assert.Equal(t, first.Key, list[1].Key)
}

func TestService_RestoreMissingArchive(t *testing.T) {
	svc, _, _ := newService(t, false)

	_, err := svc.Restore(context.Background(), "absence-missing.json")
	assert.True(t, absence.IsNotFound(err))
}

func TestService_RestoreInvalidArchiveChangesNothing(t *testing.T) {
	ctx := context.Background()
	svc, _, mem := newService(t, false)
	require.NoError(t, mem.ImportAll(ctx, sampleData()))

	_, err := svc.Sink.Put(ctx, "absence-bad.json", strings.NewReader(`{"employees":[],"entries":[],"meta":{}}`))
	require.NoError(t, err)

	_, err = svc.Restore(ctx, "absence-bad.json")
	assert.True(t, absence.IsClientError(err))

	employees, err := mem.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, employees, 1)
}

func TestScheduler(t *testing.T) {
	svc, _, _ := newService(t, true)

	// GIVEN: a disabled scheduler
	disabled := backup.NewScheduler(svc, 0, nil)
	disabled.Start()
	disabled.Stop()
	assert.Equal(t, 0, disabled.Runs())

	// WHEN: an enabled scheduler starts
	s := backup.NewScheduler(svc, time.Hour, nil)
	s.Start()
	require.Eventually(t, func() bool { return s.Runs() == 1 }, 5*time.Second, 10*time.Millisecond)
	s.Stop()

	// THEN: the immediate run produced an archive
	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
