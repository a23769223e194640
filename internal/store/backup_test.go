package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapaq-pipeline/internal/model"
)

func TestSnapshotAndRestore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bm := &BackupManager{Dir: t.TempDir()}

	_, _, err := s.Persist(ctx, []*model.Record{testRecord("REST_00001", "2024-03-15", 2)})
	require.NoError(t, err)

	handle, err := bm.Snapshot(s)
	require.NoError(t, err)
	assert.FileExists(t, handle.Path)

	// Mutate past the snapshot, then roll back.
	_, _, err = s.Persist(ctx, []*model.Record{testRecord("REST_00002", "2024-03-15", 0)})
	require.NoError(t, err)
	n, err := s.CountRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, bm.Restore(handle, s))
	n, err = s.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "restore returns the store to its pre-write state")
}

func TestRestoreWithoutHandle(t *testing.T) {
	s := openTestStore(t)
	bm := &BackupManager{Dir: t.TempDir()}

	assert.Error(t, bm.Restore(nil, s))
	assert.Error(t, bm.Restore(&BackupHandle{Path: "/nowhere/backup.db"}, s))
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	bm := &BackupManager{Dir: dir}

	old := dir + "/backup_old.db"
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	fresh := dir + "/backup_fresh.db"
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	require.NoError(t, bm.Prune(24*time.Hour))
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}
