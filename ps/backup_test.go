package ps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/TableDB/core"
)

type staticSource []core.TableSnapshot

func (s staticSource) Enumerate() []core.TableSnapshot { return s }

// clock returns a Now func that advances one second per call.
func clock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func TestBackupFileName(t *testing.T) {
	ts := time.Date(2026, 3, 7, 9, 5, 1, 0, time.UTC)
	assert.Equal(t, "backup_20260307_090501.json", BackupFileName(ts))
}

func TestBackupNowWritesDocument(t *testing.T) {
	dir := t.TempDir()
	s := NewBackupScheduler(staticSource(companyTables()), BackupOptions{
		Dir: dir,
		Now: clock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	})

	result, err := s.BackupNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_20260101_000000.json"), result.Path)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	tables, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Len(t, tables, 2)
}

func TestBackupRotationKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep me"), 0644))

	s := NewBackupScheduler(staticSource(nil), BackupOptions{
		Dir:  dir,
		Keep: 3,
		Now:  clock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	for i := 0; i < 5; i++ {
		_, err := s.BackupNow(context.Background())
		require.NoError(t, err)
	}

	names, err := ListBackups(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"backup_20260101_000002.json",
		"backup_20260101_000003.json",
		"backup_20260101_000004.json",
	}, names)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestBackupDefaults(t *testing.T) {
	s := NewBackupScheduler(staticSource(nil), BackupOptions{})
	assert.Equal(t, DefaultBackupInterval, s.opts.Interval)
	assert.Equal(t, DefaultBackupKeep, s.opts.Keep)
}

func TestBackupToArchiveAndUpload(t *testing.T) {
	archive := newArchive(t)
	uploads := t.TempDir() + "/"

	s := NewBackupScheduler(staticSource(companyTables()), BackupOptions{
		Archive:   archive,
		Identity:  testIdentity,
		UploadURL: uploads,
		Now:       clock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
	})

	result, err := s.BackupNow(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Path)
	assert.NotEmpty(t, result.Revision.Id)
	assert.Equal(t, uploads+"backup_20260101_120000.json", result.Uploaded)
	assert.FileExists(t, result.Uploaded)

	tables, _, err := archive.LatestSnapshot()
	require.NoError(t, err)
	assert.Len(t, tables, 2)
}

func TestBackupReportsFailedDestination(t *testing.T) {
	s := NewBackupScheduler(staticSource(nil), BackupOptions{
		UploadURL: "http://example.invalid/backup.json",
	})
	_, err := s.BackupNow(context.Background())
	assert.ErrorIs(t, err, ErrReadOnlyLocation)
}

func TestRunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	s := NewBackupScheduler(staticSource(nil), BackupOptions{
		Dir:      dir,
		Interval: 10 * time.Millisecond,
		Now:      clock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		names, _ := ListBackups(dir)
		return len(names) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
