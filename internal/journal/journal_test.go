package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(code string, availability int) Entry {
	return Entry{
		UserID:       uuid.New(),
		CourseCode:   code,
		Availability: availability,
	}
}

func TestOpen_CreatesJournalWithHeader(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)
	defer j.Close()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.Len(t, data, headerSize)
	assert.Equal(t, journalMagic, string(data[0:8]))
	assert.Equal(t, 0, j.Len())
	assert.Empty(t, j.Pending())
}

func TestJournal_AppendCommit(t *testing.T) {
	ctx := context.Background()
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	first, err := j.Append(ctx, testEntry("CSE101", 19))
	require.NoError(t, err)
	second, err := j.Append(ctx, testEntry("MTH201", 14))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)

	pending := j.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "CSE101", pending[0].CourseCode)
	assert.Equal(t, 19, pending[0].Availability)
	assert.False(t, pending[0].RecordedAt.IsZero())

	require.NoError(t, j.Commit(ctx, first))

	pending = j.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].Sequence)
	assert.Equal(t, 2, j.Len())

	err = j.Commit(ctx, first)
	require.ErrorContains(t, err, "no pending intent")
}

func TestJournal_AbortSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)

	aborted, err := j.Append(ctx, testEntry("CSE101", 19))
	require.NoError(t, err)
	kept, err := j.Append(ctx, testEntry("MTH201", 14))
	require.NoError(t, err)

	require.NoError(t, j.Abort(ctx, aborted))
	require.ErrorContains(t, j.Abort(ctx, aborted), "no pending intent")
	require.ErrorContains(t, j.Commit(ctx, aborted), "no pending intent")

	pending := j.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, kept, pending[0].Sequence)
	require.NoError(t, j.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	pending = reopened.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "MTH201", pending[0].CourseCode)
	assert.Equal(t, 2, reopened.Len())

	// Resolved intents no longer block archiving
	require.NoError(t, reopened.Commit(ctx, kept))
	archivePath, err := reopened.Archive(filepath.Join(dir, "archive"))
	require.NoError(t, err)

	entries, err := readArchive(archivePath)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestJournal_ReopenRestoresPendingAndSequence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)

	entry := testEntry("PHY150", 9)
	seq1, err := j.Append(ctx, entry)
	require.NoError(t, err)
	seq2, err := j.Append(ctx, testEntry("ENG210", 24))
	require.NoError(t, err)
	require.NoError(t, j.Commit(ctx, seq2))
	require.NoError(t, j.Close())

	j, err = Open(dir)
	require.NoError(t, err)
	defer j.Close()

	pending := j.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, seq1, pending[0].Sequence)
	assert.Equal(t, entry.UserID, pending[0].UserID)
	assert.Equal(t, "PHY150", pending[0].CourseCode)
	assert.Equal(t, 9, pending[0].Availability)

	seq3, err := j.Append(ctx, testEntry("CSE101", 18))
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq3, "sequence continues after reopen")
}

func TestJournal_TruncatesTornTail(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	j, err := Open(dir)
	require.NoError(t, err)
	_, err = j.Append(ctx, testEntry("CSE101", 19))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	validSize := info.Size()

	// Simulate a crash halfway through the next append
	partial := buildRecord(2, kindIntent, time.Now(), []byte(`{"courseCode":"MTH201"}`))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(partial[:len(partial)/2])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	j, err = Open(dir)
	require.NoError(t, err)
	defer j.Close()

	require.Len(t, j.Pending(), 1)

	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, validSize, info.Size())

	seq, err := j.Append(ctx, testEntry("MTH201", 14))
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
}

func TestJournal_TruncatesOnChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	j, err := Open(dir)
	require.NoError(t, err)
	_, err = j.Append(ctx, testEntry("CSE101", 19))
	require.NoError(t, err)
	_, err = j.Append(ctx, testEntry("MTH201", 14))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	// Flip a payload byte in the last record
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-12] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	j, err = Open(dir)
	require.NoError(t, err)
	defer j.Close()

	pending := j.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "CSE101", pending[0].CourseCode)
}

func TestOpen_RejectsForeignFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("NOTAJOURNALFILE!"), 0o644))

	_, err := Open(dir)
	require.ErrorContains(t, err, "invalid magic")
}

func TestOpen_EmptyFileTreatedAsNew(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), nil, 0o644))

	j, err := Open(dir)
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Append(context.Background(), testEntry("CSE101", 19))
	require.NoError(t, err)
}

func TestJournal_Closed(t *testing.T) {
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close(), "close is idempotent")

	_, err = j.Append(context.Background(), testEntry("CSE101", 19))
	require.ErrorIs(t, err, ErrClosed)

	err = j.Commit(context.Background(), 1)
	require.ErrorIs(t, err, ErrClosed)

	err = j.Abort(context.Background(), 1)
	require.ErrorIs(t, err, ErrClosed)

	_, err = j.Archive(t.TempDir())
	require.ErrorIs(t, err, ErrClosed)
}

func TestJournal_Archive(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")

	j, err := Open(dir)
	require.NoError(t, err)
	defer j.Close()

	// Nothing recorded yet, nothing to archive
	archivePath, err := j.Archive(archiveDir)
	require.NoError(t, err)
	assert.Empty(t, archivePath)

	seq, err := j.Append(ctx, testEntry("CSE101", 19))
	require.NoError(t, err)

	_, err = j.Archive(archiveDir)
	require.ErrorContains(t, err, "pending intents")

	require.NoError(t, j.Commit(ctx, seq))

	archivePath, err = j.Archive(archiveDir)
	require.NoError(t, err)
	require.FileExists(t, archivePath)

	entries, err := readArchive(archivePath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "CSE101", entries[0].CourseCode)
	assert.Equal(t, seq, entries[0].Sequence)

	// The live journal starts over empty and stays usable
	assert.Equal(t, 0, j.Len())
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Len(t, data, headerSize)

	_, err = j.Append(ctx, testEntry("MTH201", 14))
	require.NoError(t, err)
}

func TestCleanupArchive(t *testing.T) {
	archiveDir := t.TempDir()

	oldPath := filepath.Join(archiveDir, "enrollments-1"+archiveSuffix)
	newPath := filepath.Join(archiveDir, "enrollments-2"+archiveSuffix)
	otherPath := filepath.Join(archiveDir, "notes.txt")
	for _, p := range []string{oldPath, newPath, otherPath} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	old := time.Now().AddDate(0, 0, -45)
	require.NoError(t, os.Chtimes(oldPath, old, old))
	require.NoError(t, os.Chtimes(otherPath, old, old))

	deleted, err := CleanupArchive(archiveDir, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, newPath)
	assert.FileExists(t, otherPath)

	deleted, err = CleanupArchive(archiveDir, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = CleanupArchive(filepath.Join(archiveDir, "missing"), 30)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
