package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FileName is the journal file inside the data directory.
const FileName = "enrollments.journal"

// ErrClosed is returned when the journal has been closed.
var ErrClosed = errors.New("journal is closed")

// Entry is an enrollment intent: the state both collection files must reach.
type Entry struct {
	Sequence     int64     `json:"-"`
	RecordedAt   time.Time `json:"-"`
	UserID       uuid.UUID `json:"userId"`
	CourseCode   string    `json:"courseCode"`
	Availability int       `json:"availability"` // seats left after this enrollment
}

// Journal is an append-only redo log for enrollments.
// An intent is fsynced before either collection file is written and a commit
// record follows once both writes succeed, so intents without a commit are
// exactly the enrollments that may be half applied. An intent whose first
// write failed is aborted instead and never replayed.
type Journal struct {
	mu    sync.Mutex
	dir   string
	path  string
	file  *os.File
	index *journalIndex

	nextSequence int64
}

// Open opens or creates the journal in dir and loads its index.
// A corrupt or torn tail is truncated at the first bad record.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{
		dir:          dir,
		path:         filepath.Join(dir, FileName),
		index:        newJournalIndex(),
		nextSequence: 1,
	}

	if err := j.openOrCreate(); err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	log.Info().
		Str("path", j.path).
		Int("records", j.index.Count()).
		Int("pending", j.index.CountPending()).
		Msg("Journal opened")

	return j, nil
}

// openOrCreate opens the existing journal or creates a new one with a header.
func (j *Journal) openOrCreate() error {
	// A zero-length file is a crash before the header was written
	fileExists := false
	if info, err := os.Stat(j.path); err == nil && info.Size() > 0 {
		fileExists = true
	}

	var err error
	j.file, err = os.OpenFile(j.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	if !fileExists {
		if err := j.writeHeader(); err != nil {
			j.file.Close()
			return err
		}
		if err := j.file.Sync(); err != nil {
			j.file.Close()
			return fmt.Errorf("failed to fsync header: %w", err)
		}
		return nil
	}

	if err := j.loadIndex(); err != nil {
		j.file.Close()
		return fmt.Errorf("failed to load index: %w", err)
	}

	// Appends continue after the last valid record
	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		j.file.Close()
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	return nil
}

// Append durably records an enrollment intent and returns its sequence.
func (j *Journal) Append(ctx context.Context, entry Entry) (int64, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return 0, ErrClosed
	}

	sequence := j.nextSequence
	recordedAt := time.Now()

	if err := j.appendRecord(sequence, kindIntent, recordedAt, payload); err != nil {
		return 0, err
	}
	j.nextSequence++

	entry.Sequence = sequence
	entry.RecordedAt = recordedAt
	j.index.AddIntent(entry)

	log.Debug().
		Int64("sequence", sequence).
		Str("course_code", entry.CourseCode).
		Msg("Enrollment intent journaled")

	return sequence, nil
}

// Commit durably marks the intent with the given sequence as applied.
func (j *Journal) Commit(ctx context.Context, sequence int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return ErrClosed
	}

	if !j.index.IsPending(sequence) {
		return fmt.Errorf("no pending intent with sequence %d", sequence)
	}

	if err := j.appendRecord(sequence, kindCommit, time.Now(), nil); err != nil {
		return err
	}
	j.index.MarkCommitted(sequence)

	log.Debug().Int64("sequence", sequence).Msg("Enrollment intent committed")

	return nil
}

// Abort durably marks the intent with the given sequence as abandoned. It is
// for intents whose writes failed before any collection file changed, so
// replay must not apply them.
func (j *Journal) Abort(ctx context.Context, sequence int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return ErrClosed
	}

	if !j.index.IsPending(sequence) {
		return fmt.Errorf("no pending intent with sequence %d", sequence)
	}

	if err := j.appendRecord(sequence, kindAbort, time.Now(), nil); err != nil {
		return err
	}
	j.index.MarkAborted(sequence)

	log.Debug().Int64("sequence", sequence).Msg("Enrollment intent aborted")

	return nil
}

// Pending returns intents with neither a commit nor an abort, in sequence order.
func (j *Journal) Pending() []Entry {
	return j.index.Pending()
}

// Len returns the number of intents recorded in the current journal file.
func (j *Journal) Len() int {
	return j.index.Count()
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	err := j.file.Close()
	j.file = nil
	if err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}

// Archive compresses the current journal into archiveDir and starts a fresh,
// empty journal. It refuses to run while intents are pending; an empty
// journal is left untouched.
func (j *Journal) Archive(archiveDir string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return "", ErrClosed
	}

	if pending := j.index.CountPending(); pending > 0 {
		return "", fmt.Errorf("cannot archive journal with %d pending intents", pending)
	}

	if j.index.Count() == 0 {
		return "", nil
	}

	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := j.file.Close(); err != nil {
		return "", fmt.Errorf("failed to close journal before archiving: %w", err)
	}
	j.file = nil

	archivePath, err := archiveJournal(j.path, archiveDir)
	if err != nil {
		// Keep the journal usable when compression fails
		if reopenErr := j.openOrCreate(); reopenErr != nil {
			return "", errors.Join(err, reopenErr)
		}
		return "", err
	}

	// The live journal is only removed once its archive reads back whole
	archived, err := readArchive(archivePath)
	if err == nil && len(archived) != j.index.Count() {
		err = fmt.Errorf("archive holds %d intents, journal has %d", len(archived), j.index.Count())
	}
	if err != nil {
		_ = os.Remove(archivePath)
		if reopenErr := j.openOrCreate(); reopenErr != nil {
			return "", errors.Join(err, reopenErr)
		}
		return "", fmt.Errorf("failed to verify archive %s: %w", archivePath, err)
	}

	if err := os.Remove(j.path); err != nil {
		return archivePath, fmt.Errorf("archived to %s but failed to remove journal: %w", archivePath, err)
	}

	j.index = newJournalIndex()
	if err := j.openOrCreate(); err != nil {
		return archivePath, fmt.Errorf("failed to start new journal: %w", err)
	}

	return archivePath, nil
}
