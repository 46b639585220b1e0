package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

const archiveSuffix = ".journal.zst"

// archiveJournal compresses the journal with zstd into archiveDir and returns
// the archive path. The source file is left in place.
func archiveJournal(journalPath, archiveDir string) (string, error) {
	src, err := os.Open(journalPath)
	if err != nil {
		return "", fmt.Errorf("failed to open journal: %w", err)
	}
	defer src.Close()

	srcInfo, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat journal: %w", err)
	}

	archivePath := filepath.Join(archiveDir, fmt.Sprintf("enrollments-%d%s", time.Now().UnixNano(), archiveSuffix))
	dst, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		dst.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to create encoder: %w", err)
	}

	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		dst.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to compress: %w", err)
	}

	// Close encoder to flush
	if err := enc.Close(); err != nil {
		dst.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to close encoder: %w", err)
	}

	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to fsync archive: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	dstInfo, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	log.Info().
		Int64("original_bytes", srcInfo.Size()).
		Int64("compressed_bytes", dstInfo.Size()).
		Str("archive_path", archivePath).
		Msg("Journal archived with zstd compression")

	return archivePath, nil
}

// readArchive decompresses an archived journal and returns its intents in
// file order, with Sequence and RecordedAt populated.
func readArchive(archivePath string) ([]Entry, error) {
	src, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer src.Close()

	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}

	if len(data) < headerSize || string(data[0:8]) != journalMagic {
		return nil, fmt.Errorf("archive is not a journal")
	}
	if version := binary.LittleEndian.Uint32(data[8:12]); version != journalVersion {
		return nil, fmt.Errorf("unsupported version: %d", version)
	}

	r := bytes.NewReader(data[headerSize:])
	var entries []Entry
	for {
		sequence, kind, at, payload, _, err := readRecord(r)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("corrupt archive: %w", err)
		}

		if kind != kindIntent {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode intent %d: %w", sequence, err)
		}
		entry.Sequence = sequence
		entry.RecordedAt = at
		entries = append(entries, entry)
	}
}

// CleanupArchive removes archived journals older than the retention period
// and returns how many were deleted.
func CleanupArchive(archiveDir string, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		log.Debug().Msg("Archive cleanup disabled (retentionDays <= 0)")
		return 0, nil
	}

	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read archive directory: %w", err)
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), archiveSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to get file info, skipping")
			continue
		}

		if !info.ModTime().Before(cutoffTime) {
			continue
		}

		filePath := filepath.Join(archiveDir, entry.Name())
		if err := os.Remove(filePath); err != nil {
			log.Warn().Err(err).Str("file", filePath).Msg("Failed to delete old archive file")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.Info().
			Str("archive_dir", archiveDir).
			Int("deleted_files", deleted).
			Msg("Archive cleanup completed")
	}

	return deleted, nil
}
