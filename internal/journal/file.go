package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
)

const (
	journalMagic   = "SPJRNL01"
	journalVersion = uint32(1)
	headerSize     = 16 // 8 bytes magic + 4 bytes version + 4 bytes reserved

	recordOverhead = 32      // length + sequence + kind + reserved + timestamp + crc
	maxRecordSize  = 1 << 20 // 1MiB, far beyond any enrollment payload

	kindIntent uint8 = 1
	kindCommit uint8 = 2
	kindAbort  uint8 = 3
)

// writeHeader writes the journal file header.
func (j *Journal) writeHeader() error {
	header := make([]byte, headerSize)
	copy(header[0:8], journalMagic)
	binary.LittleEndian.PutUint32(header[8:12], journalVersion)

	if _, err := j.file.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	return nil
}

// appendRecord writes one record at the end of the file and fsyncs it.
func (j *Journal) appendRecord(sequence int64, kind uint8, at time.Time, payload []byte) error {
	offset, err := j.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	if _, err := j.file.Write(buildRecord(sequence, kind, at, payload)); err != nil {
		// Drop the partial record so the next append starts clean
		if truncErr := j.file.Truncate(offset); truncErr != nil {
			log.Warn().Err(truncErr).Msg("Failed to truncate partial journal record")
		}
		return fmt.Errorf("failed to write record: %w", err)
	}

	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to fsync: %w", err)
	}

	return nil
}

// buildRecord constructs a binary record.
//
// Record format (total: 32 + payload_len bytes):
// - Length (4 bytes, uint32) - total record length including this field
// - Sequence (8 bytes, int64) - intent sequence; a commit repeats its intent's sequence
// - Kind (1 byte, uint8) - kindIntent/kindCommit/kindAbort
// - Reserved (3 bytes)
// - Timestamp (8 bytes, int64) - Unix milliseconds
// - Payload (variable) - JSON Entry for intents, empty for commits
// - CRC64 (8 bytes, uint64) - CRC64-NVME of everything between length and CRC
func buildRecord(sequence int64, kind uint8, at time.Time, payload []byte) []byte {
	//nolint:gosec // payload size is bounded by maxRecordSize
	totalLength := uint32(recordOverhead + len(payload))
	buf := new(bytes.Buffer)

	// binary.Write to bytes.Buffer never errors
	_ = binary.Write(buf, binary.LittleEndian, totalLength)
	_ = binary.Write(buf, binary.LittleEndian, sequence)
	buf.WriteByte(kind)
	buf.Write([]byte{0, 0, 0})
	_ = binary.Write(buf, binary.LittleEndian, at.UnixMilli())
	buf.Write(payload)

	crc := computeCRC64(buf.Bytes()[4:])
	_ = binary.Write(buf, binary.LittleEndian, crc)

	return buf.Bytes()
}

func computeCRC64(data []byte) uint64 {
	h := crc64nvme.New()
	h.Write(data)
	return h.Sum64()
}

// loadIndex scans the journal and rebuilds the index. Scanning stops at the
// first torn or corrupt record and the file is truncated there, since every
// record after it was written later and can't have been relied upon.
func (j *Journal) loadIndex() error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(j.file, header); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	if magic := string(header[0:8]); magic != journalMagic {
		return fmt.Errorf("invalid magic: %q", magic)
	}

	if version := binary.LittleEndian.Uint32(header[8:12]); version != journalVersion {
		return fmt.Errorf("unsupported version: %d", version)
	}

	offset := int64(headerSize)
	intents, commits, aborts := 0, 0, 0

	for {
		sequence, kind, at, payload, n, err := readRecord(j.file)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn().
				Err(err).
				Int64("offset", offset).
				Msg("Corrupt journal record, truncating journal")
			if truncErr := j.file.Truncate(offset); truncErr != nil {
				return fmt.Errorf("failed to truncate corrupt journal: %w", truncErr)
			}
			break
		}

		switch kind {
		case kindIntent:
			var entry Entry
			if err := json.Unmarshal(payload, &entry); err != nil {
				return fmt.Errorf("failed to decode intent %d: %w", sequence, err)
			}
			entry.Sequence = sequence
			entry.RecordedAt = at
			j.index.AddIntent(entry)
			intents++

			if sequence >= j.nextSequence {
				j.nextSequence = sequence + 1
			}
		case kindCommit:
			j.index.MarkCommitted(sequence)
			commits++
		case kindAbort:
			j.index.MarkAborted(sequence)
			aborts++
		default:
			return fmt.Errorf("unknown record kind %d at offset %d", kind, offset)
		}

		offset += n
	}

	log.Debug().
		Int("intents", intents).
		Int("commits", commits).
		Int("aborts", aborts).
		Int64("next_sequence", j.nextSequence).
		Msg("Journal index loaded")

	return nil
}

// readRecord reads and validates the record at the current file position.
// It returns io.EOF only at a clean record boundary.
func readRecord(r io.Reader) (sequence int64, kind uint8, at time.Time, payload []byte, n int64, err error) {
	var length uint32
	if err = binary.Read(r, binary.LittleEndian, &length); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, 0, time.Time{}, nil, 0, io.EOF
		}
		return 0, 0, time.Time{}, nil, 0, fmt.Errorf("failed to read length: %w", err)
	}

	if length < recordOverhead || length > maxRecordSize {
		return 0, 0, time.Time{}, nil, 0, fmt.Errorf("invalid record length: %d", length)
	}

	data := make([]byte, length-4)
	if _, err = io.ReadFull(r, data); err != nil {
		return 0, 0, time.Time{}, nil, 0, fmt.Errorf("failed to read record: %w", err)
	}

	storedCRC := binary.LittleEndian.Uint64(data[len(data)-8:])
	if computed := computeCRC64(data[:len(data)-8]); storedCRC != computed {
		return 0, 0, time.Time{}, nil, 0, fmt.Errorf("CRC64 mismatch: stored=%x computed=%x", storedCRC, computed)
	}

	//nolint:gosec // sequences and timestamps are always positive
	sequence = int64(binary.LittleEndian.Uint64(data[0:8]))
	kind = data[8]
	//nolint:gosec // see above
	at = time.UnixMilli(int64(binary.LittleEndian.Uint64(data[12:20])))
	payload = data[20 : len(data)-8]

	return sequence, kind, at, payload, int64(length), nil
}
