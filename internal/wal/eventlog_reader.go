package wal

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// eventLogReader iterates the records of an event log file independently
// of any open eventLog writer. Used by recoverNextTxn and by tests that
// assert on committed event history.
type eventLogReader struct {
	f   *os.File
	pos int64
}

func newEventLogReader(path string) (*eventLogReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log for reading: %w", err)
	}
	return &eventLogReader{f: f}, nil
}

// Next reads and validates the next event record, returning io.EOF once
// the log is exhausted.
func (r *eventLogReader) Next() (*eventRecord, error) {
	header := make([]byte, eventLogHeaderSize)
	n, err := io.ReadFull(r.f, header)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err == io.ErrUnexpectedEOF {
		if n == 0 {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("truncated event log header at offset %d", r.pos)
	}
	if err != nil {
		return nil, fmt.Errorf("read event log header at offset %d: %w", r.pos, err)
	}

	kind := EventKind(header[0])
	length := ByteOrder.Uint32(header[4:8])
	segmentTxn := int64(ByteOrder.Uint64(header[8:16]))
	crc := ByteOrder.Uint32(header[16:20])
	timestamp := int64(ByteOrder.Uint64(header[20:28]))

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r.f, payload); err != nil {
			return nil, fmt.Errorf("read event log payload at offset %d: %w", r.pos, err)
		}
	}

	if actual := crc32.ChecksumIEEE(payload); actual != crc {
		return nil, fmt.Errorf("event log CRC mismatch at offset %d: expected %08x, got %08x", r.pos, crc, actual)
	}

	r.pos += int64(eventLogHeaderSize) + int64(length)

	return &eventRecord{
		Kind:       kind,
		SegmentTxn: segmentTxn,
		Timestamp:  timestamp,
		Payload:    payload,
	}, nil
}

func (r *eventLogReader) Close() error {
	return r.f.Close()
}
