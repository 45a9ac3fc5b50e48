package wal

import (
	"fmt"
	"hash/crc32"
	"io"
)

// eventLogHeaderSize is the fixed size of one event log record header:
// Kind(1) + pad(3) + Length(4) + SegmentTxn(8) + CRC32(4) + Timestamp(8).
const eventLogHeaderSize = 28

// eventRecord is one entry in a segment's local event log: every commit
// (DATA) and truncate (TRUNCATE) is appended here with a segment-local,
// 0-based txn index distinct from the sequencer's global transaction
// number. EventSQL is a defined kind, but no writer path appends it.
type eventRecord struct {
	Kind       EventKind
	SegmentTxn int64
	Timestamp  int64
	Payload    []byte
}

// eventLog is the append-only, CRC-checked record stream backing one
// segment, grounded in the same header/CRC32/length-prefix discipline the
// teacher's wal.WAL.writeRecord uses for its own WAL records.
type eventLog struct {
	file       *appendFile
	nextTxn    int64
}

func openEventLog(path string) (*eventLog, error) {
	f, err := openAppendFile(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	el := &eventLog{file: f}
	if f.Size() > 0 {
		if err := el.recoverNextTxn(); err != nil {
			f.Close(false)
			return nil, err
		}
	}
	return el, nil
}

// recoverNextTxn replays the existing log purely to find the next
// segment-local txn index, used when reopening a segment that already
// has committed transactions.
func (l *eventLog) recoverNextTxn() error {
	r, err := newEventLogReader(l.file.path)
	if err != nil {
		return err
	}
	defer r.Close()

	var maxTxn int64 = -1
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("recover event log txn counter: %w", err)
		}
		if rec.SegmentTxn > maxTxn {
			maxTxn = rec.SegmentTxn
		}
	}
	l.nextTxn = maxTxn + 1
	return nil
}

// Append writes one event record and returns the segment-local txn index
// assigned to it.
func (l *eventLog) Append(kind EventKind, timestamp int64, payload []byte) (int64, error) {
	txn := l.nextTxn

	buf := make([]byte, eventLogHeaderSize+len(payload))
	buf[0] = byte(kind)
	ByteOrder.PutUint32(buf[4:8], uint32(len(payload)))
	ByteOrder.PutUint64(buf[8:16], uint64(txn))
	crc := crc32.ChecksumIEEE(payload)
	ByteOrder.PutUint32(buf[16:20], crc)
	ByteOrder.PutUint64(buf[20:28], uint64(timestamp))
	copy(buf[eventLogHeaderSize:], payload)

	if _, err := l.file.Append(buf); err != nil {
		return 0, fmt.Errorf("append event record: %w", err)
	}

	l.nextTxn++
	return txn, nil
}

// NextTxn reports the segment-local txn index the next Append will use.
func (l *eventLog) NextTxn() int64 {
	return l.nextTxn
}

func (l *eventLog) sync() error {
	return l.file.sync()
}

func (l *eventLog) close() error {
	return l.file.Close(false)
}

