package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rileykamath/coldbwal/internal/domain/schema"
)

// Segment is one on-disk generation of a table's append path: a directory
// holding a column file pair per live column, a symbol dictionary
// extension per symbol column, a metadata snapshot, and a local event log
// A Writer always has exactly one open segment; rollover
// closes the current one and opens the next with an incremented
// segmentID but the identical directory layout.
type Segment struct {
	dir       string
	id        int64
	meta      *schema.TableMetadata
	columns   []*columnFilePair
	symbols   []*symbolInterner
	eventLog  *eventLog
	lock      *fileLock

	committedRows   int64
	uncommittedRows int64

	// txnStartRow/txnMinTs/txnMaxTs/txnOutOfOrder track the currently open
	// (uncommitted) transaction's row range and designated-timestamp
	// envelope, refreshed by observeRowTimestamp on every appended row and
	// consumed by the writer's commit coordinator to build the DATA event
	// record.
	txnStartRow   int64
	txnMinTs      int64
	txnMaxTs      int64
	txnOutOfOrder bool
}

// openSegment creates (or reopens) segment id under walDir, materializing
// the metadata snapshot and every live column's file pair. baseDictDir, if
// non-empty, is the base table's symbol dictionary directory hard-linked
// into every symbol column's local directory.
func openSegment(walDir string, id int64, meta *schema.TableMetadata, baseDictDir string) (*Segment, error) {
	dir := filepath.Join(walDir, strconv.FormatInt(id, 10))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create segment %d directory: %w", id, err)
	}

	lock, err := acquireFileLock(filepath.Join(dir, segmentLockFileName))
	if err != nil {
		return nil, fmt.Errorf("acquire segment %d lock: %w", id, err)
	}

	if err := meta.WriteSnapshot(dir); err != nil {
		lock.release()
		return nil, fmt.Errorf("write segment %d metadata snapshot: %w", id, err)
	}

	seg := &Segment{dir: dir, id: id, meta: meta, lock: lock}
	seg.columns = make([]*columnFilePair, meta.ColumnCount())
	seg.symbols = make([]*symbolInterner, meta.ColumnCount())

	for i, col := range meta.Columns {
		if col.Type.IsDeleted() {
			continue
		}
		cfp, err := openColumnFilePair(dir, col, i == meta.DesignatedTimestamp)
		if err != nil {
			seg.closeColumnsOpenedSoFar(i)
			lock.release()
			return nil, fmt.Errorf("open segment %d column %q: %w", id, col.Name, err)
		}
		seg.columns[i] = cfp

		if col.IsSymbol() {
			interner, err := openSymbolInterner(dir, baseDictDir, col.Name, 0)
			if err != nil {
				cfp.close()
				seg.closeColumnsOpenedSoFar(i)
				lock.release()
				return nil, fmt.Errorf("open segment %d symbol column %q: %w", id, col.Name, err)
			}
			seg.symbols[i] = interner
		}
		if cfp.rowCount > seg.committedRows {
			seg.committedRows = cfp.rowCount
		}
	}

	el, err := openEventLog(filepath.Join(dir, eventLogFileName))
	if err != nil {
		seg.closeColumnsOpenedSoFar(len(seg.columns))
		lock.release()
		return nil, fmt.Errorf("open segment %d event log: %w", id, err)
	}
	seg.eventLog = el

	return seg, nil
}

func (s *Segment) closeColumnsOpenedSoFar(upTo int) {
	for i := 0; i < upTo && i < len(s.columns); i++ {
		if s.columns[i] != nil {
			s.columns[i].close()
		}
		if s.symbols[i] != nil {
			s.symbols[i].close()
		}
	}
}

// NewRow begins appending a new row to this segment, timestamped with the
// caller-supplied designated timestamp value. If this segment has a
// designated timestamp column, NewRow stages the row's
// (timestamp, segmentRowCount) pair for it, written by Row.Append; the
// column is unwritable through any put call (see Row.PutTimestamp).
func (s *Segment) NewRow(timestamp int64) *Row {
	return newRow(s, timestamp)
}

// observeRowTimestamp folds one more appended row's designated timestamp
// into the currently open transaction's min/max envelope, latching
// txnOutOfOrder the first time a row's timestamp fails to exceed the
// running max. Called by Row.Append before the row count advances.
func (s *Segment) observeRowTimestamp(ts int64) {
	if s.uncommittedRows == 0 {
		s.txnStartRow = s.committedRows
		s.txnMinTs = ts
		s.txnMaxTs = ts
		s.txnOutOfOrder = false
		return
	}
	if ts <= s.txnMaxTs {
		s.txnOutOfOrder = true
	}
	if ts > s.txnMaxTs {
		s.txnMaxTs = ts
	}
	if ts < s.txnMinTs {
		s.txnMinTs = ts
	}
}

// resetTxnCursor clears the open-transaction envelope, used once its rows
// have been committed or discarded.
func (s *Segment) resetTxnCursor() {
	s.txnStartRow = s.committedRows
	s.txnMinTs = 0
	s.txnMaxTs = 0
	s.txnOutOfOrder = false
}

// Rollback discards every row appended since the last commit, truncating
// each column file pair back to the last committed row boundary.
func (s *Segment) Rollback() error {
	for i, cfp := range s.columns {
		if cfp == nil {
			continue
		}
		if err := cfp.truncateToRow(s.committedRows - 1); err != nil {
			return fmt.Errorf("rollback segment %d column %d: %w", s.id, i, err)
		}
	}
	s.uncommittedRows = 0
	s.resetTxnCursor()
	return nil
}

// markCommitted records that every row currently appended is now
// committed (called by the Writer's commit coordinator after the
// sequencer accepts the transaction).
func (s *Segment) markCommitted() {
	s.committedRows += s.uncommittedRows
	s.uncommittedRows = 0
	s.resetTxnCursor()
}

// copyUncommittedTo re-appends this segment's uncommitted row range into
// dst column by column, carrying an in-flight transaction across a
// structural change's segment boundary (rollUncommittedToNewSegment). Any
// column dst has that this segment doesn't (a column just added) gets its
// null sentinel for every carried row, keeping dst's files row-count
// aligned. The designated timestamp cell is re-packed rather than copied
// verbatim, since its row-count half is segment-relative.
func (s *Segment) copyUncommittedTo(dst *Segment) error {
	lo := s.committedRows
	hi := s.committedRows + s.uncommittedRows
	for row := lo; row < hi; row++ {
		var rowTs int64
		for i, cfp := range s.columns {
			if cfp == nil || dst.columns[i] == nil {
				continue
			}
			dstCfp := dst.columns[i]
			if i == s.meta.DesignatedTimestamp {
				buf, err := cfp.readFixed(row)
				if err != nil {
					return err
				}
				rowTs = int64(ByteOrder.Uint64(buf[0:8]))
				newBuf := make([]byte, designatedTimestampWidth)
				ByteOrder.PutUint64(newBuf[0:8], uint64(rowTs))
				ByteOrder.PutUint64(newBuf[8:16], uint64(dst.RowCount()))
				if err := dstCfp.appendFixed(newBuf); err != nil {
					return fmt.Errorf("carry designated timestamp row %d: %w", row, err)
				}
				continue
			}
			if cfp.col.Type.IsVarLength() {
				payload, isNull, err := cfp.readVar(row)
				if err != nil {
					return err
				}
				if err := dstCfp.appendVar(payload, isNull); err != nil {
					return fmt.Errorf("carry row %d column %q: %w", row, cfp.col.Name, err)
				}
			} else {
				buf, err := cfp.readFixed(row)
				if err != nil {
					return err
				}
				if err := dstCfp.appendFixed(buf); err != nil {
					return fmt.Errorf("carry row %d column %q: %w", row, cfp.col.Name, err)
				}
			}
		}
		for i := len(s.columns); i < len(dst.columns); i++ {
			dstCfp := dst.columns[i]
			if dstCfp == nil {
				continue
			}
			cell := nullCellForColumn(dst.meta.Columns[i])
			if dstCfp.col.Type.IsVarLength() {
				if err := dstCfp.appendVar(cell.varData, cell.isNull); err != nil {
					return fmt.Errorf("null-fill carried row %d new column %q: %w", row, dstCfp.col.Name, err)
				}
			} else {
				if err := dstCfp.appendFixed(cell.fixed); err != nil {
					return fmt.Errorf("null-fill carried row %d new column %q: %w", row, dstCfp.col.Name, err)
				}
			}
		}
		dst.observeRowTimestamp(rowTs)
		dst.uncommittedRows++
	}
	return nil
}

// RowCount returns the total number of rows (committed and uncommitted)
// currently appended to this segment.
func (s *Segment) RowCount() int64 {
	return s.committedRows + s.uncommittedRows
}

func (s *Segment) sync() error {
	for _, cfp := range s.columns {
		if cfp != nil {
			if err := cfp.sync(); err != nil {
				return err
			}
		}
	}
	for _, interner := range s.symbols {
		if interner != nil {
			if err := interner.sync(); err != nil {
				return err
			}
		}
	}
	return s.eventLog.sync()
}

// Close releases every open file pair, symbol interner, the event log,
// and the segment's advisory lock, in that order.
func (s *Segment) Close() error {
	var firstErr error
	for _, cfp := range s.columns {
		if cfp == nil {
			continue
		}
		if err := cfp.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, interner := range s.symbols {
		if interner == nil {
			continue
		}
		if err := interner.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.eventLog.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.lock.release(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
