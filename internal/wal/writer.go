package wal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rileykamath/coldbwal/internal/domain/schema"
	"github.com/rileykamath/coldbwal/internal/domain/txnlog"
)

// maxCatchUpRetries bounds the optimistic NO_TXN retry loop: a writer
// whose structure/segment view keeps losing the race this many times in a
// row gives up rather than spinning forever. The retry-after-catchup
// state machine is explicit, not unbounded.
const maxCatchUpRetries = 8

// Writer owns one table's uncommitted append path: a walId unique among
// concurrent writers of the table, a local metadata snapshot tracking
// structure version, and exactly one open Segment at a time.
// A Writer is not safe for concurrent use by multiple goroutines except
// where noted; callers running rows through it from one goroutine and
// issuing schema changes from another must synchronize externally, the
// same contract the row-store engine's WALManager places on its callers.
type Writer struct {
	mu sync.Mutex

	table      string
	walId      int64
	diagnostic string // uuid tag included in the open and distress log lines
	walRoot    string
	walRootLock *fileLock
	baseDictDir string

	sequencer txnlog.Sequencer
	meta      *schema.TableMetadata
	segment   *Segment
	segmentId int64

	rolloverThreshold int64
	distress          error

	logger *slog.Logger
}

// WriterOption configures a Writer at construction time.
type WriterOption func(*Writer)

// WithRolloverThreshold overrides defaultSegmentRolloverThreshold.
func WithRolloverThreshold(rows int64) WriterOption {
	return func(w *Writer) { w.rolloverThreshold = rows }
}

// WithBaseDictDir sets the base table's symbol dictionary directory that
// new symbol columns hard-link from.
func WithBaseDictDir(dir string) WriterOption {
	return func(w *Writer) { w.baseDictDir = dir }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// NewWriter allocates a walId from sequencer, pulls the table's current
// metadata, creates the wal root directory, acquires its advisory lock,
// and opens segment 0.
func NewWriter(ctx context.Context, table, walRootDir string, sequencer txnlog.Sequencer, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		table:             table,
		walRoot:           walRootDir,
		sequencer:         sequencer,
		rolloverThreshold: defaultSegmentRolloverThreshold,
		logger:            slog.Default(),
		diagnostic:        uuid.NewString(),
	}
	for _, opt := range opts {
		opt(w)
	}

	walId, err := sequencer.GetNextWalId(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("allocate wal id for table %q: %w", table, err)
	}
	w.walId = walId

	meta, err := sequencer.GetTableMetadata(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("fetch table metadata for %q: %w", table, err)
	}
	w.meta = meta

	if err := os.MkdirAll(walRootDir, 0755); err != nil {
		return nil, fmt.Errorf("create wal root %s: %w", walRootDir, err)
	}
	lock, err := acquireFileLock(filepath.Join(walRootDir, walLockFileName))
	if err != nil {
		return nil, fmt.Errorf("acquire wal root lock: %w", err)
	}
	w.walRootLock = lock

	seg, err := openSegment(walRootDir, 0, w.meta, w.baseDictDir)
	if err != nil {
		lock.release()
		return nil, fmt.Errorf("open initial segment for wal %d: %w", walId, err)
	}
	w.segment = seg

	w.logger.Info("wal writer opened", "table", table, "walId", walId, "diagnostic", w.diagnostic)
	return w, nil
}

// Distressed reports whether this writer has entered its sticky terminal
// failure state. A host pool must discard, never recycle, a distressed
// writer: distress is a state, not an exception path.
func (w *Writer) Distressed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.distress
}

func (w *Writer) markDistressed(cause error) error {
	if w.distress == nil {
		w.distress = &DistressError{Cause: cause}
		w.logger.Error("wal writer entered distress", "table", w.table, "walId", w.walId, "diagnostic", w.diagnostic, "cause", cause)
	}
	return w.distress
}

func (w *Writer) checkUsable() error {
	if w.distress != nil {
		return w.distress
	}
	return nil
}

// NewRow begins appending a row, timestamped with timestamp, to the
// writer's current segment.
func (w *Writer) NewRow(timestamp int64) (*Row, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsable(); err != nil {
		return nil, err
	}
	return w.segment.NewRow(timestamp), nil
}

// dataEventPayload is the DATA event record's JSON payload: the row range
// this commit covers and its designated-timestamp envelope, enough to
// tell whether the commit landed in timestamp order without re-deriving
// it from column file contents.
type dataEventPayload struct {
	RowLo      int64 `json:"rowLo"`
	RowHi      int64 `json:"rowHi"`
	MinTs      int64 `json:"minTs"`
	MaxTs      int64 `json:"maxTs"`
	OutOfOrder bool  `json:"outOfOrder"`
}

// Commit runs the commit coordinator's protocol: append a DATA event
// record locally, then allocate a global txn from the sequencer keyed on
// that event's segment-local index (retrying after a metadata catch-up on
// NO_TXN), mark the rows committed, and flush. A sequencer or filesystem
// error here pushes the writer into distress; a stale-view NO_TXN after
// exhausting retries is returned as a plain, non-distressing error so the
// caller may retry at a later time.
func (w *Writer) Commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsable(); err != nil {
		return err
	}

	if w.segment.uncommittedRows == 0 {
		return nil
	}

	payload, err := json.Marshal(dataEventPayload{
		RowLo:      w.segment.txnStartRow,
		RowHi:      w.segment.txnStartRow + w.segment.uncommittedRows - 1,
		MinTs:      w.segment.txnMinTs,
		MaxTs:      w.segment.txnMaxTs,
		OutOfOrder: w.segment.txnOutOfOrder,
	})
	if err != nil {
		return w.markDistressed(fmt.Errorf("marshal commit payload: %w", err))
	}

	segmentTxn, err := w.segment.eventLog.Append(EventData, w.segment.txnMaxTs, payload)
	if err != nil {
		return w.markDistressed(fmt.Errorf("append commit event record: %w", err))
	}

	txn, err := w.commitWithRetry(ctx, segmentTxn)
	if err != nil {
		return err
	}

	w.segment.markCommitted()

	if err := w.segment.sync(); err != nil {
		return w.markDistressed(fmt.Errorf("sync segment after commit: %w", err))
	}

	w.logger.Info("wal commit", "table", w.table, "walId", w.walId, "segment", w.segment.id, "globalTxn", txn, "rows", w.segment.committedRows)

	if w.segment.RowCount() >= w.rolloverThreshold {
		if err := w.rollSegmentLocked(ctx); err != nil {
			return w.markDistressed(fmt.Errorf("rollover after commit: %w", err))
		}
	}

	return nil
}

// CommitWithLag is a vestigial variant of Commit retained for interface
// parity with callers that still pass a commit lag hint; the lag is
// ignored and this simply delegates to Commit.
func (w *Writer) CommitWithLag(ctx context.Context, lag int64) error {
	return w.Commit(ctx)
}

// commitWithRetry implements the NO_TXN retry-after-catchup state
// machine: FRESH -> (NO_TXN) -> RETRY_AFTER_CATCHUP -> FRESH, bounded by
// maxCatchUpRetries before giving up with FAILED. segmentTxn is the
// segment-local index of the DATA event already appended for this commit;
// it is fixed for the lifetime of the retry loop, not re-derived from the
// event log's (by then advanced) next-txn counter.
func (w *Writer) commitWithRetry(ctx context.Context, segmentTxn int64) (int64, error) {
	for attempt := 0; attempt < maxCatchUpRetries; attempt++ {
		txn, err := w.sequencer.NextTxn(ctx, w.table, w.walId, w.meta.StructureVersion, w.segment.id, segmentTxn)
		if err != nil {
			return 0, w.markDistressed(fmt.Errorf("sequencer NextTxn: %w", err))
		}
		if txn != txnlog.NoTxn {
			return txn, nil
		}
		if err := w.catchUpLocked(ctx); err != nil {
			return 0, w.markDistressed(fmt.Errorf("catch up after NO_TXN: %w", err))
		}
	}
	return 0, fmt.Errorf("wal: commit failed after %d NO_TXN retries, structure/segment view still stale", maxCatchUpRetries)
}

// catchUpLocked replays the sequencer's metadata change log to bring the
// writer's local structure version up to date. Must be called with mu
// held.
func (w *Writer) catchUpLocked(ctx context.Context) error {
	cursor, err := w.sequencer.GetMetadataChangeLogCursor(ctx, w.table, w.meta.StructureVersion)
	if err != nil {
		return fmt.Errorf("open metadata change log cursor: %w", err)
	}
	defer cursor.Close()

	changed := false
	for cursor.Next() {
		change := cursor.Change()
		if err := txnlog.ApplyAlterOp(w.meta, change.Op); err != nil {
			return fmt.Errorf("apply catch-up change to local metadata: %w", err)
		}
		changed = true
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("iterate metadata change log: %w", err)
	}

	if changed {
		if err := w.rollSegmentCarryingLocked(ctx); err != nil {
			return fmt.Errorf("roll segment after catch-up: %w", err)
		}
	}
	return nil
}

// Rollback discards every uncommitted row in the writer's current
// segment.
func (w *Writer) Rollback() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsable(); err != nil {
		return err
	}
	if err := w.segment.Rollback(); err != nil {
		return w.markDistressed(fmt.Errorf("rollback segment: %w", err))
	}
	return nil
}

// Truncate appends a TRUNCATE event record to the current segment, for
// callers surfacing a table-level truncate through the wal rather than
// through direct storage manipulation.
func (w *Writer) Truncate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsable(); err != nil {
		return err
	}
	if _, err := w.segment.eventLog.Append(EventTruncate, 0, nil); err != nil {
		return w.markDistressed(fmt.Errorf("append truncate event: %w", err))
	}
	return nil
}

// ApplyAlter runs the schema mutator: only one structural
// change per call is accepted (multi-statement DDL is rejected by the
// caller assembling more than one txnlog.AlterOp into a single call, which
// this signature does not allow). An op that is invalid against the local
// metadata (duplicate or missing column, dropping the designated
// timestamp) is refused with an InvalidOperationError and leaves the
// writer usable. Once the change is applied to the writer's metadata, the
// writer rolls to a new segment, carrying any uncommitted rows into it
// (rollUncommittedToNewSegment), since a segment's metadata snapshot is
// immutable once rows have been appended against it; a newly added column
// backfills those carried rows with its type's null sentinel.
func (w *Writer) ApplyAlter(ctx context.Context, op txnlog.AlterOp) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsable(); err != nil {
		return err
	}

	for attempt := 0; attempt < maxCatchUpRetries; attempt++ {
		if err := txnlog.ApplyAlterOp(w.meta.Clone(), op); err != nil {
			return invalidOp("applyAlter", err.Error())
		}
		txn, err := w.sequencer.NextStructureTxn(ctx, w.table, w.meta.StructureVersion, op)
		if err != nil {
			return w.markDistressed(fmt.Errorf("sequencer NextStructureTxn: %w", err))
		}
		if txn == txnlog.NoTxn {
			if err := w.catchUpLocked(ctx); err != nil {
				return w.markDistressed(fmt.Errorf("catch up before structural retry: %w", err))
			}
			continue
		}

		if err := txnlog.ApplyAlterOp(w.meta, op); err != nil {
			return w.markDistressed(fmt.Errorf("apply local structural change: %w", err))
		}
		if err := w.rollSegmentCarryingLocked(ctx); err != nil {
			return w.markDistressed(fmt.Errorf("roll segment after structural change: %w", err))
		}
		w.logger.Info("wal structural change applied", "table", w.table, "walId", w.walId, "structureVersion", w.meta.StructureVersion, "structureTxn", txn)
		return nil
	}

	return fmt.Errorf("wal: structural change failed after %d NO_TXN retries", maxCatchUpRetries)
}

// rollSegmentLocked closes the current segment and opens the next one
// with an incremented id, reusing the writer's current metadata snapshot.
// Must be called with mu held.
func (w *Writer) rollSegmentLocked(ctx context.Context) error {
	if err := w.segment.Close(); err != nil {
		return fmt.Errorf("close segment %d before roll: %w", w.segment.id, err)
	}
	w.segmentId++
	seg, err := openSegment(w.walRoot, w.segmentId, w.meta, w.baseDictDir)
	if err != nil {
		return fmt.Errorf("open segment %d: %w", w.segmentId, err)
	}
	w.segment = seg
	w.logger.Info("wal segment rollover", "table", w.table, "walId", w.walId, "newSegment", w.segmentId)
	return nil
}

// rollSegmentCarryingLocked closes the current segment and opens the next
// one under the writer's (already updated) metadata snapshot, carrying any
// uncommitted rows forward into it (rollUncommittedToNewSegment) rather
// than discarding them: a structural change never loses an in-flight,
// uncommitted transaction. Must be called with mu held.
func (w *Writer) rollSegmentCarryingLocked(ctx context.Context) error {
	old := w.segment
	pending := old.uncommittedRows

	w.segmentId++
	seg, err := openSegment(w.walRoot, w.segmentId, w.meta, w.baseDictDir)
	if err != nil {
		return fmt.Errorf("open segment %d: %w", w.segmentId, err)
	}

	if pending > 0 {
		if err := old.copyUncommittedTo(seg); err != nil {
			seg.Close()
			return fmt.Errorf("carry uncommitted rows into segment %d: %w", w.segmentId, err)
		}
	}
	if err := old.Close(); err != nil {
		seg.Close()
		return fmt.Errorf("close segment %d before roll: %w", old.id, err)
	}

	w.segment = seg
	w.logger.Info("wal segment rollover", "table", w.table, "walId", w.walId, "newSegment", w.segmentId, "carriedRows", pending)
	return nil
}

// RollSegment exposes an explicit rollover trigger to callers, in addition
// to the implicit threshold- and schema-mutation-triggered rolls.
func (w *Writer) RollSegment(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsable(); err != nil {
		return err
	}
	if err := w.rollSegmentLocked(ctx); err != nil {
		return w.markDistressed(err)
	}
	return nil
}

// Close releases the current segment and the wal root lock. It does not
// clear the distress flag: a distressed writer stays discarded.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.segment != nil {
		if err := w.segment.Close(); err != nil {
			firstErr = err
		}
	}
	if err := w.walRootLock.release(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
