package txnlog

import (
	"context"
	"fmt"
	"sync"

	"github.com/rileykamath/coldbwal/internal/domain/schema"
)

// InProcessSequencer is the reference Sequencer used by tests and
// cmd/walbench in place of the real, externally-coordinated sequencer,
// which stays out of scope here. It holds one table's metadata
// and txn/structure counters behind a single mutex: there is no
// distributed coordination here, only the call shape the writer expects.
type InProcessSequencer struct {
	mu sync.Mutex

	nextWalID int64

	meta *schema.TableMetadata

	// lastTxn is the last allocated global txn; lastSegmentID/lastSegmentTxn
	// record the segment position passed to the most recent accepted
	// NextTxn. NextTxn does not compare a caller's segment position against
	// them: only a stale structureVersion yields NoTxn.
	lastTxn        int64
	lastSegmentID  int64
	lastSegmentTxn int64

	changes []MetadataChange
}

// NewInProcessSequencer seeds the sequencer with a table's starting
// metadata (structure version 0 unless the caller has already bumped it).
func NewInProcessSequencer(meta *schema.TableMetadata) *InProcessSequencer {
	return &InProcessSequencer{
		meta:           meta.Clone(),
		lastSegmentID:  -1,
		lastSegmentTxn: -1,
	}
}

func (s *InProcessSequencer) GetNextWalId(ctx context.Context, table string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextWalID
	s.nextWalID++
	return id, nil
}

func (s *InProcessSequencer) GetTableMetadata(ctx context.Context, table string) (*schema.TableMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.Clone(), nil
}

// NextTxn allocates the next global transaction number. It returns NoTxn
// when the caller's structureVersion is stale, mirroring the real
// sequencer's requirement that a writer catch up via the metadata change
// log before its commit can be accepted.
func (s *InProcessSequencer) NextTxn(ctx context.Context, table string, walId int64, structureVersion int64, segmentId int64, segmentTxn int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if structureVersion != s.meta.StructureVersion {
		return NoTxn, nil
	}

	s.lastTxn++
	s.lastSegmentID = segmentId
	s.lastSegmentTxn = segmentTxn
	return s.lastTxn, nil
}

// NextStructureTxn optimistically commits a structural change, returning
// NoTxn if localStructureVersion no longer matches the sequencer's
// authoritative version (another writer, or an earlier call, already
// advanced it).
func (s *InProcessSequencer) NextStructureTxn(ctx context.Context, table string, localStructureVersion int64, op AlterOp) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if localStructureVersion != s.meta.StructureVersion {
		return NoTxn, nil
	}

	from := s.meta.StructureVersion
	if err := ApplyAlterOp(s.meta, op); err != nil {
		return NoTxn, fmt.Errorf("apply structural change: %w", err)
	}

	s.changes = append(s.changes, MetadataChange{
		FromVersion: from,
		ToVersion:   s.meta.StructureVersion,
		Op:          op,
	})

	s.lastTxn++
	return s.lastTxn, nil
}

// LastSegmentTxn reports the segmentTxn value recorded by the most recent
// successful NextTxn call, exposed so callers (tests, mainly) can confirm a
// commit's DATA event was appended before its txn was allocated.
func (s *InProcessSequencer) LastSegmentTxn() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSegmentTxn
}

func (s *InProcessSequencer) GetMetadataChangeLogCursor(ctx context.Context, table string, fromVersion int64) (MetadataChangeCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []MetadataChange
	for _, c := range s.changes {
		if c.FromVersion >= fromVersion {
			pending = append(pending, c)
		}
	}
	return &inProcessCursor{changes: pending, pos: -1}, nil
}

// ApplyAlterOp applies one structural change to a metadata snapshot. It is
// exported so both Sequencer implementations and wal.Writer's local
// catch-up/retry paths can apply the identical dispatch.
func ApplyAlterOp(meta *schema.TableMetadata, op AlterOp) error {
	switch op.Kind {
	case AlterAddColumn:
		return meta.AddColumn(op.Column, op.Type, op.GeoBits)
	case AlterDropColumn:
		return meta.RemoveColumn(op.Column)
	case AlterRenameColumn:
		return meta.RenameColumn(op.Column, op.NewName)
	default:
		return fmt.Errorf("unknown alter op kind %d", op.Kind)
	}
}

type inProcessCursor struct {
	changes []MetadataChange
	pos     int
}

func (c *inProcessCursor) Next() bool {
	if c.pos+1 >= len(c.changes) {
		return false
	}
	c.pos++
	return true
}

func (c *inProcessCursor) Change() MetadataChange {
	return c.changes[c.pos]
}

func (c *inProcessCursor) Err() error {
	return nil
}

func (c *inProcessCursor) Close() error {
	c.changes = nil
	return nil
}
