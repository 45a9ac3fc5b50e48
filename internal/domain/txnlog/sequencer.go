// Package txnlog defines the sequencer contract the WAL segment writer
// consumes and a single-process reference implementation used by
// tests and the walbench demo. The real, externally-coordinated sequencer
// stays out of scope here — only its interface is specified.
package txnlog

import (
	"context"

	"github.com/rileykamath/coldbwal/internal/domain/schema"
)

// NoTxn is returned by Sequencer methods when the caller's view of
// structure version or segment position is stale and must catch up via the
// metadata change log before retrying.
const NoTxn int64 = -1

// AlterOpKind identifies the structural change carried by an AlterOp.
type AlterOpKind int

const (
	AlterAddColumn AlterOpKind = iota
	AlterDropColumn
	AlterRenameColumn
)

// AlterOp is a single structural change submitted to the sequencer. Only
// one logical change may be carried per AlterOp; a caller that needs
// several must submit them as separate, sequentially-committed ops, since
// an AlterOp has no way to express multi-statement DDL.
type AlterOp struct {
	Kind       AlterOpKind
	Column     string // column affected (add/drop), or old name (rename)
	NewName    string // rename target; empty otherwise
	Type       schema.ColumnType
	GeoBits    int
}

// MetadataChange is one entry in the change log a writer replays to catch
// up its local structure version.
type MetadataChange struct {
	FromVersion int64
	ToVersion   int64
	Op          AlterOp
}

// MetadataChangeCursor iterates MetadataChange entries in increasing
// version order. It is a scoped resource: callers must Close it once done
// to guarantee release of whatever it holds open.
type MetadataChangeCursor interface {
	// Next advances the cursor and reports whether a change is available.
	Next() bool
	// Change returns the change at the cursor's current position. Only
	// valid after a call to Next returned true.
	Change() MetadataChange
	// Err returns any error encountered while iterating.
	Err() error
	Close() error
}

// Sequencer is the external, table-scoped coordinator that assigns
// monotonic transaction numbers and tracks structure version. Implementors
// must guarantee that nextTxn/nextStructureTxn return NoTxn exactly when
// the caller's (walId, structureVersion, segmentId, segmentTxn) input is no
// longer sufficient for the sequencer to append.
type Sequencer interface {
	// GetNextWalId allocates a walId unique among concurrent writers of the
	// named table.
	GetNextWalId(ctx context.Context, table string) (int64, error)

	// GetTableMetadata populates a metadata snapshot for table at the
	// sequencer's current structure version.
	GetTableMetadata(ctx context.Context, table string) (*schema.TableMetadata, error)

	// NextTxn optimistically allocates the next global transaction number
	// for a DATA/SQL/TRUNCATE commit. Returns NoTxn if structureVersion is
	// stale or segmentId/segmentTxn no longer identify the writer's true
	// tail; the caller must catch up via the change log and retry.
	NextTxn(ctx context.Context, table string, walId int64, structureVersion int64, segmentId int64, segmentTxn int64) (int64, error)

	// NextStructureTxn optimistically commits a structural change, bumping
	// the table's structure version by exactly one. Returns NoTxn on
	// concurrent structural skew; the caller must catch up and retry.
	NextStructureTxn(ctx context.Context, table string, localStructureVersion int64, op AlterOp) (int64, error)

	// GetMetadataChangeLogCursor returns a cursor over structural changes
	// strictly after fromVersion (exclusive).
	GetMetadataChangeLogCursor(ctx context.Context, table string, fromVersion int64) (MetadataChangeCursor, error)
}
