package txnlog

import (
	"context"
	"testing"

	"github.com/rileykamath/coldbwal/internal/domain/schema"
	"gotest.tools/v3/assert"
)

func testMeta() *schema.TableMetadata {
	return &schema.TableMetadata{
		TableName: "trades",
		Columns: []schema.Column{
			{Name: "ts", Type: schema.ColumnTypeTimestamp},
			{Name: "price", Type: schema.ColumnTypeDouble},
		},
	}
}

func TestGetNextWalId_Monotonic(t *testing.T) {
	s := NewInProcessSequencer(testMeta())
	ctx := context.Background()

	a, err := s.GetNextWalId(ctx, "trades")
	assert.NilError(t, err)
	b, err := s.GetNextWalId(ctx, "trades")
	assert.NilError(t, err)
	assert.Equal(t, int64(0), a)
	assert.Equal(t, int64(1), b)
}

func TestNextTxn_StaleStructureVersionReturnsNoTxn(t *testing.T) {
	s := NewInProcessSequencer(testMeta())
	ctx := context.Background()

	txn, err := s.NextTxn(ctx, "trades", 0, 5, 0, 0)
	assert.NilError(t, err)
	assert.Equal(t, NoTxn, txn)
}

func TestNextTxn_FreshViewAllocates(t *testing.T) {
	s := NewInProcessSequencer(testMeta())
	ctx := context.Background()

	txn, err := s.NextTxn(ctx, "trades", 0, 0, 0, 0)
	assert.NilError(t, err)
	assert.Equal(t, int64(1), txn)

	txn2, err := s.NextTxn(ctx, "trades", 0, 0, 0, 1)
	assert.NilError(t, err)
	assert.Equal(t, int64(2), txn2)
}

func TestNextStructureTxn_AppliesAndRecordsChange(t *testing.T) {
	s := NewInProcessSequencer(testMeta())
	ctx := context.Background()

	op := AlterOp{Kind: AlterAddColumn, Column: "size", Type: schema.ColumnTypeLong}
	txn, err := s.NextStructureTxn(ctx, "trades", 0, op)
	assert.NilError(t, err)
	assert.Assert(t, txn != NoTxn)

	meta, err := s.GetTableMetadata(ctx, "trades")
	assert.NilError(t, err)
	assert.Equal(t, int64(1), meta.StructureVersion)
	assert.Equal(t, 2, meta.ColumnIndex("size"))
}

func TestNextStructureTxn_StaleVersionReturnsNoTxn(t *testing.T) {
	s := NewInProcessSequencer(testMeta())
	ctx := context.Background()

	op := AlterOp{Kind: AlterAddColumn, Column: "size", Type: schema.ColumnTypeLong}
	txn, err := s.NextStructureTxn(ctx, "trades", 7, op)
	assert.NilError(t, err)
	assert.Equal(t, NoTxn, txn)
}

func TestMetadataChangeLogCursor_IteratesInOrder(t *testing.T) {
	s := NewInProcessSequencer(testMeta())
	ctx := context.Background()

	_, err := s.NextStructureTxn(ctx, "trades", 0, AlterOp{Kind: AlterAddColumn, Column: "size", Type: schema.ColumnTypeLong})
	assert.NilError(t, err)
	_, err = s.NextStructureTxn(ctx, "trades", 1, AlterOp{Kind: AlterAddColumn, Column: "venue", Type: schema.ColumnTypeString})
	assert.NilError(t, err)

	cursor, err := s.GetMetadataChangeLogCursor(ctx, "trades", 0)
	assert.NilError(t, err)
	defer cursor.Close()

	var seen []string
	for cursor.Next() {
		seen = append(seen, cursor.Change().Op.Column)
	}
	assert.NilError(t, cursor.Err())
	assert.DeepEqual(t, []string{"size", "venue"}, seen)
}

func TestApplyAlterOp_UnknownKind(t *testing.T) {
	meta := testMeta()
	err := ApplyAlterOp(meta, AlterOp{Kind: AlterOpKind(99)})
	assert.ErrorContains(t, err, "unknown alter op kind")
}
