package wal

import "testing"

func TestSegment_RollbackTruncatesToCommittedBoundary(t *testing.T) {
	seg := openTestSegment(t)

	row := seg.NewRow(1000)
	if err := row.PutInt(1, 1); err != nil {
		t.Fatalf("put int: %v", err)
	}
	if err := row.Append(); err != nil {
		t.Fatalf("append: %v", err)
	}
	seg.markCommitted()

	row2 := seg.NewRow(2000)
	if err := row2.PutInt(1, 2); err != nil {
		t.Fatalf("put int: %v", err)
	}
	if err := row2.Append(); err != nil {
		t.Fatalf("append: %v", err)
	}
	if seg.RowCount() != 2 {
		t.Fatalf("expected RowCount 2 before rollback, got %d", seg.RowCount())
	}

	if err := seg.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if seg.RowCount() != 1 {
		t.Fatalf("expected RowCount 1 after rollback, got %d", seg.RowCount())
	}
	if seg.columns[1].rowCount != 1 {
		t.Fatalf("expected column rowCount 1 after rollback, got %d", seg.columns[1].rowCount)
	}
}

func TestSegment_RowCountReflectsCommittedAndUncommitted(t *testing.T) {
	seg := openTestSegment(t)
	if seg.RowCount() != 0 {
		t.Fatalf("expected RowCount 0 for fresh segment, got %d", seg.RowCount())
	}

	row := seg.NewRow(1000)
	if err := row.PutInt(1, 1); err != nil {
		t.Fatalf("put int: %v", err)
	}
	if err := row.Append(); err != nil {
		t.Fatalf("append: %v", err)
	}
	if seg.RowCount() != 1 {
		t.Fatalf("expected RowCount 1 after append, got %d", seg.RowCount())
	}
	seg.markCommitted()
	if seg.committedRows != 1 || seg.uncommittedRows != 0 {
		t.Fatalf("expected committedRows=1 uncommittedRows=0, got %d/%d", seg.committedRows, seg.uncommittedRows)
	}
}
