package wal

import (
	"testing"

	"github.com/rileykamath/coldbwal/internal/domain/schema"
)

func TestColumnFilePair_AppendFixed_TracksRowCount(t *testing.T) {
	dir := t.TempDir()
	col := schema.Column{Name: "i", Type: schema.ColumnTypeInt}
	cfp, err := openColumnFilePair(dir, col, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cfp.close()

	buf := make([]byte, 4)
	ByteOrder.PutUint32(buf, 123)
	if err := cfp.appendFixed(buf); err != nil {
		t.Fatalf("append fixed: %v", err)
	}
	if cfp.rowCount != 1 {
		t.Fatalf("expected rowCount 1, got %d", cfp.rowCount)
	}
	if cfp.primary.Size() != 4 {
		t.Fatalf("expected primary size 4, got %d", cfp.primary.Size())
	}
}

func TestColumnFilePair_AppendVar_NullAndNonNull(t *testing.T) {
	dir := t.TempDir()
	col := schema.Column{Name: "s", Type: schema.ColumnTypeString}
	cfp, err := openColumnFilePair(dir, col, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cfp.close()

	if err := cfp.appendVar([]byte("hello"), false); err != nil {
		t.Fatalf("append var: %v", err)
	}
	if err := cfp.appendVar(nil, true); err != nil {
		t.Fatalf("append var null: %v", err)
	}
	if cfp.rowCount != 2 {
		t.Fatalf("expected rowCount 2, got %d", cfp.rowCount)
	}
	// secondary: leading zero sentinel + 2 offset entries = 24 bytes.
	if cfp.secondary.Size() != 24 {
		t.Fatalf("expected secondary size 24, got %d", cfp.secondary.Size())
	}
}

func TestColumnFilePair_TruncateToRow(t *testing.T) {
	dir := t.TempDir()
	col := schema.Column{Name: "i", Type: schema.ColumnTypeInt}
	cfp, err := openColumnFilePair(dir, col, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cfp.close()

	for i := 0; i < 5; i++ {
		buf := make([]byte, 4)
		ByteOrder.PutUint32(buf, uint32(i))
		if err := cfp.appendFixed(buf); err != nil {
			t.Fatalf("append fixed: %v", err)
		}
	}
	if err := cfp.truncateToRow(1); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if cfp.rowCount != 2 {
		t.Fatalf("expected rowCount 2 after truncating to row index 1, got %d", cfp.rowCount)
	}
	if cfp.primary.Size() != 8 {
		t.Fatalf("expected primary size 8 after truncate, got %d", cfp.primary.Size())
	}
}

func TestColumnFilePair_DesignatedTimestampUsesWiderCell(t *testing.T) {
	dir := t.TempDir()
	col := schema.Column{Name: "ts", Type: schema.ColumnTypeTimestamp}
	cfp, err := openColumnFilePair(dir, col, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cfp.close()

	buf := make([]byte, 16)
	ByteOrder.PutUint64(buf[0:8], 1000)
	ByteOrder.PutUint64(buf[8:16], 0)
	if err := cfp.appendFixed(buf); err != nil {
		t.Fatalf("append fixed: %v", err)
	}
	if cfp.rowCount != 1 {
		t.Fatalf("expected rowCount 1, got %d", cfp.rowCount)
	}
	if cfp.primary.Size() != 16 {
		t.Fatalf("expected primary size 16 for designated timestamp cell, got %d", cfp.primary.Size())
	}

	got, err := cfp.readFixed(0)
	if err != nil {
		t.Fatalf("read fixed: %v", err)
	}
	if ByteOrder.Uint64(got[0:8]) != 1000 {
		t.Fatalf("expected timestamp 1000, got %d", ByteOrder.Uint64(got[0:8]))
	}
}

func TestColumnFilePair_ReopenDerivesRowCountFromFileSize(t *testing.T) {
	dir := t.TempDir()
	col := schema.Column{Name: "i", Type: schema.ColumnTypeLong}
	cfp, err := openColumnFilePair(dir, col, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	buf := make([]byte, 8)
	for i := 0; i < 3; i++ {
		if err := cfp.appendFixed(buf); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := cfp.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := openColumnFilePair(dir, col, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.close()
	if reopened.rowCount != 3 {
		t.Fatalf("expected reopened rowCount 3, got %d", reopened.rowCount)
	}
}
