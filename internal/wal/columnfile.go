package wal

import (
	"fmt"
	"path/filepath"

	"github.com/rileykamath/coldbwal/internal/domain/schema"
)

// columnFilePair is the on-disk storage for one column within a segment:
// a primary file holding fixed-width values (or the var-length payload),
// and, for string/binary columns, a secondary file holding an 8-byte
// offset index into the primary file. The secondary file's first entry is
// always zero: a leading-zero sentinel marking "no rows yet".
type columnFilePair struct {
	col       schema.Column
	primary   *appendFile
	secondary *appendFile // nil unless col.Type.IsVarLength()
	rowCount  int64
	width     int // primary cell width for fixed-width columns; 0 for var-length
}

// openColumnFilePair opens (or creates) column's file pair under dir.
// isDesignatedTs marks the table's designated timestamp column, whose
// primary cell is wider than its declared type's FixedWidth (see
// designatedTimestampWidth) because newRow packs a row-count alongside the
// timestamp itself.
func openColumnFilePair(dir string, col schema.Column, isDesignatedTs bool) (*columnFilePair, error) {
	primaryPath := filepath.Join(dir, col.Name+".d")
	primary, err := openAppendFile(primaryPath)
	if err != nil {
		return nil, fmt.Errorf("open column %q primary file: %w", col.Name, err)
	}

	cfp := &columnFilePair{col: col, primary: primary}

	if col.Type.IsVarLength() {
		secondaryPath := filepath.Join(dir, col.Name+".i")
		secondary, err := openAppendFile(secondaryPath)
		if err != nil {
			primary.Close(false)
			return nil, fmt.Errorf("open column %q secondary file: %w", col.Name, err)
		}
		if secondary.Size() == 0 {
			zero := make([]byte, 8)
			if _, err := secondary.Append(zero); err != nil {
				primary.Close(false)
				secondary.Close(false)
				return nil, fmt.Errorf("write leading-zero sentinel for column %q: %w", col.Name, err)
			}
		}
		cfp.secondary = secondary
		cfp.rowCount = secondary.Size()/8 - 1
	} else {
		width := col.Type.FixedWidth()
		if isDesignatedTs {
			width = designatedTimestampWidth
		}
		cfp.width = width
		if width > 0 {
			cfp.rowCount = primary.Size() / int64(width)
		}
	}

	return cfp, nil
}

// appendFixed writes one fixed-width cell. Callers are responsible for
// encoding value (including null sentinels) into buf.
func (c *columnFilePair) appendFixed(buf []byte) error {
	if _, err := c.primary.Append(buf); err != nil {
		return fmt.Errorf("append fixed value to column %q: %w", c.col.Name, err)
	}
	c.rowCount++
	return nil
}

// appendVar writes one variable-length cell's payload to the primary file
// and records its end offset in the secondary index. A nil payload with
// length -1 (NullVarLen) represents an unset string/binary cell.
func (c *columnFilePair) appendVar(payload []byte, isNull bool) error {
	lenBuf := make([]byte, 4)
	if isNull {
		ByteOrder.PutUint32(lenBuf, uint32(NullVarLen))
		if _, err := c.primary.Append(lenBuf); err != nil {
			return fmt.Errorf("append null length header for column %q: %w", c.col.Name, err)
		}
	} else {
		ByteOrder.PutUint32(lenBuf, uint32(len(payload)))
		if _, err := c.primary.Append(lenBuf); err != nil {
			return fmt.Errorf("append length header for column %q: %w", c.col.Name, err)
		}
		if len(payload) > 0 {
			if _, err := c.primary.Append(payload); err != nil {
				return fmt.Errorf("append payload for column %q: %w", c.col.Name, err)
			}
		}
	}

	offBuf := make([]byte, 8)
	ByteOrder.PutUint64(offBuf, uint64(c.primary.Size()))
	if _, err := c.secondary.Append(offBuf); err != nil {
		return fmt.Errorf("append offset index entry for column %q: %w", c.col.Name, err)
	}
	c.rowCount++
	return nil
}

// truncateToRow discards every cell appended after rowIndex, used by
// rollback.
func (c *columnFilePair) truncateToRow(rowIndex int64) error {
	if c.secondary != nil {
		// Keep the leading-zero sentinel plus one end-offset entry per
		// retained row.
		secOffset := (rowIndex + 2) * 8
		if err := c.secondary.switchTo(secOffset); err != nil {
			return fmt.Errorf("truncate column %q secondary file: %w", c.col.Name, err)
		}
		// Re-derive the primary size from the last retained offset entry.
		offBuf := make([]byte, 8)
		if err := c.secondary.ReadAt(offBuf, (rowIndex+1)*8); err != nil {
			return fmt.Errorf("read column %q secondary file: %w", c.col.Name, err)
		}
		if err := c.primary.switchTo(int64(ByteOrder.Uint64(offBuf))); err != nil {
			return fmt.Errorf("truncate column %q primary file: %w", c.col.Name, err)
		}
	} else {
		width := int64(c.width)
		if width > 0 {
			if err := c.primary.switchTo((rowIndex + 1) * width); err != nil {
				return fmt.Errorf("truncate column %q primary file: %w", c.col.Name, err)
			}
		}
	}
	c.rowCount = rowIndex + 1
	return nil
}

// readFixed returns the raw fixed-width bytes stored at rowIndex. Only
// valid for non-var-length columns.
func (c *columnFilePair) readFixed(rowIndex int64) ([]byte, error) {
	buf := make([]byte, c.width)
	if err := c.primary.ReadAt(buf, rowIndex*int64(c.width)); err != nil {
		return nil, fmt.Errorf("read row %d of column %q: %w", rowIndex, c.col.Name, err)
	}
	return buf, nil
}

// readVar returns the payload and null flag stored at rowIndex for a
// var-length column, re-deriving the [start,end) span from the secondary
// offset index.
func (c *columnFilePair) readVar(rowIndex int64) (payload []byte, isNull bool, err error) {
	offBuf := make([]byte, 8)
	if err := c.secondary.ReadAt(offBuf, rowIndex*8); err != nil {
		return nil, false, fmt.Errorf("read offset entry for row %d of column %q: %w", rowIndex, c.col.Name, err)
	}
	start := int64(ByteOrder.Uint64(offBuf))

	lenBuf := make([]byte, 4)
	if err := c.primary.ReadAt(lenBuf, start); err != nil {
		return nil, false, fmt.Errorf("read length header for row %d of column %q: %w", rowIndex, c.col.Name, err)
	}
	length := int32(ByteOrder.Uint32(lenBuf))
	if length == NullVarLen {
		return nil, true, nil
	}

	payload = make([]byte, length)
	if length > 0 {
		if err := c.primary.ReadAt(payload, start+4); err != nil {
			return nil, false, fmt.Errorf("read payload for row %d of column %q: %w", rowIndex, c.col.Name, err)
		}
	}
	return payload, false, nil
}

func (c *columnFilePair) sync() error {
	if err := c.primary.sync(); err != nil {
		return err
	}
	if c.secondary != nil {
		return c.secondary.sync()
	}
	return nil
}

func (c *columnFilePair) close() error {
	if err := c.primary.Close(false); err != nil {
		return err
	}
	if c.secondary != nil {
		return c.secondary.Close(false)
	}
	return nil
}
