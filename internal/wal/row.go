package wal

import (
	"fmt"
	"math"

	"github.com/rileykamath/coldbwal/internal/domain/schema"
)

// Row is the per-row append cursor exposed to callers: a sequence
// of typed put* calls addressing columns by index, terminated by either
// Append (write the row into the segment's column files) or Cancel
// (discard it; put calls only stage cells in memory, so nothing has been
// written to any column file pair yet).
//
// A Row is single-use: obtain a fresh one from Segment.NewRow for every
// row, and call exactly one of Append/Cancel before requesting the next.
type Row struct {
	seg       *Segment
	touched   []bool
	pending   map[int]pendingCell
	timestamp int64
}

type pendingCell struct {
	fixed   []byte
	varData []byte
	isNull  bool
}

// newRow opens a row timestamped with timestamp. If seg has a designated
// timestamp column, its (timestamp, segmentRowCount) cell is built here,
// carrying the row count as of this row's position, and staged like any
// other put; newRow itself writes nothing to disk. Append writes the cell
// together with the row's other cells, and a cancelled row writes none.
func newRow(seg *Segment, timestamp int64) *Row {
	r := &Row{
		seg:       seg,
		touched:   make([]bool, seg.meta.ColumnCount()),
		pending:   make(map[int]pendingCell),
		timestamp: timestamp,
	}
	if dt := seg.meta.DesignatedTimestamp; dt != schema.NoDesignatedTimestamp && dt >= 0 && dt < len(r.touched) && seg.meta.IsLive(dt) {
		buf := make([]byte, designatedTimestampWidth)
		ByteOrder.PutUint64(buf[0:8], uint64(timestamp))
		ByteOrder.PutUint64(buf[8:16], uint64(seg.RowCount()))
		r.pending[dt] = pendingCell{fixed: buf}
		r.touched[dt] = true
	}
	return r
}

func (r *Row) set(col int, cell pendingCell) error {
	if col < 0 || col >= len(r.touched) {
		return invalidOp("putColumn", fmt.Sprintf("column index %d out of range", col))
	}
	if !r.seg.meta.IsLive(col) {
		return invalidOp("putColumn", fmt.Sprintf("column index %d is not live", col))
	}
	r.pending[col] = cell
	r.touched[col] = true
	return nil
}

func (r *Row) PutBool(col int, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	return r.set(col, pendingCell{fixed: []byte{b}})
}

func (r *Row) PutByte(col int, v int8) error {
	return r.set(col, pendingCell{fixed: []byte{byte(v)}})
}

func (r *Row) PutShort(col int, v int16) error {
	buf := make([]byte, 2)
	ByteOrder.PutUint16(buf, uint16(v))
	return r.set(col, pendingCell{fixed: buf})
}

func (r *Row) PutChar(col int, v rune) error {
	buf := make([]byte, 2)
	ByteOrder.PutUint16(buf, uint16(v))
	return r.set(col, pendingCell{fixed: buf})
}

func (r *Row) PutInt(col int, v int32) error {
	buf := make([]byte, 4)
	ByteOrder.PutUint32(buf, uint32(v))
	return r.set(col, pendingCell{fixed: buf})
}

func (r *Row) PutIntNull(col int) error {
	return r.PutInt(col, NullInt)
}

func (r *Row) PutLong(col int, v int64) error {
	buf := make([]byte, 8)
	ByteOrder.PutUint64(buf, uint64(v))
	return r.set(col, pendingCell{fixed: buf})
}

func (r *Row) PutLongNull(col int) error {
	return r.PutLong(col, NullLong)
}

func (r *Row) PutFloat(col int, v float32) error {
	buf := make([]byte, 4)
	ByteOrder.PutUint32(buf, math.Float32bits(v))
	return r.set(col, pendingCell{fixed: buf})
}

func (r *Row) PutDouble(col int, v float64) error {
	buf := make([]byte, 8)
	ByteOrder.PutUint64(buf, math.Float64bits(v))
	return r.set(col, pendingCell{fixed: buf})
}

// PutTimestamp stores a plain 8-byte microsecond timestamp. The table's
// designated timestamp column is excluded: its cell is written
// automatically from newRow's timestamp argument and may not be
// overwritten through a put call.
func (r *Row) PutTimestamp(col int, microsSinceEpoch int64) error {
	if col == r.seg.meta.DesignatedTimestamp {
		return invalidOp("putTimestamp", fmt.Sprintf("column index %d is the designated timestamp, set automatically from the row's timestamp", col))
	}
	return r.PutLong(col, microsSinceEpoch)
}

// PutLong128LittleEndian stores a 16-byte value as two little-endian
// 64-bit words (hi, lo).
func (r *Row) PutLong128LittleEndian(col int, hi, lo int64) error {
	buf := make([]byte, 16)
	ByteOrder.PutUint64(buf[0:8], uint64(lo))
	ByteOrder.PutUint64(buf[8:16], uint64(hi))
	return r.set(col, pendingCell{fixed: buf})
}

func (r *Row) PutLong128Null(col int) error {
	return r.PutLong128LittleEndian(col, NullLong128Hi, NullLong128Lo)
}

// PutLong256 stores a 32-byte value as four little-endian 64-bit words.
func (r *Row) PutLong256(col int, a, b, c, d int64) error {
	buf := make([]byte, 32)
	ByteOrder.PutUint64(buf[0:8], uint64(a))
	ByteOrder.PutUint64(buf[8:16], uint64(b))
	ByteOrder.PutUint64(buf[16:24], uint64(c))
	ByteOrder.PutUint64(buf[24:32], uint64(d))
	return r.set(col, pendingCell{fixed: buf})
}

// PutLong256Hex parses a 0x-prefixed or bare hex string into a long256
// cell.
func (r *Row) PutLong256Hex(col int, hex string) error {
	a, b, c, d, err := parseLong256Hex(hex)
	if err != nil {
		return invalidOp("putLong256", err.Error())
	}
	return r.PutLong256(col, a, b, c, d)
}

func (r *Row) PutStr(col int, v string) error {
	return r.set(col, pendingCell{varData: []byte(v)})
}

func (r *Row) PutStrNull(col int) error {
	return r.set(col, pendingCell{isNull: true})
}

func (r *Row) PutBin(col int, v []byte) error {
	cp := make([]byte, len(v))
	copy(cp, v)
	return r.set(col, pendingCell{varData: cp})
}

func (r *Row) PutBinNull(col int) error {
	return r.set(col, pendingCell{isNull: true})
}

func (r *Row) PutSym(col int, v string) error {
	interner := r.seg.symbols[col]
	if interner == nil {
		return invalidOp("putSym", fmt.Sprintf("column index %d is not a symbol column", col))
	}
	key, err := interner.GetOrCreate(v)
	if err != nil {
		return fmt.Errorf("intern symbol value: %w", err)
	}
	buf := make([]byte, 4)
	ByteOrder.PutUint32(buf, uint32(key))
	return r.set(col, pendingCell{fixed: buf})
}

func (r *Row) PutSymNull(col int) error {
	buf := make([]byte, 4)
	ByteOrder.PutUint32(buf, uint32(NullSymbol))
	return r.set(col, pendingCell{fixed: buf})
}

// PutGeoHash stores a pre-encoded geohash in the column's native
// fixed-width form (byte/short/int/long, chosen by the column's geohash
// type).
func (r *Row) PutGeoHash(col int, hash int64) error {
	width := r.seg.meta.Columns[col].Type.FixedWidth()
	switch width {
	case 1:
		return r.set(col, pendingCell{fixed: []byte{byte(hash)}})
	case 2:
		buf := make([]byte, 2)
		ByteOrder.PutUint16(buf, uint16(hash))
		return r.set(col, pendingCell{fixed: buf})
	case 4:
		buf := make([]byte, 4)
		ByteOrder.PutUint32(buf, uint32(hash))
		return r.set(col, pendingCell{fixed: buf})
	default:
		buf := make([]byte, 8)
		ByteOrder.PutUint64(buf, uint64(hash))
		return r.set(col, pendingCell{fixed: buf})
	}
}

// PutGeoHashDeg encodes a (lat, lon) pair at the column's declared
// precision (GeoBits significant bits) and stores it like PutGeoHash.
func (r *Row) PutGeoHashDeg(col int, lat, lon float64) error {
	bits := r.seg.meta.Columns[col].GeoBits
	hash := encodeGeoHashDeg(lat, lon, bits)
	return r.PutGeoHash(col, hash)
}

// PutGeoStr parses a base-32 geohash string literal at the column's
// declared precision and stores it like PutGeoHash.
func (r *Row) PutGeoStr(col int, geohash string) error {
	bits := r.seg.meta.Columns[col].GeoBits
	hash, err := decodeGeoHashStr(geohash, bits)
	if err != nil {
		return invalidOp("putGeoStr", err.Error())
	}
	return r.PutGeoHash(col, hash)
}

// PutGeoHashNull stores the per-width null sentinel for a geohash column.
func (r *Row) PutGeoHashNull(col int) error {
	width := r.seg.meta.Columns[col].Type.FixedWidth()
	switch width {
	case 1:
		return r.set(col, pendingCell{fixed: []byte{byte(GeoNullByte)}})
	case 2:
		buf := make([]byte, 2)
		ByteOrder.PutUint16(buf, uint16(GeoNullShort))
		return r.set(col, pendingCell{fixed: buf})
	case 4:
		buf := make([]byte, 4)
		ByteOrder.PutUint32(buf, uint32(GeoNullInt))
		return r.set(col, pendingCell{fixed: buf})
	default:
		buf := make([]byte, 8)
		ByteOrder.PutUint64(buf, uint64(GeoNullLong))
		return r.set(col, pendingCell{fixed: buf})
	}
}

// Append commits the row: every touched column is flushed to its file
// pair, every untouched live column receives its type's null sentinel so
// all column files stay row-count aligned, and the segment's open
// transaction envelope (min/max timestamp, out-of-order flag) is updated
// from this row's timestamp.
func (r *Row) Append() error {
	for i := 0; i < len(r.touched); i++ {
		if !r.seg.meta.IsLive(i) {
			continue
		}
		cell, ok := r.pending[i]
		if !ok {
			cell = r.nullCellFor(i)
		}
		cfp := r.seg.columns[i]
		if cfp.col.Type.IsVarLength() {
			if err := cfp.appendVar(cell.varData, cell.isNull); err != nil {
				return fmt.Errorf("append row to column %q: %w", cfp.col.Name, err)
			}
		} else {
			if err := cfp.appendFixed(cell.fixed); err != nil {
				return fmt.Errorf("append row to column %q: %w", cfp.col.Name, err)
			}
		}
	}
	r.seg.observeRowTimestamp(r.timestamp)
	r.seg.uncommittedRows++
	return nil
}

// Cancel discards this row without writing anything: the untouched row
// slot in every column file pair is simply never allocated.
func (r *Row) Cancel() {
	r.pending = nil
}

// nullCellFor builds the null-sentinel cell for a column the caller left
// untouched.
func (r *Row) nullCellFor(col int) pendingCell {
	return nullCellForColumn(r.seg.meta.Columns[col])
}

// nullCellForColumn builds the null-sentinel cell for column c: one switch
// picking the encoding per type, no interface indirection per column. Used
// both for untouched columns on Append and to back-fill a newly added
// column for rows carried across a structural change's segment boundary.
func nullCellForColumn(c schema.Column) pendingCell {
	switch c.Type.Abs() {
	case schema.ColumnTypeBoolean, schema.ColumnTypeByte, schema.ColumnTypeChar:
		return pendingCell{fixed: make([]byte, c.Type.FixedWidth())}
	case schema.ColumnTypeShort:
		return pendingCell{fixed: make([]byte, 2)}
	case schema.ColumnTypeInt:
		buf := make([]byte, 4)
		ByteOrder.PutUint32(buf, uint32(NullInt))
		return pendingCell{fixed: buf}
	case schema.ColumnTypeLong, schema.ColumnTypeTimestamp:
		buf := make([]byte, 8)
		ByteOrder.PutUint64(buf, uint64(NullLong))
		return pendingCell{fixed: buf}
	case schema.ColumnTypeFloat:
		buf := make([]byte, 4)
		ByteOrder.PutUint32(buf, NullFloat32Bits)
		return pendingCell{fixed: buf}
	case schema.ColumnTypeDouble:
		buf := make([]byte, 8)
		ByteOrder.PutUint64(buf, NullFloat64Bits)
		return pendingCell{fixed: buf}
	case schema.ColumnTypeSymbol:
		buf := make([]byte, 4)
		ByteOrder.PutUint32(buf, uint32(NullSymbol))
		return pendingCell{fixed: buf}
	case schema.ColumnTypeLong128:
		buf := make([]byte, 16)
		ByteOrder.PutUint64(buf[8:16], uint64(NullLong128Hi))
		return pendingCell{fixed: buf}
	case schema.ColumnTypeLong256:
		return pendingCell{fixed: make([]byte, 32)}
	case schema.ColumnTypeGeoByte:
		return pendingCell{fixed: []byte{byte(GeoNullByte)}}
	case schema.ColumnTypeGeoShort:
		buf := make([]byte, 2)
		ByteOrder.PutUint16(buf, uint16(GeoNullShort))
		return pendingCell{fixed: buf}
	case schema.ColumnTypeGeoInt:
		buf := make([]byte, 4)
		ByteOrder.PutUint32(buf, uint32(GeoNullInt))
		return pendingCell{fixed: buf}
	case schema.ColumnTypeGeoLong:
		buf := make([]byte, 8)
		ByteOrder.PutUint64(buf, uint64(GeoNullLong))
		return pendingCell{fixed: buf}
	case schema.ColumnTypeString, schema.ColumnTypeBinary:
		return pendingCell{isNull: true}
	default:
		return pendingCell{fixed: make([]byte, c.Type.FixedWidth())}
	}
}
