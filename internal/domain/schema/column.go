// Package schema describes table structure: columns, types, and the
// designated-timestamp axis that the WAL segment writer persists per row.
package schema

import "fmt"

// ColumnType identifies the on-disk representation of a column's values.
// A negative ColumnType value marks a tombstoned (deleted) column: the
// writer keeps the slot so historical segments can still be read, but no
// new row may address it.
type ColumnType int8

const (
	ColumnTypeUndefined ColumnType = 0
	ColumnTypeBoolean   ColumnType = 1
	ColumnTypeByte      ColumnType = 2
	ColumnTypeShort     ColumnType = 3
	ColumnTypeChar      ColumnType = 4
	ColumnTypeInt       ColumnType = 5
	ColumnTypeLong      ColumnType = 6
	ColumnTypeFloat     ColumnType = 7
	ColumnTypeDouble    ColumnType = 8
	ColumnTypeString    ColumnType = 9
	ColumnTypeSymbol    ColumnType = 10
	ColumnTypeBinary    ColumnType = 11
	ColumnTypeTimestamp ColumnType = 12
	ColumnTypeLong256   ColumnType = 13
	ColumnTypeGeoByte   ColumnType = 14
	ColumnTypeGeoShort  ColumnType = 15
	ColumnTypeGeoInt    ColumnType = 16
	ColumnTypeGeoLong   ColumnType = 17
	ColumnTypeLong128   ColumnType = 18
)

// IsVarLength reports whether values of this type are stored as a primary
// payload plus a secondary offset index, rather than fixed-width in the
// primary file alone.
func (t ColumnType) IsVarLength() bool {
	switch t.Abs() {
	case ColumnTypeString, ColumnTypeBinary:
		return true
	default:
		return false
	}
}

// Abs returns the non-tombstoned form of the type (a tombstoned column
// stores its type negated so the slot remembers what it used to hold).
func (t ColumnType) Abs() ColumnType {
	if t < 0 {
		return -t
	}
	return t
}

// IsDeleted reports whether the type has been tombstoned by a drop-column.
func (t ColumnType) IsDeleted() bool {
	return t < 0
}

// Deleted returns the tombstoned form of t.
func (t ColumnType) Deleted() ColumnType {
	return -t.Abs()
}

// FixedWidth returns the byte width of one value in the primary file for
// fixed-width types, or 0 for variable-length types (string, binary).
func (t ColumnType) FixedWidth() int {
	switch t.Abs() {
	case ColumnTypeBoolean, ColumnTypeByte, ColumnTypeGeoByte:
		return 1
	case ColumnTypeShort, ColumnTypeGeoShort:
		return 2
	case ColumnTypeChar:
		return 2
	case ColumnTypeInt, ColumnTypeFloat, ColumnTypeGeoInt:
		return 4
	case ColumnTypeLong, ColumnTypeDouble, ColumnTypeGeoLong, ColumnTypeTimestamp:
		return 8
	case ColumnTypeSymbol:
		return 4
	case ColumnTypeLong256:
		return 32
	case ColumnTypeLong128:
		return 16
	default:
		return 0
	}
}

func (t ColumnType) String() string {
	switch t.Abs() {
	case ColumnTypeBoolean:
		return "BOOLEAN"
	case ColumnTypeByte:
		return "BYTE"
	case ColumnTypeShort:
		return "SHORT"
	case ColumnTypeChar:
		return "CHAR"
	case ColumnTypeInt:
		return "INT"
	case ColumnTypeLong:
		return "LONG"
	case ColumnTypeFloat:
		return "FLOAT"
	case ColumnTypeDouble:
		return "DOUBLE"
	case ColumnTypeString:
		return "STRING"
	case ColumnTypeSymbol:
		return "SYMBOL"
	case ColumnTypeBinary:
		return "BINARY"
	case ColumnTypeTimestamp:
		return "TIMESTAMP"
	case ColumnTypeLong256:
		return "LONG256"
	case ColumnTypeGeoByte, ColumnTypeGeoShort, ColumnTypeGeoInt, ColumnTypeGeoLong:
		return fmt.Sprintf("GEOHASH(%d)", t.FixedWidth()*8)
	case ColumnTypeLong128:
		return "LONG128"
	default:
		return "UNDEFINED"
	}
}

// Column is one column's structural metadata at a given structure version.
type Column struct {
	Name    string
	Type    ColumnType
	GeoBits int // significant bits for geohash columns; 0 otherwise
}

// IsSymbol reports whether this column is dictionary-encoded.
func (c Column) IsSymbol() bool {
	return c.Type.Abs() == ColumnTypeSymbol
}
