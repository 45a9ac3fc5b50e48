package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// NoDesignatedTimestamp marks a table that has no time axis.
const NoDesignatedTimestamp = -1

// TableMetadata is the versioned schema snapshot a writer carries: column
// list (including tombstoned columns, which keep their slot so historical
// segments stay readable), structure version, and the designated-timestamp
// column index. It is serialized verbatim into each segment's `_meta` file
// on segment open and re-emitted on every structural change.
type TableMetadata struct {
	TableName           string
	Columns             []Column
	StructureVersion    int64
	DesignatedTimestamp int
}

// Clone returns a deep copy so callers can mutate without aliasing the
// writer's in-memory snapshot.
func (m *TableMetadata) Clone() *TableMetadata {
	cols := make([]Column, len(m.Columns))
	copy(cols, m.Columns)
	return &TableMetadata{
		TableName:           m.TableName,
		Columns:             cols,
		StructureVersion:    m.StructureVersion,
		DesignatedTimestamp: m.DesignatedTimestamp,
	}
}

// ColumnCount returns the number of column slots, including tombstoned ones.
func (m *TableMetadata) ColumnCount() int {
	return len(m.Columns)
}

// ColumnIndex returns the index of the named live column, or -1 if the
// column does not exist or has been tombstoned (the "quiet variant").
func (m *TableMetadata) ColumnIndex(name string) int {
	for i, c := range m.Columns {
		if c.Name == name && !c.Type.IsDeleted() {
			return i
		}
	}
	return -1
}

// ColumnType returns the type of the column at index i.
func (m *TableMetadata) ColumnType(i int) ColumnType {
	return m.Columns[i].Type
}

// ColumnName returns the name of the column at index i.
func (m *TableMetadata) ColumnName(i int) string {
	return m.Columns[i].Name
}

// IsLive reports whether the column at index i is not tombstoned.
func (m *TableMetadata) IsLive(i int) bool {
	return !m.Columns[i].Type.IsDeleted()
}

// AddColumn appends a new live column and advances the structure version by
// exactly one.
func (m *TableMetadata) AddColumn(name string, typ ColumnType, geoBits int) error {
	if m.ColumnIndex(name) != -1 {
		return fmt.Errorf("column %q already exists", name)
	}
	m.Columns = append(m.Columns, Column{Name: name, Type: typ, GeoBits: geoBits})
	m.StructureVersion++
	return nil
}

// RemoveColumn tombstones the named column (flips its stored type to its
// negation) rather than physically removing the slot, so earlier segments
// that still reference the column's index by position remain valid.
func (m *TableMetadata) RemoveColumn(name string) error {
	idx := m.ColumnIndex(name)
	if idx == -1 {
		return fmt.Errorf("column %q not found", name)
	}
	if idx == m.DesignatedTimestamp {
		return fmt.Errorf("cannot remove designated timestamp column %q", name)
	}
	m.Columns[idx].Type = m.Columns[idx].Type.Deleted()
	m.StructureVersion++
	return nil
}

// RenameColumn renames a live column in place without touching its type or
// position. Only the in-memory name changes: symbol dictionary files
// already hard-linked into earlier segment directories keep their old
// names, and are only ever addressed through that segment's own metadata
// snapshot, never by scanning a directory for a column-named file.
func (m *TableMetadata) RenameColumn(oldName, newName string) error {
	idx := m.ColumnIndex(oldName)
	if idx == -1 {
		return fmt.Errorf("column %q not found", oldName)
	}
	if m.ColumnIndex(newName) != -1 {
		return fmt.Errorf("column %q already exists", newName)
	}
	m.Columns[idx].Name = newName
	m.StructureVersion++
	return nil
}

// jsonColumn and jsonMeta mirror TableMetadata's shape for serialization;
// kept distinct from the in-memory type so the on-disk format is decoupled
// from internal field ordering.
type jsonColumn struct {
	Name    string `json:"name"`
	Type    int8   `json:"type"`
	GeoBits int    `json:"geoBits,omitempty"`
}

type jsonMeta struct {
	TableName           string       `json:"tableName"`
	StructureVersion    int64        `json:"structureVersion"`
	DesignatedTimestamp int          `json:"designatedTimestamp"`
	Columns             []jsonColumn `json:"columns"`
}

// WriteSnapshot serializes the metadata snapshot into dir/_meta, replacing
// any prior file via rename so a crash never leaves a half-written _meta.
// This implements an "in-place switch-to" contract: whatever the writer
// held open for the previous segment's _meta is logically closed by this
// call, and the new one is created and populated in its place.
func (m *TableMetadata) WriteSnapshot(dir string) error {
	jm := jsonMeta{
		TableName:           m.TableName,
		StructureVersion:    m.StructureVersion,
		DesignatedTimestamp: m.DesignatedTimestamp,
		Columns:             make([]jsonColumn, len(m.Columns)),
	}
	for i, c := range m.Columns {
		jm.Columns[i] = jsonColumn{Name: c.Name, Type: int8(c.Type), GeoBits: c.GeoBits}
	}

	buf, err := json.MarshalIndent(jm, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata snapshot: %w", err)
	}

	tmp := filepath.Join(dir, "_meta.tmp")
	if err := os.WriteFile(tmp, buf, 0644); err != nil {
		return fmt.Errorf("write metadata snapshot: %w", err)
	}
	final := filepath.Join(dir, "_meta")
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("commit metadata snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a metadata snapshot previously written by WriteSnapshot.
func ReadSnapshot(dir string) (*TableMetadata, error) {
	buf, err := os.ReadFile(filepath.Join(dir, "_meta"))
	if err != nil {
		return nil, fmt.Errorf("read metadata snapshot: %w", err)
	}
	var jm jsonMeta
	if err := json.Unmarshal(buf, &jm); err != nil {
		return nil, fmt.Errorf("parse metadata snapshot: %w", err)
	}
	m := &TableMetadata{
		TableName:           jm.TableName,
		StructureVersion:    jm.StructureVersion,
		DesignatedTimestamp: jm.DesignatedTimestamp,
		Columns:             make([]Column, len(jm.Columns)),
	}
	for i, c := range jm.Columns {
		m.Columns[i] = Column{Name: c.Name, Type: ColumnType(c.Type), GeoBits: c.GeoBits}
	}
	return m, nil
}
