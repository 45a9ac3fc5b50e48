package schema

import (
	"testing"

	"gotest.tools/v3/assert"
)

func testMeta() *TableMetadata {
	return &TableMetadata{
		TableName:           "trades",
		DesignatedTimestamp: 0,
		Columns: []Column{
			{Name: "ts", Type: ColumnTypeTimestamp},
			{Name: "symbol", Type: ColumnTypeSymbol},
			{Name: "price", Type: ColumnTypeDouble},
		},
	}
}

func TestAddColumn_BumpsStructureVersion(t *testing.T) {
	m := testMeta()
	assert.NilError(t, m.AddColumn("size", ColumnTypeLong, 0))
	assert.Equal(t, int64(1), m.StructureVersion)
	assert.Equal(t, 3, m.ColumnIndex("size"))
}

func TestAddColumn_DuplicateName(t *testing.T) {
	m := testMeta()
	err := m.AddColumn("price", ColumnTypeLong, 0)
	assert.ErrorContains(t, err, "already exists")
}

func TestRemoveColumn_Tombstones(t *testing.T) {
	m := testMeta()
	assert.NilError(t, m.RemoveColumn("price"))
	assert.Equal(t, -1, m.ColumnIndex("price"))
	assert.Equal(t, 3, m.ColumnCount())
	assert.Assert(t, m.Columns[2].Type.IsDeleted())
	assert.Assert(t, !m.IsLive(2))
}

func TestRemoveColumn_DesignatedTimestampRejected(t *testing.T) {
	m := testMeta()
	err := m.RemoveColumn("ts")
	assert.ErrorContains(t, err, "designated timestamp")
}

func TestRenameColumn_KeepsPositionAndType(t *testing.T) {
	m := testMeta()
	assert.NilError(t, m.RenameColumn("symbol", "ticker"))
	assert.Equal(t, 1, m.ColumnIndex("ticker"))
	assert.Equal(t, -1, m.ColumnIndex("symbol"))
	assert.Equal(t, ColumnTypeSymbol, m.ColumnType(1))
}

func TestRenameColumn_TargetExists(t *testing.T) {
	m := testMeta()
	err := m.RenameColumn("symbol", "price")
	assert.ErrorContains(t, err, "already exists")
}

func TestWriteReadSnapshot_RoundTrips(t *testing.T) {
	m := testMeta()
	assert.NilError(t, m.AddColumn("size", ColumnTypeLong, 0))

	dir := t.TempDir()
	assert.NilError(t, m.WriteSnapshot(dir))

	loaded, err := ReadSnapshot(dir)
	assert.NilError(t, err)
	assert.Equal(t, m.TableName, loaded.TableName)
	assert.Equal(t, m.StructureVersion, loaded.StructureVersion)
	assert.Equal(t, len(m.Columns), len(loaded.Columns))
	for i := range m.Columns {
		assert.Equal(t, m.Columns[i].Name, loaded.Columns[i].Name)
		assert.Equal(t, m.Columns[i].Type, loaded.Columns[i].Type)
	}
}

func TestClone_DoesNotAlias(t *testing.T) {
	m := testMeta()
	clone := m.Clone()
	assert.NilError(t, clone.AddColumn("size", ColumnTypeLong, 0))
	assert.Equal(t, int64(0), m.StructureVersion)
	assert.Equal(t, 3, m.ColumnCount())
}
