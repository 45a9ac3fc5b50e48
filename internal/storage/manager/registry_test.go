package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileykamath/coldbwal/internal/domain/schema"
	"github.com/rileykamath/coldbwal/internal/domain/txnlog"
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

func TestGetOrCreateWriter_ReturnsCachedWriterOnSecondCall(t *testing.T) {
	seq := txnlog.NewInProcessSequencer(testMeta())
	reg := NewRegistry(t.TempDir(), seq)
	ctx := context.Background()

	w1, err := reg.GetOrCreateWriter(ctx, "trades")
	assert.NilError(t, err)
	w2, err := reg.GetOrCreateWriter(ctx, "trades")
	assert.NilError(t, err)
	assert.Assert(t, w1 == w2)
}

func TestGetOrCreateWriter_ReopensAfterDiscard(t *testing.T) {
	seq := txnlog.NewInProcessSequencer(testMeta())
	reg := NewRegistry(t.TempDir(), seq)
	ctx := context.Background()

	w1, err := reg.GetOrCreateWriter(ctx, "trades")
	assert.NilError(t, err)
	assert.NilError(t, reg.Discard("trades"))

	w2, err := reg.GetOrCreateWriter(ctx, "trades")
	assert.NilError(t, err)
	assert.Assert(t, w1 != w2)
	assert.NilError(t, w2.Distressed())
}

func TestDiscard_UnknownTableIsNoOp(t *testing.T) {
	seq := txnlog.NewInProcessSequencer(testMeta())
	reg := NewRegistry(t.TempDir(), seq)

	assert.NilError(t, reg.Discard("no-such-table"))
}

func TestRegistry_ListAndCloseAll(t *testing.T) {
	seq := txnlog.NewInProcessSequencer(testMeta())
	base := t.TempDir()
	reg := NewRegistry(base, seq)
	ctx := context.Background()

	_, err := reg.GetOrCreateWriter(ctx, "trades")
	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"trades"}, reg.List())

	assert.NilError(t, reg.CloseAll())
	assert.Equal(t, 0, len(reg.List()))
}

func TestDiscard_ClosesAndRemovesWriter(t *testing.T) {
	seq := txnlog.NewInProcessSequencer(testMeta())
	reg := NewRegistry(t.TempDir(), seq)
	ctx := context.Background()

	_, err := reg.GetOrCreateWriter(ctx, "trades")
	assert.NilError(t, err)
	assert.NilError(t, reg.Discard("trades"))
	assert.Equal(t, 0, len(reg.List()))
}

func TestGetOrCreateWriter_WalRootUnderBasePath(t *testing.T) {
	seq := txnlog.NewInProcessSequencer(testMeta())
	base := t.TempDir()
	reg := NewRegistry(base, seq)

	_, err := reg.GetOrCreateWriter(context.Background(), "trades")
	assert.NilError(t, err)

	info, err := os.Stat(filepath.Join(base, "trades"))
	assert.NilError(t, err)
	assert.Assert(t, info.IsDir())
}
