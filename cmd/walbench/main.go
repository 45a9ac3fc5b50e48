// Command walbench exercises a wal.Writer end to end: it opens a writer
// against a scratch directory, appends and commits a batch of rows
// spanning most column types, applies a schema change, appends and
// commits one more row, and prints the wal root's directory listing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rileykamath/coldbwal/internal/domain/schema"
	"github.com/rileykamath/coldbwal/internal/domain/txnlog"
	"github.com/rileykamath/coldbwal/internal/logging"
	"github.com/rileykamath/coldbwal/internal/wal"
)

func main() {
	rows := flag.Int("rows", 1000, "number of rows to append before the schema change")
	dir := flag.String("dir", "", "wal root directory (defaults to a temp dir)")
	rolloverAt := flag.Int64("rollover", 200_000, "segment rollover threshold in rows")
	flag.Parse()

	logger, cleanup := logging.SetupLogger()
	defer cleanup()
	slog.SetDefault(logger)

	if err := run(*rows, *dir, *rolloverAt, logger); err != nil {
		logger.Error("walbench failed", "error", err)
		os.Exit(1)
	}
}

func run(rowCount int, dir string, rolloverThreshold int64, logger *slog.Logger) error {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "walbench-*")
		if err != nil {
			return fmt.Errorf("create scratch dir: %w", err)
		}
		dir = tmp
	}
	walRoot := filepath.Join(dir, "trades")

	meta := &schema.TableMetadata{
		TableName:           "trades",
		DesignatedTimestamp: 0,
		Columns: []schema.Column{
			{Name: "ts", Type: schema.ColumnTypeTimestamp},
			{Name: "symbol", Type: schema.ColumnTypeSymbol},
			{Name: "price", Type: schema.ColumnTypeDouble},
			{Name: "size", Type: schema.ColumnTypeLong},
			{Name: "side", Type: schema.ColumnTypeByte},
			{Name: "venue", Type: schema.ColumnTypeString},
		},
	}

	sequencer := txnlog.NewInProcessSequencer(meta)

	ctx := context.Background()
	w, err := wal.NewWriter(ctx, "trades", walRoot, sequencer,
		wal.WithRolloverThreshold(rolloverThreshold),
		wal.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("open writer: %w", err)
	}
	defer w.Close()

	symbols := []string{"BTC-USD", "ETH-USD", "SOL-USD"}
	venues := []string{"ALPHA", "BETA"}

	for i := 0; i < rowCount; i++ {
		row, err := w.NewRow(int64(i) * 1000)
		if err != nil {
			return fmt.Errorf("new row: %w", err)
		}
		row.PutSym(1, symbols[i%len(symbols)])
		row.PutDouble(2, 100.0+float64(i%50))
		row.PutLong(3, int64(i%7+1))
		if i%2 == 0 {
			row.PutByte(4, 1)
		} else {
			row.PutByte(4, -1)
		}
		row.PutStr(5, venues[i%len(venues)])
		if err := row.Append(); err != nil {
			return fmt.Errorf("append row %d: %w", i, err)
		}
	}

	if err := w.Commit(ctx); err != nil {
		return fmt.Errorf("commit initial batch: %w", err)
	}
	logger.Info("committed initial batch", "rows", rowCount)

	if err := w.ApplyAlter(ctx, txnlog.AlterOp{
		Kind:   txnlog.AlterAddColumn,
		Column: "liquidity_flag",
		Type:   schema.ColumnTypeBoolean,
	}); err != nil {
		return fmt.Errorf("apply schema change: %w", err)
	}
	logger.Info("applied schema change", "column", "liquidity_flag")

	row, err := w.NewRow(int64(rowCount) * 1000)
	if err != nil {
		return fmt.Errorf("new row after schema change: %w", err)
	}
	row.PutSym(1, symbols[0])
	row.PutDouble(2, 101.5)
	row.PutLong(3, 10)
	row.PutByte(4, 1)
	row.PutStr(5, venues[0])
	row.PutBool(6, true)
	if err := row.Append(); err != nil {
		return fmt.Errorf("append post-alter row: %w", err)
	}
	if err := w.Commit(ctx); err != nil {
		return fmt.Errorf("commit post-alter row: %w", err)
	}

	fmt.Printf("wal root: %s\n", walRoot)
	entries, err := os.ReadDir(walRoot)
	if err != nil {
		return fmt.Errorf("list wal root: %w", err)
	}
	for _, e := range entries {
		fmt.Printf("  %s\n", e.Name())
	}
	return nil
}
