// Package manager hosts the writer registry: the process-wide directory of
// live wal.Writer instances, keyed by table name, handed out to callers and
// discarded — never recycled — once distressed.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/rileykamath/coldbwal/internal/domain/txnlog"
	"github.com/rileykamath/coldbwal/internal/wal"
)

// Registry manages loaded wal.Writer instances in a thread-safe way, one
// per table. It does not coordinate structure or txn allocation itself —
// that is the Sequencer's job — it only owns the local Writer object a
// caller talks to and its replacement once distressed.
type Registry struct {
	mu        sync.RWMutex
	writers   map[string]*wal.Writer
	basePath  string
	sequencer txnlog.Sequencer
}

// NewRegistry creates a writer registry rooted at basePath, allocating
// walIds and table metadata through sequencer.
func NewRegistry(basePath string, sequencer txnlog.Sequencer) *Registry {
	return &Registry{
		writers:   make(map[string]*wal.Writer),
		basePath:  basePath,
		sequencer: sequencer,
	}
}

// GetOrCreateWriter returns table's live writer, opening one if none exists
// yet. A cached writer found to be distressed is closed and dropped rather
// than handed back; a fresh one is opened in its place.
func (r *Registry) GetOrCreateWriter(ctx context.Context, table string, opts ...wal.WriterOption) (*wal.Writer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.writers[table]; ok {
		if err := w.Distressed(); err != nil {
			slog.Warn("discarding distressed writer", "table", table, "cause", err)
			w.Close()
			delete(r.writers, table)
		} else {
			return w, nil
		}
	}

	walRoot := filepath.Join(r.basePath, table)
	w, err := wal.NewWriter(ctx, table, walRoot, r.sequencer, opts...)
	if err != nil {
		return nil, fmt.Errorf("open writer for table %q: %w", table, err)
	}
	r.writers[table] = w
	return w, nil
}

// Discard closes and removes table's writer unconditionally, for callers
// that have observed a failure the writer itself hasn't yet surfaced
// through Distressed (e.g. a caller-side timeout).
func (r *Registry) Discard(table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.writers[table]
	if !ok {
		return nil
	}
	delete(r.writers, table)
	return w.Close()
}

// List returns the table names with a currently open writer.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.writers))
	for name := range r.writers {
		names = append(names, name)
	}
	return names
}

// CloseAll closes every open writer, continuing past individual errors and
// returning the first one encountered.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for table, w := range r.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close writer for table %q: %w", table, err)
		}
		delete(r.writers, table)
	}
	return firstErr
}
