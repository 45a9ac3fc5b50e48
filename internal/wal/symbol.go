package wal

import (
	"fmt"
	"os"
	"path/filepath"
)

// symbolInterner dictionary-encodes one symbol column for the lifetime of
// a segment. It hard-links the base table's dictionary files into the
// segment directory at open time (so concurrent writers observe the same
// committed symbol space without copying it) and appends every value it
// coins to a local, segment-scoped extension file.
// initialSymbolCount is the watermark separating "known to the base table
// at segment-open time" from "coined locally by this writer".
type symbolInterner struct {
	column             string
	dir                string
	initialSymbolCount int32

	values    *appendFile // local value store: length-prefixed UTF-8 strings
	localKeys map[string]int32
	nextKey   int32
}

// openSymbolInterner hard-links baseDictDir's symbol files for column into
// dir (the segment's symbol directory), then opens a local extension file
// for any new values this writer coins.
func openSymbolInterner(dir, baseDictDir, column string, initialSymbolCount int32) (*symbolInterner, error) {
	if baseDictDir != "" {
		for _, ext := range []string{".sym.k", ".sym.v"} {
			src := filepath.Join(baseDictDir, column+ext)
			dst := filepath.Join(dir, column+ext)
			if _, err := os.Stat(src); err == nil {
				if _, err := os.Stat(dst); os.IsNotExist(err) {
					if err := os.Link(src, dst); err != nil {
						return nil, fmt.Errorf("hard-link symbol dictionary %q for column %q: %w", ext, column, err)
					}
				}
			}
		}
	}

	localPath := filepath.Join(dir, column+".sym.local")
	values, err := openAppendFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("open local symbol extension for column %q: %w", column, err)
	}

	return &symbolInterner{
		column:             column,
		dir:                dir,
		initialSymbolCount: initialSymbolCount,
		values:             values,
		localKeys:          make(map[string]int32),
		nextKey:            initialSymbolCount,
	}, nil
}

// GetOrCreate returns the dictionary key for value, coining a new local
// key (appended to the local extension file) if it has not been seen by
// this writer before. The base dictionary itself is never searched here:
// interning is a writer-local optimistic append, reconciled against the
// base table lazily by the reader side, which is out of scope for this
// package.
func (s *symbolInterner) GetOrCreate(value string) (int32, error) {
	if key, ok := s.localKeys[value]; ok {
		return key, nil
	}

	buf := make([]byte, 4+len(value))
	ByteOrder.PutUint32(buf, uint32(len(value)))
	copy(buf[4:], value)
	if _, err := s.values.Append(buf); err != nil {
		return 0, fmt.Errorf("append symbol value %q for column %q: %w", value, s.column, err)
	}

	key := s.nextKey
	s.nextKey++
	s.localKeys[value] = key
	return key, nil
}

// Count returns the number of distinct values known locally, not counting
// the base dictionary watermark.
func (s *symbolInterner) Count() int32 {
	return s.nextKey - s.initialSymbolCount
}

func (s *symbolInterner) sync() error {
	return s.values.sync()
}

func (s *symbolInterner) close() error {
	return s.values.Close(false)
}
