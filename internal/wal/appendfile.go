package wal

import (
	"fmt"
	"os"
)

// appendFile models an abstract memory-mapped append target: a file, its
// current size, and an append cursor. Real column
// file pairs in production QuestDB-style engines grow via mmap; here the
// same contract (Append/JumpTo/switchTo/Close) is implemented with plain
// os.File positioned writes, which is the honest approximation a
// standard-library-only storage layer can give without cgo or
// platform-specific mmap syscalls (see DESIGN.md for this stdlib-fallback
// justification).
type appendFile struct {
	f      *os.File
	path   string
	size   int64
	cursor int64
}

func openAppendFile(path string) (*appendFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open append file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat append file %s: %w", path, err)
	}
	return &appendFile{f: f, path: path, size: info.Size(), cursor: info.Size()}, nil
}

// Append writes p at the current cursor and advances it, growing the file
// as needed. It never seeks backward.
func (a *appendFile) Append(p []byte) (int64, error) {
	off := a.cursor
	n, err := a.f.WriteAt(p, off)
	if err != nil {
		return 0, fmt.Errorf("append to %s at %d: %w", a.path, off, err)
	}
	a.cursor += int64(n)
	if a.cursor > a.size {
		a.size = a.cursor
	}
	return off, nil
}

// JumpTo repositions the append cursor without touching file content or
// the recorded size; a later Close(true) truncates the file to it.
func (a *appendFile) JumpTo(offset int64) {
	a.cursor = offset
}

// switchTo truncates the file to offset, abandoning any bytes written past
// it, and moves the cursor there; used on rollback.
func (a *appendFile) switchTo(offset int64) error {
	if err := a.f.Truncate(offset); err != nil {
		return fmt.Errorf("truncate %s to %d: %w", a.path, offset, err)
	}
	a.cursor = offset
	a.size = offset
	return nil
}

// Size returns the current logical size of the file.
func (a *appendFile) Size() int64 {
	return a.size
}

// ReadAt reads len(buf) bytes starting at offset, used to read back
// already-appended cells (e.g. carrying uncommitted rows into a new
// segment across a structural change).
func (a *appendFile) ReadAt(buf []byte, offset int64) error {
	if _, err := a.f.ReadAt(buf, offset); err != nil {
		return fmt.Errorf("read %s at %d: %w", a.path, offset, err)
	}
	return nil
}

func (a *appendFile) sync() error {
	if err := a.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", a.path, err)
	}
	return nil
}

// Close(truncate) closes the file, truncating it to the cursor position
// first when truncate is true.
func (a *appendFile) Close(truncate bool) error {
	if truncate {
		if err := a.f.Truncate(a.cursor); err != nil {
			a.f.Close()
			return fmt.Errorf("truncate %s on close: %w", a.path, err)
		}
	}
	return a.f.Close()
}
