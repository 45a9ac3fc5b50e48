package wal

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is the OS-level advisory lock held on the wal-root `_lock`
// file and on every segment's `_lock` file: it prevents two
// writer instances from opening the same wal root or segment
// concurrently, independent of any in-process mutex.
type fileLock struct {
	f *os.File
}

// acquireFileLock opens (creating if necessary) path and takes an
// exclusive, non-blocking flock(2) on it. A lock already held by another
// process surfaces as a wrapped syscall error, which the caller should
// treat as "wal root/segment is in use", not as grounds for distress.
func acquireFileLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("unlock %s: %w", l.f.Name(), err)
	}
	err := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	return nil
}
