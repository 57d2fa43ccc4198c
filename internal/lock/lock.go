// Package lock provides the optional whole-log advisory file lock (spec
// §9 Open question — concurrency). The spec does not require mutual
// exclusion between CLI invocations, but allows an implementation to add
// one as long as the event format is untouched; this is adapted almost
// verbatim from the teacher's single-instance guard.
package lock

import (
	"fmt"
	"os"
	"syscall"
)

// Acquire takes an exclusive, non-blocking lock on path, creating the
// file if needed. The returned handle must be kept open for as long as
// the lock is held and passed to Release when done.
func Acquire(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("lock: open %s: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another roadmapctl operation is running (lock: %s)", path)
	}

	f.Truncate(0)
	f.Seek(0, 0)
	fmt.Fprintf(f, "%d\n", os.Getpid())

	return f, nil
}

// Release unlocks and removes the lock file. A nil handle is a no-op.
func Release(f *os.File) {
	if f == nil {
		return
	}
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	name := f.Name()
	f.Close()
	os.Remove(name)
}
