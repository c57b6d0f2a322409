//go:build unix

package lock

import (
	"os"
	"syscall"

	"github.com/cockroachdb/errors"
)

// acquire places an exclusive, non-blocking flock(2) on the lock file
func acquire(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open lock file")
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(ErrLocked, "%s", path)
	}

	return f, nil
}

// release unlocks and closes the file; the lock file itself is left in place
func release(f *os.File) error {
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return f.Close()
}
