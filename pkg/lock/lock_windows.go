//go:build windows

package lock

import (
	"os"

	"github.com/cockroachdb/errors"
)

// acquire atomically creates the lock file; its existence means the data file is in use
func acquire(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.Wrapf(ErrLocked, "%s", path)
	}
	return f, nil
}

// release closes and removes the lock file
func release(f *os.File) error {
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
