// Package lock provides an advisory, process-exclusive lock for a data file.
package lock

import (
	"os"

	"github.com/cockroachdb/errors"
)

// ErrLocked is returned when another process already holds the lock
var ErrLocked = errors.New("data file already in use by another process")

// Path returns the lock file used for the given data file
func Path(dataFile string) string {
	return dataFile + ".lock"
}

// Lock is a held lock. It must stay open for as long as the data file is in use.
type Lock struct {
	file *os.File
}

// Acquire takes the lock for dataFile without blocking
func Acquire(dataFile string) (*Lock, error) {
	f, err := acquire(Path(dataFile))
	if err != nil {
		return nil, err
	}
	return &Lock{file: f}, nil
}

// Release drops the lock. Calling it more than once is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := release(l.file)
	l.file = nil
	return err
}
