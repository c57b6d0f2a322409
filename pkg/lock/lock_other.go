//go:build !unix && !windows

package lock

import "os"

// acquire has no locking primitive on this platform; it only opens the lock file
func acquire(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
}

func release(f *os.File) error {
	return f.Close()
}
