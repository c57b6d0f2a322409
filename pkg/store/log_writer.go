package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/actionkv/pkg/codec"
)

// LogWriter handles append-only writes to the data file.
//
// The file is opened with O_APPEND, so every write lands at the true end of file
// no matter where any reader's cursor is. Callers never supply an offset.
type LogWriter struct {
	file   *os.File
	codec  *codec.RecordCodec
	config LogWriterConfig
	mutex  sync.Mutex
	offset int64 // Current end of file
}

// NewLogWriter creates a new log writer with the given configuration
func NewLogWriter(config LogWriterConfig) (*LogWriter, error) {
	if dir := filepath.Dir(config.FilePath); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, errors.Wrapf(err, "creating directory for %s", config.FilePath)
		}
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s for append", config.FilePath)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "stat %s", config.FilePath)
	}

	return &LogWriter{
		file:   file,
		codec:  codec.NewRecordCodec(),
		config: config,
		offset: stat.Size(),
	}, nil
}

// Put encodes a key-value pair, appends it and returns the record offset
func (w *LogWriter) Put(key, value []byte) (int64, int, error) {
	data, err := w.codec.Encode(key, value)
	if err != nil {
		return 0, 0, err
	}

	offset, err := w.Append(data)
	if err != nil {
		return 0, 0, err
	}
	return offset, len(data), nil
}

// Append writes data in a single call at the end of the file and returns the offset where it began
func (w *LogWriter) Append(data []byte) (int64, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	recordOffset := w.offset

	n, err := w.file.Write(data)
	w.offset += int64(n)
	if err != nil {
		return 0, errors.Wrapf(err, "appending %d bytes at offset %d", len(data), recordOffset)
	}

	if w.config.SyncWrites {
		if err := w.file.Sync(); err != nil {
			return 0, errors.Wrap(err, "fsync")
		}
	}

	return recordOffset, nil
}

// Sync forces a fsync to disk
func (w *LogWriter) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.file.Sync()
}

// Close closes the log writer and ensures all data is synced
func (w *LogWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}

	return w.file.Close()
}

// Size returns the current size of the log file
func (w *LogWriter) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Path returns the file path
func (w *LogWriter) Path() string {
	return w.config.FilePath
}
