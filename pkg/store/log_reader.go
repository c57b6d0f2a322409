package store

import (
	"bufio"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/actionkv/pkg/codec"
)

// LogReader provides positioned and sequential access to records in a log file.
// It keeps its own read-only handle, separate from the LogWriter's append handle.
type LogReader struct {
	file   *os.File
	reader *bufio.Reader
	codec  *codec.RecordCodec
	offset int64
	config LogReaderConfig
}

// NewLogReader creates a new log reader for the specified file
func NewLogReader(config LogReaderConfig) (*LogReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s for read", config.FilePath)
	}

	r := &LogReader{
		file:   file,
		reader: bufio.NewReader(file),
		codec:  codec.NewRecordCodec(),
		config: config,
	}

	if err := r.Seek(config.StartOffset); err != nil {
		_ = file.Close()
		return nil, err
	}

	return r, nil
}

// ReadNext decodes the record at the current offset and advances past it.
// It returns codec.ErrEndOfLog once fewer than a header's worth of bytes remain.
func (r *LogReader) ReadNext() (*codec.Record, error) {
	start := r.offset

	record, err := r.codec.Decode(r.reader)
	if err != nil {
		var ce *codec.CorruptionError
		if errors.As(err, &ce) {
			ce.Offset = start
			return nil, err
		}
		if errors.Is(err, codec.ErrEndOfLog) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "reading record at offset %d", start)
	}

	r.offset += int64(record.Size())
	return record, nil
}

// ReadAt reads the record at a specific offset, leaving the cursor just after it
func (r *LogReader) ReadAt(offset int64) (*codec.Record, error) {
	if err := r.Seek(offset); err != nil {
		return nil, err
	}

	record, err := r.ReadNext()
	if errors.Is(err, codec.ErrEndOfLog) {
		return nil, errors.Wrapf(err, "no record at offset %d", offset)
	}
	return record, err
}

// Seek sets the read offset
func (r *LogReader) Seek(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrapf(err, "seeking to offset %d", offset)
	}

	r.reader.Reset(r.file) // drop anything buffered from the old position
	r.offset = offset
	return nil
}

// Offset returns the current read offset
func (r *LogReader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator starting at offset 0.
// Each call restarts from the beginning of the log.
func (r *LogReader) Iterator() RecordIterator {
	it := &logRecordIterator{reader: r}
	it.err = r.Seek(0)
	it.done = it.err != nil
	return it
}

// Close closes the log reader
func (r *LogReader) Close() error {
	return r.file.Close()
}

// logRecordIterator implements RecordIterator for streaming access
type logRecordIterator struct {
	reader *LogReader
	record *codec.Record
	offset int64
	err    error
	done   bool
}

func (it *logRecordIterator) Next() bool {
	if it.done {
		return false
	}

	it.offset = it.reader.Offset()
	it.record, it.err = it.reader.ReadNext()
	if it.err != nil {
		if errors.Is(it.err, codec.ErrEndOfLog) {
			it.err = nil
		}
		it.record = nil
		it.done = true
		return false
	}
	return true
}

func (it *logRecordIterator) Record() *codec.Record {
	return it.record
}

// Offset returns the starting offset of the current record
func (it *logRecordIterator) Offset() int64 {
	return it.offset
}

// Err returns the error that stopped iteration, nil on a clean end of log
func (it *logRecordIterator) Err() error {
	return it.err
}

func (it *logRecordIterator) Close() error {
	// Don't close the underlying reader as it's owned by the caller
	it.done = true
	return nil
}
