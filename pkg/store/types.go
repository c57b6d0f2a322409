package store

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/actionkv/pkg/codec"
	"github.com/ssargent/actionkv/pkg/metrics"
)

// DefaultIndexKey is the reserved key under which index snapshots are written
var DefaultIndexKey = []byte("+index")

// IndexEntry represents the location of a key's latest record in the log
type IndexEntry struct {
	Offset int64  // Byte offset of the record's checksum field
	Size   uint32 // Size of the record in bytes
}

// LogWriterConfig holds configuration for the log writer
type LogWriterConfig struct {
	FilePath   string // Path to the data file
	SyncWrites bool   // fsync after every append
}

// LogReaderConfig holds configuration for the log reader
type LogReaderConfig struct {
	FilePath    string // Path to the data file
	StartOffset int64  // Offset to start reading from
}

// HashIndexConfig holds configuration for the hash index
type HashIndexConfig struct {
	InitialCapacity int
}

// KVStoreConfig holds configuration for the key-value store
type KVStoreConfig struct {
	FilePath   string           // Path to the single data file
	SyncWrites bool             // fsync after every append
	IndexKey   []byte           // Reserved snapshot key; DefaultIndexKey when nil
	Logger     *slog.Logger     // Optional; discards output when nil
	Metrics    *metrics.Metrics // Optional
}

// RecordIterator provides streaming access to records
type RecordIterator interface {
	Next() bool
	Record() *codec.Record
	Offset() int64
	Err() error
	Close() error
}

// Errors
var (
	ErrKeyNotFound = &KVError{"key not found"}
	ErrInvalidKey  = &KVError{"invalid key"}
	ErrEmptyValue  = &KVError{"empty value is reserved for deletes"}
	ErrReservedKey = &KVError{"key is reserved for the index snapshot"}
	ErrNoSnapshot  = &KVError{"no index snapshot found"}
	ErrClosed      = &KVError{"store is closed"}
)

// KVError represents a key-value store error
type KVError struct {
	Message string
}

func (e *KVError) Error() string {
	return e.Message
}

// IsCorruption reports whether err was caused by a checksum mismatch or a truncated record
func IsCorruption(err error) bool {
	return errors.Is(err, codec.ErrCorruption) || errors.Is(err, codec.ErrTruncated)
}
