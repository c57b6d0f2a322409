package store

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/actionkv/pkg/codec"
	"github.com/ssargent/actionkv/pkg/lock"
	"github.com/ssargent/actionkv/pkg/metrics"
)

// KVStore is a single-file, append-only key-value store.
//
// The index starts empty; call Load before relying on Get.
type KVStore struct {
	config   KVStoreConfig
	writer   *LogWriter
	reader   *LogReader
	index    *HashIndex
	lock     *lock.Lock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	indexKey []byte
	mutex    sync.Mutex
	isOpen   bool
}

// Open opens (creating if absent) the data file at path with default settings
func Open(path string) (*KVStore, error) {
	return NewKVStore(KVStoreConfig{FilePath: path})
}

// NewKVStore opens the data file described by config. It takes the file lock,
// opens the append and read handles and starts with an empty index. It does not replay.
func NewKVStore(config KVStoreConfig) (*KVStore, error) {
	if config.FilePath == "" {
		return nil, errors.New("store: file path is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	indexKey := config.IndexKey
	if len(indexKey) == 0 {
		indexKey = DefaultIndexKey
	}

	// The lock file lives next to the data file
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, errors.Wrapf(err, "creating directory for %s", config.FilePath)
	}

	fileLock, err := lock.Acquire(config.FilePath)
	if err != nil {
		return nil, err
	}

	writer, err := NewLogWriter(LogWriterConfig{
		FilePath:   config.FilePath,
		SyncWrites: config.SyncWrites,
	})
	if err != nil {
		_ = fileLock.Release()
		return nil, err
	}

	reader, err := NewLogReader(LogReaderConfig{FilePath: config.FilePath})
	if err != nil {
		_ = writer.Close()
		_ = fileLock.Release()
		return nil, err
	}

	kv := &KVStore{
		config:   config,
		writer:   writer,
		reader:   reader,
		index:    NewHashIndex(HashIndexConfig{}),
		lock:     fileLock,
		logger:   logger.With("file", config.FilePath),
		metrics:  config.Metrics,
		indexKey: append([]byte(nil), indexKey...),
		isOpen:   true,
	}

	kv.logger.Debug("store opened", "size", writer.Size())
	kv.metrics.UpdateStats(0, writer.Size())
	return kv, nil
}

// Load discards the in-memory index and rebuilds it by replaying the whole log.
// Replay stops at the first corrupted or truncated record and the error is returned.
func (kv *KVStore) Load() (err error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()
	defer kv.observe("load", time.Now(), &err)

	if !kv.isOpen {
		return ErrClosed
	}

	records, err := kv.index.BuildFromLog(kv.reader)
	kv.metrics.RecordReplay(records)
	if err != nil {
		return errors.Wrap(err, "replaying log")
	}

	kv.logger.Info("index rebuilt", "records", records, "keys", kv.index.Size())
	return nil
}

// Get looks key up in the index and reads its latest value.
// A miss returns found == false and a nil error.
func (kv *KVStore) Get(key []byte) (value []byte, found bool, err error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()
	defer kv.observe("get", time.Now(), &err)

	if !kv.isOpen {
		return nil, false, ErrClosed
	}

	return kv.getInternal(key)
}

// getInternal retrieves a value for a key without acquiring the mutex
func (kv *KVStore) getInternal(key []byte) ([]byte, bool, error) {
	entry, exists := kv.index.Get(key)
	if !exists {
		return nil, false, nil
	}

	record, err := kv.reader.ReadAt(entry.Offset)
	if err != nil {
		return nil, false, err
	}

	if !bytes.Equal(record.Key, key) {
		return nil, false, errors.Newf("index entry for %q points at record for %q (offset %d)", key, record.Key, entry.Offset)
	}

	return record.Value, true, nil
}

// GetAt reads the record stored at offset
func (kv *KVStore) GetAt(offset int64) (record *codec.Record, err error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()
	defer kv.observe("get_at", time.Now(), &err)

	if !kv.isOpen {
		return nil, ErrClosed
	}

	return kv.reader.ReadAt(offset)
}

// Insert appends a record for key and points the index at it
func (kv *KVStore) Insert(key, value []byte) (err error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()
	defer kv.observe("insert", time.Now(), &err)

	if err := kv.checkWrite(key, value); err != nil {
		return err
	}

	_, err = kv.putInternal(key, value)
	return err
}

// InsertRaw appends a record without touching the index and returns its offset
func (kv *KVStore) InsertRaw(key, value []byte) (offset int64, err error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()
	defer kv.observe("insert_raw", time.Now(), &err)

	if !kv.isOpen {
		return 0, ErrClosed
	}
	if len(key) == 0 {
		return 0, ErrInvalidKey
	}

	offset, _, err = kv.writer.Put(key, value)
	return offset, err
}

// Update appends a new value for a key that is already present
func (kv *KVStore) Update(key, value []byte) (err error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()
	defer kv.observe("update", time.Now(), &err)

	if err := kv.checkWrite(key, value); err != nil {
		return err
	}
	if _, exists := kv.index.Get(key); !exists {
		return ErrKeyNotFound
	}

	_, err = kv.putInternal(key, value)
	return err
}

// Delete appends a tombstone (the key with an empty value) and drops the key from the index
func (kv *KVStore) Delete(key []byte) (err error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()
	defer kv.observe("delete", time.Now(), &err)

	if err := kv.checkKey(key); err != nil {
		return err
	}
	if _, exists := kv.index.Get(key); !exists {
		return ErrKeyNotFound
	}

	if _, _, err := kv.writer.Put(key, nil); err != nil {
		return err
	}
	kv.index.Delete(key)
	return nil
}

// Find scans the whole log, ignoring the index, and returns the last record for key.
// A key whose last record is a tombstone is reported as not found.
func (kv *KVStore) Find(key []byte) (offset int64, value []byte, found bool, err error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()
	defer kv.observe("find", time.Now(), &err)

	if !kv.isOpen {
		return 0, nil, false, ErrClosed
	}

	iterator := kv.reader.Iterator()
	defer iterator.Close()

	// Keep going to the end: a later record for the same key wins
	for iterator.Next() {
		record := iterator.Record()
		if !bytes.Equal(record.Key, key) {
			continue
		}
		if record.IsTombstone() {
			offset, value, found = 0, nil, false
			continue
		}
		offset, value, found = iterator.Offset(), record.Value, true
	}
	if err := iterator.Err(); err != nil {
		return 0, nil, false, errors.Wrap(err, "scanning log")
	}

	return offset, value, found, nil
}

// Scan returns an iterator over every record in the log from offset 0.
// It uses its own file handle; the caller must Close it.
func (kv *KVStore) Scan() (RecordIterator, error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()

	if !kv.isOpen {
		return nil, ErrClosed
	}

	reader, err := NewLogReader(LogReaderConfig{FilePath: kv.config.FilePath})
	if err != nil {
		return nil, err
	}
	return &ownedIterator{RecordIterator: reader.Iterator(), reader: reader}, nil
}

// ownedIterator closes its reader along with the iteration
type ownedIterator struct {
	RecordIterator
	reader *LogReader
}

func (it *ownedIterator) Close() error {
	_ = it.RecordIterator.Close()
	return it.reader.Close()
}

// Keys returns every key in the in-memory index, sorted
func (kv *KVStore) Keys() []string {
	return kv.index.Keys()
}

// Path returns the data file path
func (kv *KVStore) Path() string {
	return kv.config.FilePath
}

// IndexKey returns the reserved snapshot key
func (kv *KVStore) IndexKey() []byte {
	return kv.indexKey
}

// Close shuts down the store and releases the file lock
func (kv *KVStore) Close() error {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()

	if !kv.isOpen {
		return nil
	}
	kv.isOpen = false

	var errs []error
	if err := kv.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := kv.reader.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := kv.lock.Release(); err != nil {
		errs = append(errs, err)
	}

	kv.logger.Debug("store closed")
	return errors.Join(errs...)
}

// Stats returns store statistics
func (kv *KVStore) Stats() *StoreStats {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()

	if !kv.isOpen {
		return &StoreStats{}
	}

	return &StoreStats{
		Keys:    kv.index.Size(),
		LogSize: kv.writer.Size(),
	}
}

// StoreStats holds statistics about the store
type StoreStats struct {
	Keys    int
	LogSize int64
}

// putInternal appends a record and indexes it without acquiring the mutex
func (kv *KVStore) putInternal(key, value []byte) (int64, error) {
	offset, size, err := kv.writer.Put(key, value)
	if err != nil {
		return 0, err
	}

	kv.index.Put(key, &IndexEntry{
		Offset: offset,
		Size:   uint32(size),
	})
	return offset, nil
}

// checkKey validates the key of a user write
func (kv *KVStore) checkKey(key []byte) error {
	if !kv.isOpen {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrInvalidKey
	}
	if bytes.Equal(key, kv.indexKey) {
		return ErrReservedKey
	}
	return nil
}

// checkWrite validates a user write
func (kv *KVStore) checkWrite(key, value []byte) error {
	if err := kv.checkKey(key); err != nil {
		return err
	}
	if len(value) == 0 {
		return ErrEmptyValue
	}
	return nil
}

// observe records metrics for an operation and logs corruption with its details
func (kv *KVStore) observe(op string, start time.Time, errp *error) {
	err := *errp
	kv.metrics.RecordOperation(op, err == nil, time.Since(start))

	if err != nil && IsCorruption(err) {
		kv.metrics.RecordCorruption()
		attrs := []any{"operation", op, "error", err}
		var ce *codec.CorruptionError
		if errors.As(err, &ce) {
			attrs = append(attrs, "offset", ce.Offset,
				"expected_crc", ce.Expected, "actual_crc", ce.Actual)
		}
		kv.logger.Error("corrupted record", attrs...)
	}

	if kv.isOpen {
		kv.metrics.UpdateStats(kv.index.Size(), kv.writer.Size())
	}
}
