package store

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"
)

// IndexSnapshot is a point-in-time copy of the index, written back into the log
// as an ordinary record under the reserved index key.
//
// It is not kept in sync with later writes. LogSize marks where the log ended when
// the snapshot was taken; Stale reports whether anything was appended since.
type IndexSnapshot struct {
	ID        ksuid.KSUID     `json:"id"`
	LogSize   int64           `json:"log_size"`
	CreatedAt time.Time       `json:"created_at"`
	Entries   []SnapshotEntry `json:"entries"`

	offsets   map[string]int64
	recordEnd int64
}

// SnapshotEntry is one key and the offset of its latest record
type SnapshotEntry struct {
	Key    []byte `json:"key"`
	Offset int64  `json:"offset"`
}

func newIndexSnapshot(offsets map[string]int64, logSize int64) *IndexSnapshot {
	entries := make([]SnapshotEntry, 0, len(offsets))
	for key, offset := range offsets {
		entries = append(entries, SnapshotEntry{Key: []byte(key), Offset: offset})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})

	return &IndexSnapshot{
		ID:        ksuid.New(),
		LogSize:   logSize,
		CreatedAt: time.Now().UTC(),
		Entries:   entries,
		offsets:   offsets,
	}
}

// UnmarshalIndexSnapshot decodes a snapshot record value
func UnmarshalIndexSnapshot(data []byte) (*IndexSnapshot, error) {
	var snap IndexSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "decoding index snapshot")
	}

	snap.offsets = make(map[string]int64, len(snap.Entries))
	for _, e := range snap.Entries {
		snap.offsets[string(e.Key)] = e.Offset
	}
	return &snap, nil
}

// Marshal encodes the snapshot as a record value
func (s *IndexSnapshot) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "encoding index snapshot")
	}
	return data, nil
}

// Lookup returns the offset recorded for key
func (s *IndexSnapshot) Lookup(key []byte) (int64, bool) {
	offset, ok := s.offsets[string(key)]
	return offset, ok
}

// Len returns the number of keys in the snapshot
func (s *IndexSnapshot) Len() int {
	return len(s.Entries)
}

// End returns the offset just past the snapshot's own record
func (s *IndexSnapshot) End() int64 {
	return s.recordEnd
}

// Stale reports whether records were appended after the snapshot was written
func (s *IndexSnapshot) Stale(logSize int64) bool {
	return logSize > s.recordEnd
}

// SnapshotIndex writes the current index into the log under the reserved key.
//
// The reserved key is left out of the snapshot, the in-memory index is cleared and
// the snapshot record is inserted, so afterwards the index holds only the reserved key.
func (kv *KVStore) SnapshotIndex() (snap *IndexSnapshot, err error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()
	defer kv.observe("snapshot", time.Now(), &err)

	if !kv.isOpen {
		return nil, ErrClosed
	}

	kv.index.Delete(kv.indexKey)
	snap = newIndexSnapshot(kv.index.Offsets(), kv.writer.Size())

	data, err := snap.Marshal()
	if err != nil {
		return nil, err
	}

	kv.index.Clear()
	offset, err := kv.putInternal(kv.indexKey, data)
	if err != nil {
		return nil, err
	}
	snap.recordEnd = kv.writer.Size()

	kv.logger.Info("index snapshot written",
		"id", snap.ID.String(), "keys", snap.Len(), "offset", offset)
	return snap, nil
}

// LoadSnapshot reads the snapshot the index currently points at.
// It returns ErrNoSnapshot when the reserved key is not indexed, which is the case
// until Load has replayed a log containing a snapshot.
func (kv *KVStore) LoadSnapshot() (snap *IndexSnapshot, err error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()
	defer kv.observe("load_snapshot", time.Now(), &err)

	if !kv.isOpen {
		return nil, ErrClosed
	}
	return kv.loadSnapshotInternal()
}

func (kv *KVStore) loadSnapshotInternal() (*IndexSnapshot, error) {
	entry, exists := kv.index.Get(kv.indexKey)
	if !exists {
		return nil, ErrNoSnapshot
	}

	record, err := kv.reader.ReadAt(entry.Offset)
	if err != nil {
		return nil, err
	}

	snap, err := UnmarshalIndexSnapshot(record.Value)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot record at offset %d", entry.Offset)
	}
	snap.recordEnd = entry.Offset + int64(record.Size())
	return snap, nil
}

// GetViaSnapshot resolves key through the latest snapshot instead of the replayed index.
// Keys written after that snapshot are not visible.
func (kv *KVStore) GetViaSnapshot(key []byte) (value []byte, found bool, err error) {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()
	defer kv.observe("get_snapshot", time.Now(), &err)

	if !kv.isOpen {
		return nil, false, ErrClosed
	}

	snap, err := kv.loadSnapshotInternal()
	if err != nil {
		return nil, false, err
	}

	offset, ok := snap.Lookup(key)
	if !ok {
		return nil, false, nil
	}

	record, err := kv.reader.ReadAt(offset)
	if err != nil {
		return nil, false, err
	}
	if !bytes.Equal(record.Key, key) {
		return nil, false, errors.Newf("snapshot %s entry for %q points at record for %q (offset %d)",
			snap.ID, key, record.Key, offset)
	}
	return record.Value, true, nil
}

// SnapshotStale reports whether snap is behind the current end of the log
func (kv *KVStore) SnapshotStale(snap *IndexSnapshot) bool {
	return snap.Stale(kv.Stats().LogSize)
}
