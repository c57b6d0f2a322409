package store

import (
	"sort"
	"strings"
	"sync"
)

// HashIndex maps each key to the location of its most recent record
type HashIndex struct {
	entries map[string]*IndexEntry
	mutex   sync.RWMutex
}

// NewHashIndex creates a new hash index
func NewHashIndex(config HashIndexConfig) *HashIndex {
	return &HashIndex{
		entries: make(map[string]*IndexEntry, config.InitialCapacity),
	}
}

// Put adds or updates an index entry for a key
func (idx *HashIndex) Put(key []byte, entry *IndexEntry) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries[string(key)] = entry
}

// Get retrieves the index entry for a key
func (idx *HashIndex) Get(key []byte) (*IndexEntry, bool) {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	entry, exists := idx.entries[string(key)]
	return entry, exists
}

// Delete removes a key from the index
func (idx *HashIndex) Delete(key []byte) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	delete(idx.entries, string(key))
}

// Size returns the number of keys in the index
func (idx *HashIndex) Size() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return len(idx.entries)
}

// Clear removes all entries from the index
func (idx *HashIndex) Clear() {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries = make(map[string]*IndexEntry)
}

// Keys returns all keys in the index, sorted
func (idx *HashIndex) Keys() []string {
	return idx.KeysWithPrefix("")
}

// KeysWithPrefix returns all keys that start with the given prefix, sorted
func (idx *HashIndex) KeysWithPrefix(prefix string) []string {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	var keys []string
	for key := range idx.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Offsets returns a copy of the key to offset mapping
func (idx *HashIndex) Offsets() map[string]int64 {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	out := make(map[string]int64, len(idx.entries))
	for key, entry := range idx.entries {
		out[key] = entry.Offset
	}
	return out
}

// BuildFromLog replays the whole log and repopulates the index.
// Later records win; a tombstone removes its key. A failed replay leaves the index empty.
func (idx *HashIndex) BuildFromLog(reader *LogReader) (int, error) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries = make(map[string]*IndexEntry)

	iterator := reader.Iterator()
	defer iterator.Close()

	records := 0
	for iterator.Next() {
		record := iterator.Record()
		records++

		keyStr := string(record.Key)
		if record.IsTombstone() {
			delete(idx.entries, keyStr)
			continue
		}

		idx.entries[keyStr] = &IndexEntry{
			Offset: iterator.Offset(),
			Size:   uint32(record.Size()),
		}
	}

	if err := iterator.Err(); err != nil {
		idx.entries = make(map[string]*IndexEntry)
		return records, err
	}
	return records, nil
}

// Stats returns index statistics
func (idx *HashIndex) Stats() *IndexStats {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return &IndexStats{
		TotalKeys: len(idx.entries),
	}
}

// IndexStats holds statistics about the index
type IndexStats struct {
	TotalKeys int
}
