package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/cockroachdb/errors"
)

// HeaderSize is the fixed size of a record header: CRC32(4) + KeySize(4) + ValueSize(4)
const HeaderSize = 12

var (
	// ErrEndOfLog marks a clean scan boundary: fewer than HeaderSize bytes remain
	ErrEndOfLog = errors.New("end of log")
	// ErrTruncated is returned when a header was read but its payload is short
	ErrTruncated = errors.New("truncated record")
	// ErrCorruption is matched by every *CorruptionError
	ErrCorruption = errors.New("data corruption detected")
)

// CorruptionError reports a checksum mismatch for a single record
type CorruptionError struct {
	Offset   int64  // Offset of the record's checksum field, -1 if unknown
	Expected uint32 // Checksum stored in the header
	Actual   uint32 // Checksum computed over the payload
}

func (e *CorruptionError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("data corruption encountered (%08x != %08x)", e.Actual, e.Expected)
	}
	return fmt.Sprintf("data corruption encountered at offset %d (%08x != %08x)", e.Offset, e.Actual, e.Expected)
}

// Is lets errors.Is(err, ErrCorruption) match any CorruptionError
func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorruption
}

// Record represents a single key-value entry as stored in the log
type Record struct {
	CRC32     uint32 // CRC32 checksum over Key followed by Value
	KeySize   uint32 // Size of the key in bytes
	ValueSize uint32 // Size of the value in bytes
	Key       []byte // Key data
	Value     []byte // Value data
}

// RecordCodec handles serialization and deserialization of records
type RecordCodec struct{}

// NewRecordCodec creates a new record codec instance
func NewRecordCodec() *RecordCodec {
	return &RecordCodec{}
}

// Encode serializes a key-value pair into a binary record format
// Format: [CRC32(4)][KeySize(4)][ValueSize(4)][Key][Value]
func (c *RecordCodec) Encode(key, value []byte) ([]byte, error) {
	r, err := NewRecord(key, value)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, r.Size())

	binary.LittleEndian.PutUint32(buf[0:], r.CRC32)
	binary.LittleEndian.PutUint32(buf[4:], r.KeySize)
	binary.LittleEndian.PutUint32(buf[8:], r.ValueSize)
	copy(buf[HeaderSize:], r.Key)
	copy(buf[HeaderSize+int(r.KeySize):], r.Value)

	return buf, nil
}

// Decode reads exactly one record from r and verifies its checksum.
//
// It returns ErrEndOfLog if fewer than HeaderSize bytes are available, ErrTruncated
// if the declared payload cannot be fully read, and a *CorruptionError on a checksum
// mismatch. Other read failures are returned as-is.
func (c *RecordCodec) Decode(r io.Reader) (*Record, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrEndOfLog
		}
		return nil, err
	}

	rec := &Record{
		CRC32:     binary.LittleEndian.Uint32(header[0:4]),
		KeySize:   binary.LittleEndian.Uint32(header[4:8]),
		ValueSize: binary.LittleEndian.Uint32(header[8:12]),
	}

	// Grow the buffer as bytes arrive so a garbage header can't force a huge allocation
	dataSize := int64(rec.KeySize) + int64(rec.ValueSize)
	var payload bytes.Buffer
	n, err := io.CopyN(&payload, r, dataSize)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(ErrTruncated, "declared %d payload bytes, read %d", dataSize, n)
		}
		return nil, err
	}

	data := payload.Bytes()
	rec.Key = data[:rec.KeySize:rec.KeySize]
	rec.Value = data[rec.KeySize:]

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	return rec, nil
}

// DecodeBytes decodes a record from an in-memory buffer
func (c *RecordCodec) DecodeBytes(data []byte) (*Record, error) {
	return c.Decode(bytes.NewReader(data))
}

// Validate checks the integrity of a record using CRC32
func (r *Record) Validate() error {
	if actual := r.calculateCRC32(); actual != r.CRC32 {
		return &CorruptionError{Offset: -1, Expected: r.CRC32, Actual: actual}
	}

	return nil
}

// Size returns the total size of the record when encoded
func (r *Record) Size() int {
	return HeaderSize + len(r.Key) + len(r.Value)
}

// IsTombstone reports whether the record marks its key as deleted
func (r *Record) IsTombstone() bool {
	return len(r.Value) == 0
}

// NewRecord creates a new record with its checksum filled in
func NewRecord(key, value []byte) (*Record, error) {
	if uint64(len(key)) > uint64(^uint32(0)) {
		return nil, errors.Newf("key too large: %d bytes", len(key))
	}
	if uint64(len(value)) > uint64(^uint32(0)) {
		return nil, errors.Newf("value too large: %d bytes", len(value))
	}
	r := &Record{
		KeySize:   uint32(len(key)),
		ValueSize: uint32(len(value)),
		Key:       key,
		Value:     value,
	}
	r.CRC32 = r.calculateCRC32()
	return r, nil
}

// calculateCRC32 computes the IEEE CRC32 of Key followed by Value
func (r *Record) calculateCRC32() uint32 {
	crc := crc32.NewIEEE()
	crc.Write(r.Key)
	crc.Write(r.Value)
	return crc.Sum32()
}
