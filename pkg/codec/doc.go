// Package codec provides record serialization and deserialization for actionkv.
//
// The codec package implements the binary record format used by the append-only
// log. Every keyed entry written to the log is framed by this package.
//
// # Record Format
//
// Records are serialized in a binary format with the following structure:
//
//	[CRC32(4)][KeySize(4)][ValueSize(4)][Key][Value]
//
// Fields:
//   - CRC32: IEEE CRC32 of Key followed by Value (little-endian)
//   - KeySize: 32-bit unsigned key length in bytes (little-endian)
//   - ValueSize: 32-bit unsigned value length in bytes (little-endian)
//   - Key: Variable-length key data
//   - Value: Variable-length value data
//
// The total record size is: 12 bytes (header) + len(key) + len(value).
// There is no file header, footer or magic number; a log is just records back to back.
//
// Note that the checksum covers the payload only. A damaged length field shows up
// either as a checksum mismatch on the misaligned payload or as ErrTruncated.
//
// # Usage
//
//	codec := codec.NewRecordCodec()
//
//	encoded, err := codec.Encode([]byte("key"), []byte("value"))
//	if err != nil {
//	    return err
//	}
//
//	record, err := codec.Decode(bytes.NewReader(encoded))
//	if err != nil {
//	    return err
//	}
//
// # Error Handling
//
// Decode distinguishes three conditions:
//   - ErrEndOfLog: fewer than 12 bytes were available. Callers looping over a log
//     treat this as the clean end of the sequence.
//   - ErrTruncated: a header was read but the declared payload was not fully present.
//   - *CorruptionError: the stored checksum does not match the payload. It matches
//     ErrCorruption with errors.Is and carries both checksums.
package codec
