// Package hash provides the CRC32-Castagnoli checksums that guard snapshot
// archives and their manifests.
//
// Every archive records a CRC32C of its serialized payload. The snapshot
// subscriber recomputes the checksum after download and refuses to install a
// snapshot on mismatch, so a truncated or corrupted transfer can never
// replace serving data. Go's crc32 package uses hardware CRC instructions on
// x86 (SSE4.2) and ARM, so verification is never the slow part of a
// replication cycle.
//
// For one-shot checksums:
//
//	sum := hash.CRC32C(data)
//
// For streaming checksums while writing or reading an archive:
//
//	h := hash.NewCRC32C()
//	h.Write(section)
//	sum := h.Sum32()
package hash
