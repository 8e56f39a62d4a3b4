// Package mmap provides read-only memory-mapped file access for the local
// blob store.
//
// Snapshot archives installed on a reader are immutable, so mapping them
// avoids copying file contents through kernel buffers when a blob is opened
// for verification or load.
//
// # Usage
//
//	m, err := mmap.Open("versions/20240101T000000Z/collection.brs")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes()
//	m.Advise(mmap.AccessSequential)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) access hints
//   - Windows: CreateFileMapping/MapViewOfFile (advise is a no-op)
//
// # Thread Safety
//
// Mapping is safe for concurrent read access. Close is idempotent; callers
// must ensure no goroutine touches Bytes() after Close returns.
package mmap
