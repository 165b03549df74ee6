// Package mmap maps local input files read-only into memory.
//
// Local blobs are consumed front to back by the framed reader, so every
// mapping is advised for sequential access when it is opened. The mapping
// exposes both io.ReaderAt and a streaming io.Reader over its bytes.
//
//	m, err := mmap.Open("part-0001.rec")
//	if err != nil { ... }
//	defer m.Close()
//
//	r := m.Reader() // sequential view, no copies beyond the caller's buffer
//
// On Unix the package uses mmap(2)/madvise(2); on Windows it uses
// CreateFileMapping/MapViewOfFile and access hints are a no-op.
//
// Close is idempotent. Slices returned by Bytes must not be used after Close.
package mmap
