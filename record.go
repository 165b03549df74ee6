package recio

import "bytes"

// Record is one framed payload plus the tag of the stream it came from.
//
// Data is borrowed: it stays valid and unchanged until the next Advance,
// Reset or Close on the Input that produced it. Use Clone to keep it longer.
type Record struct {
	Data []byte
	Tag  int
}

// Clone returns a copy of r that owns its data.
func (r Record) Clone() Record {
	return Record{Data: bytes.Clone(r.Data), Tag: r.Tag}
}

// CompareFunc orders two records by payload. It returns a negative number,
// zero or a positive number and must ignore Tag.
type CompareFunc func(a, b *Record) int

// BytesCompare orders records lexicographically by Data.
func BytesCompare(a, b *Record) int {
	return bytes.Compare(a.Data, b.Data)
}

// Reducer combines a maximal run of equal records into one. tag is the tag
// of the merge node doing the reduction. The returned record must own its
// data; it is handed to the caller as is.
type Reducer func(group []Record, tag int) Record
