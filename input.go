package recio

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

// Input is a record cursor over either a single framed stream (a leaf) or
// a merge of child Inputs. Both kinds share the same contract, so merges
// nest to any depth.
//
// An Input is not safe for concurrent use. Records it returns are valid
// until the next Advance, AdvanceUnique, AdvanceGroup, Reset or Close.
type Input struct {
	leaf   *reader
	node   *mergeNode
	parent *Input
	closed atomic.Bool
	group  arena
}

// Advance moves to the next record and returns it. At the end of the
// stream it returns nil and io.EOF; any other error is an I/O failure or a
// *FatalError.
//
// On a merge node the least record across all children is returned, the
// first child in Add order winning ties. With KeepFirst or a Reducer every
// maximal run of equal records is collapsed into one.
func (in *Input) Advance() (*Record, error) {
	if in.closed.Load() {
		return nil, ErrClosed
	}
	if in.node != nil {
		return in.node.advance()
	}
	return in.leaf.Advance()
}

// AdvanceUnique consumes one record from every child whose next record
// equals the least key and returns the first of them together with the
// number of children that held it. Each child is expected to hold a key at
// most once. On a leaf the count is always 1.
func (in *Input) AdvanceUnique() (*Record, int, error) {
	if in.closed.Load() {
		return nil, 0, ErrClosed
	}
	if in.node != nil {
		return in.node.advanceUnique()
	}
	rec, err := in.leaf.Advance()
	if err != nil {
		return nil, 0, err
	}
	return rec, 1, nil
}

// AdvanceGroup returns the next set of records that compare equal under
// cmp along with its size. A nil cmp uses the merge comparator, or
// BytesCompare on a leaf. The returned slice and its data are owned by the
// Input until the next call.
//
// On a merge node the set holds one record from every child whose next
// record equals the least key, in child order, and the size is the number
// of those children. KeepFirst and Reducer do not apply. On a leaf it is
// the run of consecutive equal records.
//
// Current returns nil after AdvanceGroup: a leaf has to read one record
// past the run and holds it back for the next advance, and a merge node
// has no single current record.
func (in *Input) AdvanceGroup(cmp CompareFunc) ([]Record, int, error) {
	if in.closed.Load() {
		return nil, 0, ErrClosed
	}
	if in.node != nil {
		if cmp == nil {
			cmp = in.node.cmp
		}
		return in.node.advanceGroup(cmp, &in.group)
	}
	if cmp == nil {
		cmp = BytesCompare
	}

	rec, err := in.Advance()
	if err != nil {
		return nil, 0, err
	}
	in.group.reset()
	in.group.add(rec.Data, rec.Tag)
	for {
		rec, err = in.Advance()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		first := in.group.at(0)
		if cmp(rec, &first) != 0 {
			in.Reset()
			break
		}
		in.group.add(rec.Data, rec.Tag)
	}
	group := in.group.records()
	return group, len(group), nil
}

// Current returns the record produced by the last advance, or nil before
// the first advance and after Reset.
func (in *Input) Current() *Record {
	if in.closed.Load() {
		return nil
	}
	if in.node != nil {
		return in.node.current()
	}
	return in.leaf.Current()
}

// Reset makes the next Advance return the current record again without
// consuming anything. It does nothing when there is no current record.
func (in *Input) Reset() {
	if in.closed.Load() {
		return
	}
	if in.node != nil {
		in.node.reset()
		return
	}
	in.leaf.Reset()
}

// Count advances to the end and returns the number of records seen,
// counting each collapsed group once. Afterwards Advance returns io.EOF.
func (in *Input) Count() (int64, error) {
	var n int64
	for {
		_, err := in.Advance()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Add appends child to a merge node; its records are tagged with tag. The
// node takes ownership of child and closes it on Close.
func (in *Input) Add(child *Input, tag int) error {
	if in.closed.Load() {
		return ErrClosed
	}
	if in.node == nil {
		return ErrNotMerge
	}
	if child == nil {
		return &ConfigError{Field: "child", Reason: "must not be nil"}
	}
	if child.parent != nil {
		return &ConfigError{Field: "child", Reason: "already added to a merge"}
	}
	for p := in; p != nil; p = p.parent {
		if p == child {
			return &ConfigError{Field: "child", Reason: "would create a cycle"}
		}
	}
	child.parent = in
	in.node.add(child, tag)
	return nil
}

// IsMerge reports whether in is a merge node.
func (in *Input) IsMerge() bool { return in.node != nil }

// Len returns the number of children of a merge node, or 1 for a leaf.
func (in *Input) Len() int {
	if in.node != nil {
		return len(in.node.children)
	}
	return 1
}

// Sources returns the tags of the children that contributed to the record
// produced by the last Advance or AdvanceUnique. Negative tags are not
// representable and are left out. On a leaf it holds the leaf's own tag.
func (in *Input) Sources() *roaring.Bitmap {
	if in.node != nil {
		if !in.node.hasLast {
			return roaring.New()
		}
		return in.node.sources.Clone()
	}
	bm := roaring.New()
	if in.leaf.hasCur && in.leaf.cur.Tag >= 0 {
		bm.Add(uint32(in.leaf.cur.Tag))
	}
	return bm
}

// Close releases the Input and, for a merge node, every child. It is safe
// to call at any point and more than once.
func (in *Input) Close() error {
	if !in.closed.CompareAndSwap(false, true) {
		return nil
	}
	if in.node != nil {
		return in.node.close()
	}
	return in.leaf.Close()
}
