package recio

import (
	"context"
	"errors"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
)

type mergeMode uint8

const (
	modePlain mergeMode = iota
	modeKeepFirst
	modeReduce
)

func (m mergeMode) String() string {
	switch m {
	case modeKeepFirst:
		return "keep-first"
	case modeReduce:
		return "reduce"
	default:
		return "plain"
	}
}

// mergeNode merges sorted children into one ordered stream.
//
// heads[i] is the current record of child i, or nil once the child is
// exhausted. A child whose head was handed to the caller is listed in
// pending and advanced at the start of the next call, so the returned
// record stays valid until then. heads are only compared when pending is
// empty.
type mergeNode struct {
	cmp     CompareFunc
	reducer Reducer
	mode    mergeMode
	tag     int
	log     *Logger
	ctx     context.Context

	children []*Input
	tags     []int
	heads    []*Record
	pending  []int
	started  bool

	last    Record
	lastNum int
	hasLast bool
	held    bool
	sources *roaring.Bitmap
	run     arena
}

func newMergeNode(cmp CompareFunc, opts Options) *mergeNode {
	if cmp == nil {
		cmp = BytesCompare
	}
	n := &mergeNode{
		cmp:     cmp,
		reducer: opts.Reducer,
		tag:     opts.Tag,
		log:     opts.Logger.WithTag(opts.Tag),
		ctx:     opts.Context,
		sources: roaring.New(),
	}
	switch {
	case opts.Reducer != nil:
		n.mode = modeReduce
	case opts.KeepFirst:
		n.mode = modeKeepFirst
	}
	return n
}

func (n *mergeNode) add(child *Input, tag int) {
	n.children = append(n.children, child)
	n.tags = append(n.tags, tag)
	n.heads = append(n.heads, nil)
	n.pending = append(n.pending, len(n.children)-1)
}

// refresh advances every pending child.
func (n *mergeNode) refresh() error {
	if !n.started {
		n.started = true
		n.log.LogMerge(n.ctx, len(n.children), n.mode.String())
	}
	for k, i := range n.pending {
		if err := n.advanceChild(i); err != nil {
			n.pending = append(n.pending[:0], n.pending[k:]...)
			return err
		}
	}
	n.pending = n.pending[:0]
	return nil
}

func (n *mergeNode) advanceChild(i int) error {
	rec, err := n.children[i].Advance()
	if err != nil {
		if errors.Is(err, io.EOF) {
			n.heads[i] = nil
			return nil
		}
		return err
	}
	n.heads[i] = rec
	return nil
}

// minIndex returns the child holding the least head, the first in child
// order on ties, or -1 when every child is exhausted.
func (n *mergeNode) minIndex() int {
	best := -1
	for i, h := range n.heads {
		if h == nil {
			continue
		}
		if best < 0 || n.cmp(h, n.heads[best]) < 0 {
			best = i
		}
	}
	return best
}

func (n *mergeNode) selectMin() (int, error) {
	if err := n.refresh(); err != nil {
		return -1, err
	}
	return n.minIndex(), nil
}

// take hands child i's head to the caller.
func (n *mergeNode) take(i int) {
	n.pending = append(n.pending, i)
	n.addSource(i)
}

func (n *mergeNode) addSource(i int) {
	if tag := n.tags[i]; tag >= 0 {
		n.sources.Add(uint32(tag))
	}
}

func (n *mergeNode) advance() (*Record, error) {
	if n.held {
		n.held = false
		return &n.last, nil
	}
	i, err := n.selectMin()
	if err != nil || i < 0 {
		n.hasLast = false
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}

	n.sources.Clear()
	if n.mode == modePlain {
		n.take(i)
		n.last = Record{Data: n.heads[i].Data, Tag: n.tags[i]}
		n.lastNum = 1
	} else {
		if err := n.collectRun(i); err != nil {
			n.hasLast = false
			return nil, err
		}
		group := n.run.records()
		if n.mode == modeKeepFirst {
			n.last = group[0]
		} else {
			n.last = n.reducer(group, n.tag)
		}
		n.lastNum = len(group)
	}
	n.hasLast = true
	return &n.last, nil
}

// collectRun copies the maximal run of records equal to child i's head
// into the run arena, consuming them from every child.
func (n *mergeNode) collectRun(i int) error {
	n.run.reset()
	for {
		n.run.add(n.heads[i].Data, n.tags[i])
		n.addSource(i)
		if err := n.advanceChild(i); err != nil {
			n.pending = append(n.pending, i)
			return err
		}
		i = n.minIndex()
		if i < 0 {
			return nil
		}
		first := n.run.at(0)
		if n.cmp(n.heads[i], &first) != 0 {
			return nil
		}
	}
}

func (n *mergeNode) advanceUnique() (*Record, int, error) {
	if n.held {
		n.held = false
		return &n.last, n.lastNum, nil
	}
	i, err := n.selectMin()
	if err != nil || i < 0 {
		n.hasLast = false
		if err == nil {
			err = io.EOF
		}
		return nil, 0, err
	}

	n.sources.Clear()
	n.last = Record{Data: n.heads[i].Data, Tag: n.tags[i]}
	num := 0
	for j := i; j < len(n.heads); j++ {
		if n.heads[j] != nil && n.cmp(n.heads[j], n.heads[i]) == 0 {
			n.take(j)
			num++
		}
	}
	n.lastNum = num
	n.hasLast = true
	return &n.last, num, nil
}

// advanceGroup takes one record from every child whose head equals the
// least head under cmp and copies them, in child order, into group. It
// works on the raw heads, so KeepFirst and Reducer do not apply. There is
// no current record afterwards.
func (n *mergeNode) advanceGroup(cmp CompareFunc, group *arena) ([]Record, int, error) {
	group.reset()
	if n.held {
		n.held, n.hasLast = false, false
		group.add(n.last.Data, n.last.Tag)
		return group.records(), n.lastNum, nil
	}
	i, err := n.selectMin()
	if err != nil || i < 0 {
		n.hasLast = false
		if err == nil {
			err = io.EOF
		}
		return nil, 0, err
	}

	n.sources.Clear()
	least := n.heads[i]
	num := 0
	for j, h := range n.heads {
		if h != nil && cmp(h, least) == 0 {
			group.add(h.Data, n.tags[j])
			n.take(j)
			num++
		}
	}
	n.hasLast = false
	return group.records(), num, nil
}

func (n *mergeNode) current() *Record {
	if !n.hasLast || n.held {
		return nil
	}
	return &n.last
}

func (n *mergeNode) reset() {
	if n.hasLast {
		n.held = true
	}
}

func (n *mergeNode) close() error {
	errs := make([]error, 0, len(n.children))
	for _, c := range n.children {
		errs = append(errs, c.Close())
	}
	n.heads = nil
	n.pending = nil
	n.hasLast, n.held = false, false
	return errors.Join(errs...)
}
