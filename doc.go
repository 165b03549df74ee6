// Package recio reads framed records from byte streams and merges sorted
// record streams.
//
// # Framed reading
//
// A leaf Input turns a byte source (file, descriptor, buffer or object-store
// blob, optionally compressed) into a cursor over records:
//
//	in, err := recio.Open("events.lz4", recio.WithPrefix())
//	if err != nil {
//	    return err
//	}
//	defer in.Close()
//
//	for {
//	    rec, err := in.Advance()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    process(rec.Data)
//	}
//
// Three framings are supported: 4-byte little-endian length prefixes, a
// delimiter byte (newline by default) and fixed-length records. Records
// are views into the reader's buffer and stay valid until the next call on
// the same Input. Records longer than the buffer are still returned, using
// a one-off allocation.
//
// # End-of-stream policy
//
// By default every abnormal tail degrades to a shorter stream: missing and
// empty inputs read as empty, corrupt compressed data ends the stream at
// the last good record and an incomplete trailing record is dropped. Each
// condition can be escalated to a *FatalError (WithAbortOnNotFound,
// WithAbortOnEmpty, WithAbortOnError, WithAbortOnPartial), and
// WithAllowPartial yields the incomplete record instead.
//
// # Merging
//
// NewMerge builds a node that merges any number of sorted Inputs, leaves
// or other merges:
//
//	m, _ := recio.NewMerge(recio.BytesCompare, recio.WithKeepFirst())
//	_ = m.Add(a, 0)
//	_ = m.Add(b, 1)
//
// Advance yields the least record across children, the first child winning
// ties. AdvanceUnique and AdvanceGroup collapse equal keys across streams,
// and WithKeepFirst or WithReducer make Advance itself collapse them.
// Closing a merge closes all of its children.
package recio
