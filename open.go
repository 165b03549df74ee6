package recio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/recio/blobstore"
	"github.com/hupe1980/recio/codec"
	"github.com/hupe1980/recio/source"
)

// Open opens a named file. A ".gz", ".lz4" or ".zst" suffix selects the
// matching decompressor unless Compression is set explicitly.
//
// A missing file is an empty stream unless AbortOnNotFound is set.
func Open(filename string, optFns ...Option) (*Input, error) {
	opts, err := buildOptions(optFns)
	if err != nil {
		return nil, err
	}
	if opts.Compression == codec.None {
		opts.Compression = codec.ForFilename(filename)
	}

	began := time.Now()
	src, err := source.Open(filename)
	opts.Metrics.RecordOpen(time.Since(began), err)
	opts.Logger.LogOpen(opts.Context, filename, opts.Compression.String(), err)
	return openSource(src, err, filename, opts)
}

// OpenFile reads from an open descriptor. When canClose is false the
// caller keeps ownership of f.
func OpenFile(f *os.File, canClose bool, optFns ...Option) (*Input, error) {
	opts, err := buildOptions(optFns)
	if err != nil {
		return nil, err
	}
	return leaf(source.FromFile(f, canClose), opts, true)
}

// OpenBuffer reads from buf. release, when non-nil, is called with buf
// once the Input is closed.
func OpenBuffer(buf []byte, release func([]byte), optFns ...Option) (*Input, error) {
	opts, err := buildOptions(optFns)
	if err != nil {
		return nil, err
	}
	return leaf(source.FromBuffer(buf, release), opts, true)
}

// OpenSource reads from any Source. The Input takes ownership of src.
func OpenSource(src source.Source, optFns ...Option) (*Input, error) {
	opts, err := buildOptions(optFns)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return leaf(src, opts, true)
}

// OpenBlob streams a blob from store. Like Open, the name suffix selects
// the decompressor and a missing blob is an empty stream unless
// AbortOnNotFound is set.
func OpenBlob(ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (*Input, error) {
	opts, err := buildOptions(append([]Option{WithContext(ctx)}, optFns...))
	if err != nil {
		return nil, err
	}
	if opts.Compression == codec.None {
		opts.Compression = codec.ForFilename(name)
	}

	began := time.Now()
	src, err := source.FromBlob(ctx, store, name, 0)
	opts.Metrics.RecordOpen(time.Since(began), err)
	opts.Logger.LogOpen(ctx, name, opts.Compression.String(), err)
	return openSource(src, err, name, opts)
}

func openSource(src source.Source, err error, name string, opts Options) (*Input, error) {
	if err != nil {
		if !errors.Is(err, source.ErrNotFound) {
			return nil, fmt.Errorf("recio: open %s: %w", name, err)
		}
		if opts.AbortOnNotFound {
			return nil, fatal(ErrSourceNotFound, name, err)
		}
		return leaf(source.Empty(name), opts, false)
	}
	return leaf(src, opts, true)
}

func leaf(src source.Source, opts Options, checkEmpty bool) (*Input, error) {
	r, err := newReader(src, opts, checkEmpty)
	if err != nil {
		return nil, err
	}
	return &Input{leaf: r}, nil
}

// NewMerge creates an empty merge node ordered by cmp (BytesCompare when
// nil). Children are attached with Add. KeepFirst, Reducer and Tag apply
// to the node; framing options are ignored.
func NewMerge(cmp CompareFunc, optFns ...Option) (*Input, error) {
	opts, err := buildOptions(optFns)
	if err != nil {
		return nil, err
	}
	return &Input{node: newMergeNode(cmp, opts)}, nil
}

// OpenBlobs merges every blob under prefix. Blobs are opened concurrently,
// bounded by the MaxConcurrentOpens of the configured resource controller,
// and added in name order with their index as tag. The options apply to
// the merge node and, apart from Tag, to every leaf.
func OpenBlobs(ctx context.Context, store blobstore.BlobStore, prefix string, cmp CompareFunc, optFns ...Option) (*Input, error) {
	opts, err := buildOptions(append([]Option{WithContext(ctx)}, optFns...))
	if err != nil {
		return nil, err
	}
	names, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("recio: list %q: %w", prefix, err)
	}

	leaves := make([]*Input, len(names))
	g, gctx := errgroup.WithContext(ctx)
	if rc := opts.Resources; rc != nil {
		g.SetLimit(int(rc.Config().MaxConcurrentOpens))
	}
	for i, name := range names {
		g.Go(func() error {
			if err := opts.Resources.AcquireOpen(gctx); err != nil {
				return err
			}
			defer opts.Resources.ReleaseOpen()

			leafOpts := append(append([]Option(nil), optFns...), WithTag(i), WithContext(ctx))
			in, err := OpenBlob(ctx, store, name, leafOpts...)
			if err != nil {
				return err
			}
			leaves[i] = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, in := range leaves {
			if in != nil {
				_ = in.Close()
			}
		}
		return nil, err
	}

	merged := &Input{node: newMergeNode(cmp, opts)}
	for i, in := range leaves {
		if err := merged.Add(in, i); err != nil {
			_ = merged.Close()
			for _, rest := range leaves[i:] {
				_ = rest.Close()
			}
			return nil, err
		}
	}
	return merged, nil
}
