package source

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/recio/blobstore"
)

// DefaultChunkSize is the ranged-read size used by FromBlob.
const DefaultChunkSize = 1 << 20

// blobSource streams a blob front to back in ranged chunks.
type blobSource struct {
	ctx       context.Context
	blob      blobstore.Blob
	name      string
	off       int64
	chunkSize int64
	cur       io.ReadCloser
	curRead   int64
	closer    closeOnce
}

// FromBlob opens name in store and streams it. With chunkSize <= 0 a blob
// that implements blobstore.Streamer is read in one sequential pass. Blobs
// already in memory are served from their bytes. Anything else is fetched
// in chunkSize ranges (DefaultChunkSize when unset).
func FromBlob(ctx context.Context, store blobstore.BlobStore, name string, chunkSize int) (Source, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	if st, ok := blob.(blobstore.Streamer); ok && chunkSize <= 0 {
		rc, err := st.Stream(ctx)
		if err != nil {
			_ = blob.Close()
			return nil, err
		}
		return &namedSource{Reader: rc, name: name, close: func() error {
			return errors.Join(rc.Close(), blob.Close())
		}}, nil
	}
	if m, ok := blob.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			_ = blob.Close()
			return nil, err
		}
		return &namedSource{Reader: &bufferSource{buf: data}, name: name, close: blob.Close}, nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &blobSource{
		ctx:       ctx,
		blob:      blob,
		name:      name,
		chunkSize: int64(chunkSize),
	}, nil
}

func (s *blobSource) Read(p []byte) (int, error) {
	for {
		if s.cur == nil {
			if s.off >= s.blob.Size() {
				return 0, io.EOF
			}
			rc, err := s.blob.ReadRange(s.ctx, s.off, s.chunkSize)
			if err != nil {
				return 0, err
			}
			s.cur = rc
			s.curRead = 0
		}
		n, err := s.cur.Read(p)
		s.off += int64(n)
		s.curRead += int64(n)
		if err == io.EOF {
			_ = s.cur.Close()
			s.cur = nil
			if n > 0 {
				return n, nil
			}
			if s.curRead == 0 {
				// blob shrank underneath us
				return 0, io.ErrUnexpectedEOF
			}
			continue
		}
		return n, err
	}
}

func (s *blobSource) Name() string { return s.name }

func (s *blobSource) Close() error {
	return s.closer.do(func() error {
		if s.cur != nil {
			_ = s.cur.Close()
			s.cur = nil
		}
		return s.blob.Close()
	})
}
