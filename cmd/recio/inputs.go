package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/recio"
	"github.com/hupe1980/recio/blobstore"
	miniostore "github.com/hupe1980/recio/blobstore/minio"
	s3store "github.com/hupe1980/recio/blobstore/s3"
)

// location is a parsed input argument.
type location struct {
	scheme string // "", "s3" or "minio"
	bucket string
	key    string
}

func parseLocation(arg string) (location, error) {
	scheme, rest, ok := strings.Cut(arg, "://")
	if !ok {
		return location{key: arg}, nil
	}
	switch scheme {
	case "s3", "minio":
	default:
		return location{}, fmt.Errorf("unsupported scheme %q in %s", scheme, arg)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return location{}, fmt.Errorf("missing bucket in %s", arg)
	}
	return location{scheme: scheme, bucket: bucket, key: key}, nil
}

// isPrefix reports whether the location names every blob below a prefix.
func (l location) isPrefix() bool {
	return l.scheme != "" && (l.key == "" || strings.HasSuffix(l.key, "/"))
}

// storeFactory builds blob stores lazily and caches one per scheme and
// bucket so that several inputs share a client.
type storeFactory struct {
	cfg    *Config
	stores map[string]blobstore.BlobStore
	s3     *s3.Client
	minio  *minio.Client
}

func newStoreFactory(cfg *Config) *storeFactory {
	return &storeFactory{cfg: cfg, stores: make(map[string]blobstore.BlobStore)}
}

func (f *storeFactory) store(ctx context.Context, loc location) (blobstore.BlobStore, error) {
	id := loc.scheme + "://" + loc.bucket
	if st, ok := f.stores[id]; ok {
		return st, nil
	}

	var st blobstore.BlobStore
	switch loc.scheme {
	case "s3":
		client, err := f.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		st = s3store.NewStore(client, loc.bucket, "")
	case "minio":
		client, err := f.minioClient()
		if err != nil {
			return nil, err
		}
		st = miniostore.NewStore(client, loc.bucket, "")
	default:
		return nil, fmt.Errorf("unsupported scheme %q", loc.scheme)
	}
	f.stores[id] = st
	return st, nil
}

func (f *storeFactory) s3Client(ctx context.Context) (*s3.Client, error) {
	if f.s3 != nil {
		return f.s3, nil
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if f.cfg.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(f.cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	f.s3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if f.cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(f.cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return f.s3, nil
}

func (f *storeFactory) minioClient() (*minio.Client, error) {
	if f.minio != nil {
		return f.minio, nil
	}
	client, err := minio.New(f.cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(f.cfg.MinioAccessKey, f.cfg.MinioSecretKey, ""),
		Secure: f.cfg.MinioSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	f.minio = client
	return client, nil
}

// openInput opens one argument. "-" reads standard input, a blob prefix
// (a key ending in "/") becomes a merge of every blob below it.
func (f *storeFactory) openInput(ctx context.Context, arg string, opts []recio.Option) (*recio.Input, error) {
	if arg == "-" {
		return recio.OpenFile(os.Stdin, false, opts...)
	}
	loc, err := parseLocation(arg)
	if err != nil {
		return nil, err
	}
	if loc.scheme == "" {
		return recio.Open(loc.key, opts...)
	}
	st, err := f.store(ctx, loc)
	if err != nil {
		return nil, err
	}
	if loc.isPrefix() {
		return recio.OpenBlobs(ctx, st, loc.key, recio.BytesCompare, opts...)
	}
	return recio.OpenBlob(ctx, st, loc.key, opts...)
}
