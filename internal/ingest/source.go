package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloo-solutions/licitai/internal/domain"
)

const s3Scheme = "s3://"

// ObjectGetter fetches objects from S3-compatible storage.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// ParseS3URI splits "s3://bucket/key".
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not an s3 uri", domain.ErrInvalidIngestSource, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs bucket and key", domain.ErrInvalidIngestSource, uri)
	}
	return bucket, key, nil
}

// Open opens a local path or an s3:// object. objects may be nil when only
// local files are used.
func Open(ctx context.Context, source string, objects ObjectGetter) (io.ReadCloser, error) {
	if strings.HasPrefix(source, s3Scheme) {
		if objects == nil {
			return nil, fmt.Errorf("%w: object storage is not configured", domain.ErrInvalidIngestSource)
		}
		bucket, key, err := ParseS3URI(source)
		if err != nil {
			return nil, err
		}
		body, err := objects.GetObject(ctx, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", source, err)
		}
		return body, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidIngestSource, err)
	}
	return f, nil
}
