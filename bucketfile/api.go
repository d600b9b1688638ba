// Package bucketfile lists, reads, and writes structured files (CSV, JSON,
// XLSX, XML, TXT, Parquet) kept in S3-compatible object storage.
//
// The package does not implement storage itself. All object access goes
// through a Connector supplied by the caller; adapters live in the s3 and
// minio subpackages, and Memory, FS, and Nop connectors are provided here.
//
// CSV objects can be read in bounded memory with Reader.ReadChunks, which
// reassembles rows that were split across network-sized chunks.
package bucketfile

import (
	"context"
	"io"
	"time"
)

// -----------------------------------------------------------------------------
// Connector interface
// -----------------------------------------------------------------------------

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	// Key is the full object key within the bucket.
	Key string

	// LastModified is when the object was last written.
	LastModified time.Time

	// Size is the object size in bytes.
	Size int64
}

// ChunkSource yields the bytes of one object in order, at most the
// configured chunk size per call.
//
// Next returns io.EOF once the object is exhausted. A source must be closed
// to release the underlying stream, even when iteration stops early.
type ChunkSource interface {
	Next() ([]byte, error)
	Close() error
}

// Connector abstracts the object store.
//
// Implementations report a missing object with ErrNotFound; higher layers
// turn that into an empty result.
type Connector interface {
	// ListObjects returns every object under prefix, directory markers included.
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// GetObject reads a whole object.
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	// GetObjectStream opens a sequential chunk source over an object.
	GetObjectStream(ctx context.Context, bucket, key string, chunkSize int) (ChunkSource, error)

	// PutObject stores data under key. An empty contentType leaves the
	// store default in place.
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// -----------------------------------------------------------------------------
// Chunk source over a reader
// -----------------------------------------------------------------------------

// DefaultChunkSize is the chunk size used when none is configured.
const DefaultChunkSize = 65536

// readerSource adapts an io.ReadCloser to ChunkSource.
type readerSource struct {
	rc   io.ReadCloser
	size int
	done bool
}

// NewChunkSource returns a ChunkSource that reads rc in chunks of size
// bytes. Every chunk except the last is exactly size bytes long.
// A non-positive size selects DefaultChunkSize.
func NewChunkSource(rc io.ReadCloser, size int) ChunkSource {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &readerSource{rc: rc, size: size}
}

func (s *readerSource) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	buf := make([]byte, s.size)
	n, err := io.ReadFull(s.rc, buf)
	switch {
	case err == nil:
		return buf, nil
	case err == io.EOF:
		s.done = true
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		s.done = true
		return buf[:n], nil
	default:
		return nil, err
	}
}

func (s *readerSource) Close() error {
	return s.rc.Close()
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions.
var (
	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errNotFound{}

	// ErrUnsupportedFormat indicates a file extension the operation cannot handle.
	ErrUnsupportedFormat = errUnsupportedFormat{}

	// ErrSniff indicates the delimiter of a CSV text could not be determined.
	ErrSniff = errSniff{}

	// ErrInvalidInput indicates a caller passed a value the operation cannot use.
	ErrInvalidInput = errInvalidInput{}

	// ErrEmptyCatalog indicates an operation that needs at least one file reference.
	ErrEmptyCatalog = errEmptyCatalog{}

	// ErrMalformedRow indicates a CSV row with more fields than the header.
	ErrMalformedRow = errMalformedRow{}
)

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type errUnsupportedFormat struct{}

func (errUnsupportedFormat) Error() string { return "unsupported format" }

type errSniff struct{}

func (errSniff) Error() string { return "could not determine delimiter" }

type errInvalidInput struct{}

func (errInvalidInput) Error() string { return "invalid input" }

type errEmptyCatalog struct{}

func (errEmptyCatalog) Error() string { return "catalog is empty" }

type errMalformedRow struct{}

func (errMalformedRow) Error() string { return "malformed row" }
