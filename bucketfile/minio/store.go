// Package minio connects bucketfile to MinIO and other S3-compatible
// services through minio-go.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pithecene-io/bucketfile/bucketfile"
)

// Config holds the connection settings for a MinIO endpoint.
type Config struct {
	// Endpoint is host[:port] without a scheme, e.g. "localhost:9000".
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// UseSSL selects https.
	UseSSL bool
	// Region is optional; MinIO ignores it.
	Region string
}

// Store implements bucketfile.Connector using minio-go.
//
// Store is safe for concurrent use.
type Store struct {
	client *minio.Client
}

var _ bucketfile.Connector = (*Store)(nil)

// New creates a MinIO client for cfg and wraps it in a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio: endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: create client: %w", err)
	}
	return NewWithClient(client)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *minio.Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("minio: client is required")
	}
	return &Store{client: client}, nil
}

// Client returns the underlying minio client.
func (s *Store) Client() *minio.Client {
	return s.client
}

// ListObjects returns every object under prefix, recursing into
// pseudo-directories. A missing bucket returns bucketfile.ErrNotFound.
func (s *Store) ListObjects(ctx context.Context, bucket, prefix string) ([]bucketfile.ObjectInfo, error) {
	var objects []bucketfile.ObjectInfo
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			if isNotFound(obj.Err) {
				return nil, bucketfile.ErrNotFound
			}
			return nil, fmt.Errorf("minio: list objects: %w", obj.Err)
		}
		objects = append(objects, bucketfile.ObjectInfo{
			Key:          obj.Key,
			LastModified: obj.LastModified,
			Size:         obj.Size,
		})
	}
	return objects, nil
}

// GetObject reads a whole object.
// Returns bucketfile.ErrNotFound if the object does not exist.
func (s *Store) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("minio: read object %s: %w", key, err)
	}
	return data, nil
}

// GetObjectStream opens the object as a chunk source.
// Returns bucketfile.ErrNotFound if the object does not exist.
func (s *Store) GetObjectStream(ctx context.Context, bucket, key string, chunkSize int) (bucketfile.ChunkSource, error) {
	obj, err := s.open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return bucketfile.NewChunkSource(obj, chunkSize), nil
}

// PutObject uploads data, replacing any existing object. An empty
// contentType lets the server pick its default.
func (s *Store) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("minio: %w: empty key", bucketfile.ErrInvalidInput)
	}
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("minio: put object %s: %w", key, err)
	}
	return nil
}

// open returns the object handle after a Stat, since minio-go defers the
// request until the first read.
func (s *Store) open(ctx context.Context, bucket, key string) (*minio.Object, error) {
	if key == "" {
		return nil, fmt.Errorf("minio: %w: empty key", bucketfile.ErrInvalidInput)
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err, key)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, translate(err, key)
	}
	return obj, nil
}

func translate(err error, key string) error {
	if isNotFound(err) {
		return bucketfile.ErrNotFound
	}
	return fmt.Errorf("minio: get object %s: %w", key, err)
}

// isNotFound checks if an error indicates the object or bucket was not found.
func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return resp.StatusCode == http.StatusNotFound
}
