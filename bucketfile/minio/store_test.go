package minio

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/pithecene-io/bucketfile/bucketfile"
	"github.com/pithecene-io/bucketfile/internal/storetest"
)

// flagIntegration gates integration tests that require a running MinIO.
// Pass -integration to enable.
var flagIntegration = flag.Bool("integration", false, "run integration tests (requires MinIO on localhost:9000)")

func TestNew_RequiresEndpoint(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
	if _, err := NewWithClient(nil); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestNew(t *testing.T) {
	store, err := New(Config{Endpoint: "localhost:9000", AccessKeyID: "k", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := store.Client().EndpointURL().Host; got != "localhost:9000" {
		t.Errorf("endpoint host = %q", got)
	}
	if got := store.Client().EndpointURL().Scheme; got != "http" {
		t.Errorf("scheme = %q, want http", got)
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{minio.ErrorResponse{Code: "NoSuchKey"}, true},
		{minio.ErrorResponse{Code: "NoSuchBucket"}, true},
		{minio.ErrorResponse{StatusCode: http.StatusNotFound}, true},
		{minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := isNotFound(tt.err); got != tt.want {
			t.Errorf("isNotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestTranslate(t *testing.T) {
	if err := translate(minio.ErrorResponse{Code: "NoSuchKey"}, "k"); !errors.Is(err, bucketfile.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
	denied := minio.ErrorResponse{Code: "AccessDenied"}
	if err := translate(denied, "k"); errors.Is(err, bucketfile.ErrNotFound) {
		t.Errorf("unexpected ErrNotFound for %v", err)
	}
}

func TestStore_EmptyKey(t *testing.T) {
	store, err := New(Config{Endpoint: "localhost:9000"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := store.PutObject(t.Context(), "b", "", nil, ""); !errors.Is(err, bucketfile.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
	if _, err := store.GetObject(t.Context(), "b", ""); !errors.Is(err, bucketfile.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
}

// To run:
//
//	docker run -d -p 9000:9000 minio/minio server /data
//	go test -v ./bucketfile/minio/... -integration
func TestIntegration_Conformance(t *testing.T) {
	if !*flagIntegration {
		t.Skip("skipping integration test; use -integration to enable")
	}

	store, err := New(Config{Endpoint: "localhost:9000", AccessKeyID: "minioadmin", SecretAccessKey: "minioadmin"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	storetest.TestSuite(t, "bucketfile-test", func(t *testing.T) bucketfile.Connector {
		ctx := t.Context()
		bucket := fmt.Sprintf("bucketfile-test-%d", time.Now().UnixNano())
		if err := store.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			t.Fatalf("MakeBucket failed: %v", err)
		}
		t.Cleanup(func() {
			ctx := context.Background()
			for obj := range store.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
				_ = store.client.RemoveObject(ctx, bucket, obj.Key, minio.RemoveObjectOptions{})
			}
			_ = store.client.RemoveBucket(ctx, bucket)
		})
		return bucketAlias{Store: store, bucket: bucket}
	})
}

// bucketAlias sends every call to a per-subtest bucket.
type bucketAlias struct {
	*Store
	bucket string
}

func (b bucketAlias) ListObjects(ctx context.Context, _, prefix string) ([]bucketfile.ObjectInfo, error) {
	return b.Store.ListObjects(ctx, b.bucket, prefix)
}

func (b bucketAlias) GetObject(ctx context.Context, _, key string) ([]byte, error) {
	return b.Store.GetObject(ctx, b.bucket, key)
}

func (b bucketAlias) GetObjectStream(ctx context.Context, _, key string, chunkSize int) (bucketfile.ChunkSource, error) {
	return b.Store.GetObjectStream(ctx, b.bucket, key, chunkSize)
}

func (b bucketAlias) PutObject(ctx context.Context, _, key string, data []byte, contentType string) error {
	return b.Store.PutObject(ctx, b.bucket, key, data, contentType)
}
