package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3api "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pithecene-io/bucketfile/bucketfile"
	"github.com/pithecene-io/bucketfile/internal/storetest"
)

// -----------------------------------------------------------------------------
// Unit tests for S3 store
// These use the mock client and don't require real S3/LocalStack/MinIO.
// -----------------------------------------------------------------------------

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, Config{})
	if err == nil {
		t.Error("expected error for nil client")
	}
}

func TestNew_PrefixNormalization(t *testing.T) {
	tests := []struct {
		prefix   string
		expected string
	}{
		{"", ""},
		{"foo", "foo/"},
		{"foo/", "foo/"},
		{"foo/bar", "foo/bar/"},
	}

	for _, tt := range tests {
		store, err := New(NewMockS3Client(), Config{Prefix: tt.prefix})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if store.prefix != tt.expected {
			t.Errorf("prefix %q: expected %q, got %q", tt.prefix, tt.expected, store.prefix)
		}
	}
}

func TestStore_Conformance(t *testing.T) {
	storetest.TestSuite(t, "bucket", func(*testing.T) bucketfile.Connector {
		store, err := New(NewMockS3Client("bucket"), Config{})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return store
	})
}

// -----------------------------------------------------------------------------
// Put tests
// -----------------------------------------------------------------------------

func TestStore_PutObject_ContentType(t *testing.T) {
	ctx := t.Context()
	mock := NewMockS3Client()
	store, _ := New(mock, Config{})

	if err := store.PutObject(ctx, "b", "a.csv", []byte("x"), "text/csv"); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	if err := store.PutObject(ctx, "b", "a.json", []byte("{}"), ""); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}

	if ct, _ := mock.ContentType("b", "a.csv"); ct != "text/csv" {
		t.Errorf("a.csv content type = %q, want text/csv", ct)
	}
	if ct, ok := mock.ContentType("b", "a.json"); !ok || ct != "" {
		t.Errorf("a.json content type = %q (exists=%v), want unset", ct, ok)
	}
}

func TestStore_PutObject_WithStorePrefix(t *testing.T) {
	ctx := t.Context()
	mock := NewMockS3Client()
	store, _ := New(mock, Config{Prefix: "tenant"})

	if err := store.PutObject(ctx, "b", "x.txt", []byte("hi"), ""); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	if _, ok := mock.ContentType("b", "tenant/x.txt"); !ok {
		t.Error("expected object stored under the store prefix")
	}

	objects, err := store.ListObjects(ctx, "b", "")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 1 || objects[0].Key != "x.txt" {
		t.Errorf("expected [x.txt], got %+v", objects)
	}
}

func TestStore_PutObject_EmptyKey(t *testing.T) {
	store, _ := New(NewMockS3Client(), Config{})
	err := store.PutObject(t.Context(), "b", "", []byte("x"), "")
	if !errors.Is(err, bucketfile.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Get tests
// -----------------------------------------------------------------------------

func TestStore_GetObject_ErrNotFound(t *testing.T) {
	ctx := t.Context()
	store, _ := New(NewMockS3Client("b"), Config{})

	_, err := store.GetObject(ctx, "b", "nonexistent.txt")
	if !errors.Is(err, bucketfile.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}

	_, err = store.GetObject(ctx, "missing-bucket", "x.txt")
	if !errors.Is(err, bucketfile.ErrNotFound) {
		t.Errorf("missing bucket: expected ErrNotFound, got: %v", err)
	}
}

func TestStore_GetObject_OtherErrorsWrapped(t *testing.T) {
	boom := errors.New("throttled")
	store, _ := New(&failingAPI{err: boom}, Config{})

	_, err := store.GetObject(t.Context(), "b", "x.txt")
	if !errors.Is(err, boom) || errors.Is(err, bucketfile.ErrNotFound) {
		t.Errorf("expected wrapped throttle error, got: %v", err)
	}
}

func TestStore_GetObjectStream_ClosesBody(t *testing.T) {
	body := &closeTracker{Reader: bytes.NewReader([]byte("abc"))}
	store, _ := New(&failingAPI{body: body}, Config{})

	src, err := store.GetObjectStream(t.Context(), "b", "x.csv", 2)
	if err != nil {
		t.Fatalf("GetObjectStream failed: %v", err)
	}
	if _, err := src.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !body.closed {
		t.Error("expected body to be closed")
	}
}

// -----------------------------------------------------------------------------
// List tests
// -----------------------------------------------------------------------------

func TestStore_ListObjects_Pagination(t *testing.T) {
	ctx := t.Context()
	mock := NewMockS3Client("b")
	mock.PageSize = 2
	store, _ := New(mock, Config{})

	for _, key := range []string{"p/1", "p/2", "p/3", "p/4", "p/5", "q/6"} {
		if err := store.PutObject(ctx, "b", key, []byte("x"), ""); err != nil {
			t.Fatalf("PutObject failed: %v", err)
		}
	}

	objects, err := store.ListObjects(ctx, "b", "p/")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 5 {
		t.Errorf("expected 5 objects, got %d", len(objects))
	}
	if mock.ListObjectsV2Calls != 3 {
		t.Errorf("expected 3 list calls, got %d", mock.ListObjectsV2Calls)
	}
}

func TestStore_ListObjects_LastModified(t *testing.T) {
	ctx := t.Context()
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock := NewMockS3Client("b")
	mock.Now = func() time.Time { return stamp }
	store, _ := New(mock, Config{})

	if err := store.PutObject(ctx, "b", "a/x.csv", []byte("abc"), ""); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	objects, err := store.ListObjects(ctx, "b", "a/")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(objects))
	}
	if !objects[0].LastModified.Equal(stamp) || objects[0].Size != 3 {
		t.Errorf("unexpected object info: %+v", objects[0])
	}
	if got := bucketfile.FormatLastModified(objects[0].LastModified); got != "2024-01-02 03:04:05+00:00" {
		t.Errorf("formatted time = %q", got)
	}
}

func TestStore_ListObjects_MissingBucket(t *testing.T) {
	store, _ := New(NewMockS3Client(), Config{})
	_, err := store.ListObjects(t.Context(), "nope", "")
	if !errors.Is(err, bucketfile.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&smithyAPIError{code: "NoSuchKey"}, true},
		{&smithyAPIError{code: "NotFound"}, true},
		{&smithyAPIError{code: "404"}, true},
		{&smithyAPIError{code: "AccessDenied"}, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := isNotFound(tt.err); got != tt.want {
			t.Errorf("isNotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

// failingAPI returns err from every call, or serves body from GetObject.
type failingAPI struct {
	err  error
	body io.ReadCloser
}

func (f *failingAPI) PutObject(context.Context, *s3api.PutObjectInput, ...func(*s3api.Options)) (*s3api.PutObjectOutput, error) {
	return nil, f.err
}

func (f *failingAPI) GetObject(context.Context, *s3api.GetObjectInput, ...func(*s3api.Options)) (*s3api.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3api.GetObjectOutput{Body: f.body, ContentLength: aws.Int64(3)}, nil
}

func (f *failingAPI) ListObjectsV2(context.Context, *s3api.ListObjectsV2Input, ...func(*s3api.Options)) (*s3api.ListObjectsV2Output, error) {
	return nil, f.err
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}
