// Package s3 connects bucketfile to AWS S3 and S3-compatible object stores
// (MinIO, LocalStack, Cloudflare R2) through aws-sdk-go-v2.
//
// # Consistency
//
// AWS S3 provides strong read-after-write consistency (since Dec 2020).
// Other S3-compatible backends may differ; consult their documentation.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pithecene-io/bucketfile/bucketfile"
)

// API defines the subset of the S3 client interface used by the store.
// This enables testing with mock implementations.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds configuration for the S3 store.
type Config struct {
	// Prefix is an optional key prefix for all operations.
	// If set, all keys are prefixed with this value (with a trailing slash
	// added if missing) and listed keys are returned without it.
	Prefix string
}

// Store implements bucketfile.Connector using an S3-compatible backend.
//
// Store is safe for concurrent use.
type Store struct {
	client API
	prefix string
}

var _ bucketfile.Connector = (*Store)(nil)

// New creates a new S3 store with the given client and configuration.
//
// The client must be pre-configured with credentials, region, and endpoint.
// Use github.com/aws/aws-sdk-go-v2/config to load configuration.
//
// Example:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	store, err := s3store.New(client, s3store.Config{})
func New(client API, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Store{client: client, prefix: prefix}, nil
}

// ListObjects returns every object under prefix.
// Pagination is handled automatically; directory markers are included.
// A missing bucket returns bucketfile.ErrNotFound.
func (s *Store) ListObjects(ctx context.Context, bucket, prefix string) ([]bucketfile.ObjectInfo, error) {
	var objects []bucketfile.ObjectInfo
	var continuationToken *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(s.prefix + prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			if isNotFound(err) {
				return nil, bucketfile.ErrNotFound
			}
			return nil, fmt.Errorf("s3: list objects: %w", err)
		}

		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			objects = append(objects, bucketfile.ObjectInfo{
				Key:          strings.TrimPrefix(*obj.Key, s.prefix),
				LastModified: aws.ToTime(obj.LastModified),
				Size:         aws.ToInt64(obj.Size),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	return objects, nil
}

// GetObject reads a whole object.
// Returns bucketfile.ErrNotFound if the object does not exist.
func (s *Store) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	body, err := s.open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("s3: read object: %w", err)
	}
	return data, nil
}

// GetObjectStream opens the object body as a chunk source. The body is
// read sequentially; nothing beyond the current chunk is buffered.
// Returns bucketfile.ErrNotFound if the object does not exist.
func (s *Store) GetObjectStream(ctx context.Context, bucket, key string, chunkSize int) (bucketfile.ChunkSource, error) {
	body, err := s.open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return bucketfile.NewChunkSource(body, chunkSize), nil
}

// PutObject uploads data in a single PutObject request, replacing any
// existing object. An empty contentType leaves the header unset.
func (s *Store) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("s3: %w: empty key", bucketfile.ErrInvalidInput)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(s.prefix + key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3: put object: %w", err)
	}
	return nil
}

func (s *Store) open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, fmt.Errorf("s3: %w: empty key", bucketfile.ErrInvalidInput)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, bucketfile.ErrNotFound
		}
		return nil, fmt.Errorf("s3: get object: %w", err)
	}
	return out.Body, nil
}

// isNotFound checks if an error indicates the object or bucket was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "NoSuchBucket" || code == "404"
	}
	return false
}

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

type mockObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// MockS3Client is a test double for API.
type MockS3Client struct {
	mu      sync.RWMutex
	buckets map[string]map[string]mockObject

	// Now stamps LastModified on PutObject. Defaults to time.Now.
	Now func() time.Time

	// PageSize caps the keys returned per ListObjectsV2 page.
	// Zero means 1000, the S3 default.
	PageSize int

	// Call counters for test assertions
	PutObjectCalls     int
	ListObjectsV2Calls int
}

// NewMockS3Client creates a new mock S3 client for testing.
// Buckets listed in buckets exist from the start; PutObject creates
// buckets on demand.
func NewMockS3Client(buckets ...string) *MockS3Client {
	m := &MockS3Client{
		buckets: make(map[string]map[string]mockObject),
		Now:     time.Now,
	}
	for _, b := range buckets {
		m.buckets[b] = make(map[string]mockObject)
	}
	return m
}

// ContentType returns the content type an object was stored with.
func (m *MockS3Client) ContentType(bucket, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucket][key]
	return obj.contentType, ok
}

// PutObject implements API.PutObject for testing.
func (m *MockS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	bucket := aws.ToString(params.Bucket)
	key := aws.ToString(params.Key)
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutObjectCalls++
	objects, ok := m.buckets[bucket]
	if !ok {
		objects = make(map[string]mockObject)
		m.buckets[bucket] = objects
	}
	objects[key] = mockObject{
		data:         data,
		contentType:  aws.ToString(params.ContentType),
		lastModified: m.Now().UTC(),
	}
	return &s3.PutObjectOutput{}, nil
}

// GetObject implements API.GetObject for testing.
func (m *MockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	bucket := aws.ToString(params.Bucket)
	key := aws.ToString(params.Key)

	m.mu.RLock()
	objects, bucketExists := m.buckets[bucket]
	obj, exists := objects[key]
	m.mu.RUnlock()

	if !bucketExists {
		return nil, &types.NoSuchBucket{}
	}
	if !exists {
		return nil, &types.NoSuchKey{}
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))),
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
		LastModified:  aws.Time(obj.lastModified),
	}, nil
}

// ListObjectsV2 implements API.ListObjectsV2 for testing.
// Keys are returned in lexical order; the continuation token is the last
// key of the previous page.
func (m *MockS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	bucket := aws.ToString(params.Bucket)
	prefix := aws.ToString(params.Prefix)
	after := aws.ToString(params.ContinuationToken)

	m.mu.Lock()
	m.ListObjectsV2Calls++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, &smithyAPIError{code: "NoSuchBucket", message: "the specified bucket does not exist"}
	}

	var keys []string
	for key := range objects {
		if strings.HasPrefix(key, prefix) && key > after {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	pageSize := m.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	truncated := len(keys) > pageSize
	if truncated {
		keys = keys[:pageSize]
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(truncated)}
	for _, key := range keys {
		obj := objects[key]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			LastModified: aws.Time(obj.lastModified),
			Size:         aws.Int64(int64(len(obj.data))),
		})
	}
	if truncated {
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	return out, nil
}

// smithyAPIError implements smithy.APIError for testing.
type smithyAPIError struct {
	code    string
	message string
}

func (e *smithyAPIError) Error() string {
	return e.message
}

func (e *smithyAPIError) ErrorCode() string {
	return e.code
}

func (e *smithyAPIError) ErrorMessage() string {
	return e.message
}

func (e *smithyAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}
