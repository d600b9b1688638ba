package bucketfile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// Compile-time interface checks.
var (
	_ Connector = (*Memory)(nil)
	_ Connector = (*FS)(nil)
	_ Connector = Nop{}
)

// -----------------------------------------------------------------------------
// Filesystem Connector
// -----------------------------------------------------------------------------

// FS implements Connector over a local directory. Each bucket is a
// subdirectory of the root and keys are slash-separated paths inside it.
//
// Directories are listed as directory markers ("sub/"), the way folders
// created through a web console show up in S3 listings.
type FS struct {
	root string
}

// NewFS creates a filesystem connector rooted at the given directory.
// The directory must exist.
func NewFS(root string) (*FS, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidInput, root)
	}
	return &FS{root: root}, nil
}

// ListObjects walks the bucket directory and returns every file and
// directory whose key starts with prefix, sorted by key.
func (f *FS) ListObjects(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	base, err := f.bucketDir(bucket)
	if err != nil {
		return nil, err
	}

	var objects []ObjectInfo
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if p == base {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if d.IsDir() {
			key += "/"
			// Skip directories that cannot contain a match.
			if !strings.HasPrefix(key, prefix) && !strings.HasPrefix(prefix, key) {
				return filepath.SkipDir
			}
		}
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size := info.Size()
		if d.IsDir() {
			size = 0
		}
		objects = append(objects, ObjectInfo{Key: key, LastModified: info.ModTime(), Size: size})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bucketfile: list %s/%s: %w", bucket, prefix, err)
	}
	return objects, nil
}

// GetObject reads the whole file.
func (f *FS) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	full, err := f.safePath(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) || isDirError(full) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// GetObjectStream opens the file as a chunk source.
func (f *FS) GetObjectStream(_ context.Context, bucket, key string, chunkSize int) (ChunkSource, error) {
	full, err := f.safePath(bucket, key)
	if err != nil {
		return nil, err
	}
	if isDirError(full) {
		return nil, ErrNotFound
	}
	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return NewChunkSource(file, chunkSize), nil
}

// PutObject writes data to the file, creating parent directories and
// replacing any existing file. A key ending in "/" creates a directory.
// contentType is not recorded.
func (f *FS) PutObject(_ context.Context, bucket, key string, data []byte, _ string) error {
	full, err := f.safePath(bucket, key)
	if err != nil {
		return err
	}
	if strings.HasSuffix(key, "/") {
		return os.MkdirAll(full, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

func (f *FS) bucketDir(bucket string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("%w: bucket %q", ErrInvalidInput, bucket)
	}
	return filepath.Join(f.root, bucket), nil
}

// safePath resolves key inside the bucket directory, rejecting keys that
// would escape it.
func (f *FS) safePath(bucket, key string) (string, error) {
	base, err := f.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if key == "" || cleaned == "." || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: key %q", ErrInvalidInput, key)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: key %q escapes bucket", ErrInvalidInput, key)
	}
	return filepath.Join(base, cleaned), nil
}

func isDirError(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// -----------------------------------------------------------------------------
// Memory Connector
// -----------------------------------------------------------------------------

type memoryObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// Memory implements Connector using in-memory maps.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]map[string]memoryObject
	now     func() time.Time

	// PutCalls counts PutObject calls.
	PutCalls int
}

// NewMemory creates an empty in-memory connector.
func NewMemory() *Memory {
	return &Memory{
		buckets: make(map[string]map[string]memoryObject),
		now:     time.Now,
	}
}

// ListObjects returns the objects of bucket whose key starts with prefix,
// sorted by key.
func (m *Memory) ListObjects(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var objects []ObjectInfo
	for key, obj := range m.buckets[bucket] {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, ObjectInfo{Key: key, LastModified: obj.lastModified, Size: int64(len(obj.data))})
		}
	}
	slices.SortFunc(objects, func(a, b ObjectInfo) int { return strings.Compare(a.Key, b.Key) })
	return objects, nil
}

// GetObject returns a copy of the stored bytes.
func (m *Memory) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	obj, ok := m.lookup(bucket, key)
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(obj.data), nil
}

// GetObjectStream returns a chunk source over a copy of the stored bytes.
func (m *Memory) GetObjectStream(_ context.Context, bucket, key string, chunkSize int) (ChunkSource, error) {
	obj, ok := m.lookup(bucket, key)
	if !ok {
		return nil, ErrNotFound
	}
	return NewChunkSource(io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))), chunkSize), nil
}

// PutObject stores a copy of data, replacing any existing object.
func (m *Memory) PutObject(_ context.Context, bucket, key string, data []byte, contentType string) error {
	if bucket == "" || key == "" {
		return fmt.Errorf("%w: empty bucket or key", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutCalls++
	objects, ok := m.buckets[bucket]
	if !ok {
		objects = make(map[string]memoryObject)
		m.buckets[bucket] = objects
	}
	objects[key] = memoryObject{
		data:         bytes.Clone(data),
		contentType:  contentType,
		lastModified: m.now().UTC(),
	}
	return nil
}

// ContentType returns the content type an object was stored with.
func (m *Memory) ContentType(bucket, key string) (string, bool) {
	obj, ok := m.lookup(bucket, key)
	return obj.contentType, ok
}

// Touch sets the last-modified time of an existing object.
func (m *Memory) Touch(bucket, key string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.buckets[bucket][key]
	if !ok {
		return ErrNotFound
	}
	obj.lastModified = t.UTC()
	m.buckets[bucket][key] = obj
	return nil
}

func (m *Memory) lookup(bucket, key string) (memoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucket][key]
	return obj, ok
}

// -----------------------------------------------------------------------------
// No-op Connector
// -----------------------------------------------------------------------------

// Nop is a Connector that stores nothing. Listings are empty, every read
// reports ErrNotFound, and writes are discarded.
type Nop struct{}

// ListObjects returns no objects.
func (Nop) ListObjects(context.Context, string, string) ([]ObjectInfo, error) {
	return nil, nil
}

// GetObject reports ErrNotFound.
func (Nop) GetObject(context.Context, string, string) ([]byte, error) {
	return nil, ErrNotFound
}

// GetObjectStream reports ErrNotFound.
func (Nop) GetObjectStream(context.Context, string, string, int) (ChunkSource, error) {
	return nil, ErrNotFound
}

// PutObject discards data.
func (Nop) PutObject(context.Context, string, string, []byte, string) error {
	return nil
}
