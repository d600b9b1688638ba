// Package storetest provides a conformance test suite for bucketfile
// connectors.
//
// Every connector that stores data runs the same suite, so the reader and
// writer can rely on identical behaviour regardless of backend.
//
// Example usage:
//
//	func TestMemoryConformance(t *testing.T) {
//	    storetest.TestSuite(t, "bucket", func(t *testing.T) bucketfile.Connector {
//	        return bucketfile.NewMemory()
//	    })
//	}
package storetest

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pithecene-io/bucketfile/bucketfile"
)

// TestSuite runs all conformance tests against connectors returned by
// newConn. Each subtest gets a fresh, empty connector; bucket must be
// writable through it.
func TestSuite(t *testing.T, bucket string, newConn func(t *testing.T) bucketfile.Connector) {
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, newConn(t), bucket) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, newConn(t), bucket) })
	t.Run("GetNotFound", func(t *testing.T) { testGetNotFound(t, newConn(t), bucket) })
	t.Run("StreamChunks", func(t *testing.T) { testStreamChunks(t, newConn(t), bucket) })
	t.Run("StreamNotFound", func(t *testing.T) { testStreamNotFound(t, newConn(t), bucket) })
	t.Run("ListPrefix", func(t *testing.T) { testListPrefix(t, newConn(t), bucket) })
	t.Run("ListEmpty", func(t *testing.T) { testListEmpty(t, newConn(t), bucket) })
	t.Run("RoundTripThroughHandler", func(t *testing.T) { testHandler(t, newConn(t), bucket) })
}

func testPutGet(t *testing.T, conn bucketfile.Connector, bucket string) {
	data := []byte("id,name\n1,alice\n")
	require.NoError(t, conn.PutObject(t.Context(), bucket, "dir/file.csv", data, "text/csv"))

	got, err := conn.GetObject(t.Context(), bucket, "dir/file.csv")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func testOverwrite(t *testing.T, conn bucketfile.Connector, bucket string) {
	require.NoError(t, conn.PutObject(t.Context(), bucket, "k.txt", []byte("first"), "text/plain"))
	require.NoError(t, conn.PutObject(t.Context(), bucket, "k.txt", []byte("second"), "text/plain"))

	got, err := conn.GetObject(t.Context(), bucket, "k.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func testGetNotFound(t *testing.T, conn bucketfile.Connector, bucket string) {
	require.NoError(t, conn.PutObject(t.Context(), bucket, "exists.txt", []byte("x"), ""))

	_, err := conn.GetObject(t.Context(), bucket, "missing.txt")
	assert.True(t, errors.Is(err, bucketfile.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func testStreamChunks(t *testing.T, conn bucketfile.Connector, bucket string) {
	data := bytes.Repeat([]byte("0123456789"), 10)
	require.NoError(t, conn.PutObject(t.Context(), bucket, "stream.bin", data, ""))

	src, err := conn.GetObjectStream(t.Context(), bucket, "stream.bin", 32)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	var got []byte
	var sizes []int
	for {
		chunk, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk...)
		sizes = append(sizes, len(chunk))
	}
	assert.Equal(t, data, got)
	assert.Equal(t, []int{32, 32, 32, 4}, sizes)
}

func testStreamNotFound(t *testing.T, conn bucketfile.Connector, bucket string) {
	require.NoError(t, conn.PutObject(t.Context(), bucket, "exists.txt", []byte("x"), ""))

	_, err := conn.GetObjectStream(t.Context(), bucket, "missing.csv", 16)
	assert.True(t, errors.Is(err, bucketfile.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func testListPrefix(t *testing.T, conn bucketfile.Connector, bucket string) {
	before := time.Now().Add(-time.Minute)
	for _, key := range []string{"a/1.csv", "a/2.csv", "a/b/3.csv", "ab.csv", "z/4.csv"} {
		require.NoError(t, conn.PutObject(t.Context(), bucket, key, []byte(key), ""))
	}

	objects, err := conn.ListObjects(t.Context(), bucket, "a/")
	require.NoError(t, err)

	var keys []string
	for _, obj := range objects {
		if obj.Key[len(obj.Key)-1] == '/' {
			continue // directory markers are backend-specific
		}
		keys = append(keys, obj.Key)
		assert.True(t, obj.LastModified.After(before), "%s: LastModified %v", obj.Key, obj.LastModified)
		assert.Equal(t, int64(len(obj.Key)), obj.Size, obj.Key)
	}
	slices.Sort(keys)
	assert.Equal(t, []string{"a/1.csv", "a/2.csv", "a/b/3.csv"}, keys)
}

func testListEmpty(t *testing.T, conn bucketfile.Connector, bucket string) {
	require.NoError(t, conn.PutObject(t.Context(), bucket, "x/1.csv", []byte("x"), ""))

	objects, err := conn.ListObjects(t.Context(), bucket, "nothing-here/")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func testHandler(t *testing.T, conn bucketfile.Connector, bucket string) {
	h, err := bucketfile.NewHandler(conn, bucket)
	require.NoError(t, err)

	frame := &bucketfile.Frame{
		Columns: []string{"id", "name"},
		Rows:    [][]string{{"1", "alice"}, {"2", "bob"}, {"3", "carol"}},
	}
	require.NoError(t, h.WriteFrame(t.Context(), frame, "people.csv", "out"))

	catalogs, err := h.RetrieveFiles(t.Context(), "out/", []string{"people"})
	require.NoError(t, err)
	require.Equal(t, 1, catalogs["people"].Len())
	ref := catalogs["people"].At(0)

	cr, err := h.ReadChunks(t.Context(), ref, bucketfile.WithChunkSize(7))
	require.NoError(t, err)
	got := &bucketfile.Frame{Columns: frame.Columns}
	for f, err := range cr.Frames() {
		require.NoError(t, err)
		got.Rows = append(got.Rows, f.Rows...)
	}
	assert.Equal(t, frame, got)
}
