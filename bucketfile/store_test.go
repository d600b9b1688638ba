package bucketfile

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

// The no-op connector must expose exactly the operations of Connector with
// the same parameter shapes so either can be substituted in tests.
func TestNop_MatchesConnectorSignatures(t *testing.T) {
	iface := reflect.TypeOf((*Connector)(nil)).Elem()
	impl := reflect.TypeOf(Nop{})

	require.Equal(t, iface.NumMethod(), impl.NumMethod())
	for i := range iface.NumMethod() {
		want := iface.Method(i)
		got, ok := impl.MethodByName(want.Name)
		require.True(t, ok, "missing %s", want.Name)

		// Method types on a concrete type include the receiver.
		gotType := got.Type
		require.Equal(t, want.Type.NumIn()+1, gotType.NumIn(), want.Name)
		for j := range want.Type.NumIn() {
			assert.Equal(t, want.Type.In(j), gotType.In(j+1), "%s param %d", want.Name, j)
		}
		require.Equal(t, want.Type.NumOut(), gotType.NumOut(), want.Name)
		for j := range want.Type.NumOut() {
			assert.Equal(t, want.Type.Out(j), gotType.Out(j), "%s result %d", want.Name, j)
		}
	}
}

func TestNop_ReturnsEmptyResults(t *testing.T) {
	var n Nop
	objects, err := n.ListObjects(t.Context(), "b", "")
	assert.NoError(t, err)
	assert.Empty(t, objects)

	_, err = n.GetObject(t.Context(), "b", "k")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = n.GetObjectStream(t.Context(), "b", "k", 10)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, n.PutObject(t.Context(), "b", "k", []byte("x"), "text/plain"))

	h, err := NewHandler(n, "b")
	require.NoError(t, err)
	doc, err := h.ReadFile(t.Context(), NewFileRef("k.csv", ""))
	assert.NoError(t, err)
	assert.Nil(t, doc)
	catalogs, err := h.RetrieveFiles(t.Context(), "", []string{"x"})
	require.NoError(t, err)
	assert.Zero(t, catalogs["x"].Len())
}

func TestNewChunkSource(t *testing.T) {
	src := NewChunkSource(io.NopCloser(strings.NewReader("abcdefg")), 3)
	defer func() { _ = src.Close() }()

	var chunks []string
	for {
		chunk, err := src.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, string(chunk))
	}
	assert.Equal(t, []string{"abc", "def", "g"}, chunks)

	_, err := src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestNewChunkSource_ExactMultiple(t *testing.T) {
	src := NewChunkSource(io.NopCloser(strings.NewReader("abcdef")), 3)
	for _, want := range []string{"abc", "def"} {
		chunk, err := src.Next()
		require.NoError(t, err)
		assert.Equal(t, want, string(chunk))
	}
	_, err := src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFS_DirectoriesListedAsMarkers(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bkt", "a", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bkt", "a", "x.csv"), []byte("a,b\n"), 0o644))

	fsys, err := NewFS(root)
	require.NoError(t, err)

	objects, err := fsys.ListObjects(t.Context(), "bkt", "a/")
	require.NoError(t, err)
	var keys []string
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	assert.ElementsMatch(t, []string{"a/", "a/sub/", "a/x.csv"}, keys)

	catalogs, err := BuildCatalogs(objects, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/x.csv"}, locations(catalogs[""].Refs()))
}

func TestFS_PrefixInsideName(t *testing.T) {
	root := t.TempDir()
	fsys, err := NewFS(root)
	require.NoError(t, err)
	for _, key := range []string{"data/report_jan.csv", "data/report_feb.csv", "data/summary.csv"} {
		require.NoError(t, fsys.PutObject(t.Context(), "bkt", key, []byte("x"), ""))
	}

	objects, err := fsys.ListObjects(t.Context(), "bkt", "data/report")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestFS_RejectsEscapingKeys(t *testing.T) {
	fsys, err := NewFS(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../x", "/etc/passwd", "."} {
		_, err := fsys.GetObject(t.Context(), "bkt", key)
		assert.ErrorIs(t, err, ErrInvalidInput, key)
	}
	for _, bucket := range []string{"", "..", "a/b"} {
		_, err := fsys.ListObjects(t.Context(), bucket, "")
		assert.ErrorIs(t, err, ErrInvalidInput, bucket)
	}
}

func TestFS_MissingRoot(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestMemory_IsolatesBuckets(t *testing.T) {
	mem := NewMemory()
	require.NoError(t, mem.PutObject(t.Context(), "one", "k", []byte("1"), ""))

	_, err := mem.GetObject(t.Context(), "two", "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, mem.Touch("two", "k", time.Now()), ErrNotFound)
	assert.ErrorIs(t, mem.PutObject(t.Context(), "", "k", nil, ""), ErrInvalidInput)
}
