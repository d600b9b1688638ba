// Package compress provides the stream compressors used for compressed
// objects (".gz", ".zst").
package compress

import (
	"compress/gzip"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Compressor wraps readers and writers with one compression format.
type Compressor interface {
	// Name returns the compressor identifier (for example, "gzip" or "zstd").
	Name() string

	// Extension returns the file extension without the dot (for example, "gz").
	Extension() string

	// ContentType returns the MIME type of compressed payloads.
	ContentType() string

	// Compress wraps a writer with compression.
	Compress(w io.Writer) (io.WriteCloser, error)

	// Decompress wraps a reader with decompression.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// Gzip implements Compressor using gzip compression.
type Gzip struct{}

// NewGzip creates a gzip compressor.
func NewGzip() *Gzip {
	return &Gzip{}
}

// Name returns the compressor identifier.
func (g *Gzip) Name() string {
	return "gzip"
}

// Extension returns the file extension for gzip.
func (g *Gzip) Extension() string {
	return "gz"
}

// ContentType returns the gzip MIME type.
func (g *Gzip) ContentType() string {
	return "application/gzip"
}

// Compress wraps a writer with gzip compression.
func (g *Gzip) Compress(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

// Decompress wraps a reader with gzip decompression.
func (g *Gzip) Decompress(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// Zstd implements Compressor using Zstandard compression.
type Zstd struct{}

// NewZstd creates a zstd compressor.
func NewZstd() *Zstd {
	return &Zstd{}
}

// Name returns the compressor identifier.
func (z *Zstd) Name() string {
	return "zstd"
}

// Extension returns the file extension for zstd.
func (z *Zstd) Extension() string {
	return "zst"
}

// ContentType returns the zstd MIME type.
func (z *Zstd) ContentType() string {
	return "application/zstd"
}

// Compress wraps a writer with zstd compression.
func (z *Zstd) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

// Decompress wraps a reader with zstd decompression.
func (z *Zstd) Decompress(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

// ForExtension returns the compressor registered for ext (without the dot,
// any case), or false if ext is not a compression extension.
func ForExtension(ext string) (Compressor, bool) {
	switch strings.ToLower(ext) {
	case "gz", "gzip":
		return NewGzip(), true
	case "zst", "zstd":
		return NewZstd(), true
	default:
		return nil, false
	}
}

// Split separates a trailing compression extension from name.
// "a.csv.gz" yields ("a.csv", gzip compressor, true); names without a
// compression extension are returned unchanged with false.
func Split(name string) (string, Compressor, bool) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name, nil, false
	}
	c, ok := ForExtension(name[i+1:])
	if !ok {
		return name, nil, false
	}
	return name[:i], c, true
}

// ReadCloser decompresses rc and closes both layers on Close.
func ReadCloser(c Compressor, rc io.ReadCloser) (io.ReadCloser, error) {
	dec, err := c.Decompress(rc)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return &stackedCloser{Reader: dec, inner: dec, outer: rc}, nil
}

type stackedCloser struct {
	io.Reader
	inner io.Closer
	outer io.Closer
}

func (s *stackedCloser) Close() error {
	innerErr := s.inner.Close()
	outerErr := s.outer.Close()
	if innerErr != nil {
		return innerErr
	}
	return outerErr
}
