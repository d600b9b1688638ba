package bucketfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pithecene-io/bucketfile/internal/charset"
	"github.com/pithecene-io/bucketfile/internal/compress"
	"github.com/pithecene-io/bucketfile/internal/tabular"
)

// chunkState carries what one chunk hands to the next.
type chunkState struct {
	// tail is the decoded text after the last complete row seen so far.
	tail string

	// header is the canonical column list, taken from the first row.
	header []string

	// captured reports whether header has been set.
	captured bool

	// comma is the delimiter sniffed from the header line. Zero until the
	// first chunk with a complete line.
	comma rune

	// started reports whether any chunk has been decoded.
	started bool
}

// ChunkReader yields one Frame per fetched chunk of a CSV object.
//
// Rows split across chunk boundaries are carried forward and completed by
// the next chunk, so the concatenation of all frames equals the parse of the
// whole object. Every frame uses the column names of the object's first row.
// A frame may have zero rows when its chunk held no complete row.
//
// Use it like bufio.Scanner:
//
//	for cr.Next() {
//		process(cr.Frame())
//	}
//	if err := cr.Err(); err != nil { ... }
//
// Encoding is detected per chunk unless WithEncoding is given. A multi-byte
// character split across a chunk boundary can defeat detection for the
// chunks on either side; pass WithEncoding when the encoding is known.
//
// The delimiter is sniffed once from the header line and reused for every
// chunk.
//
// Rows are parsed leniently, so a bare quote inside an unquoted field is
// accepted as data. The boundary scan still treats it as opening a quoted
// field, which holds every following row in the carried tail until the
// quote closes or the object ends. Memory then grows with the rest of the
// object instead of staying near the chunk size.
//
// A ChunkReader is not safe for concurrent use.
type ChunkReader struct {
	ctx      context.Context
	src      ChunkSource
	ref      FileRef
	encoding string
	logger   *slog.Logger

	state  chunkState
	frame  *Frame
	err    error
	done   bool
	closed bool
	chunks int
	rows   int
}

// ReadChunks opens a chunked read of a CSV object.
//
// Objects named "x.csv.gz" or "x.csv.zst" are decompressed as they stream.
// Any other extension fails with ErrUnsupportedFormat before the store is
// contacted. A missing object yields a reader with no frames.
//
// Supported options: WithChunkSize, WithEncoding, WithLogger.
func (r *Reader) ReadChunks(ctx context.Context, ref FileRef, opts ...Option) (*ChunkReader, error) {
	cfg, err := r.config(opts)
	if err != nil {
		return nil, err
	}

	ext, comp := splitExtension(ref)
	if ext != "csv" {
		return nil, fmt.Errorf("%w: chunked read of %q", ErrUnsupportedFormat, ref.Location())
	}

	cr := &ChunkReader{
		ctx:      ctx,
		ref:      ref,
		encoding: cfg.encoding,
		logger:   cfg.logger.With("read_id", uuid.NewString(), "key", ref.Location()),
	}

	src, err := r.conn.GetObjectStream(ctx, r.bucket, ref.Location(), cfg.chunkSize)
	if errors.Is(err, ErrNotFound) {
		cr.logger.Debug("object not found, nothing to read")
		cr.done = true
		return cr, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bucketfile: open stream %s: %w", ref.Location(), err)
	}

	if comp != nil {
		rc, err := compress.ReadCloser(comp, &sourceReader{src: src})
		if err != nil {
			return nil, fmt.Errorf("bucketfile: open %s stream %s: %w", comp.Name(), ref.Location(), err)
		}
		src = NewChunkSource(rc, cfg.chunkSize)
	}
	cr.src = src

	cr.logger.Debug("chunked read started", "chunk_size", cfg.chunkSize)
	return cr, nil
}

// Next advances to the next frame. It returns false at the end of the
// object or on error; Err distinguishes the two.
func (c *ChunkReader) Next() bool {
	c.frame = nil
	if c.done || c.closed {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		return c.fail(err)
	}

	chunk, err := c.src.Next()
	if errors.Is(err, io.EOF) || (err == nil && len(chunk) == 0) {
		return c.finish()
	}
	if err != nil {
		return c.fail(fmt.Errorf("bucketfile: read chunk %d of %s: %w", c.chunks, c.ref.Location(), err))
	}

	frame, err := c.consume(chunk)
	if err != nil {
		return c.fail(err)
	}
	c.emit(frame)
	return true
}

// Frame returns the frame produced by the last successful Next.
func (c *ChunkReader) Frame() *Frame { return c.frame }

// Err returns the first error encountered, or nil at a clean end.
func (c *ChunkReader) Err() error { return c.err }

// Close releases the underlying stream. It is safe to call more than once.
func (c *ChunkReader) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.state = chunkState{}
	if c.src == nil {
		return nil
	}
	return c.src.Close()
}

// Frames iterates over the remaining frames and closes the reader when the
// loop ends. A failure is yielded once, as the final pair, with a nil frame.
func (c *ChunkReader) Frames() iter.Seq2[*Frame, error] {
	return func(yield func(*Frame, error) bool) {
		defer func() { _ = c.Close() }()
		for c.Next() {
			if !yield(c.Frame(), nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// consume decodes one chunk and parses every complete row it finishes.
func (c *ChunkReader) consume(chunk []byte) (*Frame, error) {
	text, label, err := charset.DetectAndDecode(chunk, c.encoding)
	if err != nil {
		return nil, fmt.Errorf("bucketfile: decode chunk %d of %s: %w", c.chunks, c.ref.Location(), err)
	}
	if !c.state.started {
		text = strings.TrimPrefix(text, tabular.BOM)
		c.state.started = true
	}

	complete, tail := tabular.SplitTail(c.state.tail + text)
	c.state.tail = tail

	c.logger.Debug("chunk decoded",
		"chunk", c.chunks,
		"bytes", len(chunk),
		"encoding", label,
		"tail_bytes", len(tail),
	)

	if strings.TrimSpace(complete) == "" {
		return &Frame{Columns: c.state.header}, nil
	}

	// Later chunks start on data rows, which can sniff differently from the
	// header; the delimiter is fixed for the whole object.
	if c.state.comma == 0 {
		comma, err := tabular.SniffDelimiter(tabular.FirstLine(complete))
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d of %s: %w", ErrSniff, c.chunks, c.ref.Location(), err)
		}
		c.state.comma = comma
	}

	return c.parse(complete, c.state.comma)
}

// finish flushes a tail left without a trailing newline and ends the read.
func (c *ChunkReader) finish() bool {
	c.done = true
	tail := c.state.tail
	c.state.tail = ""

	if strings.TrimSpace(tail) == "" {
		c.logger.Debug("chunked read finished", "chunks", c.chunks, "rows", c.rows)
		return false
	}

	comma := c.state.comma
	if comma == 0 {
		var err error
		if comma, err = tabular.SniffDelimiter(tabular.FirstLine(tail)); err != nil {
			return c.fail(fmt.Errorf("%w: final row of %s: %w", ErrSniff, c.ref.Location(), err))
		}
	}

	frame, err := c.parse(tail, comma)
	if err != nil {
		return c.fail(err)
	}
	c.emit(frame)
	c.logger.Debug("chunked read finished", "chunks", c.chunks, "rows", c.rows)
	return true
}

// parse reads text with the canonical header. Before the header is known
// the first record of text becomes the header.
func (c *ChunkReader) parse(text string, comma rune) (*Frame, error) {
	var header []string
	if c.state.captured {
		header = c.state.header
	}
	columns, rows, err := tabular.Parse(text, comma, header)
	if err != nil {
		if errors.Is(err, tabular.ErrTooManyFields) {
			return nil, fmt.Errorf("%w: chunk %d of %s: %w", ErrMalformedRow, c.chunks, c.ref.Location(), err)
		}
		return nil, fmt.Errorf("bucketfile: parse chunk %d of %s: %w", c.chunks, c.ref.Location(), err)
	}
	if !c.state.captured && columns != nil {
		c.state.header = columns
		c.state.captured = true
	}
	return &Frame{Columns: columns, Rows: rows}, nil
}

func (c *ChunkReader) emit(f *Frame) {
	c.frame = f
	c.chunks++
	c.rows += f.Len()
}

func (c *ChunkReader) fail(err error) bool {
	c.err = err
	c.done = true
	c.logger.Error("chunked read failed", "chunk", c.chunks, "error", err)
	return false
}

// -----------------------------------------------------------------------------
// Chunk source as a reader
// -----------------------------------------------------------------------------

// sourceReader exposes a ChunkSource as an io.ReadCloser so it can be
// wrapped by a decompressor.
type sourceReader struct {
	src ChunkSource
	buf []byte
}

func (s *sourceReader) Read(p []byte) (int, error) {
	for len(s.buf) == 0 {
		chunk, err := s.src.Next()
		if err != nil {
			return 0, err
		}
		s.buf = chunk
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *sourceReader) Close() error {
	return s.src.Close()
}

// splitExtension returns the lower-cased format extension of ref and the
// compressor named by an outer compression extension, if any.
func splitExtension(ref FileRef) (string, compress.Compressor) {
	if base, c, ok := compress.Split(ref.Name()); ok {
		return strings.ToLower(extensionOf(base)), c
	}
	return strings.ToLower(ref.Extension()), nil
}
