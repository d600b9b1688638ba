package bucketfile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/pithecene-io/bucketfile/internal/codec"
	"github.com/pithecene-io/bucketfile/internal/compress"
	"github.com/pithecene-io/bucketfile/internal/parquetframe"
	"github.com/pithecene-io/bucketfile/internal/sheet"
	"github.com/pithecene-io/bucketfile/internal/tabular"
)

// Content types recorded on upload.
const (
	ContentTypeCSV     = "text/csv"
	ContentTypeText    = "text/plain"
	ContentTypeXLSX    = sheet.ContentType
	ContentTypeParquet = parquetframe.ContentType
	ContentTypeJSONL   = codec.ContentType
)

// Writer encodes frames, JSON values and text and uploads them to one
// bucket through a Connector.
type Writer struct {
	conn   Connector
	bucket string
	cfg    writerConfig
}

// NewWriter creates a Writer over bucket.
//
// Supported options: WithLogger.
func NewWriter(conn Connector, bucket string, opts ...Option) (*Writer, error) {
	if conn == nil {
		return nil, fmt.Errorf("bucketfile: %w: connector is required", ErrInvalidInput)
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucketfile: %w: bucket is required", ErrInvalidInput)
	}
	w := &Writer{
		conn:   conn,
		bucket: bucket,
		cfg:    writerConfig{logger: slog.Default()},
	}
	for _, opt := range opts {
		if err := opt.applyWriter(&w.cfg); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Key joins a directory path and a file name into an object key.
func Key(filePath, fileName string) string {
	return strings.TrimPrefix(path.Join(filePath, fileName), "/")
}

// WriteFrame encodes frame according to the extension of fileName and
// uploads it to filePath/fileName.
//
// Supported extensions: csv, xlsx (xls is written as xlsx content), and
// parquet, each optionally followed by gz or zst. A frame with no rows is
// skipped without an upload. Returns ErrInvalidInput for a nil or ragged
// frame and ErrUnsupportedFormat for any other extension.
//
// Workbooks do not keep trailing all-blank rows, so reading an xlsx back
// may return fewer rows than were written.
func (w *Writer) WriteFrame(ctx context.Context, frame *Frame, fileName, filePath string) error {
	if frame == nil {
		return fmt.Errorf("bucketfile: %w: nil frame", ErrInvalidInput)
	}
	key := Key(filePath, fileName)
	logger := w.cfg.logger.With("key", key)

	if frame.Empty() {
		logger.Debug("frame has no rows, skipping upload")
		return nil
	}
	if err := frame.Validate(); err != nil {
		return err
	}

	ext, comp := splitExtension(NewFileRef(key, ""))

	var buf bytes.Buffer
	var contentType string
	var err error
	switch ext {
	case "csv":
		contentType = ContentTypeCSV
		err = encodeCompressed(&buf, comp, func(dst io.Writer) error {
			return tabular.Write(dst, frame.Columns, frame.Rows)
		})
	case "xlsx", "xls":
		contentType = ContentTypeXLSX
		err = encodeCompressed(&buf, comp, func(dst io.Writer) error {
			return sheet.Write(dst, frame.Columns, frame.Rows)
		})
	case "parquet":
		contentType = ContentTypeParquet
		err = encodeCompressed(&buf, comp, func(dst io.Writer) error {
			return parquetframe.Write(dst, frame.Columns, frame.Rows)
		})
	default:
		return fmt.Errorf("%w: cannot write frame as %q", ErrUnsupportedFormat, fileName)
	}
	if err != nil {
		return fmt.Errorf("bucketfile: encode %s: %w", key, err)
	}
	if comp != nil {
		contentType = comp.ContentType()
	}

	if err := w.put(ctx, key, buf.Bytes(), contentType); err != nil {
		return err
	}
	logger.Info("frame uploaded", "rows", frame.Len(), "bytes", buf.Len(), "content_type", contentType)
	return nil
}

// WriteJSON encodes value as JSON and uploads it to filePath/fileName.
//
// No content type is sent, so the store records its default. Returns
// ErrInvalidInput if value cannot be encoded.
func (w *Writer) WriteJSON(ctx context.Context, value any, fileName, filePath string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("bucketfile: %w: encode json: %w", ErrInvalidInput, err)
	}
	key := Key(filePath, fileName)
	if err := w.put(ctx, key, data, ""); err != nil {
		return err
	}
	w.cfg.logger.Info("json uploaded", "key", key, "bytes", len(data))
	return nil
}

// WriteRecords encodes records as JSON Lines and uploads them to
// filePath/fileName, compressed when the name ends in gz or zst.
// An empty slice is skipped without an upload.
func (w *Writer) WriteRecords(ctx context.Context, records []any, fileName, filePath string) error {
	key := Key(filePath, fileName)
	if len(records) == 0 {
		w.cfg.logger.Debug("no records, skipping upload", "key", key)
		return nil
	}

	_, comp := splitExtension(NewFileRef(key, ""))
	var buf bytes.Buffer
	err := encodeCompressed(&buf, comp, func(dst io.Writer) error {
		return codec.EncodeJSONL(dst, records)
	})
	if err != nil {
		return fmt.Errorf("bucketfile: %w: encode %s: %w", ErrInvalidInput, key, err)
	}
	contentType := ContentTypeJSONL
	if comp != nil {
		contentType = comp.ContentType()
	}

	if err := w.put(ctx, key, buf.Bytes(), contentType); err != nil {
		return err
	}
	w.cfg.logger.Info("records uploaded", "key", key, "records", len(records), "bytes", buf.Len())
	return nil
}

// WriteText uploads text as text/plain to filePath/fileName.
func (w *Writer) WriteText(ctx context.Context, text, fileName, filePath string) error {
	key := Key(filePath, fileName)
	if err := w.put(ctx, key, []byte(text), ContentTypeText); err != nil {
		return err
	}
	w.cfg.logger.Info("text uploaded", "key", key, "bytes", len(text))
	return nil
}

func (w *Writer) put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := w.conn.PutObject(ctx, w.bucket, key, data, contentType); err != nil {
		return fmt.Errorf("bucketfile: put %s: %w", key, err)
	}
	return nil
}

// encodeCompressed runs encode against dst, through comp when it is set.
func encodeCompressed(dst io.Writer, comp compress.Compressor, encode func(io.Writer) error) error {
	if comp == nil {
		return encode(dst)
	}
	cw, err := comp.Compress(dst)
	if err != nil {
		return err
	}
	if err := encode(cw); err != nil {
		_ = cw.Close()
		return err
	}
	return cw.Close()
}
