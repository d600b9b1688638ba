package bucketfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/clbanning/mxj/v2"

	"github.com/pithecene-io/bucketfile/internal/charset"
	"github.com/pithecene-io/bucketfile/internal/codec"
	"github.com/pithecene-io/bucketfile/internal/compress"
	"github.com/pithecene-io/bucketfile/internal/parquetframe"
	"github.com/pithecene-io/bucketfile/internal/sheet"
	"github.com/pithecene-io/bucketfile/internal/tabular"
)

func init() {
	// Let XML documents declare non-UTF-8 encodings.
	mxj.XmlCharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := charset.Lookup(label)
		if err != nil {
			return nil, err
		}
		return enc.NewDecoder().Reader(input), nil
	}
}

// Format names the decoded shape of a Document.
type Format string

// Formats produced by ReadFile.
const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatJSONL   Format = "jsonl"
	FormatXLSX    Format = "xlsx"
	FormatXML     Format = "xml"
	FormatText    Format = "txt"
	FormatParquet Format = "parquet"
)

// Document is the decoded content of one object. Which fields are set
// depends on Format:
//
//   - FormatCSV: Frame and Encoding
//   - FormatJSON: Value
//   - FormatJSONL: Value, a []any with one element per line
//   - FormatXLSX: Frame for a single-sheet workbook, otherwise Sheets and SheetOrder
//   - FormatXML: Tree
//   - FormatText: Text and Encoding
//   - FormatParquet: Frame
type Document struct {
	Ref    FileRef
	Format Format

	Frame      *Frame
	Sheets     map[string]*Frame
	SheetOrder []string
	Value      any
	Tree       map[string]any
	Text       string
	Encoding   string
}

// Reader lists and reads objects of one bucket through a Connector.
//
// A Reader is safe for concurrent use if its Connector is.
type Reader struct {
	conn   Connector
	bucket string
	cfg    readerConfig
}

// NewReader creates a Reader over bucket.
//
// Supported options: WithLogger, WithChunkSize, WithEncoding. Options given
// here are defaults; the same options passed to a single read override them.
func NewReader(conn Connector, bucket string, opts ...Option) (*Reader, error) {
	if conn == nil {
		return nil, fmt.Errorf("bucketfile: %w: connector is required", ErrInvalidInput)
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucketfile: %w: bucket is required", ErrInvalidInput)
	}
	r := &Reader{
		conn:   conn,
		bucket: bucket,
		cfg: readerConfig{
			logger:    slog.Default(),
			chunkSize: DefaultChunkSize,
		},
	}
	for _, opt := range opts {
		if err := opt.applyReader(&r.cfg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Bucket returns the bucket the reader reads from.
func (r *Reader) Bucket() string { return r.bucket }

func (r *Reader) config(opts []Option) (readerConfig, error) {
	cfg := r.cfg
	for _, opt := range opts {
		if err := opt.applyReader(&cfg); err != nil {
			return readerConfig{}, err
		}
	}
	return cfg, nil
}

// RetrieveFiles lists every object under prefix and returns one catalog per
// keyword. See BuildCatalogs for the matching rules. A missing bucket yields
// empty catalogs.
func (r *Reader) RetrieveFiles(ctx context.Context, prefix string, keywords []string) (map[string]*Catalog, error) {
	objects, err := r.conn.ListObjects(ctx, r.bucket, prefix)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("bucketfile: list %s/%s: %w", r.bucket, prefix, err)
	}
	r.cfg.logger.Debug("objects listed", "bucket", r.bucket, "prefix", prefix, "count", len(objects))
	return BuildCatalogs(objects, keywords, r.cfg.logger)
}

// ReadFile fetches and decodes a whole object, dispatching on its
// extension (case-insensitive): json, jsonl (or ndjson), csv, xlsx, xml,
// txt, parquet, each optionally wrapped in gz or zst compression.
//
// A missing object and an unrecognized extension both return (nil, nil).
// Legacy .xls workbooks fail with ErrUnsupportedFormat.
//
// Supported options: WithEncoding, WithLogger.
func (r *Reader) ReadFile(ctx context.Context, ref FileRef, opts ...Option) (*Document, error) {
	cfg, err := r.config(opts)
	if err != nil {
		return nil, err
	}
	logger := cfg.logger.With("key", ref.Location())

	ext, comp := splitExtension(ref)
	if !readable(ext) {
		logger.Debug("no reader for extension", "extension", ext)
		return nil, nil
	}

	data, err := r.conn.GetObject(ctx, r.bucket, ref.Location())
	if errors.Is(err, ErrNotFound) {
		logger.Debug("object not found")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bucketfile: get %s: %w", ref.Location(), err)
	}

	doc, err := decodeFile(ext, comp, data, cfg.encoding)
	if err != nil {
		return nil, fmt.Errorf("bucketfile: read %s: %w", ref.Location(), err)
	}
	doc.Ref = ref
	logger.Debug("object read", "format", doc.Format, "bytes", len(data))
	return doc, nil
}

// Decode decodes data as ReadFile would decode an object called name.
// encoding overrides charset detection for csv and txt; empty detects.
// Unrecognized extensions fail with ErrUnsupportedFormat.
func Decode(name string, data []byte, encoding string) (*Document, error) {
	ref := NewFileRef(name, "")
	ext, comp := splitExtension(ref)
	if !readable(ext) {
		return nil, fmt.Errorf("bucketfile: %w: %q", ErrUnsupportedFormat, name)
	}
	doc, err := decodeFile(ext, comp, data, encoding)
	if err != nil {
		return nil, fmt.Errorf("bucketfile: decode %s: %w", name, err)
	}
	doc.Ref = ref
	return doc, nil
}

func decodeFile(ext string, comp compress.Compressor, data []byte, encoding string) (*Document, error) {
	if comp != nil {
		var err error
		if data, err = decompress(comp, data); err != nil {
			return nil, fmt.Errorf("%s decompress: %w", comp.Name(), err)
		}
	}
	return decode(ext, data, encoding)
}

func readable(ext string) bool {
	switch ext {
	case "json", "jsonl", "ndjson", "csv", "xlsx", "xls", "xml", "txt", "parquet":
		return true
	}
	return false
}

func decompress(c compress.Compressor, data []byte) ([]byte, error) {
	rc, err := compress.ReadCloser(c, io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func decode(ext string, data []byte, encoding string) (*Document, error) {
	switch ext {
	case "json":
		var v any
		if err := json.Unmarshal(bytes.TrimPrefix(data, []byte(tabular.BOM)), &v); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return &Document{Format: FormatJSON, Value: v}, nil

	case "jsonl", "ndjson":
		records, err := codec.DecodeJSONL(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode json lines: %w", err)
		}
		return &Document{Format: FormatJSONL, Value: records}, nil

	case "csv":
		return decodeCSV(data, encoding)

	case "xlsx", "xls":
		return decodeWorkbook(data)

	case "xml":
		m, err := mxj.NewMapXml(data)
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}
		return &Document{Format: FormatXML, Tree: m.Old()}, nil

	case "txt":
		text, label, err := charset.DetectAndDecode(data, encoding)
		if err != nil {
			return nil, err
		}
		return &Document{Format: FormatText, Text: text, Encoding: label}, nil

	case "parquet":
		columns, rows, err := parquetframe.Read(data)
		if err != nil {
			return nil, err
		}
		return &Document{Format: FormatParquet, Frame: &Frame{Columns: columns, Rows: rows}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

func decodeCSV(data []byte, encoding string) (*Document, error) {
	text, label, err := charset.DetectAndDecode(data, encoding)
	if err != nil {
		return nil, err
	}
	text = strings.TrimPrefix(text, tabular.BOM)
	doc := &Document{Format: FormatCSV, Encoding: label, Frame: &Frame{}}
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}

	comma, err := tabular.SniffDelimiter(tabular.FirstLine(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSniff, err)
	}
	columns, rows, err := tabular.Parse(text, comma, nil)
	if err != nil {
		if errors.Is(err, tabular.ErrTooManyFields) {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRow, err)
		}
		return nil, err
	}
	doc.Frame = &Frame{Columns: columns, Rows: rows}
	return doc, nil
}

func decodeWorkbook(data []byte) (*Document, error) {
	if sheet.IsLegacy(data) {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, sheet.ErrLegacyFormat)
	}
	sheets, err := sheet.Read(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	doc := &Document{Format: FormatXLSX}
	if len(sheets) == 1 {
		doc.Frame = &Frame{Columns: sheets[0].Columns, Rows: sheets[0].Rows}
		return doc, nil
	}
	doc.Sheets = make(map[string]*Frame, len(sheets))
	for _, s := range sheets {
		doc.Sheets[s.Name] = &Frame{Columns: s.Columns, Rows: s.Rows}
		doc.SheetOrder = append(doc.SheetOrder, s.Name)
	}
	return doc, nil
}
