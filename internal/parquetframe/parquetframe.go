// Package parquetframe encodes string tables as Apache Parquet files.
//
// Every column is written as a required UTF-8 string. Parquet groups order
// their fields by name, so the original column order is stored in the file's
// key/value metadata and restored on read.
package parquetframe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/parquet-go/parquet-go"
)

// ContentType is the MIME type of Parquet files.
const ContentType = "application/vnd.apache.parquet"

// ColumnsKey is the metadata key holding the JSON list of column names.
const ColumnsKey = "bucketfile.columns"

// readBatch is the number of rows fetched per ReadRows call.
const readBatch = 128

var (
	// ErrInvalidSchema indicates column names that cannot form a schema.
	ErrInvalidSchema = errors.New("parquetframe: invalid schema")

	// ErrInvalidFormat indicates data that is not a readable Parquet file.
	ErrInvalidFormat = errors.New("parquetframe: invalid format")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Write encodes columns and rows as a Snappy-compressed Parquet file.
func Write(w io.Writer, columns []string, rows [][]string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: no columns", ErrInvalidSchema)
	}
	group := make(parquet.Group, len(columns))
	position := make(map[string]int, len(columns))
	for i, name := range columns {
		if name == "" {
			return fmt.Errorf("%w: column %d has no name", ErrInvalidSchema, i)
		}
		if _, dup := group[name]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidSchema, name)
		}
		group[name] = parquet.String()
		position[name] = i
	}
	schema := parquet.NewSchema("frame", group)

	// leaf i of the schema holds frame column order[i]
	fields := schema.Fields()
	order := make([]int, len(fields))
	for i, f := range fields {
		order[i] = position[f.Name()]
	}

	buf := parquet.NewBuffer(schema)
	for i, r := range rows {
		if len(r) != len(columns) {
			return fmt.Errorf("%w: row %d has %d cells, expected %d", ErrInvalidSchema, i, len(r), len(columns))
		}
		row := make(parquet.Row, len(order))
		for leaf, col := range order {
			row[leaf] = parquet.ByteArrayValue([]byte(r[col])).Level(0, 0, leaf)
		}
		if _, err := buf.WriteRows([]parquet.Row{row}); err != nil {
			return fmt.Errorf("parquetframe: write row %d: %w", i, err)
		}
	}

	meta, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("parquetframe: encode column order: %w", err)
	}

	pw := parquet.NewWriter(w, schema,
		parquet.Compression(&parquet.Snappy),
		parquet.KeyValueMetadata(ColumnsKey, string(meta)),
	)
	if _, err := pw.WriteRowGroup(buf); err != nil {
		_ = pw.Close()
		return fmt.Errorf("parquetframe: write row group: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("parquetframe: close writer: %w", err)
	}
	return nil
}

// Read decodes a Parquet file into string columns and rows.
//
// Files written by Write come back in their original column order. Other
// files use schema leaf order, with nested leaves named by their dotted
// path. Null cells become empty strings and repeated values are joined
// with commas.
func Read(data []byte) ([]string, [][]string, error) {
	if len(data) == 0 {
		return nil, nil, ErrInvalidFormat
	}
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	var leaves []string
	for _, path := range file.Schema().Columns() {
		leaves = append(leaves, strings.Join(path, "."))
	}
	columns, order := restoreOrder(file, leaves)

	reader := parquet.NewReader(file)
	defer func() { _ = reader.Close() }()

	rows := make([][]string, 0, file.NumRows())
	batch := make([]parquet.Row, readBatch)
	for {
		n, err := reader.ReadRows(batch)
		for _, pr := range batch[:n] {
			cells := make([]string, len(leaves))
			pr.Range(func(col int, values []parquet.Value) bool {
				if col < len(cells) {
					cells[col] = joinValues(values)
				}
				return true
			})
			row := make([]string, len(columns))
			for i, leaf := range order {
				row[i] = cells[leaf]
			}
			rows = append(rows, row)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("%w: read rows: %w", ErrInvalidFormat, err)
		}
	}
	return columns, rows, nil
}

// restoreOrder returns the output columns and, for each, its leaf index.
// The stored order is used only when it names exactly the file's leaves.
func restoreOrder(file *parquet.File, leaves []string) ([]string, []int) {
	identity := make([]int, len(leaves))
	for i := range identity {
		identity[i] = i
	}

	raw, ok := file.Lookup(ColumnsKey)
	if !ok {
		return leaves, identity
	}
	var stored []string
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || len(stored) != len(leaves) {
		return leaves, identity
	}
	order := make([]int, len(stored))
	for i, name := range stored {
		idx := slices.Index(leaves, name)
		if idx < 0 {
			return leaves, identity
		}
		order[i] = idx
	}
	return stored, order
}

func joinValues(values []parquet.Value) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		parts = append(parts, valueString(v))
	}
	return strings.Join(parts, ",")
}

// valueString copies byte-array values; the reader reuses their buffers.
func valueString(v parquet.Value) string {
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
