// Package codec encodes and decodes JSON Lines documents.
package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// json is a drop-in replacement for encoding/json with better performance.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ContentType is the media type recorded for JSON Lines uploads.
const ContentType = "application/x-ndjson"

// maxLine bounds a single record.
const maxLine = 16 << 20

// EncodeJSONL writes each record as one line of JSON.
func EncodeJSONL(w io.Writer, records []any) error {
	enc := json.NewEncoder(w)
	for i, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// DecodeJSONL reads one JSON value per line. Blank lines are skipped and a
// leading byte order mark is ignored. Errors name the 1-based line.
func DecodeJSONL(r io.Reader) ([]any, error) {
	records := []any{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if line == 1 {
			text = bytes.TrimPrefix(text, []byte("\ufeff"))
		}
		if len(bytes.TrimSpace(text)) == 0 {
			continue
		}
		var record any
		if err := json.Unmarshal(text, &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
