// Package tabular parses and writes delimited text tables.
//
// It knows nothing about object storage; callers hand it decoded text.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNoDelimiter indicates a line with none of the candidate delimiters.
	ErrNoDelimiter = errors.New("tabular: could not determine delimiter")

	// ErrTooManyFields indicates a record wider than the header.
	ErrTooManyFields = errors.New("tabular: too many fields")
)

// BOM is the UTF-8 byte order mark as a string.
const BOM = "\ufeff"

// primaryDelimiters are tried first; the most frequent wins, ties go to
// the earlier entry.
var primaryDelimiters = []rune{',', '\t', ';', '|'}

// fallbackDelimiters are only considered when no primary delimiter occurs.
var fallbackDelimiters = []rune{' ', ':'}

// SniffDelimiter guesses the field delimiter of a single line.
// Characters inside double-quoted sections are ignored.
func SniffDelimiter(line string) (rune, error) {
	counts := make(map[rune]int)
	inQuotes := false
	for _, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	for _, set := range [][]rune{primaryDelimiters, fallbackDelimiters} {
		best, bestCount := rune(0), 0
		for _, d := range set {
			if counts[d] > bestCount {
				best, bestCount = d, counts[d]
			}
		}
		if bestCount > 0 {
			return best, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNoDelimiter, truncate(line, 64))
}

// FirstLine returns the first non-blank line of text, without the line
// ending.
func FirstLine(text string) string {
	for text != "" {
		var line string
		line, text, _ = strings.Cut(text, "\n")
		if line = strings.TrimSuffix(line, "\r"); strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

// SplitTail splits text after its last record terminator.
//
// complete holds every full line; tail holds whatever follows the last
// newline that is not inside a quoted field. text must start at a record
// boundary. When text has no such newline, complete is empty. An unmatched
// quote, even a bare one inside an unquoted field, keeps every later
// newline in tail.
func SplitTail(text string) (complete, tail string) {
	cut := -1
	inQuotes := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '"':
			inQuotes = !inQuotes
		case '\n':
			if !inQuotes {
				cut = i
			}
		}
	}
	return text[:cut+1], text[cut+1:]
}

// Parse reads delimited records from text.
//
// With a nil header the first record becomes the header and is returned as
// columns. With a non-nil header every record is data and columns is
// header. Rows shorter than the header are padded with empty cells; longer
// rows fail with ErrTooManyFields. Blank lines are skipped.
//
// When header is nil and text holds no record, columns is nil.
func Parse(text string, comma rune, header []string) (columns []string, rows [][]string, err error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	columns = header
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("tabular: %w", err)
		}
		if columns == nil {
			columns = record
			continue
		}
		if len(record) > len(columns) {
			line, _ := r.FieldPos(0)
			return nil, nil, fmt.Errorf("%w: line %d has %d fields, expected %d", ErrTooManyFields, line, len(record), len(columns))
		}
		for len(record) < len(columns) {
			record = append(record, "")
		}
		rows = append(rows, record)
	}
	return columns, rows, nil
}

// Write encodes columns and rows as comma-separated UTF-8 text.
// A nil columns slice writes no header line.
func Write(w io.Writer, columns []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if columns != nil {
		if err := cw.Write(columns); err != nil {
			return err
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
