// Package charset detects and decodes the text encoding of raw bytes.
package charset

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// UTF8 is the label returned for valid UTF-8 input.
const UTF8 = "utf-8"

// ErrUnknownEncoding indicates a label no decoder is registered for.
var ErrUnknownEncoding = errors.New("charset: unknown encoding")

// aliases maps detector labels that are not WHATWG or IANA names.
var aliases = map[string]string{
	"gb-18030": "gb18030",
}

var detector = chardet.NewTextDetector()

// Detect guesses the encoding of data and returns its label.
//
// Empty input and valid UTF-8 report UTF8 without running the statistical
// detector. Detection looks at data alone: a multi-byte character cut at the
// end of data makes it invalid UTF-8 and the detector may pick a different
// charset.
func Detect(data []byte) string {
	if len(data) == 0 || utf8.Valid(data) {
		return UTF8
	}
	res, err := detector.DetectBest(data)
	if err != nil || res == nil || res.Charset == "" {
		return UTF8
	}
	return strings.ToLower(res.Charset)
}

// Lookup resolves a label to an encoding.
func Lookup(label string) (encoding.Encoding, error) {
	name := strings.ToLower(strings.TrimSpace(label))
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	switch name {
	case "", UTF8, "utf8", "ascii", "us-ascii":
		return unicode.UTF8, nil
	}
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	return enc, nil
}

// Decode converts data in the labelled encoding to a UTF-8 string.
// Bytes invalid in that encoding become U+FFFD.
func Decode(data []byte, label string) (string, error) {
	enc, err := Lookup(label)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("charset: decode %s: %w", label, err)
	}
	return string(out), nil
}

// DetectAndDecode decodes data with override, or with the detected
// encoding when override is empty. It returns the text and the label used.
func DetectAndDecode(data []byte, override string) (string, string, error) {
	label := override
	if label == "" {
		label = Detect(data)
	}
	text, err := Decode(data, label)
	if err != nil {
		return "", "", err
	}
	return text, label, nil
}
