package bucketfile

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// json is a drop-in replacement for encoding/json with better performance.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LastModifiedLayout formats object times for FileRef.LastModified.
// The layout is fixed-width and always UTC, so lexical order of the
// formatted strings equals temporal order.
const LastModifiedLayout = "2006-01-02 15:04:05+00:00"

// FormatLastModified renders t with LastModifiedLayout.
func FormatLastModified(t time.Time) string {
	return t.UTC().Format(LastModifiedLayout)
}

// FileRef is an immutable reference to one stored object.
//
// Name and extension are derived from the location once, at construction.
type FileRef struct {
	location     string
	lastModified string
	name         string
	extension    string
}

// NewFileRef creates a FileRef for the object at location.
// lastModified is opaque but must order lexically the way it orders in time.
func NewFileRef(location, lastModified string) FileRef {
	name := location[strings.LastIndex(location, "/")+1:]
	return FileRef{
		location:     location,
		lastModified: lastModified,
		name:         name,
		extension:    extensionOf(name),
	}
}

func extensionOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// Location returns the full object key.
func (f FileRef) Location() string { return f.location }

// LastModified returns the modification time string.
func (f FileRef) LastModified() string { return f.lastModified }

// Name returns the final path segment of the location.
func (f FileRef) Name() string { return f.name }

// Extension returns the text after the last dot of the name, or "" if the
// name has no dot.
func (f FileRef) Extension() string { return f.extension }

func (f FileRef) String() string {
	return fmt.Sprintf("s3_url: %s, last_modified: %s, file_name: %s, file_extension: %s",
		f.location, f.lastModified, f.name, f.extension)
}

type fileRefJSON struct {
	FileExtension string `json:"file_extension"`
	LastModified  string `json:"last_modified"`
	S3URL         string `json:"s3_url"`
	FileName      string `json:"file_name"`
}

// MarshalJSON encodes the reference with its derived fields.
func (f FileRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(fileRefJSON{
		FileExtension: f.extension,
		LastModified:  f.lastModified,
		S3URL:         f.location,
		FileName:      f.name,
	})
}

// UnmarshalJSON decodes a reference, recomputing the derived fields from
// the location.
func (f *FileRef) UnmarshalJSON(data []byte) error {
	var v fileRefJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = NewFileRef(v.S3URL, v.LastModified)
	return nil
}
