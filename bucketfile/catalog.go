package bucketfile

import (
	"cmp"
	"fmt"
	"iter"
	"log/slog"
	"regexp"
	"slices"
	"strings"
)

// Catalog is an ordered collection of file references, usually the result
// of one keyword search.
//
// A Catalog is not safe for concurrent use.
type Catalog struct {
	refs []FileRef
}

// NewCatalog creates a catalog holding refs in the given order.
func NewCatalog(refs ...FileRef) *Catalog {
	return &Catalog{refs: slices.Clone(refs)}
}

// Append adds a reference at the end.
func (c *Catalog) Append(ref FileRef) {
	c.refs = append(c.refs, ref)
}

// Len returns the number of references.
func (c *Catalog) Len() int { return len(c.refs) }

// At returns the reference at index i. It panics if i is out of range.
func (c *Catalog) At(i int) FileRef { return c.refs[i] }

// Refs returns a copy of the references in catalog order.
func (c *Catalog) Refs() []FileRef { return slices.Clone(c.refs) }

// All iterates over the references in catalog order.
func (c *Catalog) All() iter.Seq[FileRef] {
	return func(yield func(FileRef) bool) {
		for _, ref := range c.refs {
			if !yield(ref) {
				return
			}
		}
	}
}

// SortByLastModified orders references by last-modified time, then by
// location, ascending.
func (c *Catalog) SortByLastModified() {
	slices.SortStableFunc(c.refs, func(a, b FileRef) int {
		return cmp.Or(
			cmp.Compare(a.lastModified, b.lastModified),
			cmp.Compare(a.location, b.location),
		)
	})
}

// SortByLocation orders references by location ascending.
func (c *Catalog) SortByLocation() {
	slices.SortStableFunc(c.refs, func(a, b FileRef) int {
		return cmp.Compare(a.location, b.location)
	})
}

// Latest returns a one-element catalog with the most recently modified
// reference. When several references share the newest time, the one with
// the greatest location wins.
//
// Returns ErrEmptyCatalog if the catalog is empty.
func (c *Catalog) Latest() (*Catalog, error) {
	if len(c.refs) == 0 {
		return nil, ErrEmptyCatalog
	}
	latest := slices.MaxFunc(c.refs, func(a, b FileRef) int {
		return cmp.Or(
			cmp.Compare(a.lastModified, b.lastModified),
			cmp.Compare(a.location, b.location),
		)
	})
	return NewCatalog(latest), nil
}

// FilterByName returns the references whose name contains keyword.
func (c *Catalog) FilterByName(keyword string) []FileRef {
	var out []FileRef
	for _, ref := range c.refs {
		if strings.Contains(ref.name, keyword) {
			out = append(out, ref)
		}
	}
	return out
}

// Merge returns a new catalog holding c's references followed by other's.
// Neither input is modified.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	merged := make([]FileRef, 0, c.Len()+other.Len())
	merged = append(merged, c.refs...)
	merged = append(merged, other.refs...)
	return &Catalog{refs: merged}
}

// Extend appends other's references to c.
func (c *Catalog) Extend(other *Catalog) {
	c.refs = append(c.refs, other.refs...)
}

// MarshalJSON encodes the catalog as a list of file references.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	if c.refs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.refs)
}

func (c *Catalog) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("catalog(%d)", len(c.refs))
	}
	return string(data)
}

// -----------------------------------------------------------------------------
// Catalog population
// -----------------------------------------------------------------------------

// BuildCatalogs groups objects into one catalog per keyword.
//
// Directory markers (keys ending in "/") are dropped. A keyword is a glob
// where "*" matches any run of characters; it matches a key if it matches
// anywhere inside it. The empty keyword matches every object and is logged
// as a warning because it implies a full listing. A nil or empty keywords
// slice behaves like a single empty keyword.
//
// Every catalog is sorted by last-modified time, then location.
func BuildCatalogs(objects []ObjectInfo, keywords []string, logger *slog.Logger) (map[string]*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(keywords) == 0 {
		keywords = []string{""}
	}
	if slices.Contains(keywords, "") {
		logger.Warn("object store accessed with no filtering, this may result in low performance")
	}

	files := make([]FileRef, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		files = append(files, NewFileRef(obj.Key, FormatLastModified(obj.LastModified)))
	}

	result := make(map[string]*Catalog, len(keywords))
	for _, keyword := range keywords {
		pattern, err := keywordPattern(keyword)
		if err != nil {
			return nil, err
		}
		catalog := &Catalog{}
		for _, ref := range files {
			if pattern.MatchString(ref.location) {
				catalog.Append(ref)
			}
		}
		catalog.SortByLastModified()
		result[keyword] = catalog
	}
	return result, nil
}

// keywordPattern compiles a glob keyword into an unanchored regexp.
// Only "*" is special; every other character matches itself.
func keywordPattern(keyword string) (*regexp.Regexp, error) {
	parts := strings.Split(keyword, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile(strings.Join(parts, ".*"))
	if err != nil {
		return nil, fmt.Errorf("%w: keyword %q: %w", ErrInvalidInput, keyword, err)
	}
	return re, nil
}
