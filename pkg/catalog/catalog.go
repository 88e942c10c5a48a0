package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrDuplicateID is returned when a document holds two entries with the same id.
var ErrDuplicateID = errors.New("duplicate entry id")

// Catalog is the full list of entries, persisted sorted by id.
type Catalog []Entry

// Sorted returns a copy ordered ascending by id.
func (c Catalog) Sorted() Catalog {
	out := c.Clone()
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clone deep-copies every entry.
func (c Catalog) Clone() Catalog {
	if c == nil {
		return nil
	}
	out := make(Catalog, len(c))
	for i, e := range c {
		out[i] = e.Clone()
	}
	return out
}

// MaxID returns the highest id in the catalog, or 0 when empty.
func (c Catalog) MaxID() int {
	max := 0
	for _, e := range c {
		if e.ID > max {
			max = e.ID
		}
	}
	return max
}

// ByID indexes entries by id.
func (c Catalog) ByID() map[int]Entry {
	m := make(map[int]Entry, len(c))
	for _, e := range c {
		m[e.ID] = e
	}
	return m
}

// ByKey indexes entries by identity key. The first entry wins on collisions.
func (c Catalog) ByKey() map[string]Entry {
	m := make(map[string]Entry, len(c))
	for _, e := range c {
		k := e.Key()
		if _, ok := m[k]; !ok {
			m[k] = e
		}
	}
	return m
}

// Equal reports whether both catalogs hold the same ids with the same field values.
// Order is ignored.
func (c Catalog) Equal(o Catalog) bool {
	if len(c) != len(o) {
		return false
	}
	other := o.ByID()
	for _, e := range c {
		oe, ok := other[e.ID]
		if !ok || !e.Equal(oe) {
			return false
		}
	}
	return true
}

// Encode renders the catalog as the canonical document: sorted by id, four-space indent.
func (c Catalog) Encode() ([]byte, error) {
	sorted := c.Sorted()
	if sorted == nil {
		sorted = Catalog{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(sorted); err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	return asciiEscape(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// asciiEscape rewrites every non-ASCII rune as a \uXXXX escape (surrogate
// pairs above the BMP), so documents written elsewhere with ASCII-only
// output survive a read/write cycle byte for byte. Non-ASCII bytes only
// occur inside JSON strings, where the escape is equivalent.
func asciiEscape(data []byte) []byte {
	if !slices.ContainsFunc(data, func(b byte) bool { return b >= utf8.RuneSelf }) {
		return data
	}
	out := make([]byte, 0, len(data)+len(data)/8)
	for len(data) > 0 {
		if data[0] < utf8.RuneSelf {
			out = append(out, data[0])
			data = data[1:]
			continue
		}
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r >= 0x10000 {
			r1, r2 := utf16.EncodeRune(r)
			out = fmt.Appendf(out, "\\u%04x\\u%04x", r1, r2)
			continue
		}
		out = fmt.Appendf(out, "\\u%04x", r)
	}
	return out
}

// Decode parses a catalog document. An empty body decodes to an empty catalog.
func Decode(data []byte) (Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Catalog{}, nil
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	seen := make(map[int]struct{}, len(c))
	for _, e := range c {
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	if c == nil {
		c = Catalog{}
	}
	return c, nil
}
