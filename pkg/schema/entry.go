// Package schema derives the ordered column schema of the content-metadata table
// from configuration and renders it as DDL, Arrow and Avro schemas.
package schema

import "github.com/unijord/contentmeta/pkg/coltype"

// Structural column names, in schema order.
const (
	ColumnBucket       = "bucket"
	ColumnKey          = "key"
	ColumnVersionID    = "versionId"
	ColumnSequencer    = "sequencer"
	ColumnETag         = "etag"
	ColumnMetadata     = "metadata"
	ColumnLastModified = "lastModified"
)

var structuralColumns = map[string]bool{
	ColumnBucket:       true,
	ColumnKey:          true,
	ColumnVersionID:    true,
	ColumnSequencer:    true,
	ColumnETag:         true,
	ColumnMetadata:     true,
	ColumnLastModified: true,
}

// PrimaryKey lists the upsert key columns.
var PrimaryKey = []string{ColumnBucket, ColumnKey}

// IsStructural reports whether name is one of the fixed columns derived from
// event fields rather than from the metadata payload.
func IsStructural(name string) bool {
	return structuralColumns[name]
}

// Entry is one column of the schema.
type Entry struct {
	Name     string
	Type     coltype.Type
	Nullable bool

	// Path is the JSONPath evaluated against the metadata document.
	// It is empty for structural columns.
	Path string
}

// Structural reports whether the entry is a fixed column.
func (e Entry) Structural() bool {
	return IsStructural(e.Name)
}

// ColumnSchema is the ordered, immutable list of table columns.
type ColumnSchema struct {
	entries []Entry
	index   map[string]int
}

func newColumnSchema(entries []Entry) ColumnSchema {
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.Name] = i
	}
	return ColumnSchema{entries: entries, index: index}
}

// Len returns the number of columns.
func (s ColumnSchema) Len() int {
	return len(s.entries)
}

// Entry returns the column at position i.
func (s ColumnSchema) Entry(i int) Entry {
	return s.entries[i]
}

// Entries returns a copy of the columns in order.
func (s ColumnSchema) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Names returns the column names in order.
func (s ColumnSchema) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (s ColumnSchema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// HasMetadata reports whether the raw metadata column is present.
func (s ColumnSchema) HasMetadata() bool {
	return s.Index(ColumnMetadata) >= 0
}
