// Package rowmap maps normalized object events onto rows of a column schema.
package rowmap

import (
	"fmt"
	"time"

	"github.com/unijord/contentmeta/pkg/event"
	"github.com/unijord/contentmeta/pkg/schema"
)

type source int

const (
	sourceCustom source = iota
	sourceBucket
	sourceKey
	sourceVersionID
	sourceSequencer
	sourceETag
	sourceMetadata
	sourceLastModified
)

var structuralSources = map[string]source{
	schema.ColumnBucket:       sourceBucket,
	schema.ColumnKey:          sourceKey,
	schema.ColumnVersionID:    sourceVersionID,
	schema.ColumnSequencer:    sourceSequencer,
	schema.ColumnETag:         sourceETag,
	schema.ColumnMetadata:     sourceMetadata,
	schema.ColumnLastModified: sourceLastModified,
}

type column struct {
	entry  schema.Entry
	source source
	path   jsonPath
}

// Mapper converts events to rows of a fixed schema.
// It is immutable and safe for concurrent use.
type Mapper struct {
	schema  schema.ColumnSchema
	columns []column
}

// NewMapper compiles the JSONPath of every custom column in s.
func NewMapper(s schema.ColumnSchema) (*Mapper, error) {
	columns := make([]column, s.Len())
	for i := range columns {
		e := s.Entry(i)
		col := column{entry: e}

		if src, ok := structuralSources[e.Name]; ok {
			col.source = src
			columns[i] = col
			continue
		}

		if !supported(e.Type) {
			return nil, &ColumnError{Name: e.Name, Index: i, Err: fmt.Errorf("%w: %v", ErrUnsupportedColumn, e.Type)}
		}
		p, err := compilePath(e.Path)
		if err != nil {
			return nil, &PathError{Column: e.Name, Path: e.Path, Err: err}
		}
		col.path = p
		columns[i] = col
	}

	return &Mapper{schema: s, columns: columns}, nil
}

// Schema returns the schema rows are aligned with.
func (m *Mapper) Schema() schema.ColumnSchema {
	return m.schema
}

// Map produces the row for ev.
//
// Tombstones produce a KindDelete row carrying the structural columns only;
// metadata is never parsed for them. Inserts parse metadata once and
// evaluate every custom column against it. Custom values that are missing or
// have the wrong shape are nil.
func (m *Mapper) Map(ev event.Normalized) (Row, error) {
	row := Row{Kind: KindInsert, Values: make([]any, len(m.columns))}

	var doc any
	if ev.Tombstone() {
		row.Kind = KindDelete
	} else {
		doc = parseDocument(ev.Metadata)
	}

	for i, col := range m.columns {
		switch col.source {
		case sourceBucket:
			row.Values[i] = ev.Bucket
		case sourceKey:
			row.Values[i] = ev.UserKey
		case sourceVersionID:
			row.Values[i] = nullable(ev.VersionID)
		case sourceSequencer:
			row.Values[i] = ev.Sequencer
		case sourceETag:
			row.Values[i] = nullable(ev.ETag)
		case sourceMetadata:
			if row.Kind == KindInsert {
				row.Values[i] = nullable(ev.Metadata)
			}
		case sourceLastModified:
			ts, err := ParseEventTime(ev.LatestEventTime)
			if err != nil {
				return Row{}, err
			}
			row.Values[i] = ts
		default:
			if doc == nil {
				continue
			}
			v, err := coerce(col.entry.Type, col.path.eval(doc))
			if err != nil {
				return Row{}, &ColumnError{Name: col.entry.Name, Index: i, Err: err}
			}
			row.Values[i] = v
		}
	}
	return row, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseEventTime parses an ISO-8601 date-time with or without offset.
// The offset is dropped: the result carries the wall clock time in UTC.
func ParseEventTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range eventTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, &TimestampParseError{Value: s, Err: firstErr}
}
