package rowmap

import (
	"errors"
	"fmt"
)

var (
	// ErrTimestampParse is returned when latest_event_time is not an ISO-8601 date-time.
	ErrTimestampParse = errors.New("timestamp parse failed")

	// ErrUnsupportedColumn is returned for a custom column whose type the mapper cannot populate.
	ErrUnsupportedColumn = errors.New("unsupported column type")

	// ErrInvalidPath is returned when a column JSONPath does not compile.
	ErrInvalidPath = errors.New("invalid json path")
)

// Kind is the change kind of an output row.
type Kind int8

const (
	// KindInsert upserts the row by primary key.
	KindInsert Kind = iota

	// KindDelete removes the row with the same primary key.
	KindDelete
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "INSERT"
	case KindDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Row is one output row. Values are aligned with the schema columns.
type Row struct {
	Kind Kind

	// Values holds string, bool, int32, time.Time, []string, []bool, []int32 or nil.
	Values []any
}

// TimestampParseError reports an unparsable lastModified source value.
type TimestampParseError struct {
	Value string
	Err   error
}

// Error implements the error interface.
func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("parse latest event time %q: %v", e.Value, e.Err)
}

// Unwrap returns ErrTimestampParse for errors.Is compatibility.
func (e *TimestampParseError) Unwrap() error {
	return ErrTimestampParse
}

// PathError reports a custom column whose JSONPath does not compile.
type PathError struct {
	// Column is the column name.
	Column string

	// Path is the configured JSONPath.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("column %q: invalid json path %q: %v", e.Column, e.Path, e.Err)
}

// Is reports ErrInvalidPath for errors.Is compatibility.
func (e *PathError) Is(target error) bool {
	return target == ErrInvalidPath
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// ColumnError wraps a failure producing a specific column.
type ColumnError struct {
	// Name is the column name.
	Name string

	// Index is the column index (0-indexed).
	Index int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ColumnError) Error() string {
	return fmt.Sprintf("column[%d] %q: %v", e.Index, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ColumnError) Unwrap() error {
	return e.Err
}
