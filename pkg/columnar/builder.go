// Package columnar batches mapped rows into Arrow records.
package columnar

import (
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/unijord/contentmeta/pkg/rowmap"
	"github.com/unijord/contentmeta/pkg/schema"
)

var (
	// ErrValueType is returned when a row value does not match its column type.
	ErrValueType = errors.New("value does not match column type")

	// ErrRowWidth is returned when a row has a different number of values than the schema.
	ErrRowWidth = errors.New("row width does not match schema")
)

// OpColumn is the trailing column holding the row kind.
const OpColumn = "_op"

// RecordSchema returns the Arrow schema of the records built for s:
// the table columns followed by OpColumn.
func RecordSchema(s schema.ColumnSchema) (*arrow.Schema, error) {
	table, err := schema.ArrowSchema(s)
	if err != nil {
		return nil, err
	}
	fields := append(table.Fields(), arrow.Field{Name: OpColumn, Type: arrow.BinaryTypes.String})
	meta := table.Metadata()
	return arrow.NewSchema(fields, &meta), nil
}

// Builder accumulates rows and emits them as Arrow records.
// A Builder is not safe for concurrent use.
type Builder struct {
	schema *arrow.Schema
	width  int
	rb     *array.RecordBuilder
	rows   int
}

// NewBuilder creates a builder for rows of s. A nil allocator uses the Go allocator.
func NewBuilder(mem memory.Allocator, s schema.ColumnSchema) (*Builder, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	rs, err := RecordSchema(s)
	if err != nil {
		return nil, err
	}
	return &Builder{
		schema: rs,
		width:  s.Len(),
		rb:     array.NewRecordBuilder(mem, rs),
	}, nil
}

// Schema returns the record schema.
func (b *Builder) Schema() *arrow.Schema {
	return b.schema
}

// Len returns the number of rows appended since the last NewRecord.
func (b *Builder) Len() int {
	return b.rows
}

// Append appends one row. A row that does not fit the schema is rejected
// before any column is touched, so the pending rows stay usable.
func (b *Builder) Append(row rowmap.Row) error {
	if len(row.Values) != b.width {
		return fmt.Errorf("%w: got %d values, want %d", ErrRowWidth, len(row.Values), b.width)
	}

	for i, v := range row.Values {
		if err := checkValue(b.schema.Field(i).Type, v); err != nil {
			return fmt.Errorf("column[%d] %q: %w", i, b.schema.Field(i).Name, err)
		}
	}
	for i, v := range row.Values {
		if err := appendValue(b.rb.Field(i), v); err != nil {
			return fmt.Errorf("column[%d] %q: %w", i, b.schema.Field(i).Name, err)
		}
	}
	b.rb.Field(b.width).(*array.StringBuilder).Append(row.Kind.String())
	b.rows++
	return nil
}

// NewRecord returns the appended rows as a record and resets the builder.
// The caller must release the record.
func (b *Builder) NewRecord() arrow.Record {
	b.rows = 0
	return b.rb.NewRecord()
}

// Release frees the builder's buffers.
func (b *Builder) Release() {
	b.rb.Release()
}

// checkValue reports whether v can be appended to a column of type dt.
func checkValue(dt arrow.DataType, v any) error {
	if v == nil {
		return nil
	}

	var ok bool
	var want string
	switch dt.ID() {
	case arrow.STRING:
		_, ok = v.(string)
		want = "string"
	case arrow.BOOL:
		_, ok = v.(bool)
		want = "bool"
	case arrow.INT32:
		_, ok = v.(int32)
		want = "int32"
	case arrow.TIMESTAMP:
		_, ok = v.(time.Time)
		want = "time.Time"
	case arrow.LIST:
		switch dt.(*arrow.ListType).Elem().ID() {
		case arrow.STRING:
			_, ok = v.([]string)
			want = "[]string"
		case arrow.BOOL:
			_, ok = v.([]bool)
			want = "[]bool"
		case arrow.INT32:
			_, ok = v.([]int32)
			want = "[]int32"
		default:
			return fmt.Errorf("%w: unsupported list element type %s", ErrValueType, dt)
		}
	default:
		return fmt.Errorf("%w: unsupported type %s", ErrValueType, dt)
	}
	if !ok {
		return mismatch(v, want)
	}
	return nil
}

func appendValue(fb array.Builder, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}

	switch bld := fb.(type) {
	case *array.StringBuilder:
		s, ok := v.(string)
		if !ok {
			return mismatch(v, "string")
		}
		bld.Append(s)
	case *array.BooleanBuilder:
		bv, ok := v.(bool)
		if !ok {
			return mismatch(v, "bool")
		}
		bld.Append(bv)
	case *array.Int32Builder:
		n, ok := v.(int32)
		if !ok {
			return mismatch(v, "int32")
		}
		bld.Append(n)
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch(v, "time.Time")
		}
		bld.Append(arrow.Timestamp(t.UnixMicro()))
	case *array.ListBuilder:
		return appendList(bld, v)
	default:
		return fmt.Errorf("%w: unsupported builder %T", ErrValueType, fb)
	}
	return nil
}

func appendList(lb *array.ListBuilder, v any) error {
	switch vb := lb.ValueBuilder().(type) {
	case *array.StringBuilder:
		items, ok := v.([]string)
		if !ok {
			return mismatch(v, "[]string")
		}
		lb.Append(true)
		vb.AppendValues(items, nil)
	case *array.BooleanBuilder:
		items, ok := v.([]bool)
		if !ok {
			return mismatch(v, "[]bool")
		}
		lb.Append(true)
		vb.AppendValues(items, nil)
	case *array.Int32Builder:
		items, ok := v.([]int32)
		if !ok {
			return mismatch(v, "[]int32")
		}
		lb.Append(true)
		vb.AppendValues(items, nil)
	default:
		return fmt.Errorf("%w: unsupported list element builder %T", ErrValueType, vb)
	}
	return nil
}

func mismatch(v any, want string) error {
	return fmt.Errorf("%w: got %T, want %s", ErrValueType, v, want)
}
