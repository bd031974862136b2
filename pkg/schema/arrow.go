package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/unijord/contentmeta/pkg/coltype"
)

// ErrUnknownType is returned when a column type has no Arrow mapping.
var ErrUnknownType = errors.New("unknown column type")

// Metadata keys written on the Arrow schema.
const (
	FieldIDKey       = "PARQUET:field_id"
	IcebergSchemaKey = "iceberg.schema"
)

// Column type -> Arrow type
//
//	| Column type  | Arrow type            | Iceberg type    |
//	|--------------|-----------------------|-----------------|
//	| STRING       | Utf8                  | string          |
//	| BOOLEAN      | Boolean               | boolean         |
//	| INT          | Int32                 | int             |
//	| TIMESTAMP(6) | Timestamp(us, no tz)  | timestamp       |
//	| ARRAY<T>     | List<T>               | list (nested)   |

// ArrowType converts a column type to an Arrow data type.
func ArrowType(t coltype.Type) (arrow.DataType, error) {
	switch v := t.(type) {
	case coltype.Scalar:
		return scalarArrowType(v)
	case coltype.Array:
		elem, err := scalarArrowType(v.Elem)
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(elem), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownType, t)
	}
}

func scalarArrowType(s coltype.Scalar) (arrow.DataType, error) {
	switch s {
	case coltype.ScalarString:
		return arrow.BinaryTypes.String, nil
	case coltype.ScalarBoolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case coltype.ScalarInteger:
		return arrow.PrimitiveTypes.Int32, nil
	case coltype.ScalarTimestamp:
		// local datetime
		return &arrow.TimestampType{Unit: arrow.Microsecond}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownType, s)
	}
}

// ArrowSchema creates an Arrow schema with Iceberg-compatible metadata:
//   - Field-level metadata: PARQUET:field_id, the 1-based column position
//   - Schema-level metadata: iceberg.schema JSON with the primary key as identifier fields
func ArrowSchema(s ColumnSchema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, s.Len())
	for i, e := range s.entries {
		dt, err := ArrowType(e.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", e.Name, err)
		}
		fields[i] = arrow.Field{
			Name:     e.Name,
			Type:     dt,
			Nullable: e.Nullable,
			Metadata: arrow.NewMetadata([]string{FieldIDKey}, []string{strconv.Itoa(i + 1)}),
		}
	}

	meta, err := icebergSchemaMetadata(s, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build iceberg schema metadata: %w", err)
	}
	return arrow.NewSchema(fields, &meta), nil
}

// IcebergSchema represents the Iceberg schema JSON format.
// Reference: https://iceberg.apache.org/spec/#schemas
type IcebergSchema struct {
	Type               string         `json:"type"`
	SchemaID           int            `json:"schema-id"`
	IdentifierFieldIDs []int          `json:"identifier-field-ids,omitempty"`
	Fields             []IcebergField `json:"fields"`
}

// IcebergField represents a field in the Iceberg schema. Type is the
// primitive type name or an IcebergListType.
type IcebergField struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Type     any    `json:"type"`
}

// IcebergListType is the nested Iceberg list type.
// Reference: https://iceberg.apache.org/spec/#nested-types
type IcebergListType struct {
	Type            string `json:"type"`
	ElementID       int    `json:"element-id"`
	Element         any    `json:"element"`
	ElementRequired bool   `json:"element-required"`
}

func icebergSchemaMetadata(s ColumnSchema, fields []arrow.Field) (arrow.Metadata, error) {
	// element ids follow the top-level field ids
	nextID := len(fields)
	allocID := func() int {
		nextID++
		return nextID
	}

	icebergFields := make([]IcebergField, len(fields))
	for i, f := range fields {
		icebergFields[i] = IcebergField{
			ID:       i + 1,
			Name:     f.Name,
			Required: !f.Nullable,
			Type:     arrowTypeToIcebergType(f.Type, allocID),
		}
	}

	ids := make([]int, 0, len(PrimaryKey))
	for _, k := range PrimaryKey {
		if i := s.Index(k); i >= 0 {
			ids = append(ids, i+1)
		}
	}

	doc := IcebergSchema{
		Type:               "struct",
		SchemaID:           0,
		IdentifierFieldIDs: ids,
		Fields:             icebergFields,
	}
	schemaJSON, err := json.Marshal(doc)
	if err != nil {
		return arrow.Metadata{}, fmt.Errorf("marshal iceberg schema: %w", err)
	}
	return arrow.NewMetadata([]string{IcebergSchemaKey}, []string{string(schemaJSON)}), nil
}

// arrowTypeToIcebergType converts an Arrow data type to an Iceberg type:
// a primitive type name, or an IcebergListType whose element id comes
// from allocID.
// Reference: https://iceberg.apache.org/spec/#primitive-types
func arrowTypeToIcebergType(dt arrow.DataType, allocID func() int) any {
	switch dt.ID() {
	case arrow.BOOL:
		return "boolean"
	case arrow.INT32:
		return "int"
	case arrow.TIMESTAMP:
		if dt.(*arrow.TimestampType).TimeZone != "" {
			return "timestamptz"
		}
		return "timestamp"
	case arrow.LIST:
		lt := dt.(*arrow.ListType)
		return IcebergListType{
			Type:            "list",
			ElementID:       allocID(),
			Element:         arrowTypeToIcebergType(lt.Elem(), allocID),
			ElementRequired: !lt.ElemField().Nullable,
		}
	default:
		return "string"
	}
}
