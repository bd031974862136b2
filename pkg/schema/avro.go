package schema

import (
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/unijord/contentmeta/pkg/coltype"
)

// AvroSchema builds an Avro record schema named name in namespace.
// Nullable columns become ["null", T] unions and timestamps are
// long values with the timestamp-micros logical type.
func AvroSchema(s ColumnSchema, name, namespace string) (*avro.RecordSchema, error) {
	fields := make([]*avro.Field, 0, s.Len())
	for _, e := range s.entries {
		typ, err := avroType(e.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", e.Name, err)
		}
		if e.Nullable {
			typ, err = avro.NewUnionSchema([]avro.Schema{avro.NewNullSchema(), typ})
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", e.Name, err)
			}
		}

		field, err := avro.NewField(e.Name, typ)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", e.Name, err)
		}
		fields = append(fields, field)
	}

	rec, err := avro.NewRecordSchema(name, namespace, fields)
	if err != nil {
		return nil, fmt.Errorf("avro record %q: %w", name, err)
	}
	return rec, nil
}

func avroType(t coltype.Type) (avro.Schema, error) {
	switch v := t.(type) {
	case coltype.Scalar:
		return avroScalar(v)
	case coltype.Array:
		items, err := avroScalar(v.Elem)
		if err != nil {
			return nil, err
		}
		return avro.NewArraySchema(items), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownType, t)
	}
}

func avroScalar(s coltype.Scalar) (avro.Schema, error) {
	switch s {
	case coltype.ScalarString:
		return avro.NewPrimitiveSchema(avro.String, nil), nil
	case coltype.ScalarBoolean:
		return avro.NewPrimitiveSchema(avro.Boolean, nil), nil
	case coltype.ScalarInteger:
		return avro.NewPrimitiveSchema(avro.Int, nil), nil
	case coltype.ScalarTimestamp:
		return avro.NewPrimitiveSchema(avro.Long, avro.NewPrimitiveLogicalSchema(avro.TimestampMicros)), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownType, s)
	}
}
