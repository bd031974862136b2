// Package coltype parses declared column type strings and restricts them to the
// column types the record mapper can populate.
package coltype

// Type is a validated column type. It is either a Scalar or an Array of scalars.
type Type interface {
	// String renders the canonical SQL text, e.g. STRING or ARRAY<INT>.
	String() string
	isType()
}

// Scalar is a non-container column type.
type Scalar int

const (
	ScalarString Scalar = iota + 1
	ScalarBoolean
	ScalarInteger

	// ScalarTimestamp is only used by the structural lastModified column.
	// Validate never returns it for a declared type.
	ScalarTimestamp
)

func (s Scalar) String() string {
	switch s {
	case ScalarString:
		return "STRING"
	case ScalarBoolean:
		return "BOOLEAN"
	case ScalarInteger:
		return "INT"
	case ScalarTimestamp:
		return "TIMESTAMP(6)"
	default:
		return "UNKNOWN"
	}
}

func (Scalar) isType() {}

// Array is a list column whose elements all have type Elem.
type Array struct {
	Elem Scalar
}

func (a Array) String() string {
	return "ARRAY<" + a.Elem.String() + ">"
}

func (Array) isType() {}
