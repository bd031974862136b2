package coltype

import "fmt"

// UnsupportedTypeError reports a descriptor outside the supported column types.
type UnsupportedTypeError struct {
	Descriptor Descriptor
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type %s", e.Descriptor)
}

// Unwrap returns ErrUnsupportedType for errors.Is compatibility.
func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}

// Validate restricts d to BOOLEAN, INT, text types and arrays of those.
// Nested arrays fail because the element must itself be a scalar.
func Validate(d Descriptor) (Type, error) {
	if d.Kind == KindArray {
		if d.Elem == nil {
			return nil, &UnsupportedTypeError{Descriptor: d}
		}
		elem, ok := scalarOf(*d.Elem)
		if !ok {
			return nil, &UnsupportedTypeError{Descriptor: d}
		}
		return Array{Elem: elem}, nil
	}

	s, ok := scalarOf(d)
	if !ok {
		return nil, &UnsupportedTypeError{Descriptor: d}
	}
	return s, nil
}

func scalarOf(d Descriptor) (Scalar, bool) {
	switch d.Kind {
	case KindString, KindVarChar, KindChar:
		return ScalarString, true
	case KindBoolean:
		return ScalarBoolean, true
	case KindInt:
		return ScalarInteger, true
	default:
		return 0, false
	}
}

// ParseAndValidate parses text and validates the resulting descriptor.
func ParseAndValidate(text string) (Type, error) {
	d, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return Validate(d)
}
