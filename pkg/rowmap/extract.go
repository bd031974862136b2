package rowmap

import (
	"math"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/unijord/contentmeta/pkg/coltype"
)

// parseDocument parses metadata leniently. Absent, blank or malformed
// documents yield nil. Objects keep their key order.
func parseDocument(metadata *string) any {
	if metadata == nil || strings.TrimSpace(*metadata) == "" {
		return nil
	}
	var b documentBuilder
	if err := oj.TokenizeString(*metadata, &b); err != nil || b.roots != 1 {
		return nil
	}
	return b.root
}

// jsonPath is a compiled extraction expression.
type jsonPath struct {
	expr jp.Expr

	// definite paths select at most one node and evaluate to that node.
	// Other paths evaluate to the list of matches.
	definite bool
}

func compilePath(text string) (jsonPath, error) {
	expr, err := jp.ParseString(text)
	if err != nil {
		return jsonPath{}, err
	}
	return jsonPath{expr: expr, definite: isDefinite(expr)}, nil
}

func isDefinite(expr jp.Expr) bool {
	for _, frag := range expr {
		switch frag.(type) {
		case jp.Root, jp.At, jp.Child, jp.Nth, jp.Bracket:
		default:
			return false
		}
	}
	return true
}

// eval returns nil when a definite path matches nothing.
func (p jsonPath) eval(doc any) any {
	matches := p.expr.Get(doc)
	if p.definite {
		if len(matches) == 0 {
			return nil
		}
		return matches[0]
	}
	if matches == nil {
		return []any{}
	}
	return matches
}

// coerce converts an extracted value to the Go representation of t.
// Values of the wrong shape become nil.
func coerce(t coltype.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch ct := t.(type) {
	case coltype.Scalar:
		switch ct {
		case coltype.ScalarString:
			if s, ok := asString(v); ok {
				return s, nil
			}
			return nil, nil
		case coltype.ScalarBoolean:
			if b, ok := asBool(v); ok {
				return b, nil
			}
			return nil, nil
		case coltype.ScalarInteger:
			if n, ok := asInt32(v); ok {
				return n, nil
			}
			return nil, nil
		}
	case coltype.Array:
		list, ok := v.([]any)
		if !ok {
			return nil, nil
		}
		switch ct.Elem {
		case coltype.ScalarString:
			return coerceList(list, asString), nil
		case coltype.ScalarBoolean:
			return coerceList(list, asBool), nil
		case coltype.ScalarInteger:
			return coerceList(list, asInt32), nil
		}
	}
	return nil, ErrUnsupportedColumn
}

// coerceList returns nil unless every element converts.
func coerceList[T any](list []any, conv func(any) (T, bool)) any {
	out := make([]T, len(list))
	for i, item := range list {
		v, ok := conv(item)
		if !ok {
			return nil
		}
		out[i] = v
	}
	return out
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt32(v any) (int32, bool) {
	switch n := v.(type) {
	case int64:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int32(n), true
	case int:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int32(n), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int32(n), true
	default:
		return 0, false
	}
}

// supported reports whether coerce can populate a column of type t.
func supported(t coltype.Type) bool {
	switch ct := t.(type) {
	case coltype.Scalar:
		return isExtractable(ct)
	case coltype.Array:
		return isExtractable(ct.Elem)
	default:
		return false
	}
}

func isExtractable(s coltype.Scalar) bool {
	return s == coltype.ScalarString || s == coltype.ScalarBoolean || s == coltype.ScalarInteger
}
