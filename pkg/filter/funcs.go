package filter

import (
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// ObjectFuncs returns CEL environment options for object key helpers.
//
// Functions:
//   - extension(string) -> string: lowercase extension without the dot, "" if none
//   - basename(string) -> string: last path segment
//   - dirname(string) -> string: key prefix up to the last "/", "" if none
//   - lower(string) -> string: Convert to lowercase
//   - sampled(string, int) -> bool: stable percentage sample by xxHash64
//   - isNull(dyn) -> bool: Check if value is null
//   - ifNull(dyn, dyn) -> dyn: Return first arg if non-null, else second
func ObjectFuncs() cel.EnvOption {
	return cel.Lib(&objectLib{})
}

type objectLib struct{}

func (l *objectLib) LibraryName() string {
	return "contentmeta.object"
}

func (l *objectLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("extension",
			cel.Overload("extension_string",
				[]*cel.Type{cel.StringType},
				cel.StringType,
				cel.UnaryBinding(func(s ref.Val) ref.Val {
					return types.String(Extension(string(s.(types.String))))
				}),
			),
		),
		cel.Function("basename",
			cel.Overload("basename_string",
				[]*cel.Type{cel.StringType},
				cel.StringType,
				cel.UnaryBinding(func(s ref.Val) ref.Val {
					key := string(s.(types.String))
					if i := strings.LastIndexByte(key, '/'); i >= 0 {
						key = key[i+1:]
					}
					return types.String(key)
				}),
			),
		),
		cel.Function("dirname",
			cel.Overload("dirname_string",
				[]*cel.Type{cel.StringType},
				cel.StringType,
				cel.UnaryBinding(func(s ref.Val) ref.Val {
					key := string(s.(types.String))
					i := strings.LastIndexByte(key, '/')
					if i < 0 {
						return types.String("")
					}
					return types.String(key[:i])
				}),
			),
		),
		cel.Function("lower",
			cel.Overload("lower_string",
				[]*cel.Type{cel.StringType},
				cel.StringType,
				cel.UnaryBinding(func(s ref.Val) ref.Val {
					return types.String(strings.ToLower(string(s.(types.String))))
				}),
			),
		),
		cel.Function("sampled",
			cel.Overload("sampled_string_int",
				[]*cel.Type{cel.StringType, cel.IntType},
				cel.BoolType,
				cel.BinaryBinding(func(s, pct ref.Val) ref.Val {
					return types.Bool(Sampled(string(s.(types.String)), int64(pct.(types.Int))))
				}),
			),
		),
		cel.Function("isNull",
			cel.Overload("isNull_dyn",
				[]*cel.Type{cel.DynType},
				cel.BoolType,
				cel.UnaryBinding(func(value ref.Val) ref.Val {
					return types.Bool(value.Type() == types.NullType)
				}),
			),
		),
		cel.Function("ifNull",
			cel.Overload("ifNull_dyn_dyn",
				[]*cel.Type{cel.DynType, cel.DynType},
				cel.DynType,
				cel.BinaryBinding(func(value, defaultVal ref.Val) ref.Val {
					if value.Type() != types.NullType {
						return value
					}
					return defaultVal
				}),
			),
		),
	}
}

func (l *objectLib) ProgramOptions() []cel.ProgramOption {
	return nil
}

// Extension returns the lowercase extension of the last key segment.
func Extension(key string) string {
	ext := path.Ext(key)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// Sampled reports whether key falls in the first pct percent of the hash space.
func Sampled(key string, pct int64) bool {
	if pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	return int64(xxhash.Sum64String(key)%100) < pct
}
