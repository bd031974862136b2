// Package filter selects events with a CEL boolean expression, e.g.
//
//	!isDelete && extension(key) in ["jpg", "png"] && sampled(key, 10)
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/unijord/contentmeta/pkg/event"
)

var (
	// ErrCompile is returned when a filter expression does not compile.
	ErrCompile = errors.New("filter compile failed")

	// ErrEval is returned when a filter expression fails at evaluation time.
	ErrEval = errors.New("filter evaluation failed")
)

// Variable names bound in filter expressions.
const (
	VarBucket         = "bucket"
	VarKey            = "key"
	VarVersionID      = "versionId"
	VarSequencer      = "sequencer"
	VarETag           = "etag"
	VarIsDelete       = "isDelete"
	VarIsDeleteMarker = "isDeleteMarker"
)

// Filter is a compiled event filter. A nil *Filter matches every event.
// It is safe for concurrent use.
type Filter struct {
	source  string
	program cel.Program
}

// NewEnv returns the CEL environment filter expressions compile against.
// versionId and etag are null when absent.
func NewEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(VarBucket, cel.StringType),
		cel.Variable(VarKey, cel.StringType),
		cel.Variable(VarVersionID, cel.DynType),
		cel.Variable(VarSequencer, cel.StringType),
		cel.Variable(VarETag, cel.DynType),
		cel.Variable(VarIsDelete, cel.BoolType),
		cel.Variable(VarIsDeleteMarker, cel.BoolType),
		ObjectFuncs(),
	)
}

// Compile compiles expr. A blank expression yields a nil filter.
func Compile(expr string) (*Filter, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	env, err := NewEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, issues.Err())
	}
	if !cel.BoolType.IsAssignableType(ast.OutputType()) {
		return nil, fmt.Errorf("%w: type mismatch: expected %s, got %s", ErrCompile, cel.BoolType, ast.OutputType())
	}

	prog, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	return &Filter{source: expr, program: prog}, nil
}

// Source returns the expression text.
func (f *Filter) Source() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Match evaluates the filter against ev.
func (f *Filter) Match(ev event.Normalized) (bool, error) {
	if f == nil {
		return true, nil
	}

	out, _, err := f.program.Eval(&eventActivation{ev: ev})
	if err != nil {
		return false, fmt.Errorf("%w: %v (expr: %s)", ErrEval, err, f.source)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: filter returned %T, expected bool", ErrEval, out.Value())
	}
	return val, nil
}
