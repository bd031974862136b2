package filter

import (
	"github.com/google/cel-go/interpreter"
	"github.com/unijord/contentmeta/pkg/event"
)

// eventActivation resolves filter variables straight from the event.
type eventActivation struct {
	ev event.Normalized
}

func (a *eventActivation) ResolveName(name string) (any, bool) {
	switch name {
	case VarBucket:
		return a.ev.Bucket, true
	case VarKey:
		return a.ev.UserKey, true
	case VarVersionID:
		return nullable(a.ev.VersionID), true
	case VarSequencer:
		return a.ev.Sequencer, true
	case VarETag:
		return nullable(a.ev.ETag), true
	case VarIsDelete:
		return a.ev.IsDelete, true
	case VarIsDeleteMarker:
		return a.ev.IsDeleteMarker, true
	default:
		return nil, false
	}
}

func (a *eventActivation) Parent() interpreter.Activation {
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

var _ interpreter.Activation = (*eventActivation)(nil)
