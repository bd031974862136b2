// Package event turns change-stream images into normalized object events.
package event

import (
	"errors"
	"fmt"
)

// ErrMissingAttribute is returned when an image lacks a required attribute.
var ErrMissingAttribute = errors.New("missing attribute")

// ErrInvalidAttribute is returned when an attribute has an unexpected shape.
var ErrInvalidAttribute = errors.New("invalid attribute")

// Image attribute names written by the metadata extraction stage.
const (
	AttrBucket          = "bucket"
	AttrKey             = "key"
	AttrVersionID       = "version_id"
	AttrSequencer       = "sequencer"
	AttrETag            = "etag"
	AttrMetadata        = "metadata"
	AttrLatestEventTime = "latest_event_time"
	AttrDeleted         = "deleted"
	AttrDeleteMarker    = "delete_marker"
)

// Normalized is the semantic projection of one change event.
// Nil pointers are absent values.
type Normalized struct {
	Bucket          string
	UserKey         string
	VersionID       *string
	Sequencer       string
	ETag            *string
	Metadata        *string
	LatestEventTime string
	IsDelete        bool
	IsDeleteMarker  bool
}

// Tombstone reports whether the event removes the object row.
func (e Normalized) Tombstone() bool {
	return e.IsDelete || e.IsDeleteMarker
}

// AttributeValue is a single attribute in stream-image JSON, e.g. {"S": "foo"}.
type AttributeValue struct {
	S    *string `json:"S,omitempty"`
	N    *string `json:"N,omitempty"`
	BOOL *bool   `json:"BOOL,omitempty"`
	NULL bool    `json:"NULL,omitempty"`
}

// StringValue builds a string attribute.
func StringValue(s string) AttributeValue {
	return AttributeValue{S: &s}
}

// BoolValue builds a boolean attribute.
func BoolValue(b bool) AttributeValue {
	return AttributeValue{BOOL: &b}
}

// NullValue builds a null attribute.
func NullValue() AttributeValue {
	return AttributeValue{NULL: true}
}

// Normalize projects an image onto a Normalized event.
func Normalize(image map[string]AttributeValue) (Normalized, error) {
	var ev Normalized
	var err error

	if ev.Bucket, err = requiredString(image, AttrBucket); err != nil {
		return Normalized{}, err
	}
	if ev.UserKey, err = requiredString(image, AttrKey); err != nil {
		return Normalized{}, err
	}
	if ev.Sequencer, err = requiredString(image, AttrSequencer); err != nil {
		return Normalized{}, err
	}
	if ev.LatestEventTime, err = requiredString(image, AttrLatestEventTime); err != nil {
		return Normalized{}, err
	}

	if ev.VersionID, err = optionalString(image, AttrVersionID); err != nil {
		return Normalized{}, err
	}
	if ev.ETag, err = optionalString(image, AttrETag); err != nil {
		return Normalized{}, err
	}
	if ev.Metadata, err = optionalString(image, AttrMetadata); err != nil {
		return Normalized{}, err
	}

	if ev.IsDelete, err = optionalBool(image, AttrDeleted); err != nil {
		return Normalized{}, err
	}
	if ev.IsDeleteMarker, err = optionalBool(image, AttrDeleteMarker); err != nil {
		return Normalized{}, err
	}
	return ev, nil
}

func requiredString(image map[string]AttributeValue, name string) (string, error) {
	s, err := optionalString(image, name)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingAttribute, name)
	}
	return *s, nil
}

func optionalString(image map[string]AttributeValue, name string) (*string, error) {
	av, ok := image[name]
	if !ok || av.NULL {
		return nil, nil
	}
	switch {
	case av.S != nil:
		return av.S, nil
	case av.N != nil:
		return av.N, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a string", ErrInvalidAttribute, name)
	}
}

func optionalBool(image map[string]AttributeValue, name string) (bool, error) {
	av, ok := image[name]
	if !ok || av.NULL {
		return false, nil
	}
	if av.BOOL == nil {
		return false, fmt.Errorf("%w: %s is not a boolean", ErrInvalidAttribute, name)
	}
	return *av.BOOL, nil
}
