package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/unijord/contentmeta/pkg/coltype"
	"github.com/unijord/contentmeta/pkg/config"
)

var (
	// ErrDuplicateColumnName is returned when a custom column reuses a column name.
	ErrDuplicateColumnName = errors.New("duplicate column name")

	// ErrEmptyColumnPath is returned when a custom column has no extraction path.
	ErrEmptyColumnPath = errors.New("custom column path cannot be empty")

	// ErrEmptyColumnName is returned when a custom column has no name.
	ErrEmptyColumnName = errors.New("column name cannot be empty")
)

// ParseCustomFields reads schema.custom_metadata_fields and resolves the path and
// type of every declared field. Either every field resolves or an error is returned.
func ParseCustomFields(values config.Values) ([]Entry, error) {
	list, err := config.String(values, config.CustomMetadataFields)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	seen := make(map[string]bool)
	for _, raw := range strings.Split(list, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if IsStructural(name) || seen[name] {
			return nil, fmt.Errorf("custom field %q: %w", name, ErrDuplicateColumnName)
		}
		seen[name] = true

		path, _, err := config.GetParameterized(values, config.FieldJPath, name)
		if err != nil {
			return nil, err
		}
		typeText, _, err := config.GetParameterized(values, config.FieldType, name)
		if err != nil {
			return nil, err
		}

		typ, err := coltype.ParseAndValidate(typeText)
		if err != nil {
			return nil, fmt.Errorf("custom field %q: %w", name, err)
		}

		entries = append(entries, Entry{
			Name:     name,
			Type:     typ,
			Nullable: true,
			Path:     path,
		})
	}
	return entries, nil
}

// Generate builds the full column schema: the structural columns followed by
// custom in order. The metadata column is included unless
// schema.include_raw_metadata is set to something other than "true".
func Generate(values config.Values, custom []Entry) (ColumnSchema, error) {
	includeRaw, err := config.String(values, config.IncludeRawMetadata)
	if err != nil {
		return ColumnSchema{}, err
	}

	entries := []Entry{
		{Name: ColumnBucket, Type: coltype.ScalarString},
		{Name: ColumnKey, Type: coltype.ScalarString},
		{Name: ColumnVersionID, Type: coltype.ScalarString, Nullable: true},
		{Name: ColumnSequencer, Type: coltype.ScalarString},
		{Name: ColumnETag, Type: coltype.ScalarString, Nullable: true},
	}
	if strings.EqualFold(includeRaw, "true") {
		entries = append(entries, Entry{Name: ColumnMetadata, Type: coltype.ScalarString, Nullable: true})
	}
	entries = append(entries, Entry{Name: ColumnLastModified, Type: coltype.ScalarTimestamp, Nullable: true})

	seen := make(map[string]bool, len(custom))
	for i, e := range custom {
		if e.Name == "" {
			return ColumnSchema{}, fmt.Errorf("custom[%d]: %w", i, ErrEmptyColumnName)
		}
		if IsStructural(e.Name) || seen[e.Name] {
			return ColumnSchema{}, fmt.Errorf("custom[%d]: %w: %q", i, ErrDuplicateColumnName, e.Name)
		}
		if e.Path == "" {
			return ColumnSchema{}, fmt.Errorf("custom[%d] %q: %w", i, e.Name, ErrEmptyColumnPath)
		}
		seen[e.Name] = true
		entries = append(entries, e)
	}

	return newColumnSchema(entries), nil
}

// FromConfig parses the custom fields and generates the schema in one step.
func FromConfig(values config.Values) (ColumnSchema, error) {
	custom, err := ParseCustomFields(values)
	if err != nil {
		return ColumnSchema{}, err
	}
	return Generate(values, custom)
}
