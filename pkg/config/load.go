package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// applicationPropertiesSchema describes the managed-runtime property file:
//
//	[{"PropertyGroupId": "catalog", "PropertyMap": {"table": "t"}}]
const applicationPropertiesSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["PropertyGroupId", "PropertyMap"],
		"properties": {
			"PropertyGroupId": {"type": "string", "minLength": 1},
			"PropertyMap": {
				"type": "object",
				"additionalProperties": {"type": "string"}
			}
		}
	}
}`

var propertyFileSchema = mustCompileSchema(applicationPropertiesSchema)

func mustCompileSchema(src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("config: parse embedded schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("application-properties.json", doc); err != nil {
		panic(fmt.Sprintf("config: add embedded schema: %v", err))
	}
	sch, err := compiler.Compile("application-properties.json")
	if err != nil {
		panic(fmt.Sprintf("config: compile embedded schema: %v", err))
	}
	return sch
}

type propertyGroup struct {
	PropertyGroupID string            `json:"PropertyGroupId"`
	PropertyMap     map[string]string `json:"PropertyMap"`
}

// LoadApplicationProperties decodes a JSON property-group file.
// Later groups with the same id override keys of earlier ones.
func LoadApplicationProperties(r io.Reader) (Values, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read application properties: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigFile, err)
	}
	if err := propertyFileSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigFile, err)
	}

	var groups []propertyGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigFile, err)
	}

	values := make(Values, len(groups))
	for _, g := range groups {
		for k, v := range g.PropertyMap {
			values.Set(g.PropertyGroupID, k, v)
		}
	}
	return values, nil
}

// LoadTOML decodes a TOML file with one table per namespace.
//
//	[schema]
//	custom_metadata_fields = ["label"]
//
//	[schema.field.label]
//	jpath = "$.labels[0].Name"
//	type = "STRING"
//
// Nested tables are flattened into dotted keys, arrays are joined with commas.
func LoadTOML(r io.Reader) (Values, error) {
	var doc map[string]any
	if err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigFile, err)
	}

	values := make(Values, len(doc))
	for ns, raw := range doc {
		table, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: top-level key %q must be a table", ErrInvalidConfigFile, ns)
		}
		if err := flatten(values, ns, "", table); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func flatten(values Values, namespace, prefix string, table map[string]any) error {
	for k, raw := range table {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		if nested, ok := raw.(map[string]any); ok {
			if err := flatten(values, namespace, key, nested); err != nil {
				return err
			}
			continue
		}

		text, err := scalarText(raw)
		if err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidConfigFile, namespace, key, err)
		}
		values.Set(namespace, key, text)
	}
	return nil
}

func scalarText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			s, err := scalarText(item)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// LoadFile loads a .json or .toml configuration file.
func LoadFile(path string) (Values, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadApplicationProperties(f)
	case ".toml":
		return LoadTOML(f)
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrInvalidConfigFile, filepath.Ext(path))
	}
}

// Namespaces returns the namespaces present in values, sorted.
func (v Values) Namespaces() []string {
	names := make([]string, 0, len(v))
	for ns := range v {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}
