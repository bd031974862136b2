package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingParameter is returned when a required property is absent.
	ErrMissingParameter = errors.New("missing configuration parameter")

	// ErrInvalidConfigFile is returned when a configuration file cannot be decoded.
	ErrInvalidConfigFile = errors.New("invalid configuration file")
)

// Values holds raw configuration values grouped by namespace.
// values["catalog"]["table"] is the value of catalog.table.
type Values map[string]map[string]string

// Set stores a value, creating the namespace group if needed.
func (v Values) Set(namespace, key, value string) {
	group, ok := v[namespace]
	if !ok {
		group = make(map[string]string)
		v[namespace] = group
	}
	group[key] = value
}

// Clone returns a deep copy of the values.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for ns, group := range v {
		g := make(map[string]string, len(group))
		for k, val := range group {
			g[k] = val
		}
		out[ns] = g
	}
	return out
}

// Property describes a single configuration value.
type Property struct {
	Namespace string

	// Key may contain one %s placeholder, see GetParameterized.
	Key string

	Default    string
	HasDefault bool
	Required   bool
}

// Name returns namespace.key.
func (p Property) Name() string {
	return p.Namespace + "." + p.Key
}

func required(namespace, key string) Property {
	return Property{Namespace: namespace, Key: key, Required: true}
}

func optional(namespace, key string) Property {
	return Property{Namespace: namespace, Key: key}
}

func withDefault(namespace, key, def string) Property {
	return Property{Namespace: namespace, Key: key, Default: def, HasDefault: true}
}

// Known properties.
var (
	AWSRegion   = required("sdk", "region")
	AWSEndpoint = optional("sdk", "endpoint")
	StreamARN   = required("stream", "arn")

	CatalogName   = withDefault("catalog", "name", "S3")
	DatabaseName  = withDefault("catalog", "database", "default")
	TableName     = withDefault("catalog", "table", "s3_content_metadata")
	CatalogImpl   = required("catalog", "impl")
	IOImpl        = withDefault("catalog", "io_impl", "org.apache.iceberg.aws.s3.S3FileIO")
	WarehousePath = required("catalog", "warehousePath")

	IncludeRawMetadata   = withDefault("schema", "include_raw_metadata", "true")
	CustomMetadataFields = optional("schema", "custom_metadata_fields")
	FieldJPath           = required("schema", "field.%s.jpath")
	FieldType            = required("schema", "field.%s.type")
	EventFilter          = optional("schema", "event_filter")
)

// Properties lists every known property in declaration order.
var Properties = []Property{
	AWSRegion,
	AWSEndpoint,
	StreamARN,
	CatalogName,
	DatabaseName,
	TableName,
	CatalogImpl,
	IOImpl,
	WarehousePath,
	IncludeRawMetadata,
	CustomMetadataFields,
	FieldJPath,
	FieldType,
	EventFilter,
}

// MissingParameterError reports a required property that was not supplied.
type MissingParameterError struct {
	Namespace string
	Key       string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing configuration parameter %s.%s", e.Namespace, e.Key)
}

// Unwrap returns ErrMissingParameter for errors.Is compatibility.
func (e *MissingParameterError) Unwrap() error {
	return ErrMissingParameter
}

// Get resolves a property from values.
// The returned bool reports whether a value or a default was found.
// Only required properties can fail.
func Get(values Values, prop Property) (string, bool, error) {
	return resolve(values, prop, prop.Key)
}

// GetParameterized substitutes param into the property key before resolving it.
// It is used for per-field sub properties such as schema.field.<name>.jpath.
func GetParameterized(values Values, prop Property, param string) (string, bool, error) {
	key := prop.Key
	if strings.Contains(key, "%s") {
		key = fmt.Sprintf(key, param)
	}
	return resolve(values, prop, key)
}

// String resolves a property and drops the presence flag.
func String(values Values, prop Property) (string, error) {
	v, _, err := Get(values, prop)
	return v, err
}

func resolve(values Values, prop Property, key string) (string, bool, error) {
	if group, ok := values[prop.Namespace]; ok {
		if v, ok := group[key]; ok {
			return v, true, nil
		}
	}

	if prop.HasDefault {
		return prop.Default, true, nil
	}

	if prop.Required {
		return "", false, &MissingParameterError{Namespace: prop.Namespace, Key: key}
	}
	return "", false, nil
}

// RequireAll resolves every given property and returns the first missing one.
func RequireAll(values Values, props ...Property) error {
	for _, p := range props {
		if _, _, err := Get(values, p); err != nil {
			return err
		}
	}
	return nil
}
