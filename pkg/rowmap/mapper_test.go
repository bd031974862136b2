package rowmap

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unijord/contentmeta/pkg/coltype"
	"github.com/unijord/contentmeta/pkg/config"
	"github.com/unijord/contentmeta/pkg/event"
	"github.com/unijord/contentmeta/pkg/schema"
)

const allMetadataTypes = `{"metadata":{"array":{"string":["foo","bar","baz"],"integer":[12,13,14],"boolean":[true,true,false]},"scalar":{"string":"foobar","integer":12,"boolean":true}}}`

func defaultValues() config.Values {
	return config.Values{
		"sdk":    {"region": "us-east-1"},
		"stream": {"arn": "arn:aws:dynamodb:us-east-1:111222333444:table/SomeTableStreamArn"},
		"schema": {"include_raw_metadata": "true"},
		"catalog": {
			"name":          "S3",
			"database":      "default",
			"table":         "s3_content_metadata",
			"warehousePath": "s3://example/warehouse",
			"impl":          "org.apache.iceberg.aws.glue.GlueCatalog",
		},
	}
}

func allTypesValues() config.Values {
	values := defaultValues()
	fields := []struct{ name, path, typ string }{
		{"scalar_string", "$.metadata.scalar.string", "STRING"},
		{"scalar_integer", "$.metadata.scalar.integer", "INTEGER"},
		{"scalar_boolean", "$.metadata.scalar.boolean", "BOOLEAN"},
		{"array_string", "$.metadata.array.string", "ARRAY<STRING>"},
		{"array_integer", "$.metadata.array.integer", "ARRAY<INTEGER>"},
		{"array_boolean", "$.metadata.array.boolean", "ARRAY<BOOLEAN>"},
	}
	names := ""
	for i, f := range fields {
		if i > 0 {
			names += ","
		}
		names += f.name
		values.Set("schema", fmt.Sprintf("field.%s.jpath", f.name), f.path)
		values.Set("schema", fmt.Sprintf("field.%s.type", f.name), f.typ)
	}
	values.Set("schema", "custom_metadata_fields", names)
	return values
}

func strPtr(s string) *string { return &s }

func createEvent(metadata string) event.Normalized {
	return event.Normalized{
		Bucket:          "foo",
		UserKey:         "20240724_123107.jpg",
		Sequencer:       "00673743A054CE73CC",
		ETag:            strPtr("86cfe4562a912649058b0fb7824e1d11"),
		Metadata:        strPtr(metadata),
		LatestEventTime: "2024-11-15T12:50:40+00:00",
	}
}

func deleteEvent() event.Normalized {
	return event.Normalized{
		Bucket:          "foo",
		UserKey:         "20240724_123107.jpg",
		Sequencer:       "00673B17D652EE0D14",
		LatestEventTime: "2024-11-15T12:50:40+00:00",
		IsDelete:        true,
	}
}

func newMapper(t *testing.T, values config.Values) *Mapper {
	t.Helper()
	s, err := schema.FromConfig(values)
	require.NoError(t, err)
	m, err := NewMapper(s)
	require.NoError(t, err)
	return m
}

func TestMap_DefaultSchema(t *testing.T) {
	m := newMapper(t, defaultValues())

	row, err := m.Map(createEvent(`{"labels": [{"Name": "Pond"}]}`))
	require.NoError(t, err)

	assert.Equal(t, KindInsert, row.Kind)
	require.Len(t, row.Values, 7)
	assert.Equal(t, "foo", row.Values[0])
	assert.Equal(t, "20240724_123107.jpg", row.Values[1])
	assert.Nil(t, row.Values[2])
	assert.Equal(t, "00673743A054CE73CC", row.Values[3])
	assert.Equal(t, "86cfe4562a912649058b0fb7824e1d11", row.Values[4])
	assert.Equal(t, `{"labels": [{"Name": "Pond"}]}`, row.Values[5])
	assert.Equal(t, time.Date(2024, 11, 15, 12, 50, 40, 0, time.UTC), row.Values[6])
}

func TestMap_AllMetadataTypes(t *testing.T) {
	m := newMapper(t, allTypesValues())

	row, err := m.Map(createEvent(allMetadataTypes))
	require.NoError(t, err)
	require.Len(t, row.Values, 13)

	assert.Equal(t, "foobar", row.Values[7])
	assert.Equal(t, int32(12), row.Values[8])
	assert.Equal(t, true, row.Values[9])
	assert.Equal(t, []string{"foo", "bar", "baz"}, row.Values[10])
	assert.Equal(t, []int32{12, 13, 14}, row.Values[11])
	assert.Equal(t, []bool{true, true, false}, row.Values[12])
}

func TestMap_DeleteEvent(t *testing.T) {
	m := newMapper(t, allTypesValues())

	row, err := m.Map(deleteEvent())
	require.NoError(t, err)

	assert.Equal(t, KindDelete, row.Kind)
	require.Len(t, row.Values, 13)
	assert.Equal(t, "foo", row.Values[0])
	assert.Equal(t, "20240724_123107.jpg", row.Values[1])
	for i := 5; i < len(row.Values); i++ {
		if i == 6 {
			continue
		}
		assert.Nil(t, row.Values[i], "column %d", i)
	}
}

func TestMap_DeleteEventIgnoresMetadata(t *testing.T) {
	m := newMapper(t, allTypesValues())

	ev := createEvent(allMetadataTypes)
	ev.IsDeleteMarker = true
	row, err := m.Map(ev)
	require.NoError(t, err)

	assert.Equal(t, KindDelete, row.Kind)
	assert.Nil(t, row.Values[5])
	assert.Nil(t, row.Values[7])
	assert.Nil(t, row.Values[10])
}

func TestMap_WithoutRawMetadata(t *testing.T) {
	values := allTypesValues()
	values.Set("schema", "include_raw_metadata", "false")
	m := newMapper(t, values)

	row, err := m.Map(createEvent(allMetadataTypes))
	require.NoError(t, err)
	require.Len(t, row.Values, 12)
	assert.IsType(t, time.Time{}, row.Values[5])
	assert.Equal(t, "foobar", row.Values[6])
}

func TestMap_NullDocument(t *testing.T) {
	m := newMapper(t, allTypesValues())

	for name, metadata := range map[string]*string{
		"absent":    nil,
		"empty":     strPtr(""),
		"malformed": strPtr("{not json"),
		"null":      strPtr("null"),
	} {
		t.Run(name, func(t *testing.T) {
			ev := createEvent("")
			ev.Metadata = metadata
			row, err := m.Map(ev)
			require.NoError(t, err)
			assert.Equal(t, KindInsert, row.Kind)
			for i := 7; i < 13; i++ {
				assert.Nil(t, row.Values[i], "column %d", i)
			}
		})
	}
}

func TestMap_ShapeMismatchIsNull(t *testing.T) {
	doc := `{"metadata":{"array":{"string":["foo",1],"integer":[1.5],"boolean":"true"},"scalar":{"string":7,"integer":3000000000,"boolean":"yes"}}}`
	m := newMapper(t, allTypesValues())

	row, err := m.Map(createEvent(doc))
	require.NoError(t, err)
	for i := 7; i < 13; i++ {
		assert.Nil(t, row.Values[i], "column %d", i)
	}
}

func TestMap_EmptyArray(t *testing.T) {
	m := newMapper(t, allTypesValues())

	row, err := m.Map(createEvent(`{"metadata":{"array":{"string":[]}}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{}, row.Values[10])
	assert.Nil(t, row.Values[11])
}

func TestMap_WildcardPath(t *testing.T) {
	values := defaultValues()
	values.Set("schema", "custom_metadata_fields", "label_names, first_label, missing_names")
	values.Set("schema", "field.label_names.jpath", "$.labels[*].Name")
	values.Set("schema", "field.label_names.type", "ARRAY<STRING>")
	values.Set("schema", "field.first_label.jpath", "$.labels[0].Name")
	values.Set("schema", "field.first_label.type", "STRING")
	values.Set("schema", "field.missing_names.jpath", "$.nothing[*].Name")
	values.Set("schema", "field.missing_names.type", "ARRAY<STRING>")
	m := newMapper(t, values)

	row, err := m.Map(createEvent(`{"labels": [{"Name": "Pond"}, {"Name": "Bird"}, {"Name": "Waterfowl"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Pond", "Bird", "Waterfowl"}, row.Values[7])
	assert.Equal(t, "Pond", row.Values[8])
	assert.Equal(t, []string{}, row.Values[9])
}

func TestMap_ObjectOrder(t *testing.T) {
	values := defaultValues()
	values.Set("schema", "custom_metadata_fields", "tags, names, sizes")
	values.Set("schema", "field.tags.jpath", "$.tags.*")
	values.Set("schema", "field.tags.type", "ARRAY<STRING>")
	values.Set("schema", "field.names.jpath", "$..s")
	values.Set("schema", "field.names.type", "ARRAY<STRING>")
	values.Set("schema", "field.sizes.jpath", "$.sizes.*")
	values.Set("schema", "field.sizes.type", "ARRAY<INTEGER>")
	m := newMapper(t, values)

	ev := createEvent(`{"tags":{"a":"first","b":"second","c":"third","d":"fourth"},` +
		`"x":{"s":"one"},"y":{"s":"two"},"sizes":{"w":640,"h":480}}`)
	for i := 0; i < 200; i++ {
		row, err := m.Map(ev)
		require.NoError(t, err)
		if !assert.Equal(t, []string{"first", "second", "third", "fourth"}, row.Values[7], "call %d", i) {
			return
		}
		if !assert.Equal(t, []string{"one", "two"}, row.Values[8], "call %d", i) {
			return
		}
		if !assert.Equal(t, []int32{640, 480}, row.Values[9], "call %d", i) {
			return
		}
	}
}

func TestParseDocument(t *testing.T) {
	doc := parseDocument(strPtr(`{"b":1,"a":{"z":[1,2.5,"x",null,true]},"b":2}`))
	obj, ok := doc.(*object)
	require.True(t, ok, "got %T", doc)
	assert.Equal(t, []string{"b", "a"}, obj.Keys())

	v, ok := obj.ValueForKey("b")
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)

	inner, _ := obj.ValueForKey("a")
	z, _ := inner.(*object).ValueForKey("z")
	assert.Equal(t, []any{int64(1), 2.5, "x", nil, true}, z)

	assert.Nil(t, parseDocument(nil))
	assert.Nil(t, parseDocument(strPtr("  ")))
	assert.Nil(t, parseDocument(strPtr(`{"a":`)))
	assert.Nil(t, parseDocument(strPtr(`{} {}`)))
}

func TestMap_IntegralFloat(t *testing.T) {
	values := defaultValues()
	values.Set("schema", "custom_metadata_fields", "width")
	values.Set("schema", "field.width.jpath", "$.exif.ImageWidth")
	values.Set("schema", "field.width.type", "INT")
	m := newMapper(t, values)

	row, err := m.Map(createEvent(`{"exif": {"ImageWidth": 4000.0}}`))
	require.NoError(t, err)
	assert.Equal(t, int32(4000), row.Values[7])
}

func TestMap_TimestampParseError(t *testing.T) {
	m := newMapper(t, defaultValues())

	ev := createEvent("{}")
	ev.LatestEventTime = "15/11/2024 12:50"
	_, err := m.Map(ev)
	if !errors.Is(err, ErrTimestampParse) {
		t.Fatalf("expected ErrTimestampParse, got %v", err)
	}
	var tpe *TimestampParseError
	require.True(t, errors.As(err, &tpe))
	assert.Equal(t, "15/11/2024 12:50", tpe.Value)
}

func TestParseEventTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-11-15T12:50:40+00:00", time.Date(2024, 11, 15, 12, 50, 40, 0, time.UTC)},
		{"2024-11-15T12:50:40Z", time.Date(2024, 11, 15, 12, 50, 40, 0, time.UTC)},
		{"2024-11-15T12:50:40+01:00", time.Date(2024, 11, 15, 12, 50, 40, 0, time.UTC)},
		{"2024-11-15T12:50:40.123456", time.Date(2024, 11, 15, 12, 50, 40, 123456000, time.UTC)},
		{"2024-11-15T12:50", time.Date(2024, 11, 15, 12, 50, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEventTime(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	_, err := ParseEventTime("")
	assert.True(t, errors.Is(err, ErrTimestampParse))
}

func TestNewMapper_InvalidPath(t *testing.T) {
	values := defaultValues()
	values.Set("schema", "custom_metadata_fields", "broken")
	values.Set("schema", "field.broken.jpath", "$.labels[")
	values.Set("schema", "field.broken.type", "STRING")

	s, err := schema.FromConfig(values)
	require.NoError(t, err)

	_, err = NewMapper(s)
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	var pe *PathError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "broken", pe.Column)
	assert.Equal(t, "$.labels[", pe.Path)
}

func TestNewMapper_UnsupportedColumn(t *testing.T) {
	s, err := schema.Generate(defaultValues(), []schema.Entry{
		{Name: "seen_at", Type: coltype.ScalarTimestamp, Nullable: true, Path: "$.seen"},
	})
	require.NoError(t, err)

	_, err = NewMapper(s)
	assert.True(t, errors.Is(err, ErrUnsupportedColumn))
}

func TestMap_FreshRows(t *testing.T) {
	m := newMapper(t, allTypesValues())

	a, err := m.Map(createEvent(allMetadataTypes))
	require.NoError(t, err)
	b, err := m.Map(createEvent(allMetadataTypes))
	require.NoError(t, err)

	a.Values[0] = "changed"
	assert.Equal(t, "foo", b.Values[0])
	assert.Equal(t, m.Schema().Len(), len(b.Values))
}

func TestMap_Concurrent(t *testing.T) {
	m := newMapper(t, allTypesValues())

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				row, err := m.Map(createEvent(allMetadataTypes))
				if err != nil {
					errs <- err
					return
				}
				if row.Values[7] != "foobar" {
					errs <- fmt.Errorf("unexpected value %v", row.Values[7])
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "INSERT", KindInsert.String())
	assert.Equal(t, "DELETE", KindDelete.String())
}
