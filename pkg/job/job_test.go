package job

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unijord/contentmeta/pkg/catalog"
	"github.com/unijord/contentmeta/pkg/config"
	"github.com/unijord/contentmeta/pkg/event"
	"github.com/unijord/contentmeta/pkg/filter"
	"github.com/unijord/contentmeta/pkg/rowmap"
	"github.com/unijord/contentmeta/pkg/schema"
	"github.com/unijord/contentmeta/pkg/sink"
)

func defaultValues() config.Values {
	return config.Values{
		"sdk":    {"region": "us-east-1"},
		"stream": {"arn": "arn:aws:dynamodb:us-east-1:111222333444:table/SomeTableStreamArn"},
		"schema": {
			"include_raw_metadata":   "true",
			"custom_metadata_fields": "label",
			"field.label.jpath":      "$.labels[0].Name",
			"field.label.type":       "STRING",
		},
		"catalog": {
			"name":          "S3",
			"database":      "default",
			"table":         "s3_content_metadata",
			"warehousePath": "s3://example/warehouse",
			"impl":          "org.apache.iceberg.aws.glue.GlueCatalog",
		},
	}
}

func insertRecord(key, metadata string) event.ChangeRecord {
	return event.ChangeRecord{
		EventName: event.OpModify,
		Change: event.StreamRecord{NewImage: map[string]event.AttributeValue{
			event.AttrBucket:          event.StringValue("foo"),
			event.AttrKey:             event.StringValue(key),
			event.AttrSequencer:       event.StringValue("00673743A054CE73CC"),
			event.AttrETag:            event.StringValue("86cfe4562a912649058b0fb7824e1d11"),
			event.AttrMetadata:        event.StringValue(metadata),
			event.AttrLatestEventTime: event.StringValue("2024-11-15T12:50:40+00:00"),
			event.AttrVersionID:       event.NullValue(),
		}},
	}
}

func deleteRecord(key string) event.ChangeRecord {
	return event.ChangeRecord{
		EventName: event.OpModify,
		Change: event.StreamRecord{NewImage: map[string]event.AttributeValue{
			event.AttrBucket:          event.StringValue("foo"),
			event.AttrKey:             event.StringValue(key),
			event.AttrSequencer:       event.StringValue("00673B17D652EE0D14"),
			event.AttrLatestEventTime: event.StringValue("2024-11-15T12:51:00+00:00"),
			event.AttrDeleted:         event.BoolValue(true),
		}},
	}
}

func removeRecord() event.ChangeRecord {
	return event.ChangeRecord{EventID: "r1", EventName: event.OpRemove}
}

type fakeCatalog struct {
	stmts []string
	err   error
}

func (c *fakeCatalog) ExecuteSQL(_ context.Context, stmt string) error {
	c.stmts = append(c.stmts, stmt)
	return c.err
}

func TestNew_RequiredProperties(t *testing.T) {
	for _, prop := range Required {
		t.Run(prop.Name(), func(t *testing.T) {
			values := defaultValues()
			delete(values[prop.Namespace], prop.Key)

			_, err := New(values, Options{Sink: sink.NewMemorySink()})
			if !errors.Is(err, config.ErrMissingParameter) {
				t.Fatalf("expected ErrMissingParameter, got %v", err)
			}
			assert.Contains(t, err.Error(), prop.Name())
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(defaultValues(), Options{})
	assert.ErrorIs(t, err, ErrNoSink)

	values := defaultValues()
	values.Set("schema", "event_filter", `bucket + 1`)
	_, err = New(values, Options{Sink: sink.NewMemorySink()})
	assert.ErrorIs(t, err, filter.ErrCompile)

	values = defaultValues()
	values.Set("schema", "field.label.type", "MAP<STRING,STRING>")
	_, err = New(values, Options{Sink: sink.NewMemorySink()})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(defaultValues()))

	values := defaultValues()
	delete(values["catalog"], "impl")
	assert.ErrorIs(t, Validate(values), config.ErrMissingParameter)

	values = defaultValues()
	values.Set("schema", "event_filter", `key.size()`)
	assert.ErrorIs(t, Validate(values), filter.ErrCompile)

	values = defaultValues()
	values.Set("schema", "field.label.jpath", "$.labels[")
	assert.ErrorIs(t, Validate(values), rowmap.ErrInvalidPath)
}

func TestRun(t *testing.T) {
	out := sink.NewMemorySink()
	cat := &fakeCatalog{}
	j, err := New(defaultValues(), Options{Catalog: cat, Sink: out})
	require.NoError(t, err)
	assert.NotEmpty(t, j.ID())

	records := []event.ChangeRecord{
		insertRecord("a.jpg", `{"labels":[{"Name":"Pond"}]}`),
		removeRecord(),
		deleteRecord("a.jpg"),
		insertRecord("b.jpg", `not json`),
	}
	stats, err := j.Run(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, Stats{Read: 4, Ignored: 1, Inserted: 2, Deleted: 1}, stats)
	assert.Len(t, cat.stmts, 2)

	rows := out.Rows()
	require.Len(t, rows, 3)
	s := j.Schema()
	label := s.Index("label")
	require.GreaterOrEqual(t, label, 0)

	assert.Equal(t, rowmap.KindInsert, rows[0].Kind)
	assert.Equal(t, "Pond", rows[0].Values[label])
	assert.Equal(t, time.Date(2024, 11, 15, 12, 50, 40, 0, time.UTC), rows[0].Values[s.Index(schema.ColumnLastModified)])

	assert.Equal(t, rowmap.KindDelete, rows[1].Kind)
	assert.Nil(t, rows[1].Values[label])
	assert.Equal(t, "a.jpg", rows[1].Values[s.Index(schema.ColumnKey)])

	assert.Nil(t, rows[2].Values[label], "malformed metadata yields null custom columns")
	assert.Equal(t, "not json", rows[2].Values[s.Index(schema.ColumnMetadata)])
}

func TestRun_Filter(t *testing.T) {
	values := defaultValues()
	values.Set("schema", "event_filter", `!isDelete && extension(key) == "jpg"`)
	out := sink.NewMemorySink()
	j, err := New(values, Options{Sink: out})
	require.NoError(t, err)

	stats, err := j.Run(context.Background(), []event.ChangeRecord{
		insertRecord("a.jpg", `{}`),
		insertRecord("b.txt", `{}`),
		deleteRecord("a.jpg"),
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Read: 3, Filtered: 2, Inserted: 1}, stats)
	assert.Len(t, out.Rows(), 1)
}

func TestRun_StopsAtBadRecord(t *testing.T) {
	out := sink.NewMemorySink()
	j, err := New(defaultValues(), Options{Sink: out})
	require.NoError(t, err)

	bad := insertRecord("c.jpg", `{}`)
	bad.EventID = "bad"
	delete(bad.Change.NewImage, event.AttrSequencer)

	stats, err := j.Run(context.Background(), []event.ChangeRecord{
		insertRecord("a.jpg", `{}`),
		bad,
		insertRecord("b.jpg", `{}`),
	})
	assert.ErrorIs(t, err, event.ErrMissingAttribute)
	assert.Contains(t, err.Error(), "record bad")
	assert.Equal(t, 2, stats.Read)
	assert.Equal(t, 1, stats.Inserted)
	assert.Len(t, out.Rows(), 1)
}

func TestRun_TimestampError(t *testing.T) {
	j, err := New(defaultValues(), Options{Sink: sink.NewMemorySink()})
	require.NoError(t, err)

	rec := insertRecord("a.jpg", `{}`)
	rec.Change.NewImage[event.AttrLatestEventTime] = event.StringValue("yesterday")
	_, err = j.Run(context.Background(), []event.ChangeRecord{rec})
	assert.ErrorIs(t, err, rowmap.ErrTimestampParse)
}

func TestRun_Canceled(t *testing.T) {
	j, err := New(defaultValues(), Options{Sink: sink.NewMemorySink()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := j.Run(ctx, []event.ChangeRecord{insertRecord("a.jpg", `{}`)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stats.Read)
}

func TestRun_CatalogError(t *testing.T) {
	boom := errors.New("catalog down")
	out := sink.NewMemorySink()
	j, err := New(defaultValues(), Options{Catalog: &fakeCatalog{err: boom}, Sink: out})
	require.NoError(t, err)

	_, err = j.Run(context.Background(), []event.ChangeRecord{insertRecord("a.jpg", `{}`)})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, out.Rows())
}

func TestRunReader_BoltCatalog(t *testing.T) {
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	input := `{"eventName":"MODIFY","dynamodb":{"NewImage":{"bucket":{"S":"foo"},"key":{"S":"a.jpg"},"sequencer":{"S":"01"},"latest_event_time":{"S":"2024-11-15T12:50:40Z"},"metadata":{"S":"{\"labels\":[{\"Name\":\"Tree\"}]}"}}}}
{"eventName":"REMOVE","dynamodb":{}}
`
	values := defaultValues()
	for i := 0; i < 2; i++ {
		out := sink.NewMemorySink()
		j, err := New(values, Options{Catalog: cat, Sink: out})
		require.NoError(t, err)

		stats, err := j.RunReader(context.Background(), strings.NewReader(input))
		require.NoError(t, err, "run %d", i)
		assert.Equal(t, Stats{Read: 2, Ignored: 1, Inserted: 1}, stats)
		require.Len(t, out.Rows(), 1)
		assert.Equal(t, "Tree", out.Rows()[0].Values[j.Schema().Index("label")])
	}

	ident, err := schema.ResolveTableIdent(values)
	require.NoError(t, err)
	_, err = cat.Table(ident)
	require.NoError(t, err)
}

func TestRunReader_Malformed(t *testing.T) {
	j, err := New(defaultValues(), Options{Sink: sink.NewMemorySink()})
	require.NoError(t, err)

	_, err = j.RunReader(context.Background(), strings.NewReader("{oops}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}
