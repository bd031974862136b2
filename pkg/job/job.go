// Package job runs change records through the content-metadata pipeline:
// normalize, filter, map and write.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/unijord/contentmeta/pkg/catalog"
	"github.com/unijord/contentmeta/pkg/config"
	"github.com/unijord/contentmeta/pkg/event"
	"github.com/unijord/contentmeta/pkg/filter"
	"github.com/unijord/contentmeta/pkg/rowmap"
	"github.com/unijord/contentmeta/pkg/schema"
	"github.com/unijord/contentmeta/pkg/sink"
)

// ErrNoSink is returned by New when Options.Sink is nil.
var ErrNoSink = errors.New("job: sink is required")

// Required lists the properties a job refuses to start without.
var Required = []config.Property{
	config.AWSRegion,
	config.StreamARN,
	config.CatalogImpl,
	config.WarehousePath,
}

// Options configures a Job.
type Options struct {
	// Catalog receives the DDL statements. A nil catalog skips table creation.
	Catalog catalog.Executor

	Sink sink.Sink

	Logger *slog.Logger
}

// Stats counts records by outcome.
type Stats struct {
	Read     int
	Ignored  int
	Filtered int
	Inserted int
	Deleted  int
}

// Job is a configured pipeline. Run may be called more than once; the
// table is ensured on every call.
type Job struct {
	id      string
	values  config.Values
	schema  schema.ColumnSchema
	mapper  *rowmap.Mapper
	filter  *filter.Filter
	catalog catalog.Executor
	sink    sink.Sink
	logger  *slog.Logger
}

// New validates values and prepares the schema, mapper and filter.
func New(values config.Values, opts Options) (*Job, error) {
	if opts.Sink == nil {
		return nil, ErrNoSink
	}
	s, mapper, f, err := compile(values)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	id := uuid.NewString()
	return &Job{
		id:      id,
		values:  values.Clone(),
		schema:  s,
		mapper:  mapper,
		filter:  f,
		catalog: opts.Catalog,
		sink:    opts.Sink,
		logger:  opts.Logger.With("component", "job", "run_id", id),
	}, nil
}

// Validate runs the checks New performs on values without building a job.
func Validate(values config.Values) error {
	_, _, _, err := compile(values)
	return err
}

func compile(values config.Values) (schema.ColumnSchema, *rowmap.Mapper, *filter.Filter, error) {
	if err := config.RequireAll(values, Required...); err != nil {
		return schema.ColumnSchema{}, nil, nil, err
	}
	s, err := schema.FromConfig(values)
	if err != nil {
		return schema.ColumnSchema{}, nil, nil, fmt.Errorf("build schema: %w", err)
	}
	mapper, err := rowmap.NewMapper(s)
	if err != nil {
		return schema.ColumnSchema{}, nil, nil, fmt.Errorf("build mapper: %w", err)
	}
	expr, err := config.String(values, config.EventFilter)
	if err != nil {
		return schema.ColumnSchema{}, nil, nil, err
	}
	f, err := filter.Compile(expr)
	if err != nil {
		return schema.ColumnSchema{}, nil, nil, err
	}
	return s, mapper, f, nil
}

// ID returns the run identifier attached to every log line.
func (j *Job) ID() string {
	return j.id
}

// Schema returns the table schema rows are written with.
func (j *Job) Schema() schema.ColumnSchema {
	return j.schema
}

// Run ensures the table and processes records in order. It stops at the
// first failing record and returns the counts reached so far.
func (j *Job) Run(ctx context.Context, records []event.ChangeRecord) (Stats, error) {
	var stats Stats
	if err := j.prepare(ctx); err != nil {
		return stats, err
	}

	start := time.Now()
	for _, rec := range records {
		if err := j.process(ctx, rec, &stats); err != nil {
			j.logFailure(stats, err)
			return stats, err
		}
	}
	j.logDone(stats, start)
	return stats, nil
}

// RunReader is Run over newline-delimited JSON change records read from r.
func (j *Job) RunReader(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	if err := j.prepare(ctx); err != nil {
		return stats, err
	}

	start := time.Now()
	err := event.ScanRecords(r, func(rec event.ChangeRecord) error {
		return j.process(ctx, rec, &stats)
	})
	if err != nil {
		j.logFailure(stats, err)
		return stats, err
	}
	j.logDone(stats, start)
	return stats, nil
}

func (j *Job) prepare(ctx context.Context) error {
	if j.catalog == nil {
		j.logger.Warn("no catalog configured, skipping table creation")
		return nil
	}
	if err := catalog.EnsureTable(ctx, j.catalog, j.values, j.schema, j.logger); err != nil {
		return fmt.Errorf("ensure table: %w", err)
	}
	return nil
}

func (j *Job) process(ctx context.Context, rec event.ChangeRecord, stats *Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stats.Read++

	ev, ok, err := event.FromRecord(rec)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	if !ok {
		stats.Ignored++
		return nil
	}

	match, err := j.filter.Match(ev)
	if err != nil {
		return err
	}
	if !match {
		stats.Filtered++
		return nil
	}

	row, err := j.mapper.Map(ev)
	if err != nil {
		return fmt.Errorf("map %s/%s: %w", ev.Bucket, ev.UserKey, err)
	}
	if err := j.sink.Write(ctx, row); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	switch row.Kind {
	case rowmap.KindDelete:
		stats.Deleted++
	default:
		stats.Inserted++
	}
	return nil
}

func (j *Job) logDone(stats Stats, start time.Time) {
	j.logger.Info("run complete",
		slog.Int("read", stats.Read),
		slog.Int("ignored", stats.Ignored),
		slog.Int("filtered", stats.Filtered),
		slog.Int("inserted", stats.Inserted),
		slog.Int("deleted", stats.Deleted),
		slog.Duration("elapsed", time.Since(start)),
	)
}

func (j *Job) logFailure(stats Stats, err error) {
	j.logger.Error("run failed",
		slog.Int("read", stats.Read),
		slog.Any("error", err),
	)
}
