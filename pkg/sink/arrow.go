package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/unijord/contentmeta/pkg/columnar"
	"github.com/unijord/contentmeta/pkg/rowmap"
	"github.com/unijord/contentmeta/pkg/schema"
)

// DefaultBatchSize is the number of rows per record batch.
const DefaultBatchSize = 1024

// ArrowFileConfig configures an ArrowFileSink.
type ArrowFileConfig struct {
	// BatchSize is the number of rows buffered before a record batch is
	// written. Defaults to DefaultBatchSize.
	BatchSize int

	// Allocator defaults to the Go allocator.
	Allocator memory.Allocator

	Logger *slog.Logger
}

// ArrowFileSink writes rows to an Arrow IPC file in record batches.
// It is not safe for concurrent use.
type ArrowFileSink struct {
	path      string
	f         *os.File
	w         *ipc.FileWriter
	b         *columnar.Builder
	batchSize int
	batches   int
	rows      int
	closed    bool
	logger    *slog.Logger
}

// NewArrowFileSink creates path and writes rows of s into it.
func NewArrowFileSink(path string, s schema.ColumnSchema, cfg ArrowFileConfig) (*ArrowFileSink, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.NewGoAllocator()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	b, err := columnar.NewBuilder(cfg.Allocator, s)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("create output file: %w", err)
	}

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(b.Schema()), ipc.WithAllocator(cfg.Allocator))
	if err != nil {
		b.Release()
		f.Close()
		return nil, fmt.Errorf("create ipc writer: %w", err)
	}

	return &ArrowFileSink{
		path:      path,
		f:         f,
		w:         w,
		b:         b,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With("component", "sink", "path", path),
	}, nil
}

// Write buffers row and flushes a record batch once BatchSize rows are
// pending. A rejected row is not buffered.
func (s *ArrowFileSink) Write(ctx context.Context, row rowmap.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}
	if err := s.b.Append(row); err != nil {
		return err
	}
	s.rows++
	if s.b.Len() >= s.batchSize {
		return s.Flush()
	}
	return nil
}

// Flush writes buffered rows as one record batch.
func (s *ArrowFileSink) Flush() error {
	if s.closed {
		return ErrClosed
	}
	if s.b.Len() == 0 {
		return nil
	}
	rec := s.b.NewRecord()
	defer rec.Release()

	if err := s.w.Write(rec); err != nil {
		return fmt.Errorf("write record batch: %w", err)
	}
	s.batches++
	s.logger.Debug("record batch written", "rows", rec.NumRows(), "batch", s.batches)
	return nil
}

// Rows returns the number of rows written.
func (s *ArrowFileSink) Rows() int {
	return s.rows
}

// Close flushes pending rows and closes the file. It is idempotent.
func (s *ArrowFileSink) Close() error {
	if s.closed {
		return nil
	}
	flushErr := s.Flush()
	s.closed = true
	s.b.Release()

	writerErr := s.w.Close()
	fileErr := s.f.Close()
	if errors.Is(fileErr, os.ErrClosed) {
		fileErr = nil
	}
	err := errors.Join(flushErr, writerErr, fileErr)
	if err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	s.logger.Info("output closed", "rows", s.rows, "batches", s.batches)
	return nil
}
