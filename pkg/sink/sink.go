// Package sink receives mapped rows.
package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/unijord/contentmeta/pkg/rowmap"
)

// ErrClosed is returned when writing to a closed sink.
var ErrClosed = errors.New("sink closed")

// Sink consumes rows in order.
type Sink interface {
	Write(ctx context.Context, row rowmap.Row) error
	Close() error
}

// MemorySink keeps every row in memory. It is safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	rows   []rowmap.Row
	closed bool
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write appends row. It fails with ErrClosed after Close.
func (s *MemorySink) Write(ctx context.Context, row rowmap.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.rows = append(s.rows, row)
	return nil
}

// Rows returns a copy of the rows written so far.
func (s *MemorySink) Rows() []rowmap.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rowmap.Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Close rejects further writes. Rows stay readable.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var (
	_ Sink = (*MemorySink)(nil)
	_ Sink = (*ArrowFileSink)(nil)
)
