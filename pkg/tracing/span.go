// Package tracing records timed spans that travel in a context. Spans nest
// into a tree and are written to slog when the root ends.
package tracing

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// Span is one timed step of a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	err      error
	children []*Span
	attrs    map[string]any
}

// Start opens a span under the span in ctx, or a new trace when ctx has none.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{Name: name, StartTime: time.Now(), attrs: make(map[string]any)}
	if parent := FromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	} else {
		span.TraceID = uuid.NewString()
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// FromContext returns the current span, or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// SetAttr attaches a key-value pair that is logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// End closes the span, recording err if non-nil. Later calls are no-ops.
func (s *Span) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.duration = time.Since(s.StartTime)
	s.err = err
}

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// Children returns the direct child spans in start order.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.children)
}

// Log writes the span tree to logger at debug level, or at warn level for
// spans that ended with an error.
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, 0)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration", s.duration,
		"depth", depth,
	}
	for _, k := range slices.Sorted(maps.Keys(s.attrs)) {
		attrs = append(attrs, k, s.attrs[k])
	}
	err := s.err
	children := slices.Clone(s.children)
	s.mu.Unlock()

	if err != nil {
		logger.Warn("span", append(attrs, "error", err)...)
	} else {
		logger.Debug("span", attrs...)
	}
	for _, child := range children {
		child.log(logger, depth+1)
	}
}
