// Package tools is an explicit registry of named operations. Each tool has a
// typed input, a JSON schema derived from that type, and a handler; the same
// registry serves HTTP dispatch, the CLI and MCP clients.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// Spec names and describes a tool.
type Spec struct {
	Name        string
	Description string
}

// Descriptor is the public view of a registered tool.
type Descriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// Handler runs a tool on raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

type tool struct {
	desc     Descriptor
	resolved *jsonschema.Resolved
	call     Handler
	install  func(srv *mcp.Server)
}

type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*tool
	metrics *metrics.Metrics
	tracker analytics.Tracker
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Registry)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithTracker(t analytics.Tracker) Option {
	return func(r *Registry) { r.tracker = t }
}

// WithTimeout bounds every tool call; calls that run longer fail with
// ErrTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:   make(map[string]*tool),
		tracker: analytics.Nop{},
		logger:  slog.Default().With("component", "tool-registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds fn under spec.Name. The input schema is derived from In, so
// In should be a struct with json tags; fields without omitempty are
// required. Registering a name twice fails.
func Register[In, Out any](r *Registry, spec Spec, fn func(ctx context.Context, in In) (Out, error)) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return apperrors.E("tools.register", apperrors.ErrConfiguration, "tool name must not be empty")
	}
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return apperrors.E("tools.register", apperrors.ErrConfiguration, "deriving schema for %s: %v", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return apperrors.E("tools.register", apperrors.ErrConfiguration, "resolving schema for %s: %v", name, err)
	}

	t := &tool{
		desc:     Descriptor{Name: name, Description: spec.Description, InputSchema: schema},
		resolved: resolved,
	}
	t.call = func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := decode[In](name, resolved, args)
		if err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}
	t.install = func(srv *mcp.Server) {
		mcp.AddTool(srv, &mcp.Tool{Name: name, Description: spec.Description},
			func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
				args, err := json.Marshal(in)
				if err != nil {
					return nil, nil, err
				}
				out, err := r.invoke(ctx, t, args)
				if err != nil {
					return nil, nil, err
				}
				return nil, out, nil
			})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return apperrors.E("tools.register", apperrors.ErrConfiguration, "tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Dispatch runs the named tool. Unknown names fail with ErrNotFound and
// arguments that do not match the input schema with ErrInvalidArgument.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.E("tools.dispatch", apperrors.ErrNotFound, "unknown tool %q", name)
	}
	return r.invoke(ctx, t, args)
}

func (r *Registry) invoke(ctx context.Context, t *tool, args json.RawMessage) (any, error) {
	start := time.Now()
	var out any
	err := resilience.WithTimeout(ctx, r.timeout, t.desc.Name, func(ctx context.Context) error {
		var err error
		out, err = t.call(ctx, args)
		return err
	})
	latency := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		logger.FromContext(ctx).Warn("tool failed", "component", "tool-registry", "tool", t.desc.Name, "error", err)
	} else {
		logger.FromContext(ctx).Debug("tool completed", "component", "tool-registry", "tool", t.desc.Name, "latency", latency)
	}
	if r.metrics != nil {
		r.metrics.ToolCallsTotal.WithLabelValues(t.desc.Name, status).Inc()
	}
	r.tracker.Track(analytics.NewToolEvent(logger.RequestID(ctx), analytics.ToolEvent{
		Name:      t.desc.Name,
		Failed:    err != nil,
		LatencyMs: latency.Milliseconds(),
	}))
	if err != nil {
		// out may still be written by a call that outlived its deadline.
		return nil, err
	}
	return out, nil
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.desc)
	}
	slices.SortFunc(out, func(a, b Descriptor) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// InstallMCP exposes every registered tool on srv.
func (r *Registry) InstallMCP(srv *mcp.Server) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		r.tools[name].install(srv)
	}
	r.logger.Info("tools installed on mcp server", "count", len(names))
}

func decode[In any](name string, resolved *jsonschema.Resolved, args json.RawMessage) (In, error) {
	var in In
	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		args = json.RawMessage("{}")
	}
	var raw any
	if err := json.Unmarshal(args, &raw); err != nil {
		return in, apperrors.E(name, apperrors.ErrInvalidArgument, "arguments are not valid JSON: %v", err)
	}
	if err := resolved.Validate(raw); err != nil {
		return in, apperrors.E(name, apperrors.ErrInvalidArgument, "%v", err)
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return in, apperrors.E(name, apperrors.ErrInvalidArgument, "decoding arguments: %v", err)
	}
	return in, nil
}
