package weft

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tessellate-io/weft/internal/components"
	"github.com/tessellate-io/weft/internal/runtime"
	httpadapter "github.com/tessellate-io/weft/pkg/adapters/http"
	"github.com/tessellate-io/weft/pkg/adapters/memory"
	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/ports"
	"github.com/tessellate-io/weft/pkg/workflow"
)

// Version is the library version, overridable at build time via ldflags.
var Version = "0.3.0"

// Runtime is the high-level entry point: a parsed workflow document bound to
// a session store and the built-in component set. It wraps the internal
// engine with a simplified API for embedding and serving. Reload swaps the
// engine atomically; in-flight operations finish against the document they
// started with.
type Runtime struct {
	engine     atomic.Pointer[runtime.Engine]
	store      ports.SessionStore
	registry   *components.Registry
	deps       components.Deps
	extra      []components.Handler
	logger     *slog.Logger
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	metrics    *runtime.Metrics
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithStore injects the session store. Defaults to in-memory.
func WithStore(store ports.SessionStore) Option {
	return func(r *Runtime) { r.store = store }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) { r.logger = logger }
}

// WithHTTPClient sets the client used for provider calls.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Runtime) { r.deps.HTTPClient = client }
}

// WithGetenv overrides provider API key lookup. Defaults to os.Getenv.
func WithGetenv(getenv func(string) string) Option {
	return func(r *Runtime) { r.deps.Getenv = getenv }
}

// WithMetricsRegistry registers engine metrics against the given registry and
// exposes it on the handler's /metrics endpoint.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(r *Runtime) {
		r.registerer = reg
		r.gatherer = reg
	}
}

// WithComponent registers an additional component handler beyond the
// built-ins.
func WithComponent(h components.Handler) Option {
	return func(r *Runtime) {
		r.extra = append(r.extra, h)
	}
}

// New builds a Runtime from an already-parsed document.
func New(doc *workflow.Document, opts ...Option) (*Runtime, error) {
	if doc == nil {
		return nil, fmt.Errorf("workflow document is required")
	}
	r := &Runtime{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.store == nil {
		r.store = memory.NewStore()
	}
	if r.registerer != nil {
		r.metrics = runtime.NewMetrics(r.registerer)
	}

	r.deps.Logger = r.logger
	r.registry = components.NewRegistry(r.deps)
	for _, h := range r.extra {
		if err := r.registry.Register(h); err != nil {
			return nil, err
		}
	}

	r.engine.Store(r.newEngine(doc))
	return r, nil
}

// Load reads, parses, and validates a workflow document from disk and builds
// a Runtime for it.
func Load(path string, opts ...Option) (*Runtime, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow document: %w", err)
	}
	doc, err := workflow.Parse(raw)
	if err != nil {
		return nil, err
	}
	return New(doc, opts...)
}

func (r *Runtime) newEngine(doc *workflow.Document) *runtime.Engine {
	engineOpts := []runtime.Option{runtime.WithLogger(r.logger)}
	if r.metrics != nil {
		engineOpts = append(engineOpts, runtime.WithMetrics(r.metrics))
	}
	return runtime.NewEngine(doc, r.store, r.registry, engineOpts...)
}

// Reload swaps in a new document. The store, component registry, and metrics
// are kept; sessions created under the previous document keep running against
// it until their current operation returns, then resolve step ids against the
// new one.
func (r *Runtime) Reload(doc *workflow.Document) error {
	if doc == nil {
		return fmt.Errorf("workflow document is required")
	}
	r.engine.Store(r.newEngine(doc))
	r.logger.Info("workflow document reloaded", "workflow", doc.Info.Name, "version", doc.Info.Version)
	return nil
}

// ReloadFile re-reads a document from disk and swaps it in. The running
// document is untouched when the new one fails to parse.
func (r *Runtime) ReloadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read workflow document: %w", err)
	}
	doc, err := workflow.Parse(raw)
	if err != nil {
		return err
	}
	return r.Reload(doc)
}

// Engine exposes the session engine.
func (r *Runtime) Engine() *runtime.Engine { return r.engine.Load() }

// Document returns the workflow document the runtime serves.
func (r *Runtime) Document() *workflow.Document { return r.engine.Load().Document() }

// Components lists the registered component kinds.
func (r *Runtime) Components() []string { return r.registry.Kinds() }

// CreateSession starts a new session parked before the first pipeline step.
func (r *Runtime) CreateSession(ctx context.Context) (*domain.Session, error) {
	return r.engine.Load().CreateSession(ctx)
}

// GetSession loads a session by id.
func (r *Runtime) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return r.engine.Load().GetSession(ctx, id)
}

// DeleteSession removes a session.
func (r *Runtime) DeleteSession(ctx context.Context, id string) error {
	return r.engine.Load().DeleteSession(ctx, id)
}

// Advance resumes pipeline execution for a session.
func (r *Runtime) Advance(ctx context.Context, id string) (*domain.Session, error) {
	return r.engine.Load().Advance(ctx, id)
}

// SubmitStep stages input for an interactive step and resumes the pipeline.
func (r *Runtime) SubmitStep(ctx context.Context, id, stepID string, payload any) (*domain.Session, error) {
	return r.engine.Load().SubmitStep(ctx, id, stepID, payload)
}

// Handler returns the HTTP boundary for this runtime. The handler follows
// reloads: requests always hit the current engine.
func (r *Runtime) Handler() http.Handler {
	opts := []httpadapter.Option{httpadapter.WithLogger(r.logger)}
	if r.gatherer != nil {
		opts = append(opts, httpadapter.WithMetricsGatherer(r.gatherer))
	}
	return httpadapter.NewHandler(r, opts...)
}
