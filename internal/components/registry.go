package components

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tessellate-io/weft/internal/expressions"
	"github.com/tessellate-io/weft/pkg/domain"
)

// Registry maps component names to handlers. Populated once at startup;
// requesting an undeclared name fails closed with UnknownComponentError.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry builds a registry pre-populated with the built-in handlers,
// wired to the given dependencies.
func NewRegistry(deps Deps) *Registry {
	deps.fill()
	r := &Registry{handlers: make(map[string]Handler)}

	evaluator := expressions.NewEvaluator()
	for _, h := range []Handler{
		NewInvokeWorkflow(deps),
		NewAcceptFile(deps),
		NewMapCollection(),
		NewSetState(),
		NewBranch(evaluator),
	} {
		// Built-ins carry unique kinds; Register cannot fail here.
		_ = r.Register(h)
	}
	return r
}

// Register adds a handler. Duplicate kinds are rejected.
func (r *Registry) Register(h Handler) error {
	if h == nil || h.Kind() == "" {
		return fmt.Errorf("handler must have a non-empty kind")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Kind()]; exists {
		return fmt.Errorf("component %q already registered", h.Kind())
	}
	r.handlers[h.Kind()] = h
	return nil
}

// Get resolves a component name to its handler.
func (r *Registry) Get(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, &domain.UnknownComponentError{Name: name}
	}
	return h, nil
}

// Kinds returns the registered component names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
