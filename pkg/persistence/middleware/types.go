// Package middleware provides composable SessionStore decorators: at-rest
// encryption and PII masking. Middlewares wrap any store adapter and are
// transparent to the engine.
package middleware

import "github.com/tessellate-io/weft/pkg/ports"

// Middleware wraps a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies middlewares right to left, so the first listed is outermost.
func Chain(store ports.SessionStore, middlewares ...Middleware) ports.SessionStore {
	for i := len(middlewares) - 1; i >= 0; i-- {
		store = middlewares[i](store)
	}
	return store
}
