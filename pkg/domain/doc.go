// Package domain holds the core types shared across the runtime: the
// per-user session model, component results, and the runtime error taxonomy.
// Everything here is transport-agnostic; adapters map these types to and
// from the wire.
package domain
