// Package components provides the pluggable step implementations behind the
// pipeline's declared component types, and the registry that resolves a
// component name to its handler. Handlers never mutate the session: they
// receive a read-only context snapshot and report changes through
// domain.ComponentResult.
package components

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/workflow"
)

// Invocation carries everything a handler may read during one execution.
type Invocation struct {
	// Step is the pipeline step being executed.
	Step *workflow.Step
	// Document is the immutable workflow document.
	Document *workflow.Document
	// Context is the merged (public + private) session context snapshot.
	Context map[string]any
	// Logger is scoped to the session and step.
	Logger *slog.Logger
}

// Handler is the closed interface every component implements.
type Handler interface {
	// Kind returns the component name the handler serves.
	Kind() string
	// RequiresInput reports whether the engine must stop and wait for a
	// user submission before this step can run.
	RequiresInput() bool
	// Execute runs the step and returns the resulting context deltas.
	Execute(ctx context.Context, inv *Invocation) (*domain.ComponentResult, error)
}

// Deps bundles the external collaborators shared by the built-in handlers.
// Constructed once at startup and passed down explicitly.
type Deps struct {
	// HTTPClient issues provider calls. Defaults to a client with a
	// bounded timeout.
	HTTPClient *http.Client
	// Getenv resolves provider API keys at call time. Defaults to os.Getenv.
	Getenv func(string) string
	// Logger is the base logger for handlers.
	Logger *slog.Logger
}

func (d *Deps) fill() {
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// decodeParams maps a step's free-form parameter map onto a typed handler
// config. Shape mismatches are configuration errors, not runtime failures.
func decodeParams(step *workflow.Step, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return &domain.InvalidComponentConfigError{StepID: step.ID, Reason: err.Error()}
	}
	if err := decoder.Decode(step.Params); err != nil {
		return &domain.InvalidComponentConfigError{StepID: step.ID, Reason: err.Error()}
	}
	return nil
}
