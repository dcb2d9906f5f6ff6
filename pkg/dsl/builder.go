// Package dsl builds workflow documents programmatically. It targets
// embedders and tests that want a typed alternative to YAML; the result is a
// regular validated Document, indistinguishable from a parsed one.
package dsl

import (
	"github.com/tessellate-io/weft/pkg/workflow"
)

// Builder accumulates a workflow document.
type Builder struct {
	doc workflow.Document
}

// New starts a document with the given application name.
func New(name string) *Builder {
	return &Builder{doc: workflow.Document{
		Info:      workflow.Info{Name: name, Version: "1.0.0"},
		Workflows: make(map[string]workflow.Provider),
	}}
}

// Description sets the application description.
func (b *Builder) Description(text string) *Builder {
	b.doc.Info.Description = text
	return b
}

// Version sets the document version.
func (b *Builder) Version(version string) *Builder {
	b.doc.Info.Version = version
	return b
}

// Provider declares an external workflow endpoint.
func (b *Builder) Provider(id string, provider workflow.Provider) *Builder {
	if provider.Kind == "" {
		provider.Kind = workflow.ProviderExternal
	}
	b.doc.Workflows[id] = provider
	return b
}

// Step appends a pipeline step and returns its builder.
func (b *Builder) Step(id, component string) *StepBuilder {
	b.doc.Pipeline.Steps = append(b.doc.Pipeline.Steps, workflow.Step{
		ID:        id,
		Component: component,
		Params:    make(map[string]any),
	})
	return &StepBuilder{builder: b, index: len(b.doc.Pipeline.Steps) - 1}
}

// SetState appends a set-state step with the given updates.
func (b *Builder) SetState(id string, updates map[string]any) *StepBuilder {
	return b.Step(id, workflow.ComponentSetState).Param("updates", updates)
}

// AcceptFile appends an accept-file step.
func (b *Builder) AcceptFile(id string) *StepBuilder {
	return b.Step(id, workflow.ComponentAcceptFile)
}

// Invoke appends an invoke-workflow step bound to a declared provider.
func (b *Builder) Invoke(id, provider string) *StepBuilder {
	return b.Step(id, workflow.ComponentInvokeWorkflow).Param("workflow", provider)
}

// Branch appends a branch step routing on the given condition.
func (b *Builder) Branch(id, when, then, otherwise string) *StepBuilder {
	sb := b.Step(id, workflow.ComponentBranch).
		Param("when", when).
		Param("then", then)
	if otherwise != "" {
		sb.Param("else", otherwise)
	}
	return sb
}

// UIStep appends a wizard screen.
func (b *Builder) UIStep(id, title string) *Builder {
	if b.doc.UI == nil {
		b.doc.UI = &workflow.UI{Layout: "wizard"}
	}
	b.doc.UI.Steps = append(b.doc.UI.Steps, workflow.UIStep{ID: id, Title: title})
	return b
}

// Build validates and returns the document.
func (b *Builder) Build() (*workflow.Document, error) {
	doc := b.doc
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// StepBuilder configures one pipeline step.
type StepBuilder struct {
	builder *Builder
	index   int
}

func (sb *StepBuilder) step() *workflow.Step {
	return &sb.builder.doc.Pipeline.Steps[sb.index]
}

// Param sets one component parameter.
func (sb *StepBuilder) Param(key string, value any) *StepBuilder {
	sb.step().Params[key] = value
	return sb
}

// Condition guards the step with an expression; falsy skips it.
func (sb *StepBuilder) Condition(expression string) *StepBuilder {
	sb.step().Condition = expression
	return sb
}

// Next overrides document order after this step.
func (sb *StepBuilder) Next(target string) *StepBuilder {
	sb.step().Next = target
	return sb
}

// OnError jumps to target when the step fails.
func (sb *StepBuilder) OnError(target string) *StepBuilder {
	sb.step().OnError = target
	return sb
}

// UIStep associates the step with a wizard screen.
func (sb *StepBuilder) UIStep(id string) *StepBuilder {
	return sb.Param("ui_step", id)
}

// Done returns to the document builder.
func (sb *StepBuilder) Done() *Builder {
	return sb.builder
}
