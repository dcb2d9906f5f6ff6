// Package runtime contains the session engine: the state machine that walks a
// workflow document's pipeline, executes component handlers, and persists the
// session after every step transition.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tessellate-io/weft/internal/components"
	"github.com/tessellate-io/weft/internal/expressions"
	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/ports"
	"github.com/tessellate-io/weft/pkg/workflow"
)

// ErrNoPipeline is returned when the engine is asked to run a document
// without steps.
var ErrNoPipeline = errors.New("workflow document has no pipeline steps")

// Engine drives sessions through the pipeline. The document is immutable for
// the engine's lifetime; sessions are loaded from and saved to the store
// around every mutation so a process restart can resume mid-pipeline.
type Engine struct {
	doc       *workflow.Document
	store     ports.SessionStore
	registry  *components.Registry
	evaluator *expressions.Evaluator
	logger    *slog.Logger
	metrics   *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the engine metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine for one workflow document.
func NewEngine(doc *workflow.Document, store ports.SessionStore, registry *components.Registry, opts ...Option) *Engine {
	e := &Engine{
		doc:       doc,
		store:     store,
		registry:  registry,
		evaluator: expressions.NewEvaluator(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e
}

// Document returns the workflow document the engine serves.
func (e *Engine) Document() *workflow.Document { return e.doc }

// CreateSession registers a new session parked before the first pipeline
// step. The pipeline does not start until the first Advance.
func (e *Engine) CreateSession(ctx context.Context) (*domain.Session, error) {
	if len(e.doc.Pipeline.Steps) == 0 {
		return nil, ErrNoPipeline
	}
	session := domain.NewSession(e.doc.Info.Name)
	session.ActiveUIStep = e.doc.FirstUIStep()
	if err := e.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	e.metrics.SessionCreated()
	e.logger.Info("session created", "session_id", session.ID, "workflow", session.Workflow)
	return session, nil
}

// GetSession loads a session by id.
func (e *Engine) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return e.store.Load(ctx, id)
}

// DeleteSession removes a session.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	return e.store.Delete(ctx, id)
}

// Advance resumes pipeline execution from the step after the cursor.
// Advancing a terminal session is a no-op returning the current state;
// advancing a session blocked on input re-checks the blocking step (its input
// may have been staged meanwhile) and otherwise stays blocked.
func (e *Engine) Advance(ctx context.Context, id string) (*domain.Session, error) {
	session, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Terminal() {
		return session, nil
	}
	return e.run(ctx, session)
}

// SubmitStep stages a user submission for an interactive step and resumes the
// pipeline. The expected target is the first input-requiring step after the
// cursor; resubmitting an already-completed interactive step rewinds the
// pipeline to it. Any other target leaves the session untouched and returns
// ErrStepNotExpected.
func (e *Engine) SubmitStep(ctx context.Context, id, stepID string, payload any) (*domain.Session, error) {
	session, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Terminal() {
		return nil, fmt.Errorf("session %s is %s: %w", id, session.Status, domain.ErrStepNotExpected)
	}

	index := e.doc.StepIndex(stepID)
	if index < 0 || !e.requiresInput(&e.doc.Pipeline.Steps[index]) {
		return nil, fmt.Errorf("step %q: %w", stepID, domain.ErrStepNotExpected)
	}

	switch {
	case index == e.nextInteractiveIndex(session):
		// The step the pipeline is blocked on (or will block on next).
	case index <= session.Cursor:
		// Redo of an already-consumed interactive step: rewind so every step
		// at or after it runs again with the fresh input.
		e.rewind(session, index)
	default:
		return nil, fmt.Errorf("step %q is not reachable yet: %w", stepID, domain.ErrStepNotExpected)
	}

	stageInput(session, stepID, payload)
	session.WaitingFor = ""
	session.LastError = ""
	return e.run(ctx, session)
}

// requiresInput reports whether the step's handler blocks on a submission.
// Unknown components resolve to false here; the run loop fails them properly.
func (e *Engine) requiresInput(step *workflow.Step) bool {
	handler, err := e.registry.Get(step.Component)
	return err == nil && handler.RequiresInput()
}

// nextInteractiveIndex returns the pipeline index of the first
// input-requiring step after the cursor, or -1.
func (e *Engine) nextInteractiveIndex(session *domain.Session) int {
	for i := session.Cursor + 1; i < len(e.doc.Pipeline.Steps); i++ {
		if e.requiresInput(&e.doc.Pipeline.Steps[i]) {
			return i
		}
	}
	return -1
}

// rewind resets every step at or after index so the pipeline re-executes it.
func (e *Engine) rewind(session *domain.Session, index int) {
	steps := e.doc.Pipeline.Steps
	for i := index; i < len(steps); i++ {
		delete(session.StepStatus, steps[i].ID)
		delete(session.StepOutputs, steps[i].ID)
	}
	session.Cursor = index - 1
	session.CompletedUISteps = trimUISteps(session.CompletedUISteps, e.doc, index)
	session.ActiveUIStep = uiStepFor(&steps[index])
	if session.ActiveUIStep == "" {
		session.ActiveUIStep = e.doc.FirstUIStep()
	}
}

// trimUISteps drops completed UI steps that belong to rewound pipeline steps.
func trimUISteps(completed []string, doc *workflow.Document, from int) []string {
	rewound := make(map[string]bool)
	for i := from; i < len(doc.Pipeline.Steps); i++ {
		if ui := uiStepFor(&doc.Pipeline.Steps[i]); ui != "" {
			rewound[ui] = true
		}
	}
	kept := completed[:0]
	for _, id := range completed {
		if !rewound[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

// stageInput records a submission under the private inputs map keyed by step id.
func stageInput(session *domain.Session, stepID string, payload any) {
	inputs, _ := session.Context.Private["inputs"].(map[string]any)
	if inputs == nil {
		inputs = make(map[string]any)
	}
	inputs[stepID] = payload
	session.Context.Private["inputs"] = inputs
}

// uiStepFor returns the ui_step parameter of a pipeline step, if declared.
func uiStepFor(step *workflow.Step) string {
	ui, _ := step.Params["ui_step"].(string)
	return ui
}

// run executes pipeline steps from cursor+1 until the pipeline completes,
// blocks on input, or a step fails. The session is saved after every step so
// a crash never loses more than the in-flight step.
func (e *Engine) run(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	steps := e.doc.Pipeline.Steps
	session.Status = domain.StatusRunning

	// Jump targets can form cycles; bound the walk rather than trusting the
	// document.
	budget := len(steps) * 16
	if budget < 64 {
		budget = 64
	}

	i := session.Cursor + 1
	for iter := 0; ; iter++ {
		if i >= len(steps) {
			return e.complete(ctx, session)
		}
		if iter >= budget {
			return e.fail(ctx, session, fmt.Sprintf("pipeline exceeded %d step executions, aborting probable cycle", budget))
		}
		if err := ctx.Err(); err != nil {
			session.Status = domain.StatusAwaitingInput
			if saveErr := e.save(ctx, session); saveErr != nil {
				e.logger.Warn("save interrupted session", "session_id", session.ID, "err", saveErr)
			}
			return nil, err
		}

		step := &steps[i]
		next, stop, err := e.executeStep(ctx, session, step, i)
		if err != nil || stop {
			return session, err
		}
		i = next
	}
}

// executeStep runs one pipeline step. It returns the next index to execute
// and whether the run loop should stop (waiting, failed, or step error).
func (e *Engine) executeStep(ctx context.Context, session *domain.Session, step *workflow.Step, index int) (int, bool, error) {
	logger := e.logger.With("session_id", session.ID, "step", step.ID, "component", step.Component)

	handler, err := e.registry.Get(step.Component)
	if err != nil {
		// Validation catches this for loaded documents; fail hard if one
		// slipped through.
		_, ferr := e.fail(ctx, session, err.Error())
		return 0, true, ferr
	}

	if step.Condition != "" {
		ok, err := e.conditionHolds(step.Condition, session)
		if err != nil {
			return e.stepError(ctx, session, step, &domain.ComponentExecutionError{
				StepID: step.ID, Reason: "evaluate condition", Cause: err,
			})
		}
		if !ok {
			logger.Debug("condition not met, skipping step")
			if index > session.Cursor {
				session.Cursor = index
			}
			return index + 1, false, nil
		}
	}

	session.StepStatus[step.ID] = domain.StepRunning
	started := time.Now()

	result, err := handler.Execute(ctx, &components.Invocation{
		Step:     step,
		Document: e.doc,
		Context:  session.Context.Merged(),
		Logger:   logger,
	})
	e.metrics.StepExecuted(step.Component, outcomeOf(err), time.Since(started))

	if err != nil {
		var missing *domain.MissingInputError
		if errors.As(err, &missing) {
			return 0, true, e.waitForInput(ctx, session, step)
		}
		return e.stepError(ctx, session, step, err)
	}

	e.applyResult(session, step, result)
	if index > session.Cursor {
		session.Cursor = index
	}
	session.Touch()
	if err := e.save(ctx, session); err != nil {
		return 0, true, err
	}
	logger.Debug("step completed", "duration", time.Since(started))

	return e.nextIndex(step, result, index)
}

// conditionHolds evaluates a step guard against the merged context.
func (e *Engine) conditionHolds(condition string, session *domain.Session) (bool, error) {
	out, err := e.evaluator.Evaluate(condition, session.Context.Merged())
	if err != nil {
		return false, err
	}
	return expressions.Truthy(out), nil
}

// applyResult merges a handler's deltas into the session.
func (e *Engine) applyResult(session *domain.Session, step *workflow.Step, result *domain.ComponentResult) {
	for k, v := range result.Public {
		session.Context.Public[k] = v
	}
	for k, v := range result.Private {
		session.Context.Private[k] = v
	}
	if result.Output != nil {
		session.StepOutputs[step.ID] = result.Output
	}
	session.StepStatus[step.ID] = domain.StepCompleted
	session.WaitingFor = ""
	session.LastError = ""

	if target := result.ActivateUIStep; target != "" && e.doc.HasUIStep(target) && target != session.ActiveUIStep {
		session.MarkUIStepCompleted(session.ActiveUIStep)
		session.ActiveUIStep = target
	}
}

// nextIndex resolves the index of the step to execute after a completed step:
// handler jump, then declared next, then document order.
func (e *Engine) nextIndex(step *workflow.Step, result *domain.ComponentResult, index int) (int, bool, error) {
	target := result.NextStep
	if target == "" {
		target = step.Next
	}
	if target == "" {
		return index + 1, false, nil
	}
	next := e.doc.StepIndex(target)
	if next < 0 {
		// Parse validation rejects unknown targets; a handler returning one
		// is a bug in that handler.
		return 0, true, fmt.Errorf("step %q: jump target %q does not exist", step.ID, target)
	}
	return next, false, nil
}

// waitForInput parks the session on an interactive step.
func (e *Engine) waitForInput(ctx context.Context, session *domain.Session, step *workflow.Step) error {
	session.Status = domain.StatusWaitingForInput
	session.WaitingFor = step.ID
	session.StepStatus[step.ID] = domain.StepPending
	if ui := uiStepFor(step); ui != "" && e.doc.HasUIStep(ui) {
		session.ActiveUIStep = ui
	}
	session.Touch()
	e.logger.Info("session waiting for input", "session_id", session.ID, "step", step.ID)
	return e.save(ctx, session)
}

// stepError records a step failure. Configuration-class errors fail the
// session terminally; an on_error target keeps the run loop going at that
// step; otherwise the session returns to awaiting_input and the cause is
// returned to the caller so the boundary can surface it. The client can
// retry by advancing or resubmitting.
func (e *Engine) stepError(ctx context.Context, session *domain.Session, step *workflow.Step, cause error) (int, bool, error) {
	session.StepStatus[step.ID] = domain.StepError
	session.LastError = cause.Error()
	e.logger.Error("step failed", "session_id", session.ID, "step", step.ID, "err", cause)

	var unknown *domain.UnknownComponentError
	var invalid *domain.InvalidComponentConfigError
	if errors.As(cause, &unknown) || errors.As(cause, &invalid) {
		_, err := e.fail(ctx, session, cause.Error())
		return 0, true, err
	}

	if step.OnError != "" {
		if target := e.doc.StepIndex(step.OnError); target >= 0 {
			session.Touch()
			if err := e.save(ctx, session); err != nil {
				return 0, true, err
			}
			return target, false, nil
		}
	}

	session.Status = domain.StatusAwaitingInput
	session.Touch()
	if saveErr := e.save(ctx, session); saveErr != nil {
		return 0, true, errors.Join(cause, saveErr)
	}
	return 0, true, cause
}

// complete finishes the pipeline: the final wizard screen becomes active and
// everything before it counts as done.
func (e *Engine) complete(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	session.Status = domain.StatusCompleted
	session.WaitingFor = ""
	if last := e.doc.LastUIStep(); last != "" {
		if session.ActiveUIStep != last {
			session.MarkUIStepCompleted(session.ActiveUIStep)
		}
		session.ActiveUIStep = last
	}
	session.Touch()
	if err := e.save(ctx, session); err != nil {
		return nil, err
	}
	e.metrics.SessionFinished(string(domain.StatusCompleted))
	e.logger.Info("session completed", "session_id", session.ID)
	return session, nil
}

// fail marks the session terminally failed.
func (e *Engine) fail(ctx context.Context, session *domain.Session, reason string) (*domain.Session, error) {
	session.Status = domain.StatusFailed
	session.LastError = reason
	session.Touch()
	if err := e.save(ctx, session); err != nil {
		return nil, err
	}
	e.metrics.SessionFinished(string(domain.StatusFailed))
	e.logger.Error("session failed", "session_id", session.ID, "reason", reason)
	return session, nil
}

func (e *Engine) save(ctx context.Context, session *domain.Session) error {
	if err := e.store.Save(ctx, session); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, new(*domain.MissingInputError)):
		return "waiting"
	default:
		return "error"
	}
}
