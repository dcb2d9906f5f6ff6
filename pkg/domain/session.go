package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle state of a session.
type SessionStatus string

const (
	// StatusAwaitingInput means the session is idle and can be advanced.
	StatusAwaitingInput SessionStatus = "awaiting_input"
	// StatusRunning means the engine is executing pipeline steps.
	StatusRunning SessionStatus = "running"
	// StatusWaitingForInput means the pipeline is blocked on a user-facing step.
	StatusWaitingForInput SessionStatus = "waiting_for_input"
	// StatusCompleted means every pipeline step has finished. Terminal.
	StatusCompleted SessionStatus = "completed"
	// StatusFailed means the session hit a non-retriable failure. Terminal.
	StatusFailed SessionStatus = "failed"
)

// StepStatus tracks the execution state of a single pipeline step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

// Context splits session data into two namespaces. Public is safe to expose
// to the UI; Private holds handler-internal data such as raw file contents.
// Expression resolution runs against the merged view.
type Context struct {
	Public  map[string]any `json:"public"`
	Private map[string]any `json:"private"`
}

// NewContext creates an empty context with both namespaces allocated.
func NewContext() Context {
	return Context{
		Public:  make(map[string]any),
		Private: make(map[string]any),
	}
}

// Merged returns a combined view of both namespaces. Public keys win on
// collision so handlers cannot shadow client-visible data by accident.
func (c Context) Merged() map[string]any {
	merged := make(map[string]any, len(c.Public)+len(c.Private))
	for k, v := range c.Private {
		merged[k] = v
	}
	for k, v := range c.Public {
		merged[k] = v
	}
	return merged
}

// Session is one user's traversal of the pipeline. It is owned exclusively
// by the engine: handlers report deltas through ComponentResult and never
// mutate the session directly.
type Session struct {
	ID               string                `json:"session_id"`
	Workflow         string                `json:"workflow"`
	Status           SessionStatus         `json:"status"`
	Cursor           int                   `json:"cursor"`
	ActiveUIStep     string                `json:"active_ui_step,omitempty"`
	CompletedUISteps []string              `json:"completed_ui_steps"`
	StepStatus       map[string]StepStatus `json:"step_status"`
	StepOutputs      map[string]any        `json:"step_outputs,omitempty"`
	Context          Context               `json:"context"`
	WaitingFor       string                `json:"waiting_for,omitempty"`
	LastError        string                `json:"last_error,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// NewSession creates a fresh session with the cursor parked before the
// first pipeline step.
func NewSession(workflow string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:               uuid.NewString(),
		Workflow:         workflow,
		Status:           StatusAwaitingInput,
		Cursor:           -1,
		CompletedUISteps: []string{},
		StepStatus:       make(map[string]StepStatus),
		StepOutputs:      make(map[string]any),
		Context:          NewContext(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Touch bumps the updated timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Terminal reports whether the session can no longer be advanced.
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// MarkUIStepCompleted appends a UI step to the completed list, once.
func (s *Session) MarkUIStepCompleted(id string) {
	if id == "" {
		return
	}
	for _, done := range s.CompletedUISteps {
		if done == id {
			return
		}
	}
	s.CompletedUISteps = append(s.CompletedUISteps, id)
}

// Clone produces a deep copy. Stores copy on save and load so callers can
// never mutate persisted state through a shared pointer.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	next := *s
	next.CompletedUISteps = append([]string(nil), s.CompletedUISteps...)
	next.StepStatus = make(map[string]StepStatus, len(s.StepStatus))
	for k, v := range s.StepStatus {
		next.StepStatus[k] = v
	}
	next.StepOutputs = copyMap(s.StepOutputs)
	next.Context = Context{
		Public:  copyMap(s.Context.Public),
		Private: copyMap(s.Context.Private),
	}
	return &next
}

// View projects the session onto its client-visible subset. Private context
// never leaves the process through this path.
func (s *Session) View() *SessionView {
	return &SessionView{
		SessionID:        s.ID,
		Workflow:         s.Workflow,
		Status:           s.Status,
		ActiveUIStep:     s.ActiveUIStep,
		CompletedUISteps: append([]string(nil), s.CompletedUISteps...),
		StepStatus:       cloneStatusMap(s.StepStatus),
		Context:          copyMap(s.Context.Public),
		LastError:        s.LastError,
		UpdatedAt:        s.UpdatedAt,
	}
}

// SessionView is the payload returned to clients by the boundary API.
type SessionView struct {
	SessionID        string                `json:"session_id"`
	Workflow         string                `json:"workflow"`
	Status           SessionStatus         `json:"status"`
	ActiveUIStep     string                `json:"active_ui_step,omitempty"`
	CompletedUISteps []string              `json:"completed_ui_steps"`
	StepStatus       map[string]StepStatus `json:"step_status"`
	Context          map[string]any        `json:"context"`
	LastError        string                `json:"last_error,omitempty"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func cloneStatusMap(in map[string]StepStatus) map[string]StepStatus {
	out := make(map[string]StepStatus, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// copyMap deep-copies the JSON-shaped container types that flow through
// session context (maps, slices, scalars).
func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
