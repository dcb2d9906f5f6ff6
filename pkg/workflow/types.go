package workflow

// Component names form a closed set; the registry fails closed on anything else.
const (
	ComponentInvokeWorkflow = "invoke-workflow"
	ComponentAcceptFile     = "accept-file"
	ComponentMapCollection  = "map-collection"
	ComponentSetState       = "set-state"
	ComponentBranch         = "branch"
)

// KnownComponents lists every component this runtime version understands.
var KnownComponents = []string{
	ComponentInvokeWorkflow,
	ComponentAcceptFile,
	ComponentMapCollection,
	ComponentSetState,
	ComponentBranch,
}

// Provider kinds.
const (
	ProviderMock     = "mock"
	ProviderExternal = "external"
)

// Document is the declarative specification driving one application
// instance: external providers, the step pipeline, and the wizard UI.
// It is immutable after Parse; reloads swap the whole pointer.
type Document struct {
	Info      Info                `yaml:"info" json:"info"`
	Workflows map[string]Provider `yaml:"workflows" json:"workflows"`
	Pipeline  Pipeline            `yaml:"pipeline" json:"pipeline"`
	UI        *UI                 `yaml:"ui,omitempty" json:"ui,omitempty"`
}

// Info carries application metadata.
type Info struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
}

// Provider describes an external HTTP-callable workflow endpoint.
type Provider struct {
	Kind      string `yaml:"provider" json:"provider"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Method    string `yaml:"method,omitempty" json:"method,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
}

// RequestMethod returns the HTTP method, defaulting to POST.
func (p Provider) RequestMethod() string {
	if p.Method == "" {
		return "POST"
	}
	return p.Method
}

// Pipeline is the ordered list of steps executed per session.
type Pipeline struct {
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is one pipeline entry. Params is a free-form map interpreted by the
// handler matching Component. Steps without explicit Next/OnError targets
// execute in document order.
type Step struct {
	ID        string         `yaml:"id" json:"id"`
	Component string         `yaml:"component" json:"component"`
	Params    map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	Condition string         `yaml:"condition,omitempty" json:"condition,omitempty"`
	Next      string         `yaml:"next,omitempty" json:"next,omitempty"`
	OnError   string         `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// UI is the wizard definition rendered by the generic frontend.
type UI struct {
	Layout string   `yaml:"layout,omitempty" json:"layout,omitempty"`
	Steps  []UIStep `yaml:"steps" json:"steps"`
}

// UIStep is a single wizard screen.
type UIStep struct {
	ID          string        `yaml:"id" json:"id"`
	Title       string        `yaml:"title" json:"title"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Components  []UIComponent `yaml:"components,omitempty" json:"components,omitempty"`
}

// UIComponent is a declarative widget with data bindings into session context.
type UIComponent struct {
	Type     string            `yaml:"type" json:"type"`
	ID       string            `yaml:"id" json:"id"`
	Props    map[string]any    `yaml:"props,omitempty" json:"props,omitempty"`
	Bindings map[string]string `yaml:"bindings,omitempty" json:"bindings,omitempty"`
}

// StepIndex returns the pipeline position of a step id, or -1.
func (d *Document) StepIndex(id string) int {
	for i, s := range d.Pipeline.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// StepByID returns the pipeline step with the given id, or nil.
func (d *Document) StepByID(id string) *Step {
	if i := d.StepIndex(id); i >= 0 {
		return &d.Pipeline.Steps[i]
	}
	return nil
}

// FirstUIStep returns the id of the first wizard screen, or "".
func (d *Document) FirstUIStep() string {
	if d.UI == nil || len(d.UI.Steps) == 0 {
		return ""
	}
	return d.UI.Steps[0].ID
}

// LastUIStep returns the id of the final wizard screen, or "".
func (d *Document) LastUIStep() string {
	if d.UI == nil || len(d.UI.Steps) == 0 {
		return ""
	}
	return d.UI.Steps[len(d.UI.Steps)-1].ID
}

// HasUIStep reports whether the document declares the given wizard screen.
func (d *Document) HasUIStep(id string) bool {
	if d.UI == nil {
		return false
	}
	for _, s := range d.UI.Steps {
		if s.ID == id {
			return true
		}
	}
	return false
}
