package components

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tessellate-io/weft/internal/expressions"
	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/workflow"
)

// maxProviderResponse bounds how much of a provider response is read.
const maxProviderResponse = 10 * 1024 * 1024

type invokeWorkflowParams struct {
	Workflow     string         `mapstructure:"workflow"`
	InputMapping map[string]any `mapstructure:"input_mapping"`
	WrapInputs   *bool          `mapstructure:"wrap_inputs"`
	OutputKey    string         `mapstructure:"output_key"`
	ResponsePath string         `mapstructure:"response_path"`
	UIStep       string         `mapstructure:"ui_step"`
}

// InvokeWorkflow calls an external workflow provider over HTTP. The request
// body is built by resolving input_mapping against the session context; the
// raw JSON response becomes the step output, with an optional sub-value
// extracted via response_path and republished under output_key.
type InvokeWorkflow struct {
	client *http.Client
	getenv func(string) string
}

// NewInvokeWorkflow wires the handler to its HTTP client and env lookup.
func NewInvokeWorkflow(deps Deps) *InvokeWorkflow {
	return &InvokeWorkflow{client: deps.HTTPClient, getenv: deps.Getenv}
}

func (h *InvokeWorkflow) Kind() string        { return workflow.ComponentInvokeWorkflow }
func (h *InvokeWorkflow) RequiresInput() bool { return false }

func (h *InvokeWorkflow) Execute(ctx context.Context, inv *Invocation) (*domain.ComponentResult, error) {
	var params invokeWorkflowParams
	if err := decodeParams(inv.Step, &params); err != nil {
		return nil, err
	}
	if params.Workflow == "" {
		return nil, &domain.InvalidComponentConfigError{StepID: inv.Step.ID, Reason: "params.workflow is required"}
	}
	provider, ok := inv.Document.Workflows[params.Workflow]
	if !ok {
		return nil, &domain.InvalidComponentConfigError{StepID: inv.Step.ID, Reason: fmt.Sprintf("provider %q is not declared", params.Workflow)}
	}

	resolved, err := expressions.Resolve(params.InputMapping, inv.Context)
	if err != nil {
		return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "resolve input_mapping", Cause: err}
	}
	inputs, _ := resolved.(map[string]any)
	if inputs == nil {
		inputs = map[string]any{}
	}

	body := any(map[string]any{"inputs": inputs})
	if params.WrapInputs != nil && !*params.WrapInputs {
		body = inputs
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "encode request body", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, provider.RequestMethod(), provider.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "build provider request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if provider.APIKeyEnv != "" {
		if key := h.getenv(provider.APIKeyEnv); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}

	inv.Logger.Debug("invoking workflow provider",
		"provider", params.Workflow, "endpoint", provider.Endpoint, "method", provider.RequestMethod())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "provider request failed", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponse))
	if err != nil {
		return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "read provider response", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.ComponentExecutionError{
			StepID: inv.Step.ID,
			Reason: fmt.Sprintf("provider %q returned status %d", params.Workflow, resp.StatusCode),
		}
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "provider response is not JSON", Cause: err}
	}

	extracted := data
	if params.ResponsePath != "" {
		root, ok := data.(map[string]any)
		if !ok {
			return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "response_path requires an object response"}
		}
		extracted, err = expressions.ResolvePath(root, params.ResponsePath)
		if err != nil {
			return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "extract response_path", Cause: err}
		}
	}

	result := &domain.ComponentResult{
		Output:         data,
		ActivateUIStep: params.UIStep,
	}
	if params.OutputKey != "" {
		result.Public = map[string]any{params.OutputKey: extracted}
	}
	return result, nil
}
