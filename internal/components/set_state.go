package components

import (
	"context"
	"sort"

	"github.com/tessellate-io/weft/internal/expressions"
	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/workflow"
)

type setStateParams struct {
	Updates map[string]any `mapstructure:"updates"`
	// Private routes the updates into the handler-internal namespace.
	Private bool   `mapstructure:"private"`
	UIStep  string `mapstructure:"ui_step"`
}

// SetState resolves every entry of the updates map against the current
// context and merges the results. Literals pass through unchanged.
type SetState struct{}

func NewSetState() *SetState { return &SetState{} }

func (h *SetState) Kind() string        { return workflow.ComponentSetState }
func (h *SetState) RequiresInput() bool { return false }

func (h *SetState) Execute(_ context.Context, inv *Invocation) (*domain.ComponentResult, error) {
	var params setStateParams
	if err := decodeParams(inv.Step, &params); err != nil {
		return nil, err
	}

	updates := make(map[string]any, len(params.Updates))
	for key, value := range params.Updates {
		resolved, err := expressions.Resolve(value, inv.Context)
		if err != nil {
			return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "resolve update " + key, Cause: err}
		}
		updates[key] = resolved
	}

	result := &domain.ComponentResult{
		Output:         map[string]any{"keys": sortedKeys(updates)},
		ActivateUIStep: params.UIStep,
	}
	if params.Private {
		result.Private = updates
	} else {
		result.Public = updates
	}
	return result, nil
}

func sortedKeys(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
