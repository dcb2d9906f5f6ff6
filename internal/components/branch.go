package components

import (
	"context"

	"github.com/tessellate-io/weft/internal/expressions"
	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/workflow"
)

type branchParams struct {
	When string `mapstructure:"when"`
	Then string `mapstructure:"then"`
	Else string `mapstructure:"else"`
}

// Branch evaluates a condition against the session context and redirects the
// pipeline to the matching target step. An empty target means "continue in
// document order".
type Branch struct {
	evaluator *expressions.Evaluator
}

func NewBranch(evaluator *expressions.Evaluator) *Branch {
	return &Branch{evaluator: evaluator}
}

func (h *Branch) Kind() string        { return workflow.ComponentBranch }
func (h *Branch) RequiresInput() bool { return false }

func (h *Branch) Execute(_ context.Context, inv *Invocation) (*domain.ComponentResult, error) {
	var params branchParams
	if err := decodeParams(inv.Step, &params); err != nil {
		return nil, err
	}
	if params.When == "" {
		return nil, &domain.InvalidComponentConfigError{StepID: inv.Step.ID, Reason: "params.when is required"}
	}

	out, err := h.evaluator.Evaluate(params.When, inv.Context)
	if err != nil {
		return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "evaluate branch condition", Cause: err}
	}

	matched := expressions.Truthy(out)
	target := params.Else
	if matched {
		target = params.Then
	}

	return &domain.ComponentResult{
		NextStep: target,
		Output:   map[string]any{"matched": matched},
	}, nil
}
