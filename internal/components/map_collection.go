package components

import (
	"context"
	"fmt"

	"github.com/tessellate-io/weft/internal/expressions"
	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/workflow"
)

type mapCollectionParams struct {
	Source    string `mapstructure:"source"`
	Target    string `mapstructure:"target"`
	Template  any    `mapstructure:"template"`
	ItemName  string `mapstructure:"item_name"`
	IndexName string `mapstructure:"index_name"`
}

// MapCollection resolves a template once per element of a source list, with
// the element exposed under a local scope name, and publishes the collected
// results. An empty source yields an empty result without any resolution.
type MapCollection struct{}

func NewMapCollection() *MapCollection { return &MapCollection{} }

func (h *MapCollection) Kind() string        { return workflow.ComponentMapCollection }
func (h *MapCollection) RequiresInput() bool { return false }

func (h *MapCollection) Execute(_ context.Context, inv *Invocation) (*domain.ComponentResult, error) {
	var params mapCollectionParams
	if err := decodeParams(inv.Step, &params); err != nil {
		return nil, err
	}
	if params.Source == "" || params.Target == "" || params.Template == nil {
		return nil, &domain.InvalidComponentConfigError{
			StepID: inv.Step.ID,
			Reason: "source, target and template are required",
		}
	}
	if params.ItemName == "" {
		params.ItemName = "item"
	}
	if params.IndexName == "" {
		params.IndexName = "index"
	}

	source, err := expressions.ResolvePath(inv.Context, params.Source)
	if err != nil {
		return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "resolve collection source", Cause: err}
	}
	items, ok := source.([]any)
	if !ok {
		return nil, &domain.ComponentExecutionError{
			StepID: inv.Step.ID,
			Reason: fmt.Sprintf("source %q is not a list (got %T)", params.Source, source),
		}
	}

	results := make([]any, 0, len(items))
	for i, item := range items {
		scope := make(map[string]any, len(inv.Context)+2)
		for k, v := range inv.Context {
			scope[k] = v
		}
		scope[params.ItemName] = item
		scope[params.IndexName] = i

		resolved, err := expressions.Resolve(params.Template, scope)
		if err != nil {
			return nil, &domain.ComponentExecutionError{
				StepID: inv.Step.ID,
				Reason: fmt.Sprintf("resolve template for element %d", i),
				Cause:  err,
			}
		}
		results = append(results, resolved)
	}

	return &domain.ComponentResult{
		Public: map[string]any{params.Target: results},
		Output: map[string]any{"count": len(results)},
	}, nil
}
