package workflow

import (
	"fmt"
	"strings"
)

// SchemaError aggregates every structural or referential violation found in
// a document. Load-time only; a session never observes a partially valid
// document.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	if len(e.Violations) == 1 {
		return "workflow document invalid: " + e.Violations[0]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "workflow document invalid: %d violations:\n", len(e.Violations))
	for i, v := range e.Violations {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, v)
	}
	return b.String()
}

// Validate checks structural shape, id uniqueness, and referential integrity.
// It fails atomically: all violations are collected and returned together.
func (d *Document) Validate() error {
	var violations []string

	if d.Info.Name == "" {
		violations = append(violations, "info.name is required")
	}

	for id, p := range d.Workflows {
		if id == "" {
			violations = append(violations, "workflows: empty provider id")
			continue
		}
		if p.Kind != ProviderMock && p.Kind != ProviderExternal {
			violations = append(violations, fmt.Sprintf("workflows.%s: provider kind must be %q or %q, got %q", id, ProviderMock, ProviderExternal, p.Kind))
		}
		if p.Endpoint == "" {
			violations = append(violations, fmt.Sprintf("workflows.%s: endpoint is required", id))
		}
	}

	stepIDs := make(map[string]bool, len(d.Pipeline.Steps))
	for i, s := range d.Pipeline.Steps {
		where := fmt.Sprintf("pipeline.steps[%d]", i)
		if s.ID == "" {
			violations = append(violations, where+": id is required")
		} else if stepIDs[s.ID] {
			violations = append(violations, fmt.Sprintf("%s: duplicate step id %q", where, s.ID))
		} else {
			stepIDs[s.ID] = true
		}
		if !knownComponent(s.Component) {
			violations = append(violations, fmt.Sprintf("%s: unknown component %q", where, s.Component))
		}
		if s.Component == ComponentInvokeWorkflow {
			if ref, _ := s.Params["workflow"].(string); ref == "" {
				violations = append(violations, where+": invoke-workflow requires params.workflow")
			} else if _, ok := d.Workflows[ref]; !ok {
				violations = append(violations, fmt.Sprintf("%s: references undeclared provider %q", where, ref))
			}
		}
	}

	// Jump targets must land on declared steps. Checked in a second pass so
	// forward references validate.
	for i, s := range d.Pipeline.Steps {
		where := fmt.Sprintf("pipeline.steps[%d]", i)
		for field, target := range map[string]string{"next": s.Next, "on_error": s.OnError} {
			if target != "" && !stepIDs[target] {
				violations = append(violations, fmt.Sprintf("%s: %s target %q is not a declared step", where, field, target))
			}
		}
		if s.Component == ComponentBranch {
			for _, field := range []string{"then", "else"} {
				if target, _ := s.Params[field].(string); target != "" && !stepIDs[target] {
					violations = append(violations, fmt.Sprintf("%s: branch %s target %q is not a declared step", where, field, target))
				}
			}
		}
	}

	if d.UI != nil {
		uiIDs := make(map[string]bool, len(d.UI.Steps))
		for i, s := range d.UI.Steps {
			where := fmt.Sprintf("ui.steps[%d]", i)
			if s.ID == "" {
				violations = append(violations, where+": id is required")
			} else if uiIDs[s.ID] {
				violations = append(violations, fmt.Sprintf("%s: duplicate ui step id %q", where, s.ID))
			} else {
				uiIDs[s.ID] = true
			}
		}
	}

	if len(violations) > 0 {
		return &SchemaError{Violations: violations}
	}
	return nil
}

func knownComponent(name string) bool {
	for _, known := range KnownComponents {
		if name == known {
			return true
		}
	}
	return false
}
