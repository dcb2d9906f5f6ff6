package expressions

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator evaluates step condition expressions against the merged session
// context.
type Evaluator struct{}

// NewEvaluator creates an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate compiles the expression against the context map and runs it. All
// context keys are available as top-level variables and shadow expr builtins
// of the same name (count, len, type, ...); undefined variables evaluate to
// nil instead of failing compilation. Compilation happens per call because
// the set of declared variables changes with the context.
func (e *Evaluator) Evaluate(expression string, env map[string]any) (any, error) {
	if expression == "" {
		return nil, fmt.Errorf("empty condition expression")
	}
	if env == nil {
		env = map[string]any{}
	}

	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", expression, err)
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate condition %q: %w", expression, err)
	}
	return out, nil
}

// Truthy applies the condition short-circuit semantics: nil, false, zero
// numbers, and empty strings/containers are falsy, everything else truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
