// Package graph renders a workflow pipeline as a Mermaid flowchart, with an
// optional overlay highlighting one session's progress.
package graph

import (
	"fmt"
	"strings"

	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/workflow"
)

// Overlay carries per-session state to visualize on the graph.
type Overlay struct {
	StepStatus map[string]domain.StepStatus
	WaitingFor string
}

// GenerateMermaid produces Mermaid flowchart syntax for the pipeline.
// Shapes are semantic:
//   - accept-file: [/parallelogram/] (user input)
//   - invoke-workflow: [[subroutine]] (external call)
//   - branch: {diamond}
//   - everything else: [rectangle]
//
// Edges follow document order; next, branch, and on_error targets are drawn
// explicitly, with on_error dotted.
func GenerateMermaid(doc *workflow.Document, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	steps := doc.Pipeline.Steps
	for i, step := range steps {
		safeID := sanitizeID(step.ID)

		opener, closer := "[", "]"
		switch step.Component {
		case workflow.ComponentAcceptFile:
			opener, closer = "[/", "/]"
		case workflow.ComponentInvokeWorkflow:
			opener, closer = "[[", "]]"
		case workflow.ComponentBranch:
			opener, closer = "{", "}"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, step.ID, closer))

		for _, edge := range edgesFor(&steps[i], steps, i) {
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, edge.arrow, sanitizeID(edge.target)))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Session overlay\n")
		sb.WriteString("    classDef completed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef waiting fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#b71c1c,stroke-width:2px,color:#000;\n")

		for _, step := range steps {
			switch overlay.StepStatus[step.ID] {
			case domain.StepCompleted:
				sb.WriteString(fmt.Sprintf("    class %s completed;\n", sanitizeID(step.ID)))
			case domain.StepError:
				sb.WriteString(fmt.Sprintf("    class %s failed;\n", sanitizeID(step.ID)))
			}
		}
		if overlay.WaitingFor != "" {
			sb.WriteString(fmt.Sprintf("    class %s waiting;\n", sanitizeID(overlay.WaitingFor)))
		}
	}

	return sb.String()
}

type edge struct {
	arrow  string
	target string
}

func edgesFor(step *workflow.Step, steps []workflow.Step, index int) []edge {
	var edges []edge

	if step.Component == workflow.ComponentBranch {
		if then, _ := step.Params["then"].(string); then != "" {
			edges = append(edges, edge{arrow: labeledArrow(conditionLabel(step)), target: then})
		}
		if otherwise, _ := step.Params["else"].(string); otherwise != "" {
			edges = append(edges, edge{arrow: labeledArrow("else"), target: otherwise})
		}
	} else if step.Next != "" {
		edges = append(edges, edge{arrow: "-->", target: step.Next})
	} else if index+1 < len(steps) {
		edges = append(edges, edge{arrow: "-->", target: steps[index+1].ID})
	}

	if step.OnError != "" {
		edges = append(edges, edge{arrow: "-. \"on error\" .->", target: step.OnError})
	}
	return edges
}

func conditionLabel(step *workflow.Step) string {
	when, _ := step.Params["when"].(string)
	if when == "" {
		return "then"
	}
	// Mermaid labels cannot carry double quotes.
	return strings.ReplaceAll(when, "\"", "'")
}

func labeledArrow(label string) string {
	return fmt.Sprintf("-- \"%s\" -->", label)
}

func sanitizeID(id string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_")
	return replacer.Replace(id)
}
