package dsl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-io/weft/internal/components"
	"github.com/tessellate-io/weft/internal/runtime"
	"github.com/tessellate-io/weft/pkg/adapters/memory"
	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/workflow"
)

func TestBuildDocument(t *testing.T) {
	doc, err := New("grader").
		Description("Grades submissions").
		Provider("scorer", workflow.Provider{Endpoint: "https://scorer.internal/run"}).
		SetState("seed", map[string]any{"threshold": 70}).Done().
		Branch("gate", "score >= threshold", "approve", "reject").Done().
		SetState("approve", map[string]any{"verdict": "pass"}).Next("finish").Done().
		SetState("reject", map[string]any{"verdict": "fail"}).Done().
		SetState("finish", map[string]any{"done": true}).UIStep("summary").Done().
		UIStep("summary", "Summary").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "grader", doc.Info.Name)
	assert.Len(t, doc.Pipeline.Steps, 5)
	assert.Equal(t, workflow.ProviderExternal, doc.Workflows["scorer"].Kind)
	assert.Equal(t, "finish", doc.Pipeline.Steps[2].Next)
	assert.Equal(t, "summary", doc.Pipeline.Steps[4].Params["ui_step"])
	require.NotNil(t, doc.UI)
	assert.Equal(t, "wizard", doc.UI.Layout)
}

func TestBuildRejectsInvalidDocument(t *testing.T) {
	_, err := New("broken").
		Step("a", "set-state").Next("missing").Done().
		Build()
	var schemaErr *workflow.SchemaError
	require.ErrorAs(t, err, &schemaErr)

	_, err = New("broken").
		Invoke("call", "undeclared").Done().
		Build()
	assert.ErrorAs(t, err, &schemaErr)
}

func TestBuiltDocumentRuns(t *testing.T) {
	doc, err := New("mini").
		SetState("greet", map[string]any{"message": "hi"}).Done().
		Build()
	require.NoError(t, err)

	engine := runtime.NewEngine(doc, memory.NewStore(), components.NewRegistry(components.Deps{}))
	ctx := context.Background()

	session, err := engine.CreateSession(ctx)
	require.NoError(t, err)
	session, err = engine.Advance(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, session.Status)
	assert.Equal(t, "hi", session.Context.Public["message"])
}
