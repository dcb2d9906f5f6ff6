package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
info:
  name: csv-summarizer
  description: Upload a CSV and summarize it.
workflows:
  summarize:
    provider: external
    endpoint: http://localhost:9001/v1/workflows/run
    api_key_env: SUMMARIZE_API_KEY
  classify:
    provider: mock
    endpoint: http://localhost:9002/run
pipeline:
  steps:
    - id: seed
      component: set-state
      params:
        updates:
          greeting: hello
    - id: upload
      component: accept-file
      params:
        slot: upload
        output_key: csv_meta
        ui_step: upload-screen
    - id: summarize
      component: invoke-workflow
      params:
        workflow: summarize
        input_mapping:
          text: "{{ csv_text }}"
        output_key: summary
ui:
  steps:
    - id: upload-screen
      title: Upload your file
      components:
        - type: file_upload
          id: upload
    - id: result-screen
      title: Results
`

func TestParse_Valid(t *testing.T) {
	doc, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	assert.Equal(t, "csv-summarizer", doc.Info.Name)
	assert.Equal(t, "1.0.0", doc.Info.Version, "version defaults")
	assert.Len(t, doc.Pipeline.Steps, 3)
	assert.Equal(t, "POST", doc.Workflows["summarize"].RequestMethod())
	assert.Equal(t, "wizard", doc.UI.Layout, "layout defaults")
	assert.Equal(t, "upload-screen", doc.FirstUIStep())
	assert.Equal(t, "result-screen", doc.LastUIStep())
	assert.Equal(t, 2, doc.StepIndex("summarize"))
	assert.Nil(t, doc.StepByID("nope"))
}

func TestParse_SerializeRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	out, err := Serialize(doc)
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("info: [unclosed"))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestParse_CollectsAllViolations(t *testing.T) {
	bad := `
info:
  description: nameless
workflows:
  broken:
    provider: carrier-pigeon
pipeline:
  steps:
    - id: a
      component: set-state
    - id: a
      component: teleport
    - id: b
      component: invoke-workflow
      params:
        workflow: missing-provider
      on_error: ghost
ui:
  steps:
    - id: s1
      title: One
    - id: s1
      title: Dup
`
	_, err := Parse([]byte(bad))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)

	msgs := schemaErr.Violations
	assert.GreaterOrEqual(t, len(msgs), 7)
	assert.Contains(t, schemaErr.Error(), "info.name is required")
	assert.Contains(t, schemaErr.Error(), `duplicate step id "a"`)
	assert.Contains(t, schemaErr.Error(), `unknown component "teleport"`)
	assert.Contains(t, schemaErr.Error(), `undeclared provider "missing-provider"`)
	assert.Contains(t, schemaErr.Error(), `on_error target "ghost"`)
	assert.Contains(t, schemaErr.Error(), `duplicate ui step id "s1"`)
}

func TestValidate_BranchTargets(t *testing.T) {
	doc := &Document{
		Info: Info{Name: "branchy"},
		Pipeline: Pipeline{Steps: []Step{
			{ID: "check", Component: ComponentBranch, Params: map[string]any{
				"when": "ready",
				"then": "finish",
				"else": "nowhere",
			}},
			{ID: "finish", Component: ComponentSetState},
		}},
	}
	err := doc.Validate()
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Error(), `branch else target "nowhere"`)
}

func TestValidate_ForwardNextTarget(t *testing.T) {
	doc := &Document{
		Info: Info{Name: "fwd"},
		Pipeline: Pipeline{Steps: []Step{
			{ID: "a", Component: ComponentSetState, Next: "c"},
			{ID: "b", Component: ComponentSetState},
			{ID: "c", Component: ComponentSetState},
		}},
	}
	assert.NoError(t, doc.Validate())
}
