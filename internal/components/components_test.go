package components

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-io/weft/internal/expressions"
	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/workflow"
)

func invocation(t *testing.T, step *workflow.Step, doc *workflow.Document, ctx map[string]any) *Invocation {
	t.Helper()
	if ctx == nil {
		ctx = map[string]any{}
	}
	return &Invocation{
		Step:     step,
		Document: doc,
		Context:  ctx,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry(Deps{})

	assert.Equal(t, []string{
		workflow.ComponentAcceptFile,
		workflow.ComponentBranch,
		workflow.ComponentInvokeWorkflow,
		workflow.ComponentMapCollection,
		workflow.ComponentSetState,
	}, r.Kinds())

	h, err := r.Get(workflow.ComponentAcceptFile)
	require.NoError(t, err)
	assert.True(t, h.RequiresInput())

	h, err = r.Get(workflow.ComponentSetState)
	require.NoError(t, err)
	assert.False(t, h.RequiresInput())
}

func TestRegistryUnknownComponent(t *testing.T) {
	r := NewRegistry(Deps{})

	_, err := r.Get("teleport")
	var unknown *domain.UnknownComponentError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "teleport", unknown.Name)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry(Deps{})
	err := r.Register(NewSetState())
	assert.Error(t, err)
}

func TestSetStateResolvesUpdates(t *testing.T) {
	h := NewSetState()
	step := &workflow.Step{
		ID:        "prepare",
		Component: workflow.ComponentSetState,
		Params: map[string]any{
			"updates": map[string]any{
				"greeting": "hello {{ user.name }}",
				"age":      "{{ user.age }}",
				"fixed":    42,
			},
		},
	}
	ctx := map[string]any{"user": map[string]any{"name": "ada", "age": 36}}

	result, err := h.Execute(context.Background(), invocation(t, step, nil, ctx))
	require.NoError(t, err)
	assert.Equal(t, "hello ada", result.Public["greeting"])
	assert.Equal(t, 36, result.Public["age"])
	assert.Equal(t, 42, result.Public["fixed"])
	assert.Empty(t, result.Private)
}

func TestSetStatePrivateUpdates(t *testing.T) {
	h := NewSetState()
	step := &workflow.Step{
		ID:        "stash",
		Component: workflow.ComponentSetState,
		Params: map[string]any{
			"private": true,
			"updates": map[string]any{"token": "secret"},
		},
	}

	result, err := h.Execute(context.Background(), invocation(t, step, nil, nil))
	require.NoError(t, err)
	assert.Empty(t, result.Public)
	assert.Equal(t, "secret", result.Private["token"])
}

func TestSetStateMissingReference(t *testing.T) {
	h := NewSetState()
	step := &workflow.Step{
		ID:        "prepare",
		Component: workflow.ComponentSetState,
		Params: map[string]any{
			"updates": map[string]any{"v": "{{ nothing.here }}"},
		},
	}

	_, err := h.Execute(context.Background(), invocation(t, step, nil, nil))
	var execErr *domain.ComponentExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "prepare", execErr.StepID)
}

func TestBranchTargets(t *testing.T) {
	h := NewBranch(expressions.NewEvaluator())

	step := func(when string) *workflow.Step {
		return &workflow.Step{
			ID:        "gate",
			Component: workflow.ComponentBranch,
			Params:    map[string]any{"when": when, "then": "approved", "else": "rejected"},
		}
	}
	ctx := map[string]any{"score": 80}

	result, err := h.Execute(context.Background(), invocation(t, step("score > 50"), nil, ctx))
	require.NoError(t, err)
	assert.Equal(t, "approved", result.NextStep)

	result, err = h.Execute(context.Background(), invocation(t, step("score > 90"), nil, ctx))
	require.NoError(t, err)
	assert.Equal(t, "rejected", result.NextStep)
}

func TestBranchRequiresCondition(t *testing.T) {
	h := NewBranch(expressions.NewEvaluator())
	step := &workflow.Step{ID: "gate", Component: workflow.ComponentBranch, Params: map[string]any{"then": "x"}}

	_, err := h.Execute(context.Background(), invocation(t, step, nil, nil))
	var cfgErr *domain.InvalidComponentConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestBranchBadExpression(t *testing.T) {
	h := NewBranch(expressions.NewEvaluator())
	step := &workflow.Step{ID: "gate", Component: workflow.ComponentBranch, Params: map[string]any{"when": "score > (", "then": "x"}}

	_, err := h.Execute(context.Background(), invocation(t, step, nil, nil))
	var execErr *domain.ComponentExecutionError
	assert.ErrorAs(t, err, &execErr)
}

func TestMapCollection(t *testing.T) {
	h := NewMapCollection()
	step := &workflow.Step{
		ID:        "expand",
		Component: workflow.ComponentMapCollection,
		Params: map[string]any{
			"source":   "rows",
			"target":   "labels",
			"template": "{{ index }}: {{ item.name }}",
		},
	}
	ctx := map[string]any{"rows": []any{
		map[string]any{"name": "alpha"},
		map[string]any{"name": "beta"},
	}}

	result, err := h.Execute(context.Background(), invocation(t, step, nil, ctx))
	require.NoError(t, err)
	assert.Equal(t, []any{"0: alpha", "1: beta"}, result.Public["labels"])
	assert.Equal(t, map[string]any{"count": 2}, result.Output)
}

func TestMapCollectionEmptySource(t *testing.T) {
	h := NewMapCollection()
	step := &workflow.Step{
		ID:        "expand",
		Component: workflow.ComponentMapCollection,
		Params:    map[string]any{"source": "rows", "target": "out", "template": "{{ item }}"},
	}

	result, err := h.Execute(context.Background(), invocation(t, step, nil, map[string]any{"rows": []any{}}))
	require.NoError(t, err)
	assert.Equal(t, []any{}, result.Public["out"])
}

func TestMapCollectionNonListSource(t *testing.T) {
	h := NewMapCollection()
	step := &workflow.Step{
		ID:        "expand",
		Component: workflow.ComponentMapCollection,
		Params:    map[string]any{"source": "rows", "target": "out", "template": "{{ item }}"},
	}

	_, err := h.Execute(context.Background(), invocation(t, step, nil, map[string]any{"rows": "not-a-list"}))
	var execErr *domain.ComponentExecutionError
	assert.ErrorAs(t, err, &execErr)
}

func TestAcceptFileMissingInput(t *testing.T) {
	h := NewAcceptFile(Deps{})
	step := &workflow.Step{ID: "upload", Component: workflow.ComponentAcceptFile, Params: map[string]any{}}

	_, err := h.Execute(context.Background(), invocation(t, step, nil, map[string]any{"inputs": map[string]any{}}))
	var missing *domain.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "upload", missing.Slot)
}

func TestAcceptFileText(t *testing.T) {
	h := NewAcceptFile(Deps{})
	step := &workflow.Step{ID: "upload", Component: workflow.ComponentAcceptFile, Params: map[string]any{}}
	ctx := map[string]any{"inputs": map[string]any{
		"upload": map[string]any{
			"name":        "data.csv",
			"content":     base64.StdEncoding.EncodeToString([]byte("a,b\n1,2\n")),
			"contentType": "text/csv",
		},
	}}

	result, err := h.Execute(context.Background(), invocation(t, step, nil, ctx))
	require.NoError(t, err)

	meta, ok := result.Public["upload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "data.csv", meta["name"])
	assert.Equal(t, "text/csv", meta["content_type"])
	assert.Equal(t, 8, meta["size"])
	assert.Equal(t, "a,b\n1,2\n", result.Private["upload_content"])
	assert.Equal(t, meta, result.Output)
}

func TestAcceptFileBinaryKeepsEncoding(t *testing.T) {
	h := NewAcceptFile(Deps{})
	encoded := base64.StdEncoding.EncodeToString([]byte{0x00, 0xff, 0x10})
	step := &workflow.Step{
		ID:        "upload",
		Component: workflow.ComponentAcceptFile,
		Params:    map[string]any{"mode": "binary", "content_key": "blob"},
	}
	ctx := map[string]any{"inputs": map[string]any{
		"upload": map[string]any{"name": "img.png", "content": encoded, "contentType": "image/png"},
	}}

	result, err := h.Execute(context.Background(), invocation(t, step, nil, ctx))
	require.NoError(t, err)
	assert.Equal(t, encoded, result.Private["blob"])
}

func TestAcceptFileRejectsNonTextInTextMode(t *testing.T) {
	h := NewAcceptFile(Deps{})
	step := &workflow.Step{ID: "upload", Component: workflow.ComponentAcceptFile, Params: map[string]any{}}
	ctx := map[string]any{"inputs": map[string]any{
		"upload": map[string]any{
			"name":    "raw.bin",
			"content": base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe}),
		},
	}}

	_, err := h.Execute(context.Background(), invocation(t, step, nil, ctx))
	var execErr *domain.ComponentExecutionError
	assert.ErrorAs(t, err, &execErr)
}

func TestAcceptFileMalformedPayload(t *testing.T) {
	h := NewAcceptFile(Deps{})
	step := &workflow.Step{ID: "upload", Component: workflow.ComponentAcceptFile, Params: map[string]any{}}
	ctx := map[string]any{"inputs": map[string]any{"upload": "just a string"}}

	_, err := h.Execute(context.Background(), invocation(t, step, nil, ctx))
	var execErr *domain.ComponentExecutionError
	assert.ErrorAs(t, err, &execErr)
}

func TestInvokeWorkflow(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"outputs":{"summary":"three rows"},"status":"ok"}`))
	}))
	defer server.Close()

	doc := &workflow.Document{Workflows: map[string]workflow.Provider{
		"summarizer": {Endpoint: server.URL, APIKeyEnv: "SUMMARIZER_KEY"},
	}}
	step := &workflow.Step{
		ID:        "summarize",
		Component: workflow.ComponentInvokeWorkflow,
		Params: map[string]any{
			"workflow":      "summarizer",
			"input_mapping": map[string]any{"text": "{{ csv_content }}"},
			"output_key":    "summary",
			"response_path": "outputs.summary",
		},
	}
	ctx := map[string]any{"csv_content": "a,b\n1,2"}

	h := NewInvokeWorkflow(Deps{
		HTTPClient: server.Client(),
		Getenv: func(key string) string {
			if key == "SUMMARIZER_KEY" {
				return "s3cr3t"
			}
			return ""
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	result, err := h.Execute(context.Background(), invocation(t, step, doc, ctx))
	require.NoError(t, err)

	assert.Equal(t, "Bearer s3cr3t", gotAuth)
	assert.Equal(t, map[string]any{"inputs": map[string]any{"text": "a,b\n1,2"}}, gotBody)
	assert.Equal(t, "three rows", result.Public["summary"])

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", output["status"])
}

func TestInvokeWorkflowUnwrappedBody(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	doc := &workflow.Document{Workflows: map[string]workflow.Provider{
		"echo": {Endpoint: server.URL},
	}}
	step := &workflow.Step{
		ID:        "call",
		Component: workflow.ComponentInvokeWorkflow,
		Params: map[string]any{
			"workflow":      "echo",
			"wrap_inputs":   false,
			"input_mapping": map[string]any{"q": "hi"},
		},
	}

	h := NewInvokeWorkflow(Deps{HTTPClient: server.Client(), Getenv: func(string) string { return "" }})
	_, err := h.Execute(context.Background(), invocation(t, step, doc, nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"q": "hi"}, gotBody)
}

func TestInvokeWorkflowProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	doc := &workflow.Document{Workflows: map[string]workflow.Provider{
		"flaky": {Endpoint: server.URL},
	}}
	step := &workflow.Step{
		ID:        "call",
		Component: workflow.ComponentInvokeWorkflow,
		Params:    map[string]any{"workflow": "flaky"},
	}

	h := NewInvokeWorkflow(Deps{HTTPClient: server.Client(), Getenv: func(string) string { return "" }})
	_, err := h.Execute(context.Background(), invocation(t, step, doc, nil))

	var execErr *domain.ComponentExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Error(), "502")
	assert.False(t, errors.As(err, new(*domain.MissingInputError)))
}

func TestInvokeWorkflowUndeclaredProvider(t *testing.T) {
	doc := &workflow.Document{Workflows: map[string]workflow.Provider{}}
	step := &workflow.Step{
		ID:        "call",
		Component: workflow.ComponentInvokeWorkflow,
		Params:    map[string]any{"workflow": "ghost"},
	}

	h := NewInvokeWorkflow(Deps{HTTPClient: http.DefaultClient, Getenv: func(string) string { return "" }})
	_, err := h.Execute(context.Background(), invocation(t, step, doc, nil))

	var cfgErr *domain.InvalidComponentConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
