package components

import (
	"context"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"

	"github.com/tessellate-io/weft/internal/expressions"
	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/workflow"
)

type acceptFileParams struct {
	// Slot is the submission slot to read. Defaults to the step id.
	Slot string `mapstructure:"slot"`
	// OutputKey is the public context key for the file metadata.
	OutputKey string `mapstructure:"output_key"`
	// ContentKey is the private context key for the decoded content.
	ContentKey string `mapstructure:"content_key"`
	// Mode controls decoding: "text" (default) or "binary".
	Mode   string `mapstructure:"mode"`
	UIStep string `mapstructure:"ui_step"`
}

// AcceptFile consumes an uploaded file from the step's input slot. When the
// slot is empty the step reports MissingInputError so the engine stays in
// waiting_for_input instead of failing. Decoded content goes to private
// context; only normalized metadata is published and recorded as output.
type AcceptFile struct{}

// NewAcceptFile creates the handler. Deps are accepted for wiring symmetry.
func NewAcceptFile(Deps) *AcceptFile { return &AcceptFile{} }

func (h *AcceptFile) Kind() string        { return workflow.ComponentAcceptFile }
func (h *AcceptFile) RequiresInput() bool { return true }

func (h *AcceptFile) Execute(_ context.Context, inv *Invocation) (*domain.ComponentResult, error) {
	var params acceptFileParams
	if err := decodeParams(inv.Step, &params); err != nil {
		return nil, err
	}
	if params.Slot == "" {
		params.Slot = inv.Step.ID
	}
	if params.OutputKey == "" {
		params.OutputKey = params.Slot
	}
	if params.ContentKey == "" {
		params.ContentKey = params.Slot + "_content"
	}

	value, err := expressions.ResolvePath(inv.Context, "inputs."+params.Slot)
	if err != nil {
		if expressions.IsNotFound(err) {
			return nil, &domain.MissingInputError{Slot: params.Slot}
		}
		return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "read input slot", Cause: err}
	}

	var upload domain.FileUpload
	if err := mapstructure.Decode(value, &upload); err != nil || upload.Content == "" {
		return nil, &domain.ComponentExecutionError{
			StepID: inv.Step.ID,
			Reason: "input slot does not hold a {name, content, contentType} payload",
		}
	}

	raw, err := upload.Decode()
	if err != nil {
		return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "decode file content", Cause: err}
	}

	var content any
	switch params.Mode {
	case "", "text":
		if !utf8.Valid(raw) {
			return nil, &domain.ComponentExecutionError{StepID: inv.Step.ID, Reason: "file content is not valid UTF-8 text"}
		}
		content = string(raw)
	case "binary":
		// Keep the base64 form so the session stays JSON-serializable.
		content = upload.Content
	default:
		return nil, &domain.InvalidComponentConfigError{StepID: inv.Step.ID, Reason: "mode must be \"text\" or \"binary\""}
	}

	meta := map[string]any{
		"name":         upload.Name,
		"content_type": upload.ContentType,
		"size":         len(raw),
	}

	inv.Logger.Info("file accepted", "slot", params.Slot, "name", upload.Name, "size", len(raw))

	return &domain.ComponentResult{
		Public:  map[string]any{params.OutputKey: meta},
		Private: map[string]any{params.ContentKey: content},
		// Output carries metadata only; raw bytes never reach step outputs.
		Output:         meta,
		ActivateUIStep: params.UIStep,
	}, nil
}
