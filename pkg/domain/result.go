package domain

import "encoding/base64"

// ComponentResult is the only channel through which a handler can change a
// session. The engine merges the deltas, records the output under the step's
// slot, and honors NextStep as an explicit jump target.
type ComponentResult struct {
	// Public holds context updates visible to the client.
	Public map[string]any
	// Private holds handler-internal context updates.
	Private map[string]any
	// Output is recorded under the step's output slot for later expressions.
	Output any
	// NextStep, when set, overrides document order for the following step.
	NextStep string
	// ActivateUIStep, when set, becomes the session's active UI step.
	ActivateUIStep string
}

// FileUpload is the payload shape expected by interactive file steps.
type FileUpload struct {
	Name        string `json:"name"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// Decode returns the raw bytes behind the base64 content field.
func (f *FileUpload) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Content)
}
