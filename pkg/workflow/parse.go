package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parse decodes and validates a workflow document. It either returns a fully
// usable model or a *SchemaError listing every violation found; a document
// that fails any check produces no partial model.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &SchemaError{Violations: []string{fmt.Sprintf("malformed YAML: %v", err)}}
	}

	doc.applyDefaults()

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Serialize renders the document back to canonical YAML. Parse(Serialize(d))
// yields a semantically identical document; a normalized copy is persisted
// after validation.
func Serialize(doc *Document) ([]byte, error) {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("serialize workflow document: %w", err)
	}
	return out, nil
}

func (d *Document) applyDefaults() {
	if d.Info.Version == "" {
		d.Info.Version = "1.0.0"
	}
	for id, p := range d.Workflows {
		if p.Method == "" {
			p.Method = "POST"
			d.Workflows[id] = p
		}
	}
	if d.UI != nil && d.UI.Layout == "" {
		d.UI.Layout = "wizard"
	}
}
