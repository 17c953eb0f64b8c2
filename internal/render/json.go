package render

import (
	"encoding/json"

	"github.com/dshills/reqtrace/internal/matrix"
	"github.com/dshills/reqtrace/internal/schema"
)

type jsonExporter struct{}

type jsonRequirement struct {
	ID            string              `json:"id"`
	Type          schema.DocumentType `json:"type"`
	Description   string              `json:"description"`
	Implements    []string            `json:"implements"`
	ImplementedBy []string            `json:"implementedBy"`
}

type jsonDocument struct {
	Requirements []jsonRequirement `json:"requirements"`
}

func (e *jsonExporter) Export(m *matrix.Matrix) ([]byte, error) {
	doc := jsonDocument{Requirements: []jsonRequirement{}}
	for _, entry := range Entries(m) {
		doc.Requirements = append(doc.Requirements, jsonRequirement{
			ID:            entry.ID,
			Type:          entry.DocumentType,
			Description:   entry.Description,
			Implements:    entry.Implements,
			ImplementedBy: entry.ImplementedBy,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}
