package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/dshills/reqtrace/internal/matrix"
)

type markdownExporter struct{}

var mdFuncs = template.FuncMap{
	"cell": func(s string) string {
		s = strings.ReplaceAll(s, "|", `\|`)
		return strings.Join(strings.Fields(s), " ")
	},
	"join": func(ids []string) string { return strings.Join(ids, ", ") },
}

var mdTemplate = template.Must(template.New("matrix").Funcs(mdFuncs).Parse(`# Traceability Matrix

| ID | Type | Description | Implements | Implemented By |
|----|------|-------------|------------|----------------|
{{ range . }}| {{ .ID }} | {{ .DocumentType }} | {{ cell .Description }} | {{ join .Implements }} | {{ join .ImplementedBy }} |
{{ end }}`))

func (e *markdownExporter) Export(m *matrix.Matrix) ([]byte, error) {
	var buf bytes.Buffer
	if err := mdTemplate.Execute(&buf, sortedEntries(m)); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.Bytes(), nil
}
