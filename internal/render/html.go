package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/dshills/reqtrace/internal/matrix"
)

type htmlExporter struct{}

var htmlTemplate = template.Must(template.New("matrix").Funcs(template.FuncMap{
	"join": func(ids []string) string { return strings.Join(ids, ", ") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Traceability Matrix</title>
<style>
table { border-collapse: collapse; }
th, td { border: 1px solid #444; padding: 4px 8px; text-align: left; }
</style>
</head>
<body>
<h1>Traceability Matrix</h1>
<table border="1">
<tr><th>ID</th><th>Type</th><th>Description</th><th>Implements</th><th>Implemented By</th></tr>
{{- range . }}
<tr><td>{{ .ID }}</td><td>{{ .DocumentType }}</td><td>{{ .Description }}</td><td>{{ join .Implements }}</td><td>{{ join .ImplementedBy }}</td></tr>
{{- end }}
</table>
</body>
</html>
`))

func (e *htmlExporter) Export(m *matrix.Matrix) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, sortedEntries(m)); err != nil {
		return nil, fmt.Errorf("rendering html: %w", err)
	}
	return buf.Bytes(), nil
}
