package render

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/dshills/reqtrace/internal/matrix"
	"github.com/dshills/reqtrace/internal/schema"
)

type csvExporter struct{}

// Export writes one row per forward edge. The link type column always
// reads Implements, whatever type the edge was recorded with.
func (e *csvExporter) Export(m *matrix.Matrix) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Source", "Target", "Link Type"}); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, l := range m.Links() {
		if err := w.Write([]string{l.Source, l.Target, string(schema.LinkImplements)}); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	return buf.Bytes(), nil
}
