package analysis

import (
	"github.com/dshills/reqtrace/internal/matrix"
	"github.com/dshills/reqtrace/internal/schema"
)

// Statistics aggregates m. Orphaned here means a non-root requirement with
// no link in either direction.
func Statistics(m *matrix.Matrix, documents int) schema.Statistics {
	s := schema.Statistics{
		TotalRequirements:  m.Len(),
		TotalLinks:         m.LinkCount(),
		RequirementsByType: make(map[schema.DocumentType]int),
		LinksByType:        make(map[schema.LinkType]int),
		DocumentsProcessed: documents,
	}
	for _, r := range m.Requirements() {
		s.RequirementsByType[r.DocumentType]++
		if !r.DocumentType.IsRoot() && !m.HasForward(r.ID) && !m.HasBackward(r.ID) {
			s.OrphanedRequirements++
		}
	}
	for _, l := range m.Links() {
		if m.Has(l.Source) {
			s.LinksByType[l.Type]++
		}
	}
	return s
}
