package analysis

import (
	"github.com/dshills/reqtrace/internal/matrix"
	"github.com/dshills/reqtrace/internal/schema"
)

// Gaps reports coverage of upstream and downstream links.
//
// Unlike Validate, the two lists are independent: a requirement with no
// links in either direction appears in both.
type Gaps struct {
	MissingUpstream     []string
	MissingDownstream   []string
	RequiringUpstream   int
	RequiringDownstream int
	UpstreamCoverage    float64
	DownstreamCoverage  float64
	ByDocumentType      map[schema.DocumentType][]string
}

// AnalyzeGaps computes the gap lists and coverage percentages for m.
func AnalyzeGaps(m *matrix.Matrix) Gaps {
	g := Gaps{
		MissingUpstream:   []string{},
		MissingDownstream: []string{},
		ByDocumentType:    make(map[schema.DocumentType][]string),
	}

	grouped := make(map[string]bool)
	group := func(r schema.Requirement) {
		if grouped[r.ID] {
			return
		}
		grouped[r.ID] = true
		g.ByDocumentType[r.DocumentType] = append(g.ByDocumentType[r.DocumentType], r.ID)
	}

	for _, r := range m.Requirements() {
		if !r.DocumentType.IsRoot() {
			g.RequiringUpstream++
			if !m.HasBackward(r.ID) {
				g.MissingUpstream = append(g.MissingUpstream, r.ID)
				group(r)
			}
		}
		if !r.DocumentType.IsTerminal() {
			g.RequiringDownstream++
			if !m.HasForward(r.ID) {
				g.MissingDownstream = append(g.MissingDownstream, r.ID)
				group(r)
			}
		}
	}

	g.UpstreamCoverage = coverage(g.RequiringUpstream, len(g.MissingUpstream))
	g.DownstreamCoverage = coverage(g.RequiringDownstream, len(g.MissingDownstream))
	return g
}

// coverage returns the covered share of required as a percentage in [0, 100].
// An empty requirement set is fully covered.
func coverage(required, missing int) float64 {
	if required == 0 {
		return 100
	}
	pct := float64(required-missing) / float64(required) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
