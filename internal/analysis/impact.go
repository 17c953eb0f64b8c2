// Package analysis answers structural questions over a built Matrix:
// change impact, traceability validation, coverage gaps and statistics.
// Every function is a read-only consumer of the matrix it is given.
package analysis

import (
	"sort"
	"strings"

	"github.com/dshills/reqtrace/internal/matrix"
	"github.com/dshills/reqtrace/internal/schema"
)

// sensitiveKeywords force High severity when present in a changed
// requirement's description, regardless of impact size.
var sensitiveKeywords = []string{"auth", "security", "encrypt", "password", "access", "permission", "audit"}

// Impact describes the downstream effect of changing one requirement.
type Impact struct {
	Direct            []string
	Indirect          []string
	Severity          schema.Severity
	AffectedDocuments []schema.DocumentType
}

// Total returns the number of impacted requirements, direct plus indirect.
func (i Impact) Total() int { return len(i.Direct) + len(i.Indirect) }

// ChangeImpact computes the direct and transitive forward reach of changedID.
// The changed requirement is never part of its own impact, even through a
// cycle. Traversal is bounded by the number of distinct IDs in the matrix.
func ChangeImpact(m *matrix.Matrix, changedID string) Impact {
	direct := m.Forward(changedID)

	visited := map[string]bool{changedID: true}
	for _, id := range direct {
		visited[id] = true
	}

	queue := append([]string(nil), direct...)
	var indirect []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range m.Forward(current) {
			if visited[next] {
				continue
			}
			visited[next] = true
			indirect = append(indirect, next)
			queue = append(queue, next)
		}
	}

	description := ""
	if r, ok := m.Requirement(changedID); ok {
		description = r.Description
	}

	return Impact{
		Direct:            nonNil(direct),
		Indirect:          nonNil(indirect),
		Severity:          Severity(description, len(direct)+len(indirect)),
		AffectedDocuments: affectedDocuments(m, changedID, direct, indirect),
	}
}

// Severity classifies a change. A sensitive keyword in the description is
// always High; otherwise >10 impacted is Critical, >5 High, >2 Medium, else Low.
func Severity(description string, impacted int) schema.Severity {
	lower := strings.ToLower(description)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return schema.SeverityHigh
		}
	}
	switch {
	case impacted > 10:
		return schema.SeverityCritical
	case impacted > 5:
		return schema.SeverityHigh
	case impacted > 2:
		return schema.SeverityMedium
	default:
		return schema.SeverityLow
	}
}

// affectedDocuments returns the distinct document types owning any of the
// changed, direct or indirect requirements. Dangling IDs own no document.
func affectedDocuments(m *matrix.Matrix, changedID string, direct, indirect []string) []schema.DocumentType {
	seen := make(map[schema.DocumentType]bool)
	collect := func(id string) {
		if r, ok := m.Requirement(id); ok {
			seen[r.DocumentType] = true
		}
	}
	collect(changedID)
	for _, id := range direct {
		collect(id)
	}
	for _, id := range indirect {
		collect(id)
	}

	out := make([]schema.DocumentType, 0, len(seen))
	for dt := range seen {
		out = append(out, dt)
	}
	sort.Slice(out, func(i, j int) bool { return schema.LessDocumentType(out[i], out[j]) })
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
