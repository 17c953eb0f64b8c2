package analysis

import (
	"github.com/dshills/reqtrace/internal/matrix"
	"github.com/dshills/reqtrace/internal/schema"
)

// BrokenLinkReason is reported for every link to an unknown requirement.
const BrokenLinkReason = "Target requirement does not exist."

// DocumentLinks pairs the links extracted from one document with that
// document's type.
type DocumentLinks struct {
	DocumentType schema.DocumentType
	Links        []schema.Link
}

// Validation is the outcome of checking a matrix for traceability defects.
type Validation struct {
	Orphaned      []schema.OrphanedRequirement
	Unimplemented []schema.UnimplementedRequirement
	BrokenLinks   []schema.BrokenLink
}

// IsValid reports whether no defect of any kind was found.
func (v Validation) IsValid() bool {
	return len(v.Orphaned) == 0 && len(v.Unimplemented) == 0 && len(v.BrokenLinks) == 0
}

// Validate checks every registered requirement and every extracted link.
//
// A requirement is orphaned when it is not of the root type and nothing
// links to it. Otherwise it is unimplemented when it is not of a terminal
// type and links to nothing. Each requirement lands in at most one of the
// two lists. A link is broken when its target is not registered; every
// extracted occurrence is reported, so a target missing from two documents
// appears twice.
func Validate(m *matrix.Matrix, docs []DocumentLinks) Validation {
	v := Validation{
		Orphaned:      []schema.OrphanedRequirement{},
		Unimplemented: []schema.UnimplementedRequirement{},
		BrokenLinks:   []schema.BrokenLink{},
	}

	for _, r := range m.Requirements() {
		switch {
		case !r.DocumentType.IsRoot() && !m.HasBackward(r.ID):
			v.Orphaned = append(v.Orphaned, schema.OrphanedRequirement{
				ID: r.ID, DocumentType: r.DocumentType, Description: r.Description,
			})
		case !r.DocumentType.IsTerminal() && !m.HasForward(r.ID):
			v.Unimplemented = append(v.Unimplemented, schema.UnimplementedRequirement{
				ID: r.ID, DocumentType: r.DocumentType, Description: r.Description,
			})
		}
	}

	known := m.IDs()
	for _, d := range docs {
		for _, l := range d.Links {
			if known[l.Target] {
				continue
			}
			v.BrokenLinks = append(v.BrokenLinks, schema.BrokenLink{
				Source:       l.Source,
				Target:       l.Target,
				DocumentType: d.DocumentType,
				Reason:       BrokenLinkReason,
			})
		}
	}
	return v
}
