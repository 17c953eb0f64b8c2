// Package matrix holds the in-memory traceability graph for one project:
// a requirement registry plus forward and backward adjacency sets.
//
// A Matrix is built per operation and is not safe for concurrent mutation.
package matrix

import (
	"sort"

	"github.com/dshills/reqtrace/internal/schema"
)

// Matrix is a directed graph of requirement IDs. Edges may reference IDs
// that are not registered; those are dangling references, detected by the
// validator rather than rejected here.
type Matrix struct {
	requirements map[string]schema.Requirement
	order        []string // registration order
	// forward maps source ID → target ID → first observed link type.
	forward map[string]map[string]schema.LinkType
	// backward maps target ID → set of source IDs.
	backward map[string]map[string]bool
}

// New creates an empty Matrix.
func New() *Matrix {
	return &Matrix{
		requirements: make(map[string]schema.Requirement),
		forward:      make(map[string]map[string]schema.LinkType),
		backward:     make(map[string]map[string]bool),
	}
}

// AddRequirement registers r. The first registration of an ID wins; later
// ones are ignored and AddRequirement returns false.
func (m *Matrix) AddRequirement(r schema.Requirement) bool {
	if _, exists := m.requirements[r.ID]; exists {
		return false
	}
	m.requirements[r.ID] = r
	m.order = append(m.order, r.ID)
	return true
}

// AddLink records the edge l.Source → l.Target in both directions. A pair
// that is already present keeps its original link type. Self links are
// ignored. Reports whether a new edge was added.
func (m *Matrix) AddLink(l schema.Link) bool {
	if l.Source == l.Target {
		return false
	}
	targets, ok := m.forward[l.Source]
	if !ok {
		targets = make(map[string]schema.LinkType)
		m.forward[l.Source] = targets
	}
	if _, exists := targets[l.Target]; exists {
		return false
	}
	typ := l.Type
	if typ == "" {
		typ = schema.LinkImplements
	}
	targets[l.Target] = typ

	sources, ok := m.backward[l.Target]
	if !ok {
		sources = make(map[string]bool)
		m.backward[l.Target] = sources
	}
	sources[l.Source] = true
	return true
}

// Requirement returns the registered record for id.
func (m *Matrix) Requirement(id string) (schema.Requirement, bool) {
	r, ok := m.requirements[id]
	return r, ok
}

// Has reports whether id is registered.
func (m *Matrix) Has(id string) bool {
	_, ok := m.requirements[id]
	return ok
}

// Len returns the number of registered requirements.
func (m *Matrix) Len() int { return len(m.requirements) }

// Requirements returns all registered records in registration order.
func (m *Matrix) Requirements() []schema.Requirement {
	out := make([]schema.Requirement, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.requirements[id])
	}
	return out
}

// IDs returns the registered IDs as a set.
func (m *Matrix) IDs() map[string]bool {
	out := make(map[string]bool, len(m.requirements))
	for id := range m.requirements {
		out[id] = true
	}
	return out
}

// Forward returns the sorted targets of edges leaving id.
func (m *Matrix) Forward(id string) []string {
	return sortedKeys(m.forward[id])
}

// Backward returns the sorted sources of edges entering id.
func (m *Matrix) Backward(id string) []string {
	return sortedKeys(m.backward[id])
}

// HasForward reports whether id has at least one outgoing edge.
func (m *Matrix) HasForward(id string) bool { return len(m.forward[id]) > 0 }

// HasBackward reports whether id has at least one incoming edge.
func (m *Matrix) HasBackward(id string) bool { return len(m.backward[id]) > 0 }

// SourceRequirements returns the requirements id implements: the targets of
// its outgoing edges, as asserted by annotations like "[Implements: BR001]".
func (m *Matrix) SourceRequirements(id string) []string {
	return m.Forward(id)
}

// LinksForRequirement returns the requirements that link to id, that is,
// the requirements by which id is implemented.
func (m *Matrix) LinksForRequirement(id string) []string {
	return m.Backward(id)
}

// LinkType returns the stored type of the edge source → target.
func (m *Matrix) LinkType(source, target string) (schema.LinkType, bool) {
	typ, ok := m.forward[source][target]
	return typ, ok
}

// Links returns every edge sorted by source, then target.
func (m *Matrix) Links() []schema.Link {
	sources := sortedKeys(m.forward)
	var out []schema.Link
	for _, s := range sources {
		for _, t := range sortedKeys(m.forward[s]) {
			out = append(out, schema.Link{Source: s, Target: t, Type: m.forward[s][t]})
		}
	}
	return out
}

// LinkCount sums the forward set sizes over registered requirements.
func (m *Matrix) LinkCount() int {
	n := 0
	for id := range m.requirements {
		n += len(m.forward[id])
	}
	return n
}

func sortedKeys[V any](set map[string]V) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
