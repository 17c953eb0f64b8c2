package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/reqtrace/internal/analysis"
	"github.com/dshills/reqtrace/internal/document"
	"github.com/dshills/reqtrace/internal/extract"
	"github.com/dshills/reqtrace/internal/matrix"
	"github.com/dshills/reqtrace/internal/schema"
)

// ErrDocumentFetch wraps any failure of the document provider.
var ErrDocumentFetch = errors.New("failed to retrieve project documents")

// Ordering decides which document wins when two define the same ID.
type Ordering string

const (
	// OrderingProvider keeps the provider's document order.
	OrderingProvider Ordering = "provider"
	// OrderingHierarchy sorts documents with document.SortCanonical first.
	OrderingHierarchy Ordering = "hierarchy"
)

// Build is a freshly constructed matrix with what went into it.
type Build struct {
	Matrix     *matrix.Matrix
	Statistics schema.Statistics
	Documents  []document.Document
	// Links holds each document's extracted links, for broken-link checks.
	Links []analysis.DocumentLinks
}

// Builder fetches a project's documents and assembles its Matrix.
type Builder struct {
	provider  document.Provider
	extractor extract.Extractor
	logger    *slog.Logger
}

// NewBuilder creates a Builder reading from p.
func NewBuilder(p document.Provider, ex extract.Extractor, ordering Ordering, logger *slog.Logger) *Builder {
	if ex == nil {
		ex = extract.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if ordering == OrderingHierarchy {
		p = document.Canonical(p)
	}
	return &Builder{provider: p, extractor: ex, logger: logger}
}

// Build fetches projectID's documents and builds its Matrix. ctx is only
// consulted by the fetch. On error no Build is returned.
func (b *Builder) Build(ctx context.Context, projectID string) (*Build, error) {
	docs, err := b.provider.GetProjectDocuments(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentFetch, err)
	}

	m := matrix.New()
	for _, d := range docs {
		for _, r := range b.extractor.Requirements(d.DocumentType, d.Content) {
			if !m.AddRequirement(r) {
				b.logger.Debug("Duplicate requirement ignored", "project", projectID, "id", r.ID, "document_type", d.DocumentType)
			}
		}
	}

	links := make([]analysis.DocumentLinks, 0, len(docs))
	for _, d := range docs {
		extracted := b.extractor.Links(d.Content)
		for _, l := range extracted {
			m.AddLink(l)
		}
		links = append(links, analysis.DocumentLinks{DocumentType: d.DocumentType, Links: extracted})
	}

	stats := analysis.Statistics(m, len(docs))
	matrixRequirements.Observe(float64(stats.TotalRequirements))
	b.logger.Debug("Built traceability matrix",
		"project", projectID,
		"documents", len(docs),
		"requirements", stats.TotalRequirements,
		"links", stats.TotalLinks,
	)
	return &Build{Matrix: m, Statistics: stats, Documents: docs, Links: links}, nil
}
