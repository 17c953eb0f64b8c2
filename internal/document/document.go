// Package document supplies project documents to the traceability engine.
// Stores implement Provider; the engine only ever reads through it.
package document

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dshills/reqtrace/internal/redact"
	"github.com/dshills/reqtrace/internal/schema"
)

// ErrProjectNotFound is returned when a store has no such project.
var ErrProjectNotFound = errors.New("project not found")

// ErrInvalidProject is returned for project IDs that are empty or unsafe.
var ErrInvalidProject = errors.New("invalid project id")

// Document is one requirements document of a project.
type Document struct {
	DocumentType schema.DocumentType
	Content      string
	Version      string
	CreatedAt    time.Time
	Source       string // file path or store row reference
	Hash         string // "sha256:<hex>" of Content
}

// Provider returns all documents of a project. Implementations must be safe
// for concurrent use; the order of the returned slice decides which document
// wins when two of them define the same requirement ID.
type Provider interface {
	GetProjectDocuments(ctx context.Context, projectID string) ([]Document, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, projectID string) ([]Document, error)

// GetProjectDocuments calls f.
func (f ProviderFunc) GetProjectDocuments(ctx context.Context, projectID string) ([]Document, error) {
	return f(ctx, projectID)
}

// Hash returns the content hash used for Document.Hash.
func Hash(content string) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256([]byte(content)))
}

// ValidateProjectID rejects IDs that could escape a store's namespace.
func ValidateProjectID(projectID string) error {
	switch {
	case strings.TrimSpace(projectID) == "":
		return fmt.Errorf("%w: empty", ErrInvalidProject)
	case projectID == "." || projectID == "..",
		strings.ContainsAny(projectID, `/\`),
		strings.ContainsRune(projectID, 0):
		return fmt.Errorf("%w: %q", ErrInvalidProject, projectID)
	}
	return nil
}

// SortCanonical orders docs by hierarchy rank, then creation time, then
// source. The sort is stable so equal documents keep provider order.
func SortCanonical(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.DocumentType != b.DocumentType {
			return schema.LessDocumentType(a.DocumentType, b.DocumentType)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Source < b.Source
	})
}

// Redacting wraps p so that secrets are scrubbed from document content
// before anything downstream sees it. Matches are logged by rule name, never
// by value. A nil logger uses slog.Default.
func Redacting(p Provider, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return ProviderFunc(func(ctx context.Context, projectID string) ([]Document, error) {
		docs, err := p.GetProjectDocuments(ctx, projectID)
		if err != nil {
			return nil, err
		}
		out := make([]Document, len(docs))
		for i, d := range docs {
			if n := redact.Count(d.Content); n > 0 {
				logger.Warn("Redacted secrets from document",
					"project", projectID,
					"document_type", d.DocumentType,
					"replacements", n,
					"rules", redact.Findings(d.Content),
				)
				d.Content = redact.Redact(d.Content)
				d.Hash = Hash(d.Content)
			}
			out[i] = d
		}
		return out, nil
	})
}

// Canonical wraps p so that documents are returned in SortCanonical order.
func Canonical(p Provider) Provider {
	return ProviderFunc(func(ctx context.Context, projectID string) ([]Document, error) {
		docs, err := p.GetProjectDocuments(ctx, projectID)
		if err != nil {
			return nil, err
		}
		out := append([]Document(nil), docs...)
		SortCanonical(out)
		return out, nil
	})
}
