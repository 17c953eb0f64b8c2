// Package render serializes a traceability matrix into export payloads
// (CSV, JSON, HTML, Markdown) and formats operation results for terminals.
package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/reqtrace/internal/matrix"
	"github.com/dshills/reqtrace/internal/schema"
)

// ErrUnsupportedFormat is returned by NewExporter for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported export formats.
var Formats = []Format{FormatCSV, FormatJSON, FormatHTML, FormatMarkdown}

// ParseFormat normalises s ("CSV", "md", "Markdown", ...) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "html", "htm":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: export format %q not supported", ErrUnsupportedFormat, s)
	}
}

// Exporter serializes a Matrix.
type Exporter interface {
	Export(m *matrix.Matrix) ([]byte, error)
}

// NewExporter returns an Exporter for the given format string.
func NewExporter(format string) (Exporter, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatCSV:
		return &csvExporter{}, nil
	case FormatJSON:
		return &jsonExporter{}, nil
	case FormatHTML:
		return &htmlExporter{}, nil
	default:
		return &markdownExporter{}, nil
	}
}

// FileName is the suggested download name for an export of projectID.
func FileName(projectID string, f Format) string {
	return fmt.Sprintf("traceability_matrix_%s.%s", projectID, f.extension())
}

// ContentType is the MIME type of an export payload.
func ContentType(f Format) string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/markdown; charset=utf-8"
	}
}

func (f Format) extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Entries returns every registered requirement with its links, in
// registration order. Link lists are never nil.
func Entries(m *matrix.Matrix) []schema.MatrixEntry {
	reqs := m.Requirements()
	out := make([]schema.MatrixEntry, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, schema.MatrixEntry{
			Requirement:   r,
			Implements:    orEmpty(m.SourceRequirements(r.ID)),
			ImplementedBy: orEmpty(m.LinksForRequirement(r.ID)),
		})
	}
	return out
}

// sortedEntries orders Entries by document type name, then ID.
func sortedEntries(m *matrix.Matrix) []schema.MatrixEntry {
	out := Entries(m)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DocumentType != out[j].DocumentType {
			return out[i].DocumentType < out[j].DocumentType
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
