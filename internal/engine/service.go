// Package engine exposes the traceability operations. Every operation
// builds a private Matrix from the document provider, runs one analysis
// over it and returns a result value; errors and panics never cross the
// Service boundary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/reqtrace/internal/analysis"
	"github.com/dshills/reqtrace/internal/compare"
	"github.com/dshills/reqtrace/internal/document"
	"github.com/dshills/reqtrace/internal/extract"
	"github.com/dshills/reqtrace/internal/render"
	"github.com/dshills/reqtrace/internal/schema"
)

// ErrRequirementNotFound is returned for requirement IDs a project does not define.
var ErrRequirementNotFound = errors.New("requirement not found")

// ErrInvalidArgument is returned for empty or malformed operation inputs.
var ErrInvalidArgument = errors.New("invalid argument")

// Options configures a Service. The zero value is usable.
type Options struct {
	Ordering  Ordering
	Redact    bool
	Extractor extract.Extractor
	Logger    *slog.Logger
}

// Service runs traceability operations against one document provider.
// It holds no per-project state and is safe for concurrent use as long as
// the provider is.
type Service struct {
	builder *Builder
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Service reading from p.
func New(p document.Provider, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Redact {
		p = document.Redacting(p, logger)
	}
	ordering := opts.Ordering
	if ordering == "" {
		ordering = OrderingProvider
	}
	return &Service{
		builder: NewBuilder(p, opts.Extractor, ordering, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// call runs fn as operation op and converts its error or panic into an
// Outcome. On failure reset runs before returning, so that no field fn had
// already filled in survives next to Success=false.
func (s *Service) call(op, projectID string, fn func() error, reset func()) (out schema.Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Operation panicked", "operation", op, "project", projectID, "panic", r)
			out = schema.Failed(fmt.Errorf("internal error during %s: %v", op, r))
		}
		result := "success"
		if !out.Success {
			result = "failure"
			reset()
		}
		operationsTotal.WithLabelValues(op, result).Inc()
		operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	if err := fn(); err != nil {
		s.logger.Warn("Operation failed", "operation", op, "project", projectID, "error", err)
		return schema.Failed(err)
	}
	s.logger.Info("Operation completed", "operation", op, "project", projectID, "duration", time.Since(start))
	return schema.Succeeded()
}

// GenerateTraceabilityMatrix builds projectID's matrix and returns every
// requirement with its links plus aggregate statistics.
func (s *Service) GenerateTraceabilityMatrix(ctx context.Context, projectID string) *schema.MatrixResult {
	blank := schema.MatrixResult{ProjectID: projectID}
	res := blank
	res.Outcome = s.call("matrix", projectID, func() error {
		b, err := s.builder.Build(ctx, projectID)
		if err != nil {
			return err
		}
		stats := b.Statistics
		res.Requirements = render.Entries(b.Matrix)
		res.Links = b.Matrix.Links()
		res.Statistics = &stats
		res.GeneratedAt = s.now().UTC()
		return nil
	}, func() { res = blank })
	return &res
}

// AnalyzeChangeImpact reports what a change to changedID would ripple into.
// changeDescription and changeType are recorded on the result as given.
func (s *Service) AnalyzeChangeImpact(ctx context.Context, projectID, changedID, changeDescription, changeType string) *schema.ChangeImpactResult {
	blank := schema.ChangeImpactResult{
		ProjectID:         projectID,
		ChangedID:         changedID,
		ChangeDescription: changeDescription,
		ChangeType:        changeType,
	}
	res := blank
	res.Outcome = s.call("impact", projectID, func() error {
		if strings.TrimSpace(changedID) == "" {
			return fmt.Errorf("%w: changed requirement id is required", ErrInvalidArgument)
		}
		b, err := s.builder.Build(ctx, projectID)
		if err != nil {
			return err
		}
		if !b.Matrix.Has(changedID) {
			return notFound(changedID, projectID)
		}
		impact := analysis.ChangeImpact(b.Matrix, changedID)
		res.DirectImpact = impact.Direct
		res.IndirectImpact = impact.Indirect
		res.TotalImpacted = impact.Total()
		res.Severity = impact.Severity
		res.AffectedDocuments = impact.AffectedDocuments
		return nil
	}, func() { res = blank })
	return &res
}

// ValidateTraceability checks projectID for orphaned and unimplemented
// requirements and for links to requirements that do not exist.
func (s *Service) ValidateTraceability(ctx context.Context, projectID string) *schema.ValidationResult {
	blank := schema.ValidationResult{ProjectID: projectID}
	res := blank
	res.Outcome = s.call("validate", projectID, func() error {
		b, err := s.builder.Build(ctx, projectID)
		if err != nil {
			return err
		}
		v := analysis.Validate(b.Matrix, b.Links)
		res.IsValid = v.IsValid()
		res.OrphanedRequirements = v.Orphaned
		res.UnimplementedRequirements = v.Unimplemented
		res.BrokenLinks = v.BrokenLinks
		return nil
	}, func() { res = blank })
	return &res
}

// GetRequirementDetails returns one requirement and its links in both
// directions. Linked IDs that are not registered are reported with Exists false.
func (s *Service) GetRequirementDetails(ctx context.Context, projectID, requirementID string) *schema.RequirementDetailsResult {
	blank := schema.RequirementDetailsResult{ProjectID: projectID}
	res := blank
	res.Outcome = s.call("details", projectID, func() error {
		if strings.TrimSpace(requirementID) == "" {
			return fmt.Errorf("%w: requirement id is required", ErrInvalidArgument)
		}
		b, err := s.builder.Build(ctx, projectID)
		if err != nil {
			return err
		}
		m := b.Matrix
		r, ok := m.Requirement(requirementID)
		if !ok {
			return notFound(requirementID, projectID)
		}

		linked := func(id, source, target string) schema.LinkedRequirement {
			lr := schema.LinkedRequirement{ID: id}
			lr.LinkType, _ = m.LinkType(source, target)
			if other, ok := m.Requirement(id); ok {
				lr.Exists = true
				lr.DocumentType = other.DocumentType
				lr.Description = other.Description
			}
			return lr
		}

		res.Requirement = &r
		res.Implements = []schema.LinkedRequirement{}
		for _, t := range m.SourceRequirements(r.ID) {
			res.Implements = append(res.Implements, linked(t, r.ID, t))
		}
		res.ImplementedBy = []schema.LinkedRequirement{}
		for _, src := range m.LinksForRequirement(r.ID) {
			res.ImplementedBy = append(res.ImplementedBy, linked(src, src, r.ID))
		}
		return nil
	}, func() { res = blank })
	return &res
}

// ExportTraceabilityMatrix serializes projectID's matrix as CSV, JSON, HTML
// or Markdown.
func (s *Service) ExportTraceabilityMatrix(ctx context.Context, projectID, format string) *schema.ExportResult {
	blank := schema.ExportResult{ProjectID: projectID, Format: format}
	res := blank
	res.Outcome = s.call("export", projectID, func() error {
		b, err := s.builder.Build(ctx, projectID)
		if err != nil {
			return err
		}
		f, err := render.ParseFormat(format)
		if err != nil {
			return err
		}
		e, err := render.NewExporter(string(f))
		if err != nil {
			return err
		}
		content, err := e.Export(b.Matrix)
		if err != nil {
			return fmt.Errorf("exporting %s: %w", f, err)
		}
		res.Format = string(f)
		res.Content = string(content)
		res.FileName = render.FileName(projectID, f)
		res.ContentType = render.ContentType(f)
		return nil
	}, func() { res = blank })
	return &res
}

// AnalyzeTraceabilityGaps reports requirements missing upstream or
// downstream links and the resulting coverage percentages.
func (s *Service) AnalyzeTraceabilityGaps(ctx context.Context, projectID string) *schema.GapAnalysisResult {
	blank := schema.GapAnalysisResult{ProjectID: projectID}
	res := blank
	res.Outcome = s.call("gaps", projectID, func() error {
		b, err := s.builder.Build(ctx, projectID)
		if err != nil {
			return err
		}
		g := analysis.AnalyzeGaps(b.Matrix)
		res.MissingUpstream = g.MissingUpstream
		res.MissingDownstream = g.MissingDownstream
		res.RequiringUpstream = g.RequiringUpstream
		res.RequiringDownstream = g.RequiringDownstream
		res.UpstreamCoverage = g.UpstreamCoverage
		res.DownstreamCoverage = g.DownstreamCoverage
		res.GapsByDocumentType = g.ByDocumentType
		return nil
	}, func() { res = blank })
	return &res
}

// CompareProjects diffs the matrices of two projects, usually two revisions
// of the same document set. Both are fetched concurrently.
func (s *Service) CompareProjects(ctx context.Context, baseID, headID string) *schema.ComparisonResult {
	blank := schema.ComparisonResult{BaseProjectID: baseID, HeadProjectID: headID}
	res := blank
	res.Outcome = s.call("compare", baseID+".."+headID, func() error {
		var base, head *Build
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			base, err = s.builder.Build(gctx, baseID)
			return err
		})
		g.Go(func() (err error) {
			head, err = s.builder.Build(gctx, headID)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		c, err := compare.Compare(base.Matrix, head.Matrix)
		if err != nil {
			return err
		}
		res.AddedRequirements = nonNil(c.AddedRequirements)
		res.RemovedRequirements = nonNil(c.RemovedRequirements)
		res.ChangedRequirements = nonNil(c.ChangedRequirements)
		res.AddedLinks = nonNilLinks(c.AddedLinks)
		res.RemovedLinks = nonNilLinks(c.RemovedLinks)
		res.Patch = c.Patch
		return nil
	}, func() { res = blank })
	return &res
}

// notFound explains a missing requirement, calling out IDs that could never
// match the ID grammar.
func notFound(id, projectID string) error {
	if !schema.IsRequirementID(id) {
		return fmt.Errorf("%w: %q is not a requirement ID", ErrRequirementNotFound, id)
	}
	return fmt.Errorf("%w: %s in project %s", ErrRequirementNotFound, id, projectID)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilLinks(s []schema.Link) []schema.Link {
	if s == nil {
		return []schema.Link{}
	}
	return s
}
