package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/reqtrace/internal/schema"
)

var (
	colorPrimary = lipgloss.Color("#00BFFF")
	colorSuccess = lipgloss.Color("#00E676")
	colorWarn    = lipgloss.Color("#FFD700")
	colorDanger  = lipgloss.Color("#FF5252")
	colorMuted   = lipgloss.Color("#8C8C8C")
)

var (
	styleTitle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleLabel = lipgloss.NewStyle().Foreground(colorMuted)
	styleOK    = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarn  = lipgloss.NewStyle().Foreground(colorWarn)
	styleBad   = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
)

// severityStyle colours a severity by how alarming it is.
func severityStyle(s schema.Severity) lipgloss.Style {
	switch s {
	case schema.SeverityCritical, schema.SeverityHigh:
		return styleBad
	case schema.SeverityMedium:
		return styleWarn
	default:
		return styleOK
	}
}

type summary struct {
	b strings.Builder
}

func (s *summary) title(format string, args ...any) {
	s.b.WriteString(styleTitle.Render(fmt.Sprintf(format, args...)))
	s.b.WriteString("\n")
}

func (s *summary) field(label string, value any) {
	fmt.Fprintf(&s.b, "  %s %v\n", styleLabel.Render(label+":"), value)
}

func (s *summary) list(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(&s.b, "  %s\n", styleLabel.Render(label+":"))
	for _, it := range items {
		fmt.Fprintf(&s.b, "    - %s\n", it)
	}
}

func (s *summary) String() string { return s.b.String() }

// Failure renders a failed outcome.
func Failure(op string, o schema.Outcome) string {
	return styleBad.Render(fmt.Sprintf("%s failed: %s", op, o.Error)) + "\n"
}

// MatrixSummary renders a matrix result as a short terminal report.
func MatrixSummary(r *schema.MatrixResult) string {
	if !r.Success {
		return Failure("matrix", r.Outcome)
	}
	var s summary
	s.title("Traceability matrix · %s", r.ProjectID)
	if st := r.Statistics; st != nil {
		s.field("Documents", st.DocumentsProcessed)
		s.field("Requirements", st.TotalRequirements)
		s.field("Links", st.TotalLinks)
		orphans := fmt.Sprint(st.OrphanedRequirements)
		if st.OrphanedRequirements > 0 {
			orphans = styleWarn.Render(orphans)
		}
		s.field("Orphaned", orphans)
		for _, dt := range schema.DocumentTypes {
			if n := st.RequirementsByType[dt]; n > 0 {
				s.field("  "+string(dt), n)
			}
		}
	}
	return s.String()
}

// ImpactSummary renders a change impact result.
func ImpactSummary(r *schema.ChangeImpactResult) string {
	if !r.Success {
		return Failure("impact", r.Outcome)
	}
	var s summary
	s.title("Change impact · %s", r.ChangedID)
	s.field("Severity", severityStyle(r.Severity).Render(string(r.Severity)))
	s.field("Total impacted", r.TotalImpacted)
	s.list("Direct", r.DirectImpact)
	s.list("Indirect", r.IndirectImpact)
	docs := make([]string, len(r.AffectedDocuments))
	for i, d := range r.AffectedDocuments {
		docs[i] = string(d)
	}
	if len(docs) > 0 {
		s.field("Affected documents", strings.Join(docs, ", "))
	}
	return s.String()
}

// ValidationSummary renders a validation result.
func ValidationSummary(r *schema.ValidationResult) string {
	if !r.Success {
		return Failure("validate", r.Outcome)
	}
	var s summary
	s.title("Traceability validation · %s", r.ProjectID)
	if r.IsValid {
		s.field("Status", styleOK.Render("VALID"))
	} else {
		s.field("Status", styleBad.Render("INVALID"))
	}
	orphans := make([]string, len(r.OrphanedRequirements))
	for i, o := range r.OrphanedRequirements {
		orphans[i] = fmt.Sprintf("%s (%s) %s", o.ID, o.DocumentType, o.Description)
	}
	s.list("Orphaned", orphans)
	unimpl := make([]string, len(r.UnimplementedRequirements))
	for i, u := range r.UnimplementedRequirements {
		unimpl[i] = fmt.Sprintf("%s (%s) %s", u.ID, u.DocumentType, u.Description)
	}
	s.list("Unimplemented", unimpl)
	broken := make([]string, len(r.BrokenLinks))
	for i, b := range r.BrokenLinks {
		broken[i] = fmt.Sprintf("%s -> %s: %s", b.Source, b.Target, b.Reason)
	}
	s.list("Broken links", broken)
	return s.String()
}

// DetailsSummary renders a requirement details result.
func DetailsSummary(r *schema.RequirementDetailsResult) string {
	if !r.Success {
		return Failure("show", r.Outcome)
	}
	var s summary
	s.title("%s · %s", r.Requirement.ID, r.Requirement.DocumentType)
	s.field("Description", r.Requirement.Description)
	s.list("Implements", linked(r.Implements))
	s.list("Implemented by", linked(r.ImplementedBy))
	return s.String()
}

func linked(in []schema.LinkedRequirement) []string {
	out := make([]string, len(in))
	for i, l := range in {
		line := fmt.Sprintf("%s [%s]", l.ID, l.LinkType)
		if !l.Exists {
			line += " " + styleBad.Render("missing")
		} else if l.Description != "" {
			line += " " + l.Description
		}
		out[i] = line
	}
	return out
}

// GapSummary renders a gap analysis result.
func GapSummary(r *schema.GapAnalysisResult) string {
	if !r.Success {
		return Failure("gaps", r.Outcome)
	}
	var s summary
	s.title("Traceability gaps · %s", r.ProjectID)
	s.field("Upstream coverage", coverageStyle(r.UpstreamCoverage))
	s.field("Downstream coverage", coverageStyle(r.DownstreamCoverage))
	s.list("Missing upstream", r.MissingUpstream)
	s.list("Missing downstream", r.MissingDownstream)

	types := make([]schema.DocumentType, 0, len(r.GapsByDocumentType))
	for dt := range r.GapsByDocumentType {
		types = append(types, dt)
	}
	sort.Slice(types, func(i, j int) bool { return schema.LessDocumentType(types[i], types[j]) })
	for _, dt := range types {
		s.field(string(dt)+" gaps", strings.Join(r.GapsByDocumentType[dt], ", "))
	}
	return s.String()
}

func coverageStyle(pct float64) string {
	text := fmt.Sprintf("%.1f%%", pct)
	switch {
	case pct >= 100:
		return styleOK.Render(text)
	case pct >= 75:
		return styleWarn.Render(text)
	default:
		return styleBad.Render(text)
	}
}

// ComparisonSummary renders a project comparison.
func ComparisonSummary(r *schema.ComparisonResult) string {
	if !r.Success {
		return Failure("diff", r.Outcome)
	}
	var s summary
	s.title("Comparison · %s → %s", r.BaseProjectID, r.HeadProjectID)
	s.list("Added requirements", r.AddedRequirements)
	s.list("Removed requirements", r.RemovedRequirements)
	s.list("Changed requirements", r.ChangedRequirements)
	s.list("Added links", linkStrings(r.AddedLinks))
	s.list("Removed links", linkStrings(r.RemovedLinks))
	if len(r.AddedRequirements)+len(r.RemovedRequirements)+len(r.ChangedRequirements)+len(r.AddedLinks)+len(r.RemovedLinks) == 0 {
		s.field("Status", styleOK.Render("no differences"))
	}
	return s.String()
}

func linkStrings(links []schema.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = fmt.Sprintf("%s -> %s (%s)", l.Source, l.Target, l.Type)
	}
	return out
}
