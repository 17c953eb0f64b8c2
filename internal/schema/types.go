package schema

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// requirementIDPattern is the anchored form of the requirement ID grammar.
var requirementIDPattern = regexp.MustCompile(`^(?:BR|PR|FR|TR|NFR)\d{3}$`)

// IsRequirementID reports whether s is a well-formed requirement ID such as BR001.
func IsRequirementID(s string) bool {
	return requirementIDPattern.MatchString(s)
}

// DocumentType names the kind of document a requirement was found in.
type DocumentType string

const (
	DocumentBRD  DocumentType = "BRD"
	DocumentPRD  DocumentType = "PRD"
	DocumentFRD  DocumentType = "FRD"
	DocumentTRD  DocumentType = "TRD"
	DocumentNFRD DocumentType = "NFRD"
)

// DocumentTypes lists the known document types in hierarchy order.
var DocumentTypes = []DocumentType{DocumentBRD, DocumentPRD, DocumentFRD, DocumentNFRD, DocumentTRD}

// ParseDocumentType normalises s to a known DocumentType.
// The second return value is false for unrecognised types.
func ParseDocumentType(s string) (DocumentType, bool) {
	dt := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range DocumentTypes {
		if dt == known {
			return dt, true
		}
	}
	return dt, false
}

// Rank returns the position of t in the document hierarchy.
// BRD(0) < PRD(1) < FRD(2) = NFRD(2) < TRD(3). Returns -1 for an unknown type.
func (t DocumentType) Rank() int {
	switch t {
	case DocumentBRD:
		return 0
	case DocumentPRD:
		return 1
	case DocumentFRD, DocumentNFRD:
		return 2
	case DocumentTRD:
		return 3
	default:
		return -1
	}
}

// IsRoot reports whether requirements of this type need no upstream link.
func (t DocumentType) IsRoot() bool { return t == DocumentBRD }

// IsTerminal reports whether requirements of this type need no downstream link.
func (t DocumentType) IsTerminal() bool { return t == DocumentTRD || t == DocumentNFRD }

// LessDocumentType orders document types by hierarchy rank, unknown types
// last, ties broken by name.
func LessDocumentType(a, b DocumentType) bool {
	ra, rb := a.Rank(), b.Rank()
	if ra < 0 {
		ra = len(DocumentTypes)
	}
	if rb < 0 {
		rb = len(DocumentTypes)
	}
	if ra != rb {
		return ra < rb
	}
	return a < b
}

// LinkType classifies a traceability link.
type LinkType string

const (
	LinkImplements LinkType = "Implements"
	LinkTracesTo   LinkType = "TracesTo"
	LinkRelatedTo  LinkType = "RelatedTo"
	LinkSatisfies  LinkType = "Satisfies"
	LinkFulfills   LinkType = "Fulfills"
)

// linkPhrases maps annotation phrases to link types, checked in order.
var linkPhrases = []struct {
	phrase string
	typ    LinkType
}{
	{"implements", LinkImplements},
	{"traces to", LinkTracesTo},
	{"related to", LinkRelatedTo},
	{"satisfies", LinkSatisfies},
	{"fulfills", LinkFulfills},
}

// ParseLinkType derives a LinkType from an annotation phrase such as
// "Traces to". The first phrase keyword contained in the text wins;
// anything unrecognised is LinkImplements.
func ParseLinkType(phrase string) LinkType {
	p := strings.ToLower(strings.Join(strings.Fields(phrase), " "))
	for _, lp := range linkPhrases {
		if strings.Contains(p, lp.phrase) {
			return lp.typ
		}
	}
	return LinkImplements
}

// Requirement is one registered requirement statement.
type Requirement struct {
	ID           string       `json:"id"`
	DocumentType DocumentType `json:"document_type"`
	Description  string       `json:"description"`
}

// Link is a directed, typed edge between two requirement IDs.
type Link struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   LinkType `json:"link_type"`
}

// Severity rates the impact of a requirement change.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// SeverityOrdinal returns the numeric ordering for a severity.
// Low(0) < Medium(1) < High(2) < Critical(3). Returns -1 for an unrecognised value.
func SeverityOrdinal(s Severity) int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// Outcome is embedded in every operation result. Operations never return
// Go errors to their callers; failures set Success=false and Error.
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	cause error
}

// Succeeded returns a successful Outcome.
func Succeeded() Outcome { return Outcome{Success: true} }

// Failed returns a failed Outcome whose Error is err's message. The error
// itself stays available through Err for classification.
func Failed(err error) Outcome {
	return Outcome{Error: err.Error(), cause: err}
}

// Err returns the error behind a failed Outcome, or nil on success.
func (o Outcome) Err() error {
	switch {
	case o.Success:
		return nil
	case o.cause != nil:
		return o.cause
	case o.Error != "":
		return errors.New(o.Error)
	default:
		return errors.New("operation failed")
	}
}

// Statistics aggregates a freshly built matrix.
type Statistics struct {
	TotalRequirements    int                  `json:"total_requirements"`
	TotalLinks           int                  `json:"total_links"`
	OrphanedRequirements int                  `json:"orphaned_requirements"`
	RequirementsByType   map[DocumentType]int `json:"requirements_by_type"`
	LinksByType          map[LinkType]int     `json:"links_by_type"`
	DocumentsProcessed   int                  `json:"documents_processed"`
}

// MatrixEntry is one requirement with its links in both directions.
type MatrixEntry struct {
	Requirement
	Implements    []string `json:"implements"`
	ImplementedBy []string `json:"implemented_by"`
}

// MatrixResult is returned by GenerateTraceabilityMatrix.
type MatrixResult struct {
	Outcome
	ProjectID    string        `json:"project_id"`
	Requirements []MatrixEntry `json:"requirements,omitempty"`
	Links        []Link        `json:"links,omitempty"`
	Statistics   *Statistics   `json:"statistics,omitempty"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// ChangeImpactResult is returned by AnalyzeChangeImpact.
type ChangeImpactResult struct {
	Outcome
	ProjectID         string         `json:"project_id"`
	ChangedID         string         `json:"changed_requirement_id"`
	ChangeDescription string         `json:"change_description,omitempty"`
	ChangeType        string         `json:"change_type,omitempty"`
	DirectImpact      []string       `json:"direct_impact"`
	IndirectImpact    []string       `json:"indirect_impact"`
	TotalImpacted     int            `json:"total_impacted"`
	Severity          Severity       `json:"severity,omitempty"`
	AffectedDocuments []DocumentType `json:"affected_documents"`
}

// OrphanedRequirement is a non-root requirement nothing traces into.
type OrphanedRequirement struct {
	ID           string       `json:"id"`
	DocumentType DocumentType `json:"document_type"`
	Description  string       `json:"description"`
}

// UnimplementedRequirement is a non-terminal requirement with no downstream link.
type UnimplementedRequirement struct {
	ID           string       `json:"id"`
	DocumentType DocumentType `json:"document_type"`
	Description  string       `json:"description"`
}

// BrokenLink is a link whose target is not a known requirement.
type BrokenLink struct {
	Source       string       `json:"source"`
	Target       string       `json:"target"`
	DocumentType DocumentType `json:"document_type"`
	Reason       string       `json:"reason"`
}

// ValidationResult is returned by ValidateTraceability.
type ValidationResult struct {
	Outcome
	ProjectID                 string                     `json:"project_id"`
	IsValid                   bool                       `json:"is_valid"`
	OrphanedRequirements      []OrphanedRequirement      `json:"orphaned_requirements"`
	UnimplementedRequirements []UnimplementedRequirement `json:"unimplemented_requirements"`
	BrokenLinks               []BrokenLink               `json:"broken_links"`
}

// LinkedRequirement describes the far end of a link from a details query.
type LinkedRequirement struct {
	ID           string       `json:"id"`
	DocumentType DocumentType `json:"document_type,omitempty"`
	Description  string       `json:"description,omitempty"`
	LinkType     LinkType     `json:"link_type"`
	Exists       bool         `json:"exists"`
}

// RequirementDetailsResult is returned by GetRequirementDetails.
type RequirementDetailsResult struct {
	Outcome
	ProjectID     string              `json:"project_id"`
	Requirement   *Requirement        `json:"requirement,omitempty"`
	Implements    []LinkedRequirement `json:"implements"`
	ImplementedBy []LinkedRequirement `json:"implemented_by"`
}

// ExportResult is returned by ExportTraceabilityMatrix.
type ExportResult struct {
	Outcome
	ProjectID   string `json:"project_id"`
	Format      string `json:"format"`
	Content     string `json:"content,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// GapAnalysisResult is returned by AnalyzeTraceabilityGaps.
type GapAnalysisResult struct {
	Outcome
	ProjectID           string                    `json:"project_id"`
	MissingUpstream     []string                  `json:"missing_upstream"`
	MissingDownstream   []string                  `json:"missing_downstream"`
	RequiringUpstream   int                       `json:"requiring_upstream"`
	RequiringDownstream int                       `json:"requiring_downstream"`
	UpstreamCoverage    float64                   `json:"upstream_coverage"`
	DownstreamCoverage  float64                   `json:"downstream_coverage"`
	GapsByDocumentType  map[DocumentType][]string `json:"gaps_by_document_type"`
}

// ComparisonResult is returned by CompareProjects.
type ComparisonResult struct {
	Outcome
	BaseProjectID       string   `json:"base_project_id"`
	HeadProjectID       string   `json:"head_project_id"`
	AddedRequirements   []string `json:"added_requirements"`
	RemovedRequirements []string `json:"removed_requirements"`
	ChangedRequirements []string `json:"changed_requirements"`
	AddedLinks          []Link   `json:"added_links"`
	RemovedLinks        []Link   `json:"removed_links"`
	Patch               string   `json:"patch,omitempty"`
}
