package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/reqtrace/internal/schema"
)

func TestRequirements_DescriptionBoundaries(t *testing.T) {
	text := "BR001: User authentication\nBR002 - audit trail BR003: reporting\nBR004"

	reqs := Default().Requirements(schema.DocumentBRD, text)
	require.Len(t, reqs, 4)

	want := []schema.Requirement{
		{ID: "BR001", DocumentType: schema.DocumentBRD, Description: "User authentication"},
		{ID: "BR002", DocumentType: schema.DocumentBRD, Description: "- audit trail"},
		{ID: "BR003", DocumentType: schema.DocumentBRD, Description: "reporting"},
		{ID: "BR004", DocumentType: schema.DocumentBRD, Description: ""},
	}
	assert.Equal(t, want, reqs)
}

func TestRequirements_FirstOccurrenceWins(t *testing.T) {
	text := "PR001: login page\nPR001: something else\n"

	reqs := Default().Requirements(schema.DocumentPRD, text)
	require.Len(t, reqs, 1)
	assert.Equal(t, "login page", reqs[0].Description)
}

func TestRequirements_Grammar(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"all prefixes", "BR001 PR002 FR003 TR004 NFR005", []string{"BR001", "PR002", "FR003", "TR004", "NFR005"}},
		{"four digits rejected", "BR0001", nil},
		{"two digits rejected", "BR01", nil},
		{"lowercase rejected", "br001", nil},
		{"unknown prefix rejected", "XR001 QA123", nil},
		{"NFR not split into FR", "NFR010", []string{"NFR010"}},
		{"embedded in word rejected", "ABR001", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range Default().Requirements(schema.DocumentFRD, tt.text) {
				got = append(got, r.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequirements_DescriptionRunsToNextID(t *testing.T) {
	reqs := Default().Requirements(schema.DocumentPRD, "PR001: login [Implements: BR001]")

	want := []schema.Requirement{
		{ID: "PR001", DocumentType: schema.DocumentPRD, Description: "login [Implements:"},
		{ID: "BR001", DocumentType: schema.DocumentPRD, Description: "]"},
	}
	assert.Equal(t, want, reqs)
}

func TestRequirements_ReferencedIDsRegistered(t *testing.T) {
	reqs := Default().Requirements(schema.DocumentFRD, "FR001: validate. TR001, TR002")

	want := []schema.Requirement{
		{ID: "FR001", DocumentType: schema.DocumentFRD, Description: "validate."},
		{ID: "TR001", DocumentType: schema.DocumentFRD, Description: ","},
		{ID: "TR002", DocumentType: schema.DocumentFRD, Description: ""},
	}
	assert.Equal(t, want, reqs)
}

func TestRequirements_OnlyLeadingColonTrimmed(t *testing.T) {
	reqs := Default().Requirements(schema.DocumentBRD, "BR001:: revenue;\n")
	require.Len(t, reqs, 1)
	assert.Equal(t, "revenue;", reqs[0].Description)
}

func TestLinks_ExplicitAnnotation(t *testing.T) {
	links := Default().Links("PR001: login [Implements: BR001]")

	require.Len(t, links, 1)
	assert.Equal(t, schema.Link{Source: "PR001", Target: "BR001", Type: schema.LinkImplements}, links[0])
}

func TestLinks_PhraseTypes(t *testing.T) {
	tests := []struct {
		line string
		want schema.LinkType
	}{
		{"FR001 x [Traces to: PR001]", schema.LinkTracesTo},
		{"FR001 x [related TO: PR001]", schema.LinkRelatedTo},
		{"FR001 x [Satisfies: PR001]", schema.LinkSatisfies},
		{"FR001 x [FULFILLS: PR001]", schema.LinkFulfills},
		{"FR001 x [implements: PR001]", schema.LinkImplements},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			links := Default().Links(tt.line)
			require.Len(t, links, 1)
			assert.Equal(t, tt.want, links[0].Type)
		})
	}
}

func TestLinks_MultipleTargetsInAnnotation(t *testing.T) {
	links := Default().Links("TR001: token store [Satisfies: FR001, FR002; NFR001]")

	require.Len(t, links, 3)
	for _, l := range links {
		assert.Equal(t, "TR001", l.Source)
		assert.Equal(t, schema.LinkSatisfies, l.Type)
	}
	assert.Equal(t, []string{"FR001", "FR002", "NFR001"}, targets(links))
}

func TestLinks_InferredFallback(t *testing.T) {
	links := Default().Links("FR001: validate. TR001, TR002")

	want := []schema.Link{
		{Source: "FR001", Target: "TR001", Type: schema.LinkImplements},
		{Source: "FR001", Target: "TR002", Type: schema.LinkImplements},
	}
	assert.Equal(t, want, links)
}

func TestLinks_AnnotationSuppressesFallback(t *testing.T) {
	links := Default().Links("FR001: see TR009 [Traces to: PR001]")

	require.Len(t, links, 1)
	assert.Equal(t, "PR001", links[0].Target)
	assert.Equal(t, schema.LinkTracesTo, links[0].Type)
}

func TestLinks_NoSelfLinksOrDuplicates(t *testing.T) {
	links := Default().Links("FR001 relates to FR001 and TR001 and TR001")

	require.Len(t, links, 1)
	assert.Equal(t, "TR001", links[0].Target)
}

func TestLinks_PerLineSource(t *testing.T) {
	text := "BR001: auth PR001\r\nno ids here\nBR002: audit [Related to: PR002]\n"

	links := Default().Links(text)
	require.Len(t, links, 2)
	assert.Equal(t, "BR001", links[0].Source)
	assert.Equal(t, "PR001", links[0].Target)
	assert.Equal(t, "BR002", links[1].Source)
	assert.Equal(t, schema.LinkRelatedTo, links[1].Type)
}

func targets(links []schema.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.Target
	}
	return out
}
