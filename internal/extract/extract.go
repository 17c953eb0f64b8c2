// Package extract finds requirement identifiers and cross-references in
// requirement document text.
package extract

import (
	"regexp"
	"strings"

	"github.com/dshills/reqtrace/internal/schema"
)

var (
	// idPattern matches a requirement ID: a known prefix and exactly three digits.
	idPattern = regexp.MustCompile(`\b(?:BR|PR|FR|TR|NFR)\d{3}\b`)

	// annotationPattern matches an explicit trace annotation such as
	// "[Traces to: BR001, BR002]". Group 1 is the phrase, group 2 the ID list.
	annotationPattern = regexp.MustCompile(`(?i)\[\s*(implements|traces\s+to|related\s+to|satisfies|fulfills)\s*:([^\]]*)\]`)
)

// Extractor turns one document's text into requirement records and links.
type Extractor interface {
	// Requirements returns the records found in text, first occurrence per ID.
	Requirements(docType schema.DocumentType, text string) []schema.Requirement
	// Links returns the links whose source is a requirement found in text.
	Links(text string) []schema.Link
}

// Default returns the pattern-based Extractor.
func Default() Extractor {
	return patternExtractor{}
}

type patternExtractor struct{}

func (patternExtractor) Requirements(docType schema.DocumentType, text string) []schema.Requirement {
	matches := idPattern.FindAllStringIndex(text, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]schema.Requirement, 0, len(matches))
	for i, m := range matches {
		id := text[m[0]:m[1]]
		if seen[id] {
			continue
		}
		seen[id] = true

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		out = append(out, schema.Requirement{
			ID:           id,
			DocumentType: docType,
			Description:  description(text[m[1]:end]),
		})
	}
	return out
}

// description returns the text that follows an ID up to the first line
// break, without a leading colon or surrounding whitespace.
func description(segment string) string {
	if nl := strings.IndexAny(segment, "\r\n"); nl >= 0 {
		segment = segment[:nl]
	}
	return strings.TrimSpace(strings.TrimLeft(segment, ": \t"))
}

func (patternExtractor) Links(text string) []schema.Link {
	var out []schema.Link
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		out = append(out, lineLinks(line)...)
	}
	return out
}

// lineLinks extracts the links asserted by one line. The first ID on the line
// is the source. Explicit annotations after it take precedence; only when
// there are none does every other ID on the line become an Implements target.
func lineLinks(line string) []schema.Link {
	locs := idPattern.FindAllStringIndex(line, -1)
	if len(locs) == 0 {
		return nil
	}
	source := line[locs[0][0]:locs[0][1]]
	seen := map[string]bool{source: true}
	var out []schema.Link

	add := func(target string, typ schema.LinkType) {
		if seen[target] {
			return
		}
		seen[target] = true
		out = append(out, schema.Link{Source: source, Target: target, Type: typ})
	}

	annotations := annotationPattern.FindAllStringSubmatch(line[locs[0][1]:], -1)
	if len(annotations) > 0 {
		for _, ann := range annotations {
			typ := schema.ParseLinkType(ann[1])
			for _, target := range idPattern.FindAllString(ann[2], -1) {
				add(target, typ)
			}
		}
		return out
	}

	for _, loc := range locs[1:] {
		add(line[loc[0]:loc[1]], schema.LinkImplements)
	}
	return out
}
