// Package compare reports the differences between two traceability matrices,
// typically the same project before and after a document revision.
package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dshills/reqtrace/internal/matrix"
	"github.com/dshills/reqtrace/internal/render"
	"github.com/dshills/reqtrace/internal/schema"
)

// Comparison lists what changed from base to head.
type Comparison struct {
	AddedRequirements   []string
	RemovedRequirements []string
	// ChangedRequirements are IDs present in both whose description or
	// document type differs.
	ChangedRequirements []string
	AddedLinks          []schema.Link
	RemovedLinks        []schema.Link
	// Patch is a diff-match-patch text patch turning the Markdown export of
	// base into that of head. Empty when the exports are identical.
	Patch string
}

// Empty reports whether base and head are structurally identical.
func (c Comparison) Empty() bool {
	return len(c.AddedRequirements)+len(c.RemovedRequirements)+len(c.ChangedRequirements)+
		len(c.AddedLinks)+len(c.RemovedLinks) == 0
}

// Compare diffs two matrices. Neither matrix is modified.
func Compare(base, head *matrix.Matrix) (Comparison, error) {
	var c Comparison

	for _, r := range head.Requirements() {
		old, ok := base.Requirement(r.ID)
		switch {
		case !ok:
			c.AddedRequirements = append(c.AddedRequirements, r.ID)
		case old.Description != r.Description || old.DocumentType != r.DocumentType:
			c.ChangedRequirements = append(c.ChangedRequirements, r.ID)
		}
	}
	for _, r := range base.Requirements() {
		if !head.Has(r.ID) {
			c.RemovedRequirements = append(c.RemovedRequirements, r.ID)
		}
	}
	sort.Strings(c.AddedRequirements)
	sort.Strings(c.RemovedRequirements)
	sort.Strings(c.ChangedRequirements)

	c.AddedLinks = linkDiff(head, base)
	c.RemovedLinks = linkDiff(base, head)

	patch, err := markdownPatch(base, head)
	if err != nil {
		return Comparison{}, err
	}
	c.Patch = patch
	return c, nil
}

// linkDiff returns the edges of a that b lacks or records with another type.
func linkDiff(a, b *matrix.Matrix) []schema.Link {
	var out []schema.Link
	for _, l := range a.Links() {
		if typ, ok := b.LinkType(l.Source, l.Target); !ok || typ != l.Type {
			out = append(out, l)
		}
	}
	return out
}

func markdownPatch(base, head *matrix.Matrix) (string, error) {
	e, err := render.NewExporter(string(render.FormatMarkdown))
	if err != nil {
		return "", err
	}
	before, err := e.Export(base)
	if err != nil {
		return "", fmt.Errorf("rendering base: %w", err)
	}
	after, err := e.Export(head)
	if err != nil {
		return "", fmt.Errorf("rendering head: %w", err)
	}
	b, a := normalize(string(before)), normalize(string(after))
	if a == b {
		return "", nil
	}

	dmp := diffmatchpatch.New()
	// Line mode keeps the patch readable for table rows.
	runesA, runesB, lines := dmp.DiffLinesToRunes(b, a)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(runesA, runesB, false), lines)
	return dmp.PatchToText(dmp.PatchMake(b, diffs)), nil
}

// normalize trims trailing whitespace from each line and converts CRLF to LF.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// Apply applies a Patch produced by Compare to text, reporting whether every
// hunk applied cleanly.
func Apply(patch, text string) (string, bool, error) {
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patch)
	if err != nil {
		return "", false, fmt.Errorf("parsing patch: %w", err)
	}
	out, applied := dmp.PatchApply(patches, normalize(text))
	for _, ok := range applied {
		if !ok {
			return out, false, nil
		}
	}
	return out, true, nil
}
