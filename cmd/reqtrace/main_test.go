package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/dshills/reqtrace/internal/schema"
)

// writeStore creates a directory store with one project per map entry.
func writeStore(t *testing.T, projects map[string]map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for project, files := range projects {
		dir := filepath.Join(root, project)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		for name, content := range files {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
				t.Fatalf("write %s: %v", name, err)
			}
		}
	}
	return root
}

// run executes the CLI with args and returns stdout and the error.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

// exitCode returns the exitErr code of err, 0 for nil and 1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitErr
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitGeneric
}

// leafFirst reads each document before the one referencing it, so every
// ID is registered under the type of the document that defines it.
const leafFirst = `project: acme
documents:
  - {type: TRD, path: TRD.md}
  - {type: FRD, path: FRD.md}
  - {type: PRD, path: PRD.md}
  - {type: BRD, path: BRD.md}
`

func traceableProject() map[string]string {
	return map[string]string{
		"project.yaml": leafFirst,
		"BRD.md":       "BR001: Grow revenue PR001",
		"PRD.md":       "PR001: Checkout FR001",
		"FRD.md":       "FR001: Validate card TR001",
		"TRD.md":       "TR001: Card tokenizer",
	}
}

func TestExport_CSV(t *testing.T) {
	store := writeStore(t, map[string]map[string]string{"acme": {
		"BRD.md": "BR001: Grow revenue PR001",
		"PRD.md": "PR001: Checkout",
	}})

	out, err := run(t, "export", "acme", "--store", store, "--format", "CSV")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := "Source,Target,Link Type\nBR001,PR001,Implements\n"
	if out != want {
		t.Errorf("export = %q, want %q", out, want)
	}
}

func TestExport_ToDirectory(t *testing.T) {
	store := writeStore(t, map[string]map[string]string{"acme": traceableProject()})
	outDir := t.TempDir()

	if _, err := run(t, "export", "acme", "--store", store, "--format", "md", "--out", outDir); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "traceability_matrix_acme.md"))
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if !strings.Contains(string(data), "| BR001 | BRD |") {
		t.Errorf("markdown export missing BR001 row: %s", data)
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	store := writeStore(t, map[string]map[string]string{"acme": traceableProject()})
	_, err := run(t, "export", "acme", "--store", store, "--format", "pdf")
	if got := exitCode(err); got != exitBadInput {
		t.Errorf("exit code = %d, want %d (%v)", got, exitBadInput, err)
	}
}

func TestValidate_FailOnInvalid(t *testing.T) {
	store := writeStore(t, map[string]map[string]string{
		"good": traceableProject(),
		"bad":  {"PRD.md": "PR003: feature"},
	})

	if _, err := run(t, "validate", "good", "--store", store, "--fail-on-invalid"); err != nil {
		t.Errorf("valid project: unexpected error %v", err)
	}

	out, err := run(t, "validate", "bad", "--store", store, "--fail-on-invalid", "--format", "json")
	if got := exitCode(err); got != exitInvalid {
		t.Fatalf("exit code = %d, want %d (%v)", got, exitInvalid, err)
	}
	var res schema.ValidationResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if len(res.OrphanedRequirements) != 1 || res.OrphanedRequirements[0].ID != "PR003" {
		t.Errorf("orphaned = %+v, want PR003", res.OrphanedRequirements)
	}

	if _, err := run(t, "validate", "bad", "--store", store); err != nil {
		t.Errorf("without --fail-on-invalid: unexpected error %v", err)
	}
}

func TestValidate_DiscoveryOrderTypesReferencedIDs(t *testing.T) {
	project := traceableProject()
	delete(project, "project.yaml")
	store := writeStore(t, map[string]map[string]string{"acme": project})

	out, err := run(t, "validate", "acme", "--store", store, "--format", "json")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	var res schema.ValidationResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	// Without a manifest BRD.md is read first, so the IDs it references
	// take its type and TR001 ends up typed FRD with nothing below it.
	if res.IsValid || len(res.UnimplementedRequirements) != 1 {
		t.Fatalf("unimplemented = %+v, want only TR001", res.UnimplementedRequirements)
	}
	if got := res.UnimplementedRequirements[0]; got.ID != "TR001" || got.DocumentType != schema.DocumentFRD {
		t.Errorf("unimplemented = %+v, want TR001 typed FRD", got)
	}
	if len(res.OrphanedRequirements) != 0 || len(res.BrokenLinks) != 0 {
		t.Errorf("orphaned = %+v, broken = %+v, want none", res.OrphanedRequirements, res.BrokenLinks)
	}
}

func TestShow_NotFound(t *testing.T) {
	store := writeStore(t, map[string]map[string]string{"acme": traceableProject()})

	_, err := run(t, "show", "acme", "fr999", "--store", store)
	if got := exitCode(err); got != exitNotFound {
		t.Errorf("exit code = %d, want %d (%v)", got, exitNotFound, err)
	}

	_, err = run(t, "matrix", "ghost", "--store", store)
	if got := exitCode(err); got != exitNotFound {
		t.Errorf("missing project exit code = %d, want %d (%v)", got, exitNotFound, err)
	}
}

func TestImpact_JSON(t *testing.T) {
	store := writeStore(t, map[string]map[string]string{"acme": traceableProject()})

	out, err := run(t, "impact", "acme", "br001", "--store", store, "--format", "json", "--description", "new market")
	if err != nil {
		t.Fatalf("impact: %v", err)
	}
	var res schema.ChangeImpactResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if res.TotalImpacted != 3 {
		t.Errorf("total impacted = %d, want 3", res.TotalImpacted)
	}
	if res.Severity != schema.SeverityMedium {
		t.Errorf("severity = %s, want Medium", res.Severity)
	}
	if res.ChangeDescription != "new market" {
		t.Errorf("change description = %q", res.ChangeDescription)
	}
}

func TestMatrixAndGaps_Text(t *testing.T) {
	store := writeStore(t, map[string]map[string]string{"acme": traceableProject()})

	out, err := run(t, "matrix", "acme", "--store", store)
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}
	if !strings.Contains(out, "Requirements:") || !strings.Contains(out, "4") {
		t.Errorf("matrix summary missing counts: %q", out)
	}

	out, err = run(t, "gaps", "acme", "--store", store)
	if err != nil {
		t.Fatalf("gaps: %v", err)
	}
	if !strings.Contains(out, "100.0%") {
		t.Errorf("gaps summary missing full coverage: %q", out)
	}
}

func TestBadFormatFlag(t *testing.T) {
	store := writeStore(t, map[string]map[string]string{"acme": traceableProject()})
	_, err := run(t, "gaps", "acme", "--store", store, "--format", "yaml")
	if got := exitCode(err); got != exitBadInput {
		t.Errorf("exit code = %d, want %d", got, exitBadInput)
	}
}

func TestImportIntoSQLite(t *testing.T) {
	src := writeStore(t, map[string]map[string]string{"acme": traceableProject()})
	db := filepath.Join(t.TempDir(), "docs.db")

	out, err := run(t, "import", "acme-v1", filepath.Join(src, "acme"), "--driver", "sqlite", "--store", db)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Imported 4 document(s)") {
		t.Errorf("import output = %q", out)
	}

	out, err = run(t, "projects", "--driver", "sqlite", "--store", db)
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	if strings.TrimSpace(out) != "acme-v1" {
		t.Errorf("projects = %q", out)
	}

	out, err = run(t, "export", "acme-v1", "--driver", "sqlite", "--store", db, "--format", "csv")
	if err != nil {
		t.Fatalf("export from sqlite: %v", err)
	}
	if !strings.Contains(out, "FR001,TR001,Implements") {
		t.Errorf("export = %q", out)
	}
}

func TestImport_RequiresSQLite(t *testing.T) {
	src := writeStore(t, map[string]map[string]string{"acme": traceableProject()})
	_, err := run(t, "import", "acme", filepath.Join(src, "acme"), "--store", src)
	if got := exitCode(err); got != exitBadInput {
		t.Errorf("exit code = %d, want %d", got, exitBadInput)
	}
}

func TestManifest(t *testing.T) {
	project := traceableProject()
	delete(project, "project.yaml")
	store := writeStore(t, map[string]map[string]string{"acme": project})

	if _, err := run(t, "manifest", "acme", "--store", store); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(store, "acme", "project.yaml"))
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	for _, want := range []string{"BRD.md", "PRD.md", "FRD.md", "TRD.md"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("manifest missing %s:\n%s", want, data)
		}
	}
}

func TestDiff(t *testing.T) {
	v2 := traceableProject()
	v2["PRD.md"] = "PR001: Checkout FR001\nPR002: Wishlist"
	store := writeStore(t, map[string]map[string]string{"v1": traceableProject(), "v2": v2})
	patch := filepath.Join(t.TempDir(), "matrix.patch")

	out, err := run(t, "diff", "v1", "v2", "--store", store, "--format", "json", "--patch-out", patch)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	var res schema.ComparisonResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if len(res.AddedRequirements) != 1 || res.AddedRequirements[0] != "PR002" {
		t.Errorf("added = %v, want [PR002]", res.AddedRequirements)
	}
	if info, err := os.Stat(patch); err != nil || info.Size() == 0 {
		t.Errorf("patch file not written: %v", err)
	}
}

func TestInvalidConfigValue(t *testing.T) {
	store := writeStore(t, map[string]map[string]string{"acme": traceableProject()})
	_, err := run(t, "matrix", "acme", "--store", store, "--ordering", "random")
	if got := exitCode(err); got != exitBadInput {
		t.Errorf("exit code = %d, want %d", got, exitBadInput)
	}
}

func TestImpact_FailOn(t *testing.T) {
	store := writeStore(t, map[string]map[string]string{"acme": traceableProject()})

	_, err := run(t, "impact", "acme", "BR001", "--store", store, "--fail-on", "medium")
	if got := exitCode(err); got != exitInvalid {
		t.Errorf("medium threshold: exit code = %d, want %d (%v)", got, exitInvalid, err)
	}

	if _, err := run(t, "impact", "acme", "BR001", "--store", store, "--fail-on", "HIGH"); err != nil {
		t.Errorf("high threshold: unexpected error %v", err)
	}

	_, err = run(t, "impact", "acme", "BR001", "--store", store, "--fail-on", "severe")
	if got := exitCode(err); got != exitBadInput {
		t.Errorf("bad threshold: exit code = %d, want %d", got, exitBadInput)
	}
}

func TestApplyPatch(t *testing.T) {
	v2 := traceableProject()
	v2["PRD.md"] = "PR001: Checkout FR001\nPR002: Wishlist"
	store := writeStore(t, map[string]map[string]string{"v1": traceableProject(), "v2": v2})
	work := t.TempDir()
	patch := filepath.Join(work, "matrix.patch")
	base := filepath.Join(work, "base.md")

	if _, err := run(t, "diff", "v1", "v2", "--store", store, "--patch-out", patch); err != nil {
		t.Fatalf("diff: %v", err)
	}
	if _, err := run(t, "export", "v1", "--store", store, "--format", "markdown", "--out", base); err != nil {
		t.Fatalf("export: %v", err)
	}

	out, err := run(t, "apply-patch", patch, base)
	if err != nil {
		t.Fatalf("apply-patch: %v", err)
	}
	if !strings.Contains(out, "| PR002 | PRD | Wishlist |") {
		t.Errorf("patched export missing PR002 row:\n%s", out)
	}
}

func TestImport_Append(t *testing.T) {
	src := writeStore(t, map[string]map[string]string{
		"business": {"BRD.md": "BR001: Grow revenue PR001"},
		"product":  {"PRD.md": "PR001: Checkout"},
	})
	db := filepath.Join(t.TempDir(), "docs.db")

	if _, err := run(t, "import", "acme", filepath.Join(src, "business"), "--driver", "sqlite", "--store", db); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := run(t, "import", "acme", filepath.Join(src, "product"), "--driver", "sqlite", "--store", db, "--append"); err != nil {
		t.Fatalf("import --append: %v", err)
	}

	out, err := run(t, "export", "acme", "--driver", "sqlite", "--store", db)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out != "Source,Target,Link Type\nBR001,PR001,Implements\n" {
		t.Errorf("export = %q", out)
	}
}
