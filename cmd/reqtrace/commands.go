package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/reqtrace/internal/compare"
	"github.com/dshills/reqtrace/internal/document"
	"github.com/dshills/reqtrace/internal/render"
	"github.com/dshills/reqtrace/internal/schema"
	"github.com/dshills/reqtrace/internal/server"
	"github.com/dshills/reqtrace/internal/watch"
)

// withApp wraps a command body with app setup and teardown.
func withApp(flags *globalFlags, run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), flags, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.close()
		return run(cmd, a, args)
	}
}

func matrixCmd(flags *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "matrix <project>",
		Short: "Build the traceability matrix and print its statistics",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			res := a.svc.GenerateTraceabilityMatrix(cmd.Context(), args[0])
			if err := outcomeError("matrix", res.Outcome); err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), format, res, render.MatrixSummary)
		}),
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func impactCmd(flags *globalFlags) *cobra.Command {
	var format, description, changeType, failOn string
	cmd := &cobra.Command{
		Use:   "impact <project> <requirement-id>",
		Short: "Analyze the downstream impact of changing a requirement",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			threshold := -1
			if failOn != "" {
				threshold = schema.SeverityOrdinal(schema.Severity(capitalize(failOn)))
				if threshold < 0 {
					return codeError(exitBadInput, "--fail-on must be Low, Medium, High or Critical, got %q", failOn)
				}
			}
			res := a.svc.AnalyzeChangeImpact(cmd.Context(), args[0], strings.ToUpper(args[1]), description, changeType)
			if err := outcomeError("impact", res.Outcome); err != nil {
				return err
			}
			if err := output(cmd.OutOrStdout(), format, res, render.ImpactSummary); err != nil {
				return err
			}
			if threshold >= 0 && schema.SeverityOrdinal(res.Severity) >= threshold {
				return codeError(exitInvalid, "change impact severity %s meets --fail-on %s", res.Severity, failOn)
			}
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "text", "Output format: text or json")
	f.StringVar(&description, "description", "", "Description of the change, recorded on the result")
	f.StringVar(&changeType, "type", "Modified", "Kind of change, recorded on the result")
	f.StringVar(&failOn, "fail-on", "", "Exit 2 when severity is at or above this level (Low, Medium, High, Critical)")
	return cmd
}

// capitalize turns "high" into "High".
func capitalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

func validateCmd(flags *globalFlags) *cobra.Command {
	var format string
	var failOnInvalid bool
	cmd := &cobra.Command{
		Use:   "validate <project>",
		Short: "Report orphaned, unimplemented and broken-link requirements",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			res := a.svc.ValidateTraceability(cmd.Context(), args[0])
			if err := outcomeError("validate", res.Outcome); err != nil {
				return err
			}
			if err := output(cmd.OutOrStdout(), format, res, render.ValidationSummary); err != nil {
				return err
			}
			if failOnInvalid && !res.IsValid {
				return codeError(exitInvalid, "traceability validation failed: %d orphaned, %d unimplemented, %d broken links",
					len(res.OrphanedRequirements), len(res.UnimplementedRequirements), len(res.BrokenLinks))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&failOnInvalid, "fail-on-invalid", false, "Exit 2 when the project is not fully traceable")
	return cmd
}

func showCmd(flags *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <project> <requirement-id>",
		Short: "Show a requirement and its links in both directions",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			res := a.svc.GetRequirementDetails(cmd.Context(), args[0], strings.ToUpper(args[1]))
			if err := outcomeError("show", res.Outcome); err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), format, res, render.DetailsSummary)
		}),
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func exportCmd(flags *globalFlags) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export <project>",
		Short: "Export the traceability matrix as CSV, JSON, HTML or Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			res := a.svc.ExportTraceabilityMatrix(cmd.Context(), args[0], format)
			if err := outcomeError("export", res.Outcome); err != nil {
				return err
			}
			if out == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), res.Content)
				return err
			}
			if info, err := os.Stat(out); err == nil && info.IsDir() {
				out = filepath.Join(out, res.FileName)
			}
			if err := os.WriteFile(out, []byte(res.Content), 0o644); err != nil {
				return codeError(exitGeneric, "writing export: %s", err)
			}
			a.logger.Info("Wrote export", "path", out, "format", res.Format)
			return nil
		}),
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Export format: csv, json, html or markdown")
	cmd.Flags().StringVar(&out, "out", "", "Write to this file (or directory) instead of stdout")
	return cmd
}

func gapsCmd(flags *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "gaps <project>",
		Short: "Report missing upstream and downstream links with coverage",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			res := a.svc.AnalyzeTraceabilityGaps(cmd.Context(), args[0])
			if err := outcomeError("gaps", res.Outcome); err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), format, res, render.GapSummary)
		}),
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func diffCmd(flags *globalFlags) *cobra.Command {
	var format, patchOut string
	cmd := &cobra.Command{
		Use:   "diff <base-project> <head-project>",
		Short: "Compare the matrices of two projects",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			res := a.svc.CompareProjects(cmd.Context(), args[0], args[1])
			if err := outcomeError("diff", res.Outcome); err != nil {
				return err
			}
			if patchOut != "" {
				if err := os.WriteFile(patchOut, []byte(res.Patch), 0o644); err != nil {
					return codeError(exitGeneric, "writing patch: %s", err)
				}
			}
			return output(cmd.OutOrStdout(), format, res, render.ComparisonSummary)
		}),
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&patchOut, "patch-out", "", "Write the Markdown export patch in diff-match-patch format to this file")
	return cmd
}

func applyPatchCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "apply-patch <patch-file> <markdown-export>",
		Short: "Apply a diff --patch-out patch to a Markdown matrix export",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := os.ReadFile(args[0])
			if err != nil {
				return codeError(exitBadInput, "reading patch: %s", err)
			}
			text, err := os.ReadFile(args[1])
			if err != nil {
				return codeError(exitBadInput, "reading export: %s", err)
			}
			result, clean, err := compare.Apply(string(patch), string(text))
			if err != nil {
				return codeError(exitBadInput, "%s", err)
			}
			if out == "" {
				if _, err := fmt.Fprint(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else if err := os.WriteFile(out, []byte(result), 0o644); err != nil {
				return codeError(exitGeneric, "writing result: %s", err)
			}
			if !clean {
				return codeError(exitGeneric, "patch did not apply cleanly to %s", args[1])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the patched export to this file instead of stdout")
	return cmd
}

func projectsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List the projects in the document store",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			var projects []string
			var err error
			if a.sqlite != nil {
				projects, err = a.sqlite.ListProjects(cmd.Context())
			} else {
				projects, err = a.dir.ListProjects()
			}
			if err != nil {
				return codeError(exitStore, "%s", err)
			}
			for _, p := range projects {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		}),
	}
}

func importCmd(flags *globalFlags) *cobra.Command {
	var appendDocs bool
	cmd := &cobra.Command{
		Use:   "import <project> <directory>",
		Short: "Load a project directory into the SQLite document store",
		Long:  "Reads the documents of a project directory (manifest or file-name discovery) and replaces the project's documents in the SQLite store, or appends to them with --append.",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			if a.sqlite == nil {
				return codeError(exitBadInput, "import requires store.driver=sqlite")
			}
			if err := document.ValidateProjectID(args[0]); err != nil {
				return codeError(exitBadInput, "%s", err)
			}
			dir := filepath.Clean(args[1])
			src := document.NewDirStore(filepath.Dir(dir), a.logger)
			docs, err := src.GetProjectDocuments(cmd.Context(), filepath.Base(dir))
			if err != nil {
				return codeError(exitBadInput, "reading %s: %s", dir, err)
			}
			if appendDocs {
				for _, d := range docs {
					if err := a.sqlite.PutDocument(cmd.Context(), args[0], d); err != nil {
						return codeError(exitStore, "%s", err)
					}
				}
			} else if err := a.sqlite.ReplaceProject(cmd.Context(), args[0], docs); err != nil {
				return codeError(exitStore, "%s", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d document(s) into %s\n", len(docs), args[0])
			return nil
		}),
	}
	cmd.Flags().BoolVar(&appendDocs, "append", false, "Append to the project's existing documents instead of replacing them")
	return cmd
}

func manifestCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <project>",
		Short: "Write a project.yaml manifest from the documents found by file name",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			if a.dir == nil {
				return codeError(exitBadInput, "manifest requires store.driver=dir")
			}
			m, err := a.dir.Discover(args[0])
			if err != nil {
				return outcomeError("manifest", schema.Failed(err))
			}
			dir, err := a.dir.ProjectDir(args[0])
			if err != nil {
				return outcomeError("manifest", schema.Failed(err))
			}
			if err := document.WriteManifest(dir, m); err != nil {
				return codeError(exitStore, "%s", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s with %d document(s)\n",
				filepath.Join(dir, document.ManifestYAML), len(m.Documents))
			return nil
		}),
	}
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the traceability API over HTTP",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			router := server.NewRouter(server.NewHandlers(a.svc, a.logger))
			if err := server.Run(ctx, addr, router, a.logger); err != nil {
				return codeError(exitGeneric, "%s", err)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	return cmd
}

func watchCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <project>",
		Short: "Re-validate a project whenever its documents change",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, args []string) error {
			if a.dir == nil {
				return codeError(exitBadInput, "watch requires store.driver=dir")
			}
			project := args[0]
			dir, err := a.dir.ProjectDir(project)
			if err != nil {
				return outcomeError("watch", schema.Failed(err))
			}
			w, err := watch.New(watch.Config{
				Dir:        dir,
				Debounce:   a.cfg.Watch.Debounce,
				Extensions: []string{".md", ".markdown", ".txt", ".html", ".htm", ".yaml", ".toml"},
				Logger:     a.logger,
			})
			if err != nil {
				return codeError(exitGeneric, "%s", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			validate := func(ctx context.Context) {
				fmt.Fprint(out, render.ValidationSummary(a.svc.ValidateTraceability(ctx, project)))
			}
			validate(ctx)
			return w.Run(ctx, func(ctx context.Context, changed []string) {
				a.logger.Info("Documents changed", "project", project, "files", changed)
				validate(ctx)
			})
		}),
	}
	return cmd
}
