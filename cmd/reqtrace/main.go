package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/reqtrace/internal/config"
	"github.com/dshills/reqtrace/internal/document"
	"github.com/dshills/reqtrace/internal/engine"
	"github.com/dshills/reqtrace/internal/render"
	"github.com/dshills/reqtrace/internal/schema"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// Exit codes.
const (
	exitGeneric  = 1
	exitInvalid  = 2 // --fail-on-invalid or --fail-on tripped
	exitBadInput = 3
	exitStore    = 4
	exitNotFound = 5
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// outcomeError converts a failed operation outcome into an exitErr.
func outcomeError(op string, o schema.Outcome) error {
	err := o.Err()
	if err == nil {
		return nil
	}
	code := exitGeneric
	switch {
	case errors.Is(err, engine.ErrRequirementNotFound), errors.Is(err, document.ErrProjectNotFound):
		code = exitNotFound
	case errors.Is(err, engine.ErrInvalidArgument),
		errors.Is(err, document.ErrInvalidProject),
		errors.Is(err, render.ErrUnsupportedFormat):
		code = exitBadInput
	case errors.Is(err, engine.ErrDocumentFetch):
		code = exitStore
	}
	return codeError(code, "%s: %s", op, o.Error)
}

// globalFlags holds flags shared by every command.
type globalFlags struct {
	cfgFile string
	verbose bool
}

// app is the per-invocation wiring: configuration, logger, store and service.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	svc    *engine.Service

	dir    *document.DirStore
	sqlite *document.SQLiteStore
}

func (a *app) close() {
	if a.sqlite != nil {
		a.sqlite.Close()
	}
}

// newApp loads configuration and opens the configured document store.
func newApp(ctx context.Context, flags *globalFlags, stderr io.Writer) (*app, error) {
	if err := config.Init(flags.cfgFile); err != nil {
		return nil, codeError(exitBadInput, "%s", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, codeError(exitBadInput, "%s", err)
	}
	if flags.verbose {
		cfg.Log.Level = "debug"
	}
	logger := cfg.Log.NewLogger(stderr)

	a := &app{cfg: cfg, logger: logger}
	var provider document.Provider
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := document.OpenSQLiteStore(ctx, cfg.Store.Path)
		if err != nil {
			return nil, codeError(exitStore, "%s", err)
		}
		a.sqlite = s
		provider = s
	default:
		a.dir = document.NewDirStore(cfg.Store.Path, logger)
		provider = a.dir
	}

	a.svc = engine.New(provider, engine.Options{
		Ordering: engine.Ordering(cfg.Ordering),
		Redact:   cfg.Redact,
		Logger:   logger,
	})
	logger.Debug("Configured document store", "driver", cfg.Store.Driver, "path", cfg.Store.Path)
	return a, nil
}

// newRootCmd builds the command tree. Each command opens its own app.
func newRootCmd() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:           "reqtrace",
		Short:         "Trace requirements across BRD, PRD, FRD, NFRD and TRD documents",
		Long:          "reqtrace builds a traceability matrix from requirement documents and answers impact, validation and coverage questions over it.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.cfgFile, "config", "", "Config file (default .reqtrace.yaml in . or $HOME)")
	pf.String("store", "", "Document store path (directory root or SQLite file)")
	pf.String("driver", "", "Document store driver: dir or sqlite")
	pf.String("ordering", "", "Duplicate ID resolution: provider or hierarchy")
	pf.Bool("redact", false, "Scrub secrets from documents before extraction")
	pf.BoolVar(&flags.verbose, "verbose", false, "Log processing steps to stderr")
	_ = viper.BindPFlag("store.path", pf.Lookup("store"))
	_ = viper.BindPFlag("store.driver", pf.Lookup("driver"))
	_ = viper.BindPFlag("ordering", pf.Lookup("ordering"))
	_ = viper.BindPFlag("redact", pf.Lookup("redact"))

	root.AddCommand(
		matrixCmd(&flags),
		impactCmd(&flags),
		validateCmd(&flags),
		showCmd(&flags),
		exportCmd(&flags),
		gapsCmd(&flags),
		diffCmd(&flags),
		applyPatchCmd(),
		projectsCmd(&flags),
		importCmd(&flags),
		manifestCmd(&flags),
		serveCmd(&flags),
		watchCmd(&flags),
	)
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitGeneric)
	}
}

// output writes a result as JSON or through the text summary function.
func output[T any](w io.Writer, format string, result T, text func(T) string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return codeError(exitGeneric, "encoding result: %s", err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return codeError(exitGeneric, "writing output: %s", err)
		}
	case "text":
		if _, err := io.WriteString(w, text(result)); err != nil {
			return codeError(exitGeneric, "writing output: %s", err)
		}
	default:
		return codeError(exitBadInput, "--format must be text or json, got %q", format)
	}
	return nil
}
