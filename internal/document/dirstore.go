package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/reqtrace/internal/schema"
)

// documentExtensions lists the file types DirStore reads without a manifest.
var documentExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".html":     true,
	".htm":      true,
}

// maxConcurrentReads bounds parallel file reads within one project.
const maxConcurrentReads = 8

// DirStore serves projects from a directory tree: each subdirectory of Root
// is a project. A project lists its documents in project.yaml or
// project.toml; without a manifest, every document file whose name starts
// with a document type (BRD.md, prd-v2.md, ...) is read, ordered by
// hierarchy rank and then file name.
type DirStore struct {
	Root      string
	logger    *slog.Logger
	convertMu sync.Mutex
	converter *md.Converter
}

// NewDirStore creates a DirStore rooted at root.
func NewDirStore(root string, logger *slog.Logger) *DirStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirStore{
		Root:      root,
		logger:    logger,
		converter: md.NewConverter("", true, nil),
	}
}

// ProjectDir returns the directory holding projectID's documents.
func (s *DirStore) ProjectDir(projectID string) (string, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return "", err
	}
	dir := filepath.Join(s.Root, projectID)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return "", fmt.Errorf("stat project %s: %w", projectID, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrProjectNotFound, projectID)
	}
	return dir, nil
}

// ListProjects returns the names of all project directories, sorted.
func (s *DirStore) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("reading store root: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// GetProjectDocuments reads every document of projectID. Files are read
// concurrently; the result keeps manifest (or directory) order.
func (s *DirStore) GetProjectDocuments(ctx context.Context, projectID string) ([]Document, error) {
	dir, err := s.ProjectDir(projectID)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries(dir)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}

	docs := make([]Document, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := s.load(dir, e)
			if err != nil {
				return err
			}
			docs[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}

	s.logger.Debug("Loaded project documents", "project", projectID, "documents", len(docs))
	return docs, nil
}

// Discover builds a manifest for projectID from its file names, ignoring
// any manifest already present.
func (s *DirStore) Discover(projectID string) (*Manifest, error) {
	dir, err := s.ProjectDir(projectID)
	if err != nil {
		return nil, err
	}
	entries, err := s.discover(dir)
	if err != nil {
		return nil, err
	}
	return &Manifest{Project: projectID, Documents: entries}, nil
}

// entries returns the manifest entries for dir, or entries discovered from
// file names when there is no manifest.
func (s *DirStore) entries(dir string) ([]ManifestEntry, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m.Documents, nil
	}
	return s.discover(dir)
}

func (s *DirStore) discover(dir string) ([]ManifestEntry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading project directory: %w", err)
	}
	var out []ManifestEntry
	for _, f := range files {
		if f.IsDir() || !documentExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
			continue
		}
		dt, ok := TypeFromFileName(f.Name())
		if !ok {
			s.logger.Debug("Skipping file with unknown document type", "file", f.Name())
			continue
		}
		out = append(out, ManifestEntry{Type: string(dt), Path: f.Name()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := schema.DocumentType(out[i].Type), schema.DocumentType(out[j].Type)
		if ti != tj {
			return schema.LessDocumentType(ti, tj)
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

func (s *DirStore) load(dir string, e ManifestEntry) (Document, error) {
	dt, ok := schema.ParseDocumentType(e.Type)
	if !ok {
		s.logger.Warn("Unknown document type in manifest", "type", e.Type, "path", e.Path)
	}
	path := e.Path
	if !filepath.IsLocal(path) {
		return Document{}, fmt.Errorf("document path %q escapes the project directory", e.Path)
	}
	path = filepath.Join(dir, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading document: %w", err)
	}
	content := string(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		s.convertMu.Lock()
		content, err = s.converter.ConvertString(content)
		s.convertMu.Unlock()
		if err != nil {
			return Document{}, fmt.Errorf("converting %s to markdown: %w", e.Path, err)
		}
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		if info, statErr := os.Stat(path); statErr == nil {
			createdAt = info.ModTime().UTC()
		}
	}
	version := e.Version
	if version == "" {
		version = "1"
	}

	return Document{
		DocumentType: dt,
		Content:      content,
		Version:      version,
		CreatedAt:    createdAt,
		Source:       path,
		Hash:         Hash(content),
	}, nil
}

// TypeFromFileName infers a document type from the leading token of a file
// name: "BRD.md", "prd-checkout.md" and "NFRD_v2.txt" all qualify.
func TypeFromFileName(name string) (schema.DocumentType, bool) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	token := base
	if i := strings.IndexAny(base, "-_. "); i >= 0 {
		token = base[:i]
	}
	return schema.ParseDocumentType(token)
}
