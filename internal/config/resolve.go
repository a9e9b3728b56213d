// Package config resolves map specifications into build configurations and
// loads process settings from the environment.
package config

import (
	"crypto/sha1"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/mapmaker/api"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const (
	DefaultDataDir   = "data"
	DefaultOutputDir = "output"
)

// Derived holds the values computed from a merged spec.
// All paths are relative to the resolver's working directory.
type Derived struct {
	ShapeDir    string
	ShapeFile   string
	Repo        api.Repo
	DownloadURL string
	Fingerprint string
	OutputSVG   string
}

// Resolved is a fully merged and derived configuration for one build.
type Resolved struct {
	Spec    api.Spec
	Derived Derived
	// Workdir anchors the relative paths in Derived. Not part of the fingerprint.
	Workdir string
}

// Path returns rel anchored at the working directory.
func (r *Resolved) Path(rel string) string {
	if filepath.IsAbs(rel) || r.Workdir == "" {
		return rel
	}
	return filepath.Join(r.Workdir, rel)
}

// Resolver merges defaults, spec files and overrides.
type Resolver struct {
	Workdir   string
	DataDir   string
	OutputDir string
	// Defaults replaces the embedded defaults document when non-nil.
	Defaults []byte
}

// NewResolver returns a resolver rooted at workdir with the standard layout.
func NewResolver(workdir string) *Resolver {
	return &Resolver{
		Workdir:   workdir,
		DataDir:   DefaultDataDir,
		OutputDir: DefaultOutputDir,
	}
}

// Resolve merges the built-in defaults, the spec file (if any) and the
// override (if any), later sources winning, and computes derived fields.
// At least one of specFile and override must be supplied.
func (r *Resolver) Resolve(specFile string, override map[string]any) (*Resolved, error) {
	if specFile == "" && override == nil {
		return nil, api.Errorf(api.KindConfig, "no specification supplied")
	}

	defaults := r.Defaults
	if defaults == nil {
		defaults = defaultsYAML
	}
	merged, err := parseDocument(defaults)
	if err != nil {
		return nil, api.Errorf(api.KindConfig, "parse defaults: %w", err)
	}

	if specFile != "" {
		data, err := os.ReadFile(r.specPath(specFile))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, api.Errorf(api.KindConfig, "spec file %s not found: %w", specFile, err)
			}
			return nil, api.Errorf(api.KindConfig, "read spec file %s: %w", specFile, err)
		}
		node, err := parseDocument(data)
		if err != nil {
			return nil, api.Errorf(api.KindConfig, "parse spec file %s: %w", specFile, err)
		}
		merged = mergeNodes(merged, node)
	}

	if override != nil {
		node, err := encodeOverride(override)
		if err != nil {
			return nil, api.Errorf(api.KindConfig, "encode override: %w", err)
		}
		merged = mergeNodes(merged, node)
	}

	var spec api.Spec
	if err := merged.Decode(&spec); err != nil {
		return nil, api.Errorf(api.KindConfig, "decode spec: %w", err)
	}
	var doc map[string]any
	if err := merged.Decode(&doc); err != nil {
		return nil, api.Errorf(api.KindConfig, "decode spec: %w", err)
	}
	return r.derive(spec, doc)
}

func (r *Resolver) specPath(p string) string {
	if filepath.IsAbs(p) || r.Workdir == "" {
		return p
	}
	return filepath.Join(r.Workdir, p)
}

func (r *Resolver) derive(spec api.Spec, doc map[string]any) (*Resolved, error) {
	sd := spec.ShapeData
	if strings.TrimSpace(sd.Filename) == "" {
		return nil, api.Errorf(api.KindConfig, "shape_data.filename is required")
	}
	if strings.TrimSpace(sd.Repo) == "" {
		return nil, api.Errorf(api.KindConfig, "shape_data.repo is required")
	}
	repo, ok := spec.Repos[sd.Repo]
	if !ok {
		return nil, api.Errorf(api.KindConfig, "shape_data.repo %q: %w", sd.Repo, api.ErrUnknownRepo)
	}
	if repo.BaseURL == "" {
		return nil, api.Errorf(api.KindConfig, "repos.%s.base_url is required", sd.Repo)
	}

	stem := fileStem(sd.Filename)
	shapeDir := filepath.Join(r.dataDir(), sd.Repo, sd.Base, stem)
	downloadURL, err := url.JoinPath(repo.BaseURL, sd.Base, sd.Filename)
	if err != nil {
		return nil, api.Errorf(api.KindConfig, "repos.%s.base_url: %w", sd.Repo, err)
	}

	d := Derived{
		ShapeDir:    shapeDir,
		ShapeFile:   filepath.Join(shapeDir, stem+".shp"),
		Repo:        repo,
		DownloadURL: downloadURL,
	}

	if doc == nil {
		doc = map[string]any{}
	}
	doc["derived"] = map[string]any{
		"shape_dir":    filepath.ToSlash(d.ShapeDir),
		"shape_file":   filepath.ToSlash(d.ShapeFile),
		"repo_info":    map[string]any{"base_url": repo.BaseURL},
		"download_url": d.DownloadURL,
	}
	sum, err := Fingerprint(doc)
	if err != nil {
		return nil, api.Errorf(api.KindConfig, "fingerprint: %w", err)
	}
	d.Fingerprint = sum
	d.OutputSVG = filepath.Join(r.outputDir(), sum+".svg")

	return &Resolved{Spec: spec, Derived: d, Workdir: r.Workdir}, nil
}

func (r *Resolver) dataDir() string {
	if r.DataDir == "" {
		return DefaultDataDir
	}
	return r.DataDir
}

func (r *Resolver) outputDir() string {
	if r.OutputDir == "" {
		return DefaultOutputDir
	}
	return r.OutputDir
}

// Fingerprint returns a stable SHA-1 over the canonical JSON form of doc.
// Mapping keys are sorted, so key order in the source documents does not
// change the result.
func Fingerprint(doc map[string]any) (string, error) {
	b, err := json.Marshal(canonical(doc))
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:]), nil
}

// canonical rewrites non-string-keyed maps so encoding/json accepts them.
func canonical(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = canonical(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[fmt.Sprint(k)] = canonical(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = canonical(vv)
		}
		return out
	default:
		return v
	}
}

// fileStem strips the last extension; names without one (or dot-files) are
// returned unchanged.
func fileStem(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}
