package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"

	"shadowgen/internal/shadow"
)

// ManifestName is the file FindManifest looks for.
const ManifestName = "shadowgen.toml"

var (
	// ErrNoManifest is returned when no manifest exists up to the filesystem root.
	ErrNoManifest = errors.New("no " + ManifestName + " found")
	// ErrNoJobs is returned for manifests without [[job]] entries.
	ErrNoJobs = errors.New("manifest declares no [[job]]")
)

// Manifest is a loaded shadowgen.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the manifest layout.
type Config struct {
	Weave WeaveConfig `toml:"weave"`
	Jobs  []JobConfig `toml:"job"`
}

// WeaveConfig holds naming defaults shared by every job.
type WeaveConfig struct {
	Namespace      string `toml:"namespace"`
	FakeImplPrefix string `toml:"fake_impl_prefix"`
	ForwardField   string `toml:"forward_field"`
	HolderPrefix   string `toml:"holder_prefix"`
	WitnessSuffix  string `toml:"witness_suffix"`
}

// JobConfig describes one source module to weave.
type JobConfig struct {
	Name      string   `toml:"name"`
	Input     string   `toml:"input"`
	Output    string   `toml:"output"`
	Companion string   `toml:"companion"`
	Types     []string `toml:"types"`
}

// Options converts the [weave] section into weaver options.
func (w WeaveConfig) Options() shadow.Options {
	return shadow.Options{
		Namespace:      w.Namespace,
		FakeImplPrefix: w.FakeImplPrefix,
		ForwardField:   w.ForwardField,
		HolderPrefix:   w.HolderPrefix,
		WitnessSuffix:  w.WitnessSuffix,
	}.WithDefaults()
}

// FindManifest walks up from startDir to locate shadowgen.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover finds and loads the manifest governing startDir.
func Discover(startDir string) (*Manifest, error) {
	path, ok, err := FindManifest(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoManifest
	}
	return LoadManifest(path)
}

// LoadManifest parses and validates the manifest at path. Job paths stay
// relative to the manifest directory; use Resolve to anchor them.
func LoadManifest(path string) (*Manifest, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if !md.IsDefined("job") || len(cfg.Jobs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoJobs)
	}
	for _, key := range []string{"namespace", "fake_impl_prefix", "forward_field", "holder_prefix", "witness_suffix"} {
		if md.IsDefined("weave", key) && strings.TrimSpace(weaveValue(cfg.Weave, key)) == "" {
			return nil, fmt.Errorf("%s: [weave].%s must not be empty", path, key)
		}
	}
	seen := make(map[string]int, len(cfg.Jobs))
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		if strings.TrimSpace(job.Input) == "" {
			return nil, fmt.Errorf("%s: job %d: missing input", path, i+1)
		}
		if strings.TrimSpace(job.Output) == "" {
			return nil, fmt.Errorf("%s: job %d: missing output", path, i+1)
		}
		if len(job.Types) == 0 {
			return nil, fmt.Errorf("%s: job %d: missing types", path, i+1)
		}
		if job.Name == "" {
			job.Name = strings.TrimSuffix(filepath.Base(job.Input), filepath.Ext(job.Input))
		}
		if prev, dup := seen[job.Name]; dup {
			return nil, fmt.Errorf("%s: jobs %d and %d are both named %q", path, prev, i+1, job.Name)
		}
		seen[job.Name] = i + 1
		for j, t := range job.Types {
			job.Types[j] = norm.NFC.String(strings.TrimSpace(t))
		}
	}
	return &Manifest{
		Path:   path,
		Root:   filepath.Dir(path),
		Config: cfg,
	}, nil
}

func weaveValue(w WeaveConfig, key string) string {
	switch key {
	case "namespace":
		return w.Namespace
	case "fake_impl_prefix":
		return w.FakeImplPrefix
	case "forward_field":
		return w.ForwardField
	case "holder_prefix":
		return w.HolderPrefix
	case "witness_suffix":
		return w.WitnessSuffix
	}
	return ""
}

// Resolve anchors a manifest-relative path at the manifest directory.
func (m *Manifest) Resolve(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.Root, filepath.FromSlash(rel))
}
