package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shadowgen/internal/shadow"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestTemplateLoads(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, Template("core", "NS.A", "NS.B`1"))
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m.Config.Jobs) != 1 {
		t.Fatalf("jobs: got=%d want=1", len(m.Config.Jobs))
	}
	job := m.Config.Jobs[0]
	if job.Name != "core" || job.Input != "core.smod" || len(job.Types) != 2 {
		t.Fatalf("job: got=%+v", job)
	}
	if got := m.Config.Weave.Options(); got != (shadow.Options{}).WithDefaults() {
		t.Fatalf("options: got=%+v", got)
	}
	if got := m.Resolve(job.Output); got != filepath.Join(dir, "out", "core.Fake.smod") {
		t.Fatalf("resolve: got=%s", got)
	}
}

func TestLoadManifestDefaultsAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[weave]
namespace = "Mock"

[[job]]
input = "libs/Core.smod"
output = "out/Core.smod"
types = [" NS.Cafe\u0301 "]
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	job := m.Config.Jobs[0]
	if job.Name != "Core" {
		t.Fatalf("derived name: got=%q want=%q", job.Name, "Core")
	}
	if job.Types[0] != "NS.Caf\u00e9" {
		t.Fatalf("type name not normalized: got=%q", job.Types[0])
	}
	opts := m.Config.Weave.Options()
	if opts.Namespace != "Mock" || opts.ForwardField != shadow.DefaultForwardField {
		t.Fatalf("options: got=%+v", opts)
	}
}

func TestLoadManifestRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[[job]\n", "failed to parse TOML"},
		{"no jobs", "[weave]\nnamespace = \"Fake\"\n", ErrNoJobs.Error()},
		{"empty namespace", "[weave]\nnamespace = \"\"\n[[job]]\ninput = \"a\"\noutput = \"b\"\ntypes = [\"A\"]\n", "[weave].namespace must not be empty"},
		{"no input", "[[job]]\noutput = \"b\"\ntypes = [\"A\"]\n", "missing input"},
		{"no types", "[[job]]\ninput = \"a\"\noutput = \"b\"\n", "missing types"},
		{"unknown key", "[[job]]\ninput = \"a\"\noutput = \"b\"\ntypes = [\"A\"]\nextra = 1\n", "unknown key"},
		{"duplicate", "[[job]]\ninput = \"x/a.smod\"\noutput = \"b\"\ntypes = [\"A\"]\n[[job]]\ninput = \"y/a.smod\"\noutput = \"c\"\ntypes = [\"A\"]\n", "both named"},
	}
	for _, tc := range cases {
		path := writeManifest(t, t.TempDir(), tc.body)
		_, err := LoadManifest(path)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: got=%v want containing %q", tc.name, err, tc.want)
		}
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, Template("lib", "NS.A"))
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	m, err := Discover(nested)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if m.Root != root {
		t.Fatalf("root: got=%s want=%s", m.Root, root)
	}

	if _, err := Discover(t.TempDir()); !errors.Is(err, ErrNoManifest) {
		// A manifest above the temp dir would make this ambiguous.
		if _, ok, _ := FindManifest(os.TempDir()); !ok {
			t.Fatalf("empty tree: got=%v want=%v", err, ErrNoManifest)
		}
	}
}
