package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestCurrentTrimsAndDefaults(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	defer func() {
		Version, GitCommit, BuildDate = origVersion, origCommit, origDate
	}()

	Version = "  "
	GitCommit = " abc123 "
	BuildDate = ""
	info := Current()
	if info.Version != "dev" {
		t.Fatalf("version: got=%q want=%q", info.Version, "dev")
	}
	if info.GitCommit != "abc123" || info.BuildDate != "" {
		t.Fatalf("metadata: got=%+v", info)
	}
}

func TestColored(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	cases := []struct {
		in   string
		want string
	}{
		{"0.1.0-dev", "0.1.0-dev"},
		{"1.2.3+build.7", "1.2.3+build.7"},
		{"dev", "dev"},
		{"1.2", "1.2"},
	}
	for _, tc := range cases {
		if got := Colored(tc.in); got != tc.want {
			t.Fatalf("Colored(%q): got=%q want=%q", tc.in, got, tc.want)
		}
	}

	color.NoColor = false
	if got := Colored("1.2.3"); got == "1.2.3" {
		t.Fatalf("colored output must differ from plain text")
	}
}
