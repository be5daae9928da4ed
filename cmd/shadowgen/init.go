package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shadowgen/internal/project"
)

func newInitCmd() *cobra.Command {
	var (
		name  string
		types []string
	)
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a " + project.ManifestName + " manifest",
		Long: `Create a starter manifest with one [[job]] in dir (default: the current
directory). The job is named after --name, or the directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			target := wd
			if len(args) == 1 && args[0] != "." {
				target = args[0]
				if !filepath.IsAbs(target) {
					target = filepath.Join(wd, target)
				}
			}
			path, err := initManifest(target, name, types)
			if err != nil {
				return err
			}
			if !quiet(cmd) {
				rel := path
				if r, err := filepath.Rel(wd, path); err == nil {
					rel = r
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", rel)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "job name and input snapshot stem")
	cmd.Flags().StringArrayVarP(&types, "type", "t", nil, "type to pre-fill in the job (repeatable)")
	return cmd
}

// initManifest writes a template manifest into dir, creating dir when
// missing. An existing manifest is never overwritten.
func initManifest(dir, name string, types []string) (string, error) {
	if st, err := os.Stat(dir); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	} else if !st.IsDir() {
		return "", fmt.Errorf("%q is not a directory", dir)
	}

	path := filepath.Join(dir, project.ManifestName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("already initialized: %s exists", path)
	}
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(dir)
	}
	if err := os.WriteFile(path, []byte(project.Template(name, types...)), 0o600); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}
