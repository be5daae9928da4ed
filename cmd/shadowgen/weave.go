package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"shadowgen/internal/driver"
	"shadowgen/internal/metafile"
	"shadowgen/internal/project"
)

type weaveFlags struct {
	config        string
	input         string
	output        string
	companion     string
	types         []string
	namespace     string
	jobs          int
	ui            uiMode
	timingsFormat string
}

func newWeaveCmd() *cobra.Command {
	f := &weaveFlags{}
	cmd := &cobra.Command{
		Use:   "weave [job...]",
		Short: "Generate shadow modules",
		Long: `Weave the jobs of the nearest shadowgen.toml (or --config), optionally
restricted to the named jobs. With --input, weave a single snapshot
without a manifest; --type selects the types to shadow.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeave(cmd, args, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "manifest path (default: search upwards for "+project.ManifestName+")")
	fl.StringVarP(&f.input, "input", "i", "", "source snapshot to weave without a manifest")
	fl.StringVarP(&f.output, "output", "o", "", "target snapshot (default: <input>.<namespace>"+metafile.Ext+")")
	fl.StringVar(&f.companion, "companion", "", "companion snapshot passed through to the output directory")
	fl.StringArrayVarP(&f.types, "type", "t", nil, "full name of a type to shadow (repeatable)")
	fl.StringVar(&f.namespace, "namespace", "", "override the shadow namespace")
	fl.IntVar(&f.jobs, "jobs", 0, "max parallel jobs (0=auto)")
	fl.Var(&f.ui, "ui", "progress display (auto|on|off)")
	fl.StringVar(&f.timingsFormat, "timings-format", "text", "timing output format (text|json)")
	return cmd
}

func runWeave(cmd *cobra.Command, args []string, f *weaveFlags) error {
	switch f.timingsFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported timings format %q (must be text or json)", f.timingsFormat)
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	jobs, err := resolveJobs(wd, args, f)
	if err != nil {
		return err
	}

	tr, stopTrace, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer stopTrace()
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	opts := driver.BatchOptions{Jobs: f.jobs}
	var results []*driver.Result
	if !quiet(cmd) && shouldUseTUI(f.ui, len(jobs), cmd.OutOrStdout()) {
		results, err = runBatchWithUI(cmd.Context(), "weaving", jobs, opts)
	} else {
		results, err = driver.RunBatch(cmd.Context(), jobs, opts)
		if !quiet(cmd) {
			writeSummary(cmd.OutOrStdout(), results)
		}
	}

	if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
		write := driver.WriteTimings
		if f.timingsFormat == "json" {
			write = driver.WriteTimingsJSON
		}
		if err := write(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	}
	if err != nil {
		tr.dumpRing(cmd.ErrOrStderr())
		return err
	}
	return nil
}

// resolveJobs builds the job list from flags or from the manifest found
// from wd. names restricts manifest jobs.
func resolveJobs(wd string, names []string, f *weaveFlags) ([]driver.Job, error) {
	if f.input != "" {
		return singleJob(wd, names, f)
	}
	if f.output != "" || f.companion != "" || len(f.types) > 0 {
		return nil, errors.New("--output, --companion and --type require --input")
	}

	var (
		m   *project.Manifest
		err error
	)
	if f.config != "" {
		m, err = project.LoadManifest(f.config)
	} else {
		m, err = project.Discover(wd)
	}
	if err != nil {
		return nil, err
	}
	jobs := driver.JobsFromManifest(m)
	if f.namespace != "" {
		for i := range jobs {
			jobs[i].Options.Namespace = f.namespace
		}
	}
	if len(names) == 0 {
		return jobs, nil
	}
	selected := make([]driver.Job, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(jobs, func(j driver.Job) bool { return j.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("%s: no job named %q", m.Path, name)
		}
		selected = append(selected, jobs[i])
	}
	return selected, nil
}

func singleJob(wd string, names []string, f *weaveFlags) ([]driver.Job, error) {
	if len(names) > 0 {
		return nil, errors.New("job names cannot be combined with --input")
	}
	if len(f.types) == 0 {
		return nil, errors.New("--input needs at least one --type")
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(wd, p)
	}
	opts := project.WeaveConfig{Namespace: f.namespace}.Options()
	input := abs(f.input)
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	output := abs(f.output)
	if output == "" {
		output = filepath.Join(filepath.Dir(input), base+"."+opts.Namespace+metafile.Ext)
	}
	types := make([]string, 0, len(f.types))
	for _, t := range f.types {
		for part := range strings.SplitSeq(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				types = append(types, part)
			}
		}
	}
	return []driver.Job{{
		Name:      base,
		Input:     input,
		Output:    output,
		Companion: abs(f.companion),
		Types:     types,
		Options:   opts,
	}}, nil
}
