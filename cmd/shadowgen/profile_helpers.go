package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shadowgen/internal/prof"
)

// profileConfig reads the profiling flags of the root command.
func profileConfig(cmd *cobra.Command) (prof.Config, error) {
	var cfg prof.Config
	flags := cmd.Root().PersistentFlags()
	for name, dst := range map[string]*string{
		"cpu-profile":   &cfg.CPU,
		"mem-profile":   &cfg.Mem,
		"runtime-trace": &cfg.Runtime,
	} {
		v, err := flags.GetString(name)
		if err != nil {
			return prof.Config{}, fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
	}
	return cfg, nil
}

// setupProfiling starts the requested profilers around a weave. The
// returned stop reports write errors but never fails the command.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	cfg, err := profileConfig(cmd)
	if err != nil || !cfg.Enabled() {
		return func() {}, err
	}
	session, err := prof.Start(cfg)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := session.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
		}
	}, nil
}
