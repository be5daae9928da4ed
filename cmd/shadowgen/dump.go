package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shadowgen/internal/meta"
	"shadowgen/internal/metafile"
)

func newDumpCmd() *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "dump <file" + metafile.Ext + ">",
		Short: "Print a module snapshot as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := metafile.ReadFile(args[0])
			if err != nil {
				return err
			}
			if summary {
				types := m.TypeDefs()
				methods := 0
				for _, id := range types {
					methods += len(m.Type(id).Methods)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "module %s: %d types, %d methods, %d type references\n",
					m.Name, len(types), methods, len(m.Refs)-1)
				return err
			}
			return meta.Print(cmd.OutOrStdout(), m)
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print counts only")
	return cmd
}
