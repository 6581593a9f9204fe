package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TLCFEM/msglc"
)

func newCombineCmd() *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "combine <output.msglc> <input.msglc>...",
		Short: "Concatenate several msglc blobs into one, without re-encoding their payloads",
		Long: "Combine writes refs in the order given on the command line. Pass --name " +
			"once per input (in the same order) to build a keyed blob addressable by " +
			"name; omit --name entirely to build a positional blob addressable by index.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := args[0]
			inputs := args[1:]
			if len(names) > 0 && len(names) != len(inputs) {
				return fmt.Errorf("got %d --name flags for %d inputs, expected 0 or %d",
					len(names), len(inputs), len(inputs))
			}

			refs := make([]msglc.FileRef, len(inputs))
			for i, in := range inputs {
				if len(names) == 0 {
					refs[i] = msglc.Unnamed(in)
					continue
				}
				refs[i] = msglc.Named(in, names[i])
			}

			if err := msglc.Combine(out, refs); err != nil {
				return fmt.Errorf("combining into %s: %w", out, err)
			}
			fmt.Printf("combined %s -> %s\n", strings.Join(inputs, ", "), out)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&names, "name", nil, "name for the input at the same position (repeatable)")
	return cmd
}
