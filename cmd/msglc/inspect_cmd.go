package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TLCFEM/msglc"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <blob.msglc> [path]",
		Short: "Print the table of contents of a msglc blob, or read one entry from it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := msglc.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer r.Close()

			if len(args) == 2 {
				v, err := r.Read(args[1])
				if err != nil {
					return fmt.Errorf("reading %s: %w", args[1], err)
				}
				plain, err := msglc.ToPlain(v)
				if err != nil {
					return err
				}
				fmt.Printf("%v\n", plain)
				return nil
			}

			root, err := r.Root()
			if err != nil {
				return fmt.Errorf("reading root of %s: %w", args[0], err)
			}
			printNode(root, "")

			stats := r.Stats()
			color.New(color.Faint).Printf(
				"\nphysical reads: %d, physical bytes: %d, cache hits: %d, cache misses: %d\n",
				stats.PhysicalReads, stats.PhysicalBytes, stats.CacheHits, stats.CacheMisses)
			return nil
		},
	}
	return cmd
}

func printNode(v any, indent string) {
	switch n := v.(type) {
	case *msglc.LazyMap:
		color.New(color.FgCyan).Printf("%smap[%d]\n", indent, n.Len())
		for _, key := range n.Keys() {
			child, err := n.Get(key)
			if err != nil {
				fmt.Printf("%s  %s: <error: %v>\n", indent, key, err)
				continue
			}
			color.New(color.FgYellow).Printf("%s  %s:\n", indent, key)
			printNode(child, indent+"    ")
		}
	case *msglc.LazySeq:
		color.New(color.FgCyan).Printf("%sarray[%d]\n", indent, n.Len())
		limit := n.Len()
		truncated := false
		if limit > 20 {
			limit = 20
			truncated = true
		}
		for i := 0; i < limit; i++ {
			child, err := n.Index(i)
			if err != nil {
				fmt.Printf("%s  [%d]: <error: %v>\n", indent, i, err)
				continue
			}
			printNode(child, indent+"    ")
		}
		if truncated {
			color.New(color.Faint).Printf("%s  ... %d more\n", indent, n.Len()-limit)
		}
	default:
		fmt.Printf("%s%v\n", indent, n)
	}
}
