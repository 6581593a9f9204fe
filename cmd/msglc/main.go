// Command msglc packs, inspects, and combines msglc blobs from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "msglc",
		Short: "Pack, inspect, and combine msglc blobs",
	}
	root.AddCommand(newPackCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newCombineCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
