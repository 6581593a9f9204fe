package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/TLCFEM/msglc"
)

func newPackCmd() *cobra.Command {
	var threshold int64
	var trivial int64

	cmd := &cobra.Command{
		Use:   "pack <input.json> <output.msglc>",
		Short: "Pack a JSON document into a msglc blob",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			var decoded any
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return fmt.Errorf("parsing %s as JSON: %w", args[0], err)
			}

			opts := []msglc.Option{
				msglc.WithSmallObjThreshold(threshold),
				msglc.WithTrivialSize(trivial),
			}
			if err := msglc.PackAtomic(jsonToValue(decoded), args[1], opts...); err != nil {
				return fmt.Errorf("packing %s: %w", args[1], err)
			}
			fmt.Printf("packed %s -> %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().Int64Var(&threshold, "small-obj-threshold", msglc.DefaultConfig().SmallObjThreshold, "containers below this encoded size are stored opaquely")
	cmd.Flags().Int64Var(&trivial, "trivial-size", msglc.DefaultConfig().TrivialSize, "elements at or under this size may join a grouped TOC block")
	return cmd
}

// jsonToValue converts encoding/json's generic decode output
// (map[string]interface{}, []interface{}, float64, ...) into the shapes
// Pack accepts, preserving key order is not possible from encoding/json
// (it discards it), so packed JSON objects get alphabetically sorted keys.
func jsonToValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		om := msglc.NewOrderedMap()
		for _, k := range keys {
			om.Set(k, jsonToValue(x[k]))
		}
		return om
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonToValue(e)
		}
		return out
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
		return x
	default:
		return v
	}
}
