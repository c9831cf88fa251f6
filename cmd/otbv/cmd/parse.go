package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/spf13/cobra"
)

var (
	parseJSON    bool
	parseSamples int
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Decode a boardview file and show what was found",
	Long: `Parse decodes one boardview file and prints a summary of its nets,
components and links. With --json the full result is written instead.

Examples:
  otbv parse board.bvr
  otbv parse --json board.pcb > board.json`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "print the full result as JSON")
	parseCmd.Flags().IntVarP(&parseSamples, "samples", "n", 10, "nets to list in the summary")
}

func runParse(cmd *cobra.Command, args []string) error {
	res, err := cfg.Decoder(logger).ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}
	out := cmd.OutOrStdout()
	if parseJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(out, "File:       %s\n", args[0])
	fmt.Fprintf(out, "Format:     %s\n", res.Format())
	fmt.Fprintf(out, "Status:     %s\n", res.Status())
	if reason := res.Meta.String(model.MetaParseError); reason != "" {
		fmt.Fprintf(out, "Reason:     %s\n", reason)
	}
	fmt.Fprintf(out, "Nets:       %d\n", len(res.Nets))
	fmt.Fprintf(out, "Components: %d\n", len(res.Components()))
	fmt.Fprintf(out, "Links:      %d\n", res.PairsCount())

	nets := res.Nets.Sorted()
	sort.SliceStable(nets, func(i, j int) bool {
		return len(res.NetToRefs[nets[i]]) > len(res.NetToRefs[nets[j]])
	})
	if n := min(parseSamples, len(nets)); n > 0 {
		fmt.Fprintf(out, "\n%-32s %6s  %s\n", "Net", "Refs", "Sample")
		for _, net := range nets[:n] {
			links := res.NetToRefs[net]
			var refs []string
			for _, l := range links[:min(5, len(links))] {
				refs = append(refs, l.RefDes)
			}
			fmt.Fprintf(out, "%-32s %6d  %s\n", net, len(links), strings.Join(refs, " "))
		}
	}

	if verbose {
		keys := make([]string, 0, len(res.Meta))
		for k := range res.Meta {
			if k == model.MetaComponents {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "\nMeta:")
		for _, k := range keys {
			v, _ := json.Marshal(res.Meta[k])
			fmt.Fprintf(out, "  %s: %s\n", k, v)
		}
	}
	return nil
}
