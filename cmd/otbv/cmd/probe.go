package cmd

import (
	"fmt"
	"os"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/pcbzip"
	"github.com/spf13/cobra"
)

var (
	probeOut           string
	probeTop           int
	probeMaxCandidates int
	probeDense         bool
)

var probeCmd = &cobra.Command{
	Use:   "probe <file.pcb>",
	Short: "List the compressed streams found in a container",
	Long: `Probe runs the stream discovery of the compressed-container decoder and
prints every stream that decompressed, best score first. With --out the top
streams are written to the directory together with probe_summary.json.

Examples:
  otbv probe board.pcb
  otbv probe --dense --top 20 --out /tmp/probe board.pcb`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVarP(&probeOut, "out", "o", "", "directory for stream dumps")
	probeCmd.Flags().IntVarP(&probeTop, "top", "n", 10, "streams to show and dump")
	probeCmd.Flags().IntVar(&probeMaxCandidates, "max-candidates", 0, "candidate offsets to try (0 uses config)")
	probeCmd.Flags().BoolVar(&probeDense, "dense", false, "retry with a dense offset grid when nothing decompresses")
}

func runProbe(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	opts := cfg.PCBOptions()
	opts.Logger = logger
	opts.Dense = opts.Dense || probeDense
	if probeMaxCandidates > 0 {
		opts.MaxStreams = probeMaxCandidates
	}
	a := pcbzip.Analyze(data, opts)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:        %s (%d bytes)\n", args[0], len(data))
	fmt.Fprintf(out, "Candidates:  %d\n", len(a.Candidates))
	fmt.Fprintf(out, "Streams:     %d (%d text)\n", len(a.Chunks), a.TextChunks())
	fmt.Fprintf(out, "JSON values: %d\n", len(a.JSON))
	if a.Dense {
		fmt.Fprintln(out, "Dense pass:  yes")
	}

	ranked := a.Ranked()
	if n := min(probeTop, len(ranked)); n > 0 {
		fmt.Fprintf(out, "\n%4s %10s %-8s %10s %10s %6s  %s\n", "#", "Offset", "Method", "In", "Out", "Score", "Preview")
		for i, c := range ranked[:n] {
			preview := c.Preview
			if len(preview) > 60 {
				preview = preview[:60]
			}
			fmt.Fprintf(out, "%4d %#10x %-8s %10d %10d %6d  %s\n",
				i+1, c.Offset, c.Method, c.CompressedLen, c.DecompressedLen, c.Score, preview)
		}
	}

	if probeOut != "" {
		if err := pcbzip.WriteDump(probeOut, "probe", a, probeTop); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nDumped %d streams to %s\n", min(probeTop, len(ranked)), probeOut)
	}
	return nil
}
