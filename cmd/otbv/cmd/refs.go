package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceBV/internal/ingest"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netrefs"
	"github.com/spf13/cobra"
)

var (
	refsBoard  string
	railBoard  string
	railFamily string
)

var refsCmd = &cobra.Command{
	Use:   "refs --board <id> <notes>...",
	Short: "Associate nets with components from text notes",
	Long: `Refs reads repair notes and links each known net to the known components
mentioned next to it. Known nets come from the board's netlist and known
components from its boardview cache. The result is written to the net refs
cache and used by "otbv points" when no boardview was ingested.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRefs,
}

var railCmd = &cobra.Command{
	Use:   "rail --board <id>",
	Short: "Guess the main power rail of a board",
	Args:  cobra.NoArgs,
	RunE:  runRail,
}

func init() {
	rootCmd.AddCommand(refsCmd)
	rootCmd.AddCommand(railCmd)

	refsCmd.Flags().StringVarP(&refsBoard, "board", "b", "", "board id (required)")
	refsCmd.MarkFlagRequired("board")
	railCmd.Flags().StringVarP(&railBoard, "board", "b", "", "board id (required)")
	railCmd.Flags().StringVar(&railFamily, "family", "", "device family, such as iPhone or MacBook")
	railCmd.MarkFlagRequired("board")
}

func runRefs(cmd *cobra.Command, args []string) error {
	st := store()
	nl, err := ingest.Resolve(st, refsBoard, args)
	if err != nil {
		return err
	}
	texts, err := ingest.ReadTexts(args)
	if err != nil {
		return err
	}
	knownRefs := make(map[string]struct{})
	if bv, err := st.LoadBoardview(refsBoard); err == nil {
		for _, c := range bv.Components() {
			knownRefs[c] = struct{}{}
		}
	} else if !netrefs.IsNotExist(err) {
		return err
	}
	if len(knownRefs) == 0 {
		return fmt.Errorf("no components known for board %s; ingest a boardview first", refsBoard)
	}

	pairs, meta := netrefs.BuildFromTexts(texts, nl.Nets, knownRefs)
	path, err := st.WriteNetRefs(refsBoard, pairs, model.Meta{
		netrefs.MetaBoardID:  refsBoard,
		model.MetaNetsCount:  meta.NetCount,
		"refdes_count":       meta.RefDesCount,
		model.MetaPairsCount: meta.PairsCount,
		"text_files":         len(texts),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Nets: %d  Refdes: %d  Pairs: %d\nWrote %s\n",
		meta.NetCount, meta.RefDesCount, meta.PairsCount, path)
	return nil
}

func runRail(cmd *cobra.Command, args []string) error {
	nl, err := ingest.Resolve(store(), railBoard, nil)
	if err != nil {
		return err
	}
	rail := netrefs.PrimaryRail(nl.Nets, railFamily)
	if rail == "" {
		return fmt.Errorf("no power rail found for board %s (%s)", railBoard, nl.Reason)
	}
	fmt.Fprintln(cmd.OutOrStdout(), rail)
	return nil
}
