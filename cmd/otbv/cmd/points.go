package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/netname"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netrefs"
	"github.com/spf13/cobra"
)

var (
	pointsBoard string
	pointsK     int
)

var pointsCmd = &cobra.Command{
	Use:   "points --board <id> <net>",
	Short: "List the best places to measure a net",
	Long: `Points ranks the components on a net by how easy they are to probe: test
points first, then pads, capacitors, inductors, connectors and resistors.

The boardview cache is used when present, otherwise the associations built
from text notes with "otbv refs".

Examples:
  otbv points --board 820-02020 PP3V3_S5
  otbv points --board 820-02020 -k 3 pp3v3.s5`,
	Args: cobra.ExactArgs(1),
	RunE: runPoints,
}

func init() {
	rootCmd.AddCommand(pointsCmd)

	pointsCmd.Flags().StringVarP(&pointsBoard, "board", "b", "", "board id (required)")
	pointsCmd.Flags().IntVarP(&pointsK, "k", "k", 5, "number of points")
	pointsCmd.MarkFlagRequired("board")
}

func runPoints(cmd *cobra.Command, args []string) error {
	net := netname.Canonicalize(args[0])
	st := store()

	var points []string
	source := netrefs.DirBoardviews
	ix, err := st.LoadIndex(pointsBoard)
	switch {
	case err == nil:
		points = ix.Points(net, pointsK)
	case netrefs.IsNotExist(err):
		refs, _, rerr := st.LoadNetRefs(pointsBoard)
		if netrefs.IsNotExist(rerr) {
			return fmt.Errorf("no boardview or net refs cache for board %s", pointsBoard)
		}
		if rerr != nil {
			return rerr
		}
		known := make(map[string]struct{})
		for _, list := range refs {
			for _, r := range list {
				known[netname.RefDes(r)] = struct{}{}
			}
		}
		points = netrefs.PointsFromCache(net, refs, known, pointsK)
		source = netrefs.DirNetRefs
	default:
		return err
	}

	if len(points) == 0 {
		return errors.New("no probe points for " + net)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", net, source, strings.Join(points, " "))
	return nil
}
