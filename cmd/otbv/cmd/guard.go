package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/internal/ingest"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/guardrail"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netrefs"
	"github.com/spf13/cobra"
)

var (
	guardBoard string
	guardItems string
	guardNotes []string
)

var guardCmd = &cobra.Command{
	Use:   "guard --board <id> <text|->",
	Short: "Check net and refdes names in text against a board",
	Long: `Guard validates every net-shaped token in the text (and in the plan items
given with --items) against the board's net set. Near misses are corrected,
unknown nets are replaced with [UNKNOWN_NET] and listed with suggestions.
Refdes are checked against the components of the boardview cache.

The net set comes from the last ingest. When there is none, nets are taken
from the --notes text files.

Examples:
  otbv guard --board 820-02020 "measure PP3V3_S0_SENSE_FILTRED"
  echo "check PPBUS_G3H" | otbv guard --board 820-02020 -
  otbv guard --board 820-02020 --items plan.json ""`,
	Args: cobra.ExactArgs(1),
	RunE: runGuard,
}

func init() {
	rootCmd.AddCommand(guardCmd)

	guardCmd.Flags().StringVarP(&guardBoard, "board", "b", "", "board id (required)")
	guardCmd.Flags().StringVar(&guardItems, "items", "", "JSON file holding an array of plan items")
	guardCmd.Flags().StringSliceVar(&guardNotes, "notes", nil, "text files to take nets from when no boardview was ingested")
	guardCmd.MarkFlagRequired("board")
}

type guardOutput struct {
	BoardID      string                 `json:"board_id"`
	Source       string                 `json:"source"`
	SourceReason string                 `json:"source_reason"`
	NetCount     int                    `json:"net_count"`
	Text         string                 `json:"text"`
	Items        []guardrail.Item       `json:"items,omitempty"`
	Report       guardrail.Report       `json:"report"`
	RefDes       guardrail.RefDesReport `json:"refdes_report"`
	RefDesHints  map[string][]string    `json:"refdes_suggestions,omitempty"`
}

func runGuard(cmd *cobra.Command, args []string) error {
	text := args[0]
	if text == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		text = string(b)
	}
	var items []guardrail.Item
	if guardItems != "" {
		b, err := os.ReadFile(guardItems)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(b, &items); err != nil {
			return fmt.Errorf("failed to read items: %w", err)
		}
	}

	st := store()
	nl, err := ingest.Resolve(st, guardBoard, guardNotes)
	if err != nil {
		return err
	}
	e := guardrail.New(guardBoard, nl.Nets.Sorted())
	e.Threshold = cfg.Guardrail.FuzzyThreshold
	text, items, report := e.Enforce(text, items)

	res := guardOutput{
		BoardID:      guardBoard,
		Source:       nl.Source,
		SourceReason: nl.Reason,
		NetCount:     len(nl.Nets),
		Items:        items,
		Report:       report,
		RefDes:       guardrail.RefDesReport{Invalid: []string{}},
	}
	if bv, err := st.LoadBoardview(guardBoard); err == nil {
		comps := bv.Components()
		known := make(map[string]struct{}, len(comps))
		for _, c := range comps {
			known[c] = struct{}{}
		}
		text, res.RefDes = guardrail.EnforceRefDes(text, known)
		for _, bad := range res.RefDes.Invalid {
			if s := guardrail.SuggestRefDes(bad, comps, guardrail.MaxSuggestions); len(s) > 0 {
				if res.RefDesHints == nil {
					res.RefDesHints = make(map[string][]string)
				}
				res.RefDesHints[bad] = s
			}
		}
	} else if !netrefs.IsNotExist(err) {
		return err
	}
	res.Text = strings.TrimRight(text, "\n")

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
