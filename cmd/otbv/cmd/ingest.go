package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceBV/internal/ingest"
	"github.com/OpenTraceLab/OpenTraceBV/internal/memo"
	"github.com/spf13/cobra"
)

var (
	ingestBoard string
	ingestJSON  bool
	ingestMemo  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest --board <id> <path>...",
	Short: "Decode a board's boardview and write its caches",
	Long: `Ingest scans the given files and directories for boardviews, decodes the
best candidate and writes the boardview cache, netlist cache and ingest
report for the board under the data directory.

A board id naming two boards (820-01955_820-01970) decodes one file per
board and merges them.

Examples:
  otbv ingest --board 820-02020 ~/boards/820-02020/
  otbv ingest --board 820-01955_820-01970 a.brd b.brd`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&ingestBoard, "board", "b", "", "board id (required)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the ingest report as JSON")
	ingestCmd.Flags().StringVar(&ingestMemo, "memo", "", "parse memo directory (overrides config)")
	ingestCmd.MarkFlagRequired("board")
}

func runIngest(cmd *cobra.Command, args []string) error {
	job := &ingest.Job{
		BoardID:   ingestBoard,
		Paths:     args,
		Parser:    cfg.Decoder(logger),
		Store:     store(),
		PerNetCap: cfg.Ranking.PerNetCap,
		Logger:    logger,
	}
	memoDir := cfg.Memo.Dir
	if ingestMemo != "" {
		memoDir = ingestMemo
	}
	if memoDir != "" {
		m, err := memo.Open(memoDir, logger)
		if err != nil {
			return err
		}
		defer m.Close()
		job.Memo = m
	}

	rep, err := job.Run(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if ingestJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Board:      %s\n", rep.BoardID)
		fmt.Fprintf(out, "Candidates: %d\n", len(rep.Detected))
		for _, c := range rep.Detected {
			fmt.Fprintf(out, "  %-24s %s\n", c.Format, c.Path)
		}
		fmt.Fprintf(out, "Status:     %s\n", rep.ParseStatus)
		if rep.ParseError != "" {
			fmt.Fprintf(out, "Error:      %s\n", rep.ParseError)
		}
		for _, f := range rep.SelectedFiles {
			fmt.Fprintf(out, "Selected:   %s\n", f)
		}
		if rep.ParserUsed != "" {
			fmt.Fprintf(out, "Parser:     %s\n", rep.ParserUsed)
			fmt.Fprintf(out, "Nets:       %d\n", rep.NetsCount)
			fmt.Fprintf(out, "Links:      %d\n", rep.PairsCount)
			fmt.Fprintf(out, "Components: %d\n", rep.ComponentsCount)
		}
		fmt.Fprintf(out, "Report:     %s\n", rep.Outputs.Report)
	}
	if rep.ParseStatus == ingest.StatusFail || rep.ParseStatus == ingest.StatusUnsupported {
		return errors.New("ingest: " + rep.ParseError)
	}
	return nil
}
