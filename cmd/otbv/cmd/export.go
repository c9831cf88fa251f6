package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportBoard  string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export a boardview as a netlist",
	Long: `Export decodes a boardview file, or loads the cache of an ingested board
with --board and no file, and writes it as a KiCad netlist or as JSON.

Examples:
  otbv export --format kicad board.brd > board.net
  otbv export --format json --board 820-02020 -o 820-02020.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(export.FormatKiCad), "output format (kicad, json)")
	exportCmd.Flags().StringVarP(&exportBoard, "board", "b", "", "board id (names the design, selects the cache when no file is given)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	var (
		res *model.ParseResult
		err error
	)
	boardID := exportBoard
	switch {
	case len(args) == 1:
		res, err = cfg.Decoder(logger).ParseFile(args[0])
		if boardID == "" {
			boardID = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
	case boardID != "":
		res, err = store().LoadBoardview(boardID)
	default:
		return fmt.Errorf("export needs a file or --board")
	}
	if err != nil {
		return err
	}

	data, err := export.Write(export.Format(strings.ToLower(exportFormat)), boardID, res)
	if err != nil {
		return err
	}
	if exportOut == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(exportOut, data, 0o644)
}
