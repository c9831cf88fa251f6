package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>...",
	Short: "Show the detected boardview format of files",
	Long: `Detect reads the first bytes of each file and prints which decoder
would handle it. Files that no decoder accepts are reported as unsupported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, path := range args {
		det, err := boardview.DetectFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-40s %s\n", path, det)
	}
	return nil
}
