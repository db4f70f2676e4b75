package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/lexisafe/internal/analysis"
	"github.com/sprite-ai/lexisafe/internal/report"
)

var parseCmd = &cobra.Command{
	Use:   "parse [response.txt|-]",
	Short: "Parse a saved model response without calling the model",
	Long: `Parse a raw risk analysis response (records separated by ###, fields by |)
and print the resulting report. Reads stdin when no file or "-" is given.
Useful for debugging prompts and replaying responses offline.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringP("format", "f", "text", "output format: text, json, markdown, html, pdf")
	parseCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	parseCmd.Flags().Bool("stats", false, "print segment statistics to stderr")
}

func runParse(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	name := "stdin"
	var raw []byte
	if len(args) == 1 && args[0] != "-" {
		name = filepath.Base(args[0])
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	risks, stats := analysis.ParseWithStats(string(raw))

	if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
		fmt.Fprintf(cmd.ErrOrStderr(), "segments: %d, accepted: %d, no delimiter: %d, too few fields: %d, empty title: %d, unclassified severity: %d\n",
			stats.Segments, stats.Accepted, stats.NoDelimiter, stats.TooFewFields, stats.EmptyTitle, stats.Unclassified)
	}

	output, _ := cmd.Flags().GetString("output")
	return writeReport(cmd.OutOrStdout(), output, format, report.Result{
		DocumentName: name,
		Risks:        risks,
	})
}
