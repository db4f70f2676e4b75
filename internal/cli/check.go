package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/lexisafe/internal/report"
)

var checkCmd = &cobra.Command{
	Use:   "check <contract.pdf>",
	Short: "Analyze a contract and output a report (non-interactive)",
	Long: `Analyze a contract and write a structured report.
Useful for scripts, intake pipelines, and batch review.

Exit codes:
  0  no critical risks or warnings
  1  warnings found
  2  critical risks found`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringP("format", "f", "text", "output format: text, json, markdown, html, pdf")
	checkCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
}

func runCheck(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	o, err := loadContract(ctx, args[0], logger)
	if err != nil {
		return err
	}

	result, err := o.RunAnalysis(ctx)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if err := writeReport(cmd.OutOrStdout(), output, format, o.Result()); err != nil {
		return err
	}

	if code := report.ExitCode(result.Risks); code != 0 {
		_ = logger.Sync()
		os.Exit(code)
	}
	return nil
}

// writeReport writes r to path, or to stdout when path is empty.
func writeReport(stdout io.Writer, path string, format report.Format, r report.Result) error {
	if path == "" {
		return report.Write(stdout, format, r)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := report.Write(f, format, r); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", path)
	return nil
}
