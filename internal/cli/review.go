package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/sprite-ai/lexisafe/internal/report"
	"github.com/sprite-ai/lexisafe/internal/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review <contract.pdf>",
	Short: "Open an interactive review session",
	Long: `Analyze a contract and open the risk dashboard. From the dashboard you
can chat about the contract, draft a negotiation email, and save a PDF report.

When stdout is not a terminal the analysis is printed as a text report instead.

Examples:
  lexisafe review msa.pdf
  lexisafe review msa.pdf --report ~/Desktop/msa-risks.pdf
  lexisafe review msa.pdf | less`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringP("report", "o", "", "where s saves the PDF report (default <name>_risk_report.pdf)")
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	// Log lines would tear the dashboard.
	log := logger
	if interactive && logFile == "" {
		log = zap.NewNop()
	}

	o, err := loadContract(ctx, args[0], log)
	if err != nil {
		return err
	}

	if !interactive {
		if _, err := o.RunAnalysis(ctx); err != nil {
			return err
		}
		return report.Write(cmd.OutOrStdout(), report.FormatText, o.Result())
	}

	reportPath, _ := cmd.Flags().GetString("report")
	if err := tui.Run(ctx, o, tui.Options{ReportPath: reportPath}); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
