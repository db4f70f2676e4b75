package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/lexisafe/internal/assistant"
	"github.com/sprite-ai/lexisafe/internal/document"
	"github.com/sprite-ai/lexisafe/internal/report"
	"github.com/sprite-ai/lexisafe/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <contract.pdf>",
	Short: "Re-analyze a contract whenever the file changes",
	Long: `Analyze a contract, then watch the file and analyze it again each time it
is saved with different content. Reports go to stdout. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringP("format", "f", "text", "output format: text, json, markdown")
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "wait this long after the last change before analyzing")
}

func runWatch(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if format == report.FormatPDF || format == report.FormatHTML {
		return fmt.Errorf("watch prints to the terminal; use text, json, or markdown")
	}
	debounce, _ := cmd.Flags().GetDuration("debounce")

	// Edits keep the file name, so only content identity notices them.
	cfg.Analysis.Identity = string(document.IdentityContent)

	ctx := cmd.Context()
	factory, err := newFactory(ctx, logger)
	if err != nil {
		return err
	}
	o := factory()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	w, err := watch.New(args[0], o, watch.Options{
		Debounce: debounce,
		OnResult: func(r watch.Result) {
			stamp := time.Now().Format(time.TimeOnly)
			switch {
			case r.Err != nil:
				fmt.Fprintf(errOut, "[%s] %s\n", stamp, assistant.DisplayError(r.Err))
			case !r.Changed:
				fmt.Fprintf(errOut, "[%s] %s unchanged: %s\n", stamp, o.Session().Document().Name, r.Analysis.Risks.Summary())
			default:
				fmt.Fprintf(errOut, "[%s] analyzed %s\n", stamp, o.Session().Document().Name)
				if err := report.Write(out, format, o.Result()); err != nil {
					fmt.Fprintf(errOut, "[%s] writing report: %v\n", stamp, err)
				}
			}
		},
	}, logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
