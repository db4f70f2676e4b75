// Package cli implements the lexisafe command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sprite-ai/lexisafe/internal/config"
	"github.com/sprite-ai/lexisafe/internal/document"
	"github.com/sprite-ai/lexisafe/internal/llm"
	"github.com/sprite-ai/lexisafe/internal/logging"
	"github.com/sprite-ai/lexisafe/internal/review"
)

var (
	cfgFile string
	verbose bool
	logFile string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lexisafe",
	Short: "Find risky clauses in contracts before you sign",
	Long: `lexisafe reads a contract PDF, asks a language model to classify its
clauses as critical risks, warnings, or safe clauses, and lets you explore
the result, ask follow-up questions, draft a negotiation email, and export
a PDF report.

The model is configured in ~/.lexisafe/config.toml or through GOOGLE_API_KEY,
GEMINI_API_KEY, OPENAI_API_KEY, LEXISAFE_PROVIDER, and LEXISAFE_MODEL.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.lexisafe/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(reviewCmd, checkCmd, parseCmd, serveCmd, watchCmd, mcpCmd, doctorCmd, versionCmd)
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	var paths []string
	if logFile != "" {
		paths = []string{logFile}
	}
	logger, err = logging.New(verbose, paths...)
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.String("extractor", cfg.Extractor.Backend))
	return nil
}

// newFactory builds the extractor and model once and returns a constructor
// for orchestrators that share them.
func newFactory(ctx context.Context, log *zap.Logger) (func() *review.Orchestrator, error) {
	ex, err := document.NewExtractor(cfg.Extractor.Backend)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	gen, err := llm.New(ctx, cfg.LLMSettings())
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	settings := cfg.ReviewSettings()
	log = logging.OrNop(log)
	return func() *review.Orchestrator {
		return review.New(ex, gen, settings, log)
	}, nil
}

// loadContract reads path into a fresh orchestrator.
func loadContract(ctx context.Context, path string, log *zap.Logger) (*review.Orchestrator, error) {
	factory, err := newFactory(ctx, log)
	if err != nil {
		return nil, err
	}
	doc, err := document.Load(path, cfg.ReviewSettings().Identity)
	if err != nil {
		return nil, err
	}
	o := factory()
	if _, err := o.UploadDocument(doc); err != nil {
		return nil, err
	}
	return o, nil
}
