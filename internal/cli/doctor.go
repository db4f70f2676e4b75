package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/lexisafe/internal/document"
	"github.com/sprite-ai/lexisafe/internal/llm"
)

const doctorTimeout = 30 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the model connection and PDF extraction setup",
	Long: `Verify that an API key is configured, the PDF extractor is available,
and the configured model answers a short prompt.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := false

	check := func(name string, err error, detail string) {
		if err != nil {
			failed = true
			fmt.Fprintf(out, "  FAIL  %-12s %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "  ok    %-12s %s\n", name, detail)
	}

	fmt.Fprintf(out, "Provider: %s, model: %s\n\n", cfg.LLM.Provider, cfg.LLM.Model)

	if cfg.LLM.APIKey == "" {
		check("api key", fmt.Errorf("%w: set %s", llm.ErrNotConfigured, keyEnvHint(cfg.LLM.Provider)), "")
	} else {
		check("api key", nil, maskKey(cfg.LLM.APIKey))
	}

	_, err := document.NewExtractor(cfg.Extractor.Backend)
	check("extractor", err, cfg.Extractor.Backend)

	if cfg.LLM.APIKey != "" {
		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()

		answer, err := ping(ctx)
		check("model", err, answer)
	}

	if failed {
		return errors.New("doctor found problems")
	}
	fmt.Fprintln(out, "\nAll checks passed.")
	return nil
}

func ping(ctx context.Context) (string, error) {
	gen, err := llm.New(ctx, cfg.LLMSettings())
	if err != nil {
		return "", err
	}
	answer, err := gen.Generate(ctx, "Reply with the single word: Hello", llm.Options{})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s replied %q", gen.ModelName(), strings.TrimSpace(answer)), nil
}

func keyEnvHint(provider string) string {
	if llm.Provider(strings.ToLower(provider)) == llm.ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GOOGLE_API_KEY or GEMINI_API_KEY"
}

// maskKey keeps the last four characters of an API key.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
