package cli

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/sprite-ai/lexisafe/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve review tools over MCP (stdio)",
	Long: `Run a Model Context Protocol server on stdin/stdout so AI assistants can
review contracts. Tools:

  parse_risks              Parse a raw risk analysis response
  analyze_contract         Analyze a contract PDF by path
  draft_negotiation_email  Analyze a contract PDF and draft a negotiation email

Logs go to stderr (or --log-file); stdout carries the protocol.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	factory, err := newFactory(ctx, logger)
	if err != nil {
		return err
	}

	srv, err := mcpserver.NewServer(factory, version, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
