package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/sprite-ai/lexisafe/internal/logging"
	"github.com/sprite-ai/lexisafe/internal/review"
)

// Server is the MCP server for lexisafe.
type Server struct {
	newSession func() *review.Orchestrator
	server     *mcp.Server
	log        *zap.Logger
}

// NewServer creates an MCP server. Every tool call that reviews a contract
// gets its own orchestrator from newSession.
func NewServer(newSession func() *review.Orchestrator, version string, log *zap.Logger) (*Server, error) {
	if newSession == nil {
		return nil, ErrMissingFactory
	}

	impl := &mcp.Implementation{
		Name:    "lexisafe",
		Version: version,
	}

	s := &Server{
		newSession: newSession,
		server:     mcp.NewServer(impl, nil),
		log:        logging.OrNop(log),
	}
	s.registerTools()

	return s, nil
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("MCP server running on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
