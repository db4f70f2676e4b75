package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/lexisafe/internal/api"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing contract review.

Endpoints:
  GET    /health                       Health check
  POST   /api/parse                    Parse a raw model response
  POST   /api/analyze                  One-shot review of an uploaded PDF (multipart "file")
  POST   /api/report                   Render a PDF report from risks
  POST   /api/sessions                 Create a review session
  GET    /api/sessions/{id}            Session snapshot
  DELETE /api/sessions/{id}            End a session
  POST   /api/sessions/{id}/document   Upload a contract (multipart "file")
  POST   /api/sessions/{id}/analyze    Analyze the uploaded contract
  POST   /api/sessions/{id}/modal      Open the chat or email panel
  DELETE /api/sessions/{id}/modal      Close the panel
  POST   /api/sessions/{id}/chat       Ask a question about the contract
  POST   /api/sessions/{id}/email      Draft a negotiation email
  GET    /api/sessions/{id}/report     Download the PDF report
  POST   /api/sessions/{id}/reset      Start over
  GET    /api/ws                       WebSocket review session`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "address to listen on (default from config, 127.0.0.1)")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (default from config, 6142)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = cfg.Server.Port
	}

	ctx := cmd.Context()
	factory, err := newFactory(ctx, logger)
	if err != nil {
		return err
	}

	listen := fmt.Sprintf("%s:%d", addr, port)
	srv := api.New(listen, factory, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
