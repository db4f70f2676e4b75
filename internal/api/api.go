// Package api implements the HTTP API server for lexisafe.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sprite-ai/lexisafe/internal/assistant"
	"github.com/sprite-ai/lexisafe/internal/llm"
	"github.com/sprite-ai/lexisafe/internal/logging"
	"github.com/sprite-ai/lexisafe/internal/review"
	"github.com/sprite-ai/lexisafe/internal/session"
)

// maxUploadBytes caps the size of an uploaded contract.
const maxUploadBytes = 32 << 20

// Server is the lexisafe HTTP API server.
type Server struct {
	addr       string
	mux        *http.ServeMux
	server     *http.Server
	newSession func() *review.Orchestrator
	sessions   *review.Registry
	log        *zap.Logger
}

// New creates a new API server. newSession builds the orchestrator behind
// every session, whether addressed by ID or bound to a websocket.
func New(addr string, newSession func() *review.Orchestrator, log *zap.Logger) *Server {
	s := &Server{
		addr:       addr,
		newSession: newSession,
		sessions:   review.NewRegistry(newSession),
		log:        logging.OrNop(log),
	}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/parse", s.handleParse)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/report", s.handleReport)

	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/document", s.handleSessionUpload)
	s.mux.HandleFunc("POST /api/sessions/{id}/analyze", s.handleSessionAnalyze)
	s.mux.HandleFunc("POST /api/sessions/{id}/modal", s.handleOpenModal)
	s.mux.HandleFunc("DELETE /api/sessions/{id}/modal", s.handleCloseModal)
	s.mux.HandleFunc("POST /api/sessions/{id}/chat", s.handleSessionChat)
	s.mux.HandleFunc("POST /api/sessions/{id}/email", s.handleSessionEmail)
	s.mux.HandleFunc("GET /api/sessions/{id}/report", s.handleSessionReport)
	s.mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleSessionReset)

	s.mux.HandleFunc("GET /api/ws", s.handleWebSocket)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log.Info("API server listening", zap.String("addr", s.addr))
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.Warn("json encode error", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps err to a status and writes it.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.writeError(w, status, errorText(err))
}

func (s *Server) writePDF(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportName(name)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Warn("pdf write error", zap.Error(err))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, review.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, review.ErrBusy), errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, review.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, llm.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorText is the message shown to clients. Model failures carry the same
// displayable text the dashboard shows.
func errorText(err error) string {
	if errors.Is(err, llm.ErrTransport) {
		return assistant.DisplayError(err)
	}
	return err.Error()
}

// readJSON decodes a JSON request body into v.
func readJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
