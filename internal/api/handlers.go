package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sprite-ai/lexisafe/internal/analysis"
	"github.com/sprite-ai/lexisafe/internal/model"
	"github.com/sprite-ai/lexisafe/internal/report"
	"github.com/sprite-ai/lexisafe/internal/review"
	"github.com/sprite-ai/lexisafe/internal/session"
)

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

// --- Shared shapes ---

type analysisResponse struct {
	Document    string               `json:"document,omitempty"`
	Summary     string               `json:"summary"`
	MaxSeverity string               `json:"max_severity,omitempty"`
	Total       int                  `json:"total"`
	Risks       model.RiskCollection `json:"risks"`
	Warnings    []string             `json:"warnings,omitempty"`
	Stats       statsJSON            `json:"stats"`
}

type statsJSON struct {
	Segments     int `json:"segments"`
	Accepted     int `json:"accepted"`
	Dropped      int `json:"dropped"`
	Unclassified int `json:"unclassified"`
}

func newAnalysisResponse(document string, risks model.RiskCollection, stats analysis.Stats, warnings []string) analysisResponse {
	resp := analysisResponse{
		Document: document,
		Summary:  risks.Summary(),
		Total:    risks.Total(),
		Risks:    report.NonNil(risks),
		Warnings: warnings,
		Stats: statsJSON{
			Segments:     stats.Segments,
			Accepted:     stats.Accepted,
			Dropped:      stats.Dropped(),
			Unclassified: stats.Unclassified,
		},
	}
	if sev, ok := risks.MaxSeverity(); ok {
		resp.MaxSeverity = sev.String()
	}
	return resp
}

type sessionResponse struct {
	ID      string           `json:"id,omitempty"`
	Changed *bool            `json:"changed,omitempty"`
	Session session.Snapshot `json:"session"`
}

func snapshotOf(o *review.Orchestrator) session.Snapshot {
	snap := o.Session().Snapshot()
	snap.Risks = report.NonNil(snap.Risks)
	if snap.Conversation == nil {
		snap.Conversation = []model.Message{}
	}
	return snap
}

// readUpload reads the multipart "file" field.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("reading upload: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(content) == 0 {
		return "", nil, fmt.Errorf("uploaded file is empty")
	}
	return filepath.Base(header.Filename), content, nil
}

func reportName(document string) string {
	base := strings.TrimSuffix(filepath.Base(document), filepath.Ext(document))
	if base == "" || base == "." {
		base = "contract"
	}
	return base + "_risk_report.pdf"
}

// --- Parse ---

type parseRequest struct {
	Raw string `json:"raw"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	risks, stats := analysis.ParseWithStats(req.Raw)
	s.writeJSON(w, http.StatusOK, newAnalysisResponse("", risks, stats, nil))
}

// --- Analyze ---

// handleAnalyze runs a one-shot review of an uploaded contract without
// keeping a session.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	name, content, err := readUpload(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o := s.newSession()
	if _, err := o.Upload(name, content); err != nil {
		s.writeErr(w, err)
		return
	}
	result, err := o.RunAnalysis(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, newAnalysisResponse(name, result.Risks, result.Stats, o.Session().Snapshot().Warnings))
}

// --- Report ---

type reportRequest struct {
	DocumentName string               `json:"document_name"`
	Risks        model.RiskCollection `json:"risks"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.DocumentName == "" {
		s.writeError(w, http.StatusBadRequest, "document_name is required")
		return
	}

	data, err := report.PDF(req.DocumentName, req.Risks)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writePDF(w, req.DocumentName, data)
}

// --- Sessions ---

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*review.Orchestrator, bool) {
	o, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return nil, false
	}
	return o, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, o, err := s.sessions.Create()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.log.Debug("session created", zap.String("session", id))
	s.writeJSON(w, http.StatusCreated, sessionResponse{ID: id, Session: snapshotOf(o)})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{ID: r.PathValue("id"), Session: snapshotOf(o)})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionUpload(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookup(w, r)
	if !ok {
		return
	}
	name, content, err := readUpload(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	changed, err := o.Upload(name, content)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{ID: r.PathValue("id"), Changed: &changed, Session: snapshotOf(o)})
}

func (s *Server) handleSessionAnalyze(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookup(w, r)
	if !ok {
		return
	}

	result, err := o.RunAnalysis(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	snap := o.Session().Snapshot()
	s.writeJSON(w, http.StatusOK, newAnalysisResponse(snap.DocumentName, result.Risks, result.Stats, snap.Warnings))
}

type modalRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) handleOpenModal(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req modalRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	kind, err := model.ParseModalKind(req.Kind)
	if err != nil || kind == model.ModalNone {
		s.writeError(w, http.StatusBadRequest, "kind must be chat or email")
		return
	}

	if err := o.OpenModal(kind); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{ID: r.PathValue("id"), Session: snapshotOf(o)})
}

func (s *Server) handleCloseModal(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := o.CloseModal(); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{ID: r.PathValue("id"), Session: snapshotOf(o)})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Answer       string          `json:"answer"`
	Conversation []model.Message `json:"conversation"`
}

func (s *Server) handleSessionChat(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	answer, err := o.SendChat(r.Context(), req.Message)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, chatResponse{Answer: answer, Conversation: snapshotOf(o).Conversation})
}

// emailResponse carries a draft. A failed draft keeps the drafter's
// displayable text in Email.
type emailResponse struct {
	Email  string `json:"email"`
	Failed bool   `json:"failed,omitempty"`
}

func (s *Server) handleSessionEmail(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookup(w, r)
	if !ok {
		return
	}

	email, err := o.DraftEmail(r.Context())
	if err != nil && email == "" {
		s.writeErr(w, err)
		return
	}
	if err != nil {
		s.log.Warn("email draft failed", zap.Error(err))
		s.writeJSON(w, statusFor(err), emailResponse{Email: email, Failed: true})
		return
	}
	s.writeJSON(w, http.StatusOK, emailResponse{Email: email})
}

func (s *Server) handleSessionReport(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookup(w, r)
	if !ok {
		return
	}

	data, err := o.Report()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writePDF(w, o.Session().Document().Name, data)
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := o.Reset(); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{ID: r.PathValue("id"), Session: snapshotOf(o)})
}
