package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sprite-ai/lexisafe/internal/model"
	"github.com/sprite-ai/lexisafe/internal/review"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 64,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool; the server binds to loopback by default
	},
}

// WebSocket message types from client.
const (
	wsMsgUpload     = "upload"
	wsMsgAnalyze    = "analyze"
	wsMsgOpenModal  = "open_modal"
	wsMsgCloseModal = "close_modal"
	wsMsgChat       = "chat"
	wsMsgEmail      = "email"
	wsMsgReport     = "report"
	wsMsgReset      = "reset"
	wsMsgSnapshot   = "snapshot"
)

// WebSocket message types to client.
const (
	wsMsgSession  = "session"
	wsMsgAnalysis = "analysis"
	wsMsgAnswer   = "answer"
	wsMsgDraft    = "draft"
	wsMsgPDF      = "pdf"
	wsMsgError    = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsUpload is the payload for "upload" messages. Content is base64 in JSON.
type wsUpload struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// wsModal is the payload for "open_modal" messages.
type wsModal struct {
	Kind string `json:"kind"`
}

// wsChat is the payload for "chat" messages.
type wsChat struct {
	Message string `json:"message"`
}

// wsAnswerResponse is sent after a chat turn. Failed answers carry the
// displayable error text and are recorded in the conversation too.
type wsAnswerResponse struct {
	Answer string `json:"answer"`
	Failed bool   `json:"failed,omitempty"`
}

// wsDraftResponse is sent after an email draft.
type wsDraftResponse struct {
	Email  string `json:"email"`
	Failed bool   `json:"failed,omitempty"`
}

// wsPDFResponse carries a rendered report.
type wsPDFResponse struct {
	Name string `json:"name"`
	PDF  []byte `json:"pdf"`
}

// handleWebSocket binds one orchestrator to the connection for its lifetime.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	o := s.newSession()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read", zap.Error(err))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendWSError(conn, "invalid message format")
			continue
		}

		switch msg.Type {
		case wsMsgUpload:
			s.handleWSUpload(conn, o, msg.Data)
		case wsMsgAnalyze:
			s.handleWSAnalyze(ctx, conn, o)
		case wsMsgOpenModal:
			s.handleWSOpenModal(conn, o, msg.Data)
		case wsMsgCloseModal:
			if err := o.CloseModal(); err != nil {
				s.sendWSError(conn, errorText(err))
				continue
			}
			s.sendWSMessage(conn, wsMsgSession, snapshotOf(o))
		case wsMsgChat:
			s.handleWSChat(ctx, conn, o, msg.Data)
		case wsMsgEmail:
			s.handleWSEmail(ctx, conn, o)
		case wsMsgReport:
			s.handleWSReport(conn, o)
		case wsMsgReset:
			if err := o.Reset(); err != nil {
				s.sendWSError(conn, errorText(err))
				continue
			}
			s.sendWSMessage(conn, wsMsgSession, snapshotOf(o))
		case wsMsgSnapshot:
			s.sendWSMessage(conn, wsMsgSession, snapshotOf(o))
		default:
			s.sendWSError(conn, "unknown message type: "+msg.Type)
		}
	}
}

func (s *Server) handleWSUpload(conn *websocket.Conn, o *review.Orchestrator, data json.RawMessage) {
	var req wsUpload
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWSError(conn, "invalid upload data")
		return
	}
	if req.Name == "" || len(req.Content) == 0 {
		s.sendWSError(conn, "upload needs a name and content")
		return
	}

	if _, err := o.Upload(req.Name, req.Content); err != nil {
		s.sendWSError(conn, errorText(err))
		return
	}
	s.sendWSMessage(conn, wsMsgSession, snapshotOf(o))
}

func (s *Server) handleWSAnalyze(ctx context.Context, conn *websocket.Conn, o *review.Orchestrator) {
	result, err := o.RunAnalysis(ctx)
	if err != nil {
		s.sendWSError(conn, errorText(err))
		return
	}
	snap := o.Session().Snapshot()
	s.sendWSMessage(conn, wsMsgAnalysis, newAnalysisResponse(snap.DocumentName, result.Risks, result.Stats, snap.Warnings))
}

func (s *Server) handleWSOpenModal(conn *websocket.Conn, o *review.Orchestrator, data json.RawMessage) {
	var req wsModal
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWSError(conn, "invalid open_modal data")
		return
	}
	kind, err := model.ParseModalKind(req.Kind)
	if err != nil || kind == model.ModalNone {
		s.sendWSError(conn, "kind must be chat or email")
		return
	}

	if err := o.OpenModal(kind); err != nil {
		s.sendWSError(conn, errorText(err))
		return
	}
	s.sendWSMessage(conn, wsMsgSession, snapshotOf(o))
}

func (s *Server) handleWSChat(ctx context.Context, conn *websocket.Conn, o *review.Orchestrator, data json.RawMessage) {
	var req wsChat
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWSError(conn, "invalid chat data")
		return
	}

	answer, err := o.SendChat(ctx, req.Message)
	if err != nil && answer == "" {
		s.sendWSError(conn, errorText(err))
		return
	}
	s.sendWSMessage(conn, wsMsgAnswer, wsAnswerResponse{Answer: answer, Failed: err != nil})
}

func (s *Server) handleWSEmail(ctx context.Context, conn *websocket.Conn, o *review.Orchestrator) {
	email, err := o.DraftEmail(ctx)
	if err != nil && email == "" {
		s.sendWSError(conn, errorText(err))
		return
	}
	s.sendWSMessage(conn, wsMsgDraft, wsDraftResponse{Email: email, Failed: err != nil})
}

func (s *Server) handleWSReport(conn *websocket.Conn, o *review.Orchestrator) {
	data, err := o.Report()
	if err != nil {
		s.sendWSError(conn, errorText(err))
		return
	}
	s.sendWSMessage(conn, wsMsgPDF, wsPDFResponse{
		Name: reportName(o.Session().Document().Name),
		PDF:  data,
	})
}

func (s *Server) sendWSMessage(conn *websocket.Conn, msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.log.Warn("ws marshal", zap.Error(err))
		return
	}
	msg := wsMessage{Type: msgType, Data: raw}
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn("ws write", zap.Error(err))
	}
}

func (s *Server) sendWSError(conn *websocket.Conn, errMsg string) {
	s.sendWSMessage(conn, wsMsgError, map[string]string{"message": errMsg})
}
