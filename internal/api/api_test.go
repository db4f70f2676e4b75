package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/sprite-ai/lexisafe/internal/assistant"
	"github.com/sprite-ai/lexisafe/internal/llm"
	"github.com/sprite-ai/lexisafe/internal/review"
	"github.com/sprite-ai/lexisafe/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testResponse = "Unilateral Termination | High | Vendor may terminate at will | Require mutual notice" +
	"###Data Selling | High | Personal data may be sold | Prohibit resale" +
	"###Jurisdiction | Low | Local courts | None"

type textExtractor string

func (t textExtractor) Extract(context.Context, []byte) (string, error) {
	return string(t), nil
}

// stubGenerator answers each kind of prompt with a canned reply.
func stubGenerator() llm.GeneratorFunc {
	return func(_ context.Context, prompt string, _ llm.Options) (string, error) {
		switch {
		case strings.Contains(prompt, "legal risk analyzer"):
			return testResponse, nil
		case strings.Contains(prompt, "You are LexiSafe"):
			return "It favours the vendor.", nil
		default:
			return "Subject: Proposed amendments\n\nDear Counsel,", nil
		}
	}
}

func newTestServerWith(gen llm.Generator) *Server {
	factory := func() *review.Orchestrator {
		return review.New(textExtractor("The vendor may terminate at any time."), gen, review.DefaultConfig(), nil)
	}
	return New(":0", factory, nil)
}

func newTestServer() *Server {
	return newTestServerWith(stubGenerator())
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, srv *Server, path, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json decode: %v: %s", err, w.Body.String())
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()
	w := do(t, srv, http.MethodGet, "/health", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	resp := decode[map[string]any](t, w)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp["status"])
	}
}

func TestParseEndpoint(t *testing.T) {
	srv := newTestServer()
	w := do(t, srv, http.MethodPost, "/api/parse", parseRequest{Raw: testResponse + "###chatter without fields"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[analysisResponse](t, w)

	if len(resp.Risks.High) != 2 || len(resp.Risks.Low) != 1 {
		t.Errorf("unexpected buckets: %+v", resp.Risks)
	}
	if resp.Risks.Medium == nil {
		t.Error("expected empty medium bucket to encode as []")
	}
	if resp.MaxSeverity != "High" {
		t.Errorf("expected max severity High, got %q", resp.MaxSeverity)
	}
	if resp.Stats.Segments != 4 || resp.Stats.Dropped != 1 {
		t.Errorf("unexpected stats: %+v", resp.Stats)
	}
}

func TestParseNoDelimiters(t *testing.T) {
	srv := newTestServer()
	w := do(t, srv, http.MethodPost, "/api/parse", parseRequest{Raw: "no delimiters present"})

	resp := decode[analysisResponse](t, w)
	if resp.Total != 0 || resp.Summary != "No risks found" {
		t.Errorf("expected empty result, got %+v", resp)
	}
	if resp.MaxSeverity != "" {
		t.Errorf("expected no max severity, got %q", resp.MaxSeverity)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader("{bad json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := newTestServer()
	w := upload(t, srv, "/api/analyze", "msa.pdf", []byte("%PDF-1.4 fake"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[analysisResponse](t, w)
	if resp.Document != "msa.pdf" {
		t.Errorf("expected document msa.pdf, got %q", resp.Document)
	}
	if resp.Summary != "2 Critical Risks, 0 Warnings, 1 Safe Clauses" {
		t.Errorf("unexpected summary %q", resp.Summary)
	}
	if srv.sessions.Len() != 0 {
		t.Error("one-shot analysis must not register a session")
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	srv := newTestServer()
	w := do(t, srv, http.MethodPost, "/api/analyze", map[string]string{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAnalyzeTransportFailure(t *testing.T) {
	srv := newTestServerWith(llm.GeneratorFunc(func(context.Context, string, llm.Options) (string, error) {
		return "", errors.New("quota exceeded")
	}))
	w := upload(t, srv, "/api/analyze", "msa.pdf", []byte("%PDF"))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	resp := decode[map[string]string](t, w)
	if !strings.HasPrefix(resp["error"], assistant.DisplayErrorPrefix) || !strings.Contains(resp["error"], "quota exceeded") {
		t.Errorf("unexpected error %q", resp["error"])
	}
}

func TestReportEndpoint(t *testing.T) {
	srv := newTestServer()
	parsed := decode[analysisResponse](t, do(t, srv, http.MethodPost, "/api/parse", parseRequest{Raw: testResponse}))

	w := do(t, srv, http.MethodPost, "/api/report", reportRequest{DocumentName: "msa.pdf", Risks: parsed.Risks})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", ct)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "msa_risk_report.pdf") {
		t.Errorf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Error("expected a PDF body")
	}
}

func TestReportRequiresName(t *testing.T) {
	srv := newTestServer()
	w := do(t, srv, http.MethodPost, "/api/report", reportRequest{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer()

	w := do(t, srv, http.MethodPost, "/api/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	created := decode[sessionResponse](t, w)
	if created.ID == "" || created.Session.State != session.StateIdle {
		t.Fatalf("unexpected session %+v", created)
	}
	base := "/api/sessions/" + created.ID

	// Chat before analysis is a precondition failure
	w = do(t, srv, http.MethodPost, base+"/chat", chatRequest{Message: "hi"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 before analysis, got %d", w.Code)
	}

	w = upload(t, srv, base+"/document", "msa.pdf", []byte("%PDF-1.4 fake"))
	up := decode[sessionResponse](t, w)
	if up.Changed == nil || !*up.Changed || up.Session.State != session.StateDocumentLoaded {
		t.Fatalf("unexpected upload response %+v", up)
	}

	w = do(t, srv, http.MethodPost, base+"/analyze", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[analysisResponse](t, w); resp.Total != 3 {
		t.Errorf("expected 3 risks, got %d", resp.Total)
	}

	// Same document again keeps the analysis
	up = decode[sessionResponse](t, upload(t, srv, base+"/document", "msa.pdf", []byte("%PDF-1.4 fake")))
	if *up.Changed || up.Session.State != session.StateAnalyzed {
		t.Errorf("expected unchanged analyzed session, got %+v", up)
	}

	w = do(t, srv, http.MethodPost, base+"/modal", modalRequest{Kind: "chat"})
	if got := decode[sessionResponse](t, w).Session.ActiveModal; got != "chat" {
		t.Errorf("expected chat modal, got %q", got)
	}

	w = do(t, srv, http.MethodPost, base+"/chat", chatRequest{Message: "Who can terminate?"})
	chat := decode[chatResponse](t, w)
	if chat.Answer != "It favours the vendor." || len(chat.Conversation) != 2 {
		t.Errorf("unexpected chat response %+v", chat)
	}

	w = do(t, srv, http.MethodDelete, base+"/modal", nil)
	if got := decode[sessionResponse](t, w).Session.ActiveModal; got != "none" {
		t.Errorf("expected no modal, got %q", got)
	}

	w = do(t, srv, http.MethodPost, base+"/email", nil)
	if email := decode[emailResponse](t, w); !strings.HasPrefix(email.Email, "Subject:") {
		t.Errorf("unexpected email %q", email.Email)
	}

	w = do(t, srv, http.MethodGet, base+"/report", nil)
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("expected PDF report, got %d", w.Code)
	}

	w = do(t, srv, http.MethodPost, base+"/reset", nil)
	if got := decode[sessionResponse](t, w).Session; got.State != session.StateIdle || got.DocumentName != "" {
		t.Errorf("expected idle session after reset, got %+v", got)
	}

	w = do(t, srv, http.MethodDelete, base, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	w = do(t, srv, http.MethodGet, base, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestSessionErrors(t *testing.T) {
	srv := newTestServer()
	created := decode[sessionResponse](t, do(t, srv, http.MethodPost, "/api/sessions", nil))
	base := "/api/sessions/" + created.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown session", http.MethodGet, "/api/sessions/nope", nil, http.StatusNotFound},
		{"analyze without document", http.MethodPost, base + "/analyze", nil, http.StatusConflict},
		{"report before analysis", http.MethodGet, base + "/report", nil, http.StatusConflict},
		{"reset from idle", http.MethodPost, base + "/reset", nil, http.StatusConflict},
		{"bad modal kind", http.MethodPost, base + "/modal", modalRequest{Kind: "settings"}, http.StatusBadRequest},
		{"none modal kind", http.MethodPost, base + "/modal", modalRequest{Kind: "none"}, http.StatusBadRequest},
		{"modal before analysis", http.MethodPost, base + "/modal", modalRequest{Kind: "email"}, http.StatusConflict},
		{"empty chat", http.MethodPost, base + "/chat", chatRequest{Message: "   "}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{review.ErrNoSession, http.StatusNotFound},
		{review.ErrBusy, http.StatusConflict},
		{session.ErrInvalidTransition, http.StatusConflict},
		{review.ErrEmptyMessage, http.StatusBadRequest},
		{llm.ErrTransport, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func dialWS(t *testing.T, srv *Server) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		ts.Close()
		t.Fatalf("ws dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) wsMessage {
	t.Helper()
	msg := wsMessage{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		msg.Data = raw
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("ws write %s: %v", msgType, err)
	}

	var reply wsMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("ws read after %s: %v", msgType, err)
	}
	return reply
}

func TestWebSocketReviewSession(t *testing.T) {
	conn, done := dialWS(t, newTestServer())
	defer done()

	msg := send(t, conn, wsMsgUpload, wsUpload{Name: "msa.pdf", Content: []byte("%PDF-1.4 fake")})
	if msg.Type != wsMsgSession {
		t.Fatalf("expected 'session' message, got %q: %s", msg.Type, msg.Data)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(msg.Data, &snap); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if snap.State != session.StateDocumentLoaded || snap.DocumentName != "msa.pdf" {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	msg = send(t, conn, wsMsgAnalyze, nil)
	if msg.Type != wsMsgAnalysis {
		t.Fatalf("expected 'analysis' message, got %q: %s", msg.Type, msg.Data)
	}
	var analysis analysisResponse
	if err := json.Unmarshal(msg.Data, &analysis); err != nil {
		t.Fatalf("unmarshal analysis: %v", err)
	}
	if len(analysis.Risks.High) != 2 || analysis.Risks.High[0].Title != "Unilateral Termination" {
		t.Errorf("unexpected risks %+v", analysis.Risks)
	}

	msg = send(t, conn, wsMsgOpenModal, wsModal{Kind: "chat"})
	if msg.Type != wsMsgSession {
		t.Fatalf("expected 'session' message, got %q: %s", msg.Type, msg.Data)
	}

	msg = send(t, conn, wsMsgChat, wsChat{Message: "Who can terminate?"})
	if msg.Type != wsMsgAnswer {
		t.Fatalf("expected 'answer' message, got %q: %s", msg.Type, msg.Data)
	}
	var answer wsAnswerResponse
	json.Unmarshal(msg.Data, &answer)
	if answer.Answer != "It favours the vendor." || answer.Failed {
		t.Errorf("unexpected answer %+v", answer)
	}

	msg = send(t, conn, wsMsgEmail, nil)
	if msg.Type != wsMsgDraft {
		t.Fatalf("expected 'draft' message, got %q", msg.Type)
	}

	msg = send(t, conn, wsMsgReport, nil)
	if msg.Type != wsMsgPDF {
		t.Fatalf("expected 'pdf' message, got %q", msg.Type)
	}
	var pdf wsPDFResponse
	json.Unmarshal(msg.Data, &pdf)
	if pdf.Name != "msa_risk_report.pdf" || !bytes.HasPrefix(pdf.PDF, []byte("%PDF")) {
		t.Errorf("unexpected report %q (%d bytes)", pdf.Name, len(pdf.PDF))
	}

	msg = send(t, conn, wsMsgReset, nil)
	json.Unmarshal(msg.Data, &snap)
	if snap.State != session.StateIdle {
		t.Errorf("expected idle after reset, got %s", snap.State)
	}
}

func TestWebSocketErrors(t *testing.T) {
	conn, done := dialWS(t, newTestServer())
	defer done()

	tests := []struct {
		msgType string
		data    any
	}{
		{wsMsgAnalyze, nil},
		{wsMsgChat, wsChat{Message: "hi"}},
		{wsMsgOpenModal, wsModal{Kind: "bogus"}},
		{wsMsgUpload, wsUpload{Name: "empty.pdf"}},
		{wsMsgReport, nil},
		{"approve", nil},
	}

	for _, tt := range tests {
		msg := send(t, conn, tt.msgType, tt.data)
		if msg.Type != wsMsgError {
			t.Errorf("%s: expected 'error' message, got %q", tt.msgType, msg.Type)
		}
	}

	// Snapshot still works after errors
	if msg := send(t, conn, wsMsgSnapshot, nil); msg.Type != wsMsgSession {
		t.Errorf("expected 'session' message, got %q", msg.Type)
	}
}

func TestWebSocketChatFailure(t *testing.T) {
	calls := 0
	gen := llm.GeneratorFunc(func(context.Context, string, llm.Options) (string, error) {
		calls++
		if calls == 1 {
			return testResponse, nil
		}
		return "", errors.New("model overloaded")
	})
	conn, done := dialWS(t, newTestServerWith(gen))
	defer done()

	send(t, conn, wsMsgUpload, wsUpload{Name: "msa.pdf", Content: []byte("%PDF")})
	send(t, conn, wsMsgAnalyze, nil)

	msg := send(t, conn, wsMsgChat, wsChat{Message: "hi"})
	var answer wsAnswerResponse
	json.Unmarshal(msg.Data, &answer)
	if !answer.Failed || !strings.Contains(answer.Answer, "model overloaded") {
		t.Errorf("expected failed answer carrying the error, got %+v", answer)
	}
}

func TestSessionEmailFailureKeepsDraftText(t *testing.T) {
	calls := 0
	gen := llm.GeneratorFunc(func(context.Context, string, llm.Options) (string, error) {
		calls++
		if calls == 1 {
			return testResponse, nil
		}
		return "", errors.New("model overloaded")
	})
	srv := newTestServerWith(gen)

	w := do(t, srv, http.MethodPost, "/api/sessions", nil)
	id := decode[sessionResponse](t, w).ID
	base := "/api/sessions/" + id
	if w := upload(t, srv, base+"/document", "msa.pdf", []byte("%PDF")); w.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, srv, http.MethodPost, base+"/analyze", nil); w.Code != http.StatusOK {
		t.Fatalf("analyze: %d %s", w.Code, w.Body.String())
	}

	w = do(t, srv, http.MethodPost, base+"/email", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
	resp := decode[emailResponse](t, w)
	if !resp.Failed {
		t.Error("expected failed draft")
	}
	if !strings.HasPrefix(resp.Email, assistant.EmailErrorPrefix) || !strings.Contains(resp.Email, "model overloaded") {
		t.Errorf("expected drafter error text, got %q", resp.Email)
	}
}
