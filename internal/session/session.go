// Package session holds the state of one contract review and enforces which
// actions are allowed in which state.
package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/sprite-ai/lexisafe/internal/document"
	"github.com/sprite-ai/lexisafe/internal/model"
)

// ErrInvalidTransition is returned when an action is not allowed in the
// current state. The session is left unchanged.
var ErrInvalidTransition = errors.New("invalid session transition")

// State is the review lifecycle stage.
type State int

const (
	StateIdle State = iota
	StateDocumentLoaded
	StateAnalyzed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDocumentLoaded:
		return "document_loaded"
	case StateAnalyzed:
		return "analyzed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateDocumentLoaded, StateAnalyzed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Context is the review state for one document. It is safe for concurrent
// use, but callers that need several steps to happen atomically must
// serialize them themselves.
type Context struct {
	mu sync.Mutex

	state State
	doc   document.Document

	extractedText string
	textCached    bool

	risks            model.RiskCollection
	analysisComplete bool
	conversation     []model.Message
	activeModal      model.ModalKind
	warnings         []string
}

// New returns an idle session.
func New() *Context {
	return &Context{}
}

func invalid(op string, s State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, s)
}

// Upload loads doc. A document with the identity already loaded is a no-op
// and returns false. Any other document clears every derived field and moves
// the session to StateDocumentLoaded.
func (c *Context) Upload(doc document.Document) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle && c.doc.ID == doc.ID {
		return false
	}
	c.clear()
	c.doc = doc
	c.state = StateDocumentLoaded
	return true
}

// BeginAnalysis checks that analysis may run and returns the loaded document.
// Analysis may rerun after it has completed.
func (c *Context) BeginAnalysis() (document.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDocumentLoaded && c.state != StateAnalyzed {
		return document.Document{}, invalid("analyze", c.state)
	}
	return c.doc, nil
}

// CachedText returns the extracted text for the loaded document, if any.
func (c *Context) CachedText() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extractedText, c.textCached
}

// CacheText stores extracted text for documentID. It is ignored if another
// document was uploaded in the meantime.
func (c *Context) CacheText(documentID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle || c.doc.ID != documentID {
		return
	}
	c.extractedText = text
	c.textCached = true
}

// Commit stores the parsed risks for documentID and moves to StateAnalyzed.
func (c *Context) Commit(documentID string, risks model.RiskCollection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDocumentLoaded && c.state != StateAnalyzed {
		return invalid("commit analysis", c.state)
	}
	if c.doc.ID != documentID {
		return fmt.Errorf("%w: document changed during analysis", ErrInvalidTransition)
	}
	c.risks = risks
	c.analysisComplete = true
	c.state = StateAnalyzed
	return nil
}

// OpenModal shows the chat or email panel. Only allowed once analyzed.
func (c *Context) OpenModal(kind model.ModalKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAnalyzed {
		return invalid("open "+kind.String(), c.state)
	}
	if kind == model.ModalNone {
		return fmt.Errorf("%w: no modal named", ErrInvalidTransition)
	}
	c.activeModal = kind
	return nil
}

// CloseModal hides any open panel. Allowed in every state.
func (c *Context) CloseModal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeModal = model.ModalNone
}

// AppendMessage adds a chat turn. Only allowed once analyzed.
func (c *Context) AppendMessage(role model.Role, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAnalyzed {
		return invalid("chat", c.state)
	}
	c.conversation = append(c.conversation, model.Message{Role: role, Content: content})
	return nil
}

// AddWarning records a non-fatal problem, such as an unreadable page.
func (c *Context) AddWarning(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, msg)
}

// Reset discards the document and returns to StateIdle.
func (c *Context) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle {
		return invalid("reset", c.state)
	}
	c.clear()
	c.doc = document.Document{}
	c.state = StateIdle
	return nil
}

// clear drops all derived state. Caller holds mu.
func (c *Context) clear() {
	c.extractedText = ""
	c.textCached = false
	c.risks = model.RiskCollection{}
	c.analysisComplete = false
	c.conversation = nil
	c.activeModal = model.ModalNone
	c.warnings = nil
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Document returns the loaded document.
func (c *Context) Document() document.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// Risks returns the parsed risks.
func (c *Context) Risks() model.RiskCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.risks
}

// Conversation returns a copy of the chat transcript.
func (c *Context) Conversation() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.conversation)
}

// ActiveModal returns the open panel.
func (c *Context) ActiveModal() model.ModalKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeModal
}

// Snapshot is a point-in-time copy of a session, shaped for JSON.
type Snapshot struct {
	State            State                `json:"state"`
	DocumentID       string               `json:"document_id,omitempty"`
	DocumentName     string               `json:"document_name,omitempty"`
	AnalysisComplete bool                 `json:"analysis_complete"`
	Risks            model.RiskCollection `json:"risks"`
	Conversation     []model.Message      `json:"conversation"`
	ActiveModal      string               `json:"active_modal"`
	Warnings         []string             `json:"warnings,omitempty"`
}

// Snapshot copies the session state.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:            c.state,
		DocumentID:       c.doc.ID,
		DocumentName:     c.doc.Name,
		AnalysisComplete: c.analysisComplete,
		Risks:            c.risks,
		Conversation:     slices.Clone(c.conversation),
		ActiveModal:      c.activeModal.String(),
		Warnings:         slices.Clone(c.warnings),
	}
}
