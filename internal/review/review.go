// Package review runs contract reviews: it wires extraction, the model, and
// the parser to a session and serializes the actions applied to it.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sprite-ai/lexisafe/internal/analysis"
	"github.com/sprite-ai/lexisafe/internal/assistant"
	"github.com/sprite-ai/lexisafe/internal/document"
	"github.com/sprite-ai/lexisafe/internal/llm"
	"github.com/sprite-ai/lexisafe/internal/logging"
	"github.com/sprite-ai/lexisafe/internal/model"
	"github.com/sprite-ai/lexisafe/internal/report"
	"github.com/sprite-ai/lexisafe/internal/session"
)

var (
	// ErrBusy is returned when another action on the same session is still running.
	ErrBusy = errors.New("session busy")

	// ErrEmptyMessage is returned for a blank chat message.
	ErrEmptyMessage = errors.New("empty chat message")
)

// Config tunes an Orchestrator. Zero values take defaults.
type Config struct {
	MaxChars            int
	Identity            document.IdentityMode
	AnalysisTemperature float64
	ChatTemperature     float64
	EmailTemperature    float64
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		MaxChars:            assistant.DefaultMaxChars,
		Identity:            document.IdentityContent,
		AnalysisTemperature: assistant.DefaultAnalysisTemperature,
		ChatTemperature:     assistant.DefaultChatTemperature,
		EmailTemperature:    assistant.DefaultEmailTemperature,
	}
}

// Orchestrator owns one session and applies user actions to it one at a time.
type Orchestrator struct {
	sess      *session.Context
	extractor document.Extractor
	risks     *assistant.RiskClient
	chat      *assistant.ChatResponder
	email     *assistant.EmailDrafter
	modelName string
	cfg       Config
	log       *zap.Logger
	sem       *semaphore.Weighted
}

// New creates an Orchestrator with a fresh session.
func New(ex document.Extractor, gen llm.Generator, cfg Config, log *zap.Logger) *Orchestrator {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = assistant.DefaultMaxChars
	}
	if cfg.Identity == "" {
		cfg.Identity = document.IdentityContent
	}
	return &Orchestrator{
		sess:      session.New(),
		extractor: ex,
		risks:     assistant.NewRiskClient(gen, cfg.AnalysisTemperature),
		chat:      assistant.NewChatResponder(gen, cfg.ChatTemperature, cfg.MaxChars),
		email:     assistant.NewEmailDrafter(gen, cfg.EmailTemperature),
		modelName: gen.ModelName(),
		cfg:       cfg,
		log:       logging.OrNop(log),
		sem:       semaphore.NewWeighted(1),
	}
}

// Session exposes the session for reads.
func (o *Orchestrator) Session() *session.Context {
	return o.sess
}

// ModelName returns the model used for analysis.
func (o *Orchestrator) ModelName() string {
	return o.modelName
}

func (o *Orchestrator) acquire() (release func(), err error) {
	if !o.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	return func() { o.sem.Release(1) }, nil
}

func requireAnalyzed(s *session.Context, op string) error {
	if st := s.State(); st != session.StateAnalyzed {
		return fmt.Errorf("%w: cannot %s while %s", session.ErrInvalidTransition, op, st)
	}
	return nil
}

// Upload loads a document into the session. It reports whether the session
// changed; re-uploading the current document keeps its analysis.
func (o *Orchestrator) Upload(name string, content []byte) (bool, error) {
	return o.UploadDocument(document.New(name, content, o.cfg.Identity))
}

// UploadDocument is Upload for an already built Document.
func (o *Orchestrator) UploadDocument(doc document.Document) (bool, error) {
	release, err := o.acquire()
	if err != nil {
		return false, err
	}
	defer release()

	changed := o.sess.Upload(doc)
	o.log.Debug("document uploaded",
		zap.String("document", doc.Name),
		zap.String("id", shortID(doc.ID)),
		zap.Bool("changed", changed))
	return changed, nil
}

// Analysis is the outcome of RunAnalysis.
type Analysis struct {
	Risks model.RiskCollection
	Raw   string
	Stats analysis.Stats
}

// RunAnalysis extracts, analyzes, and parses the loaded document, then moves
// the session to StateAnalyzed. On a model failure the session stays in
// StateDocumentLoaded, the returned Raw holds a displayable error, and err
// wraps llm.ErrTransport. A cancelled ctx also leaves StateDocumentLoaded.
func (o *Orchestrator) RunAnalysis(ctx context.Context) (Analysis, error) {
	release, err := o.acquire()
	if err != nil {
		return Analysis{}, err
	}
	defer release()

	doc, err := o.sess.BeginAnalysis()
	if err != nil {
		return Analysis{}, err
	}

	text, err := o.text(ctx, doc)
	if err != nil {
		return Analysis{}, err
	}

	raw, err := o.risks.Analyze(ctx, text, o.cfg.MaxChars)
	if err != nil {
		o.log.Warn("analysis failed", zap.String("document", doc.Name), zap.Error(err))
		return Analysis{Raw: raw}, err
	}

	risks, stats := analysis.ParseWithStats(raw)
	h, m, l := risks.Counts()
	o.log.Info("analysis complete",
		zap.String("document", doc.Name),
		zap.Int("segments", stats.Segments),
		zap.Int("accepted", stats.Accepted),
		zap.Int("dropped", stats.Dropped()),
		zap.Int("high", h), zap.Int("medium", m), zap.Int("low", l))
	if stats.Unclassified > 0 {
		o.log.Warn("severity labels defaulted to Low",
			zap.String("document", doc.Name),
			zap.Int("count", stats.Unclassified))
	}

	if err := o.sess.Commit(doc.ID, risks); err != nil {
		return Analysis{}, err
	}
	return Analysis{Risks: risks, Raw: raw, Stats: stats}, nil
}

// text returns the cached extraction for doc, extracting on first use. A
// failed extraction becomes a session warning and empty text. A cancelled
// extraction is returned as an error and nothing is cached.
func (o *Orchestrator) text(ctx context.Context, doc document.Document) (string, error) {
	if text, ok := o.sess.CachedText(); ok {
		return text, nil
	}

	text, err := document.ExtractText(ctx, o.extractor, doc.Content)
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", doc.Name, err)
	}
	if document.IsSoftError(text) {
		o.log.Warn("extraction failed", zap.String("document", doc.Name), zap.String("error", text))
		o.sess.AddWarning(text)
		text = ""
	} else if strings.TrimSpace(text) == "" {
		o.sess.AddWarning("no text found in " + doc.Name)
	}
	o.sess.CacheText(doc.ID, text)
	return text, nil
}

// OpenModal opens the chat or email panel.
func (o *Orchestrator) OpenModal(kind model.ModalKind) error {
	release, err := o.acquire()
	if err != nil {
		return err
	}
	defer release()
	return o.sess.OpenModal(kind)
}

// CloseModal closes any open panel.
func (o *Orchestrator) CloseModal() error {
	release, err := o.acquire()
	if err != nil {
		return err
	}
	defer release()
	o.sess.CloseModal()
	return nil
}

// SendChat asks a question about the analyzed contract and records both turns.
// A model failure is recorded and returned as the answer text, with err set.
func (o *Orchestrator) SendChat(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyMessage
	}

	release, err := o.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	if err := requireAnalyzed(o.sess, "chat"); err != nil {
		return "", err
	}

	history := o.sess.Conversation()
	text, _ := o.sess.CachedText()
	answer, chatErr := o.chat.Respond(ctx, assistant.ChatRequest{
		Question: question,
		Contract: text,
		Risks:    o.sess.Risks(),
		History:  history,
	})
	if chatErr != nil {
		o.log.Warn("chat failed", zap.Error(chatErr))
	}

	if err := o.sess.AppendMessage(model.RoleUser, question); err != nil {
		return "", err
	}
	if err := o.sess.AppendMessage(model.RoleAssistant, answer); err != nil {
		return "", err
	}
	return answer, chatErr
}

// DraftEmail writes a negotiation email for the analyzed contract.
func (o *Orchestrator) DraftEmail(ctx context.Context) (string, error) {
	release, err := o.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	if err := requireAnalyzed(o.sess, "draft email"); err != nil {
		return "", err
	}

	email, err := o.email.Draft(ctx, o.sess.Document().Name, o.sess.Risks())
	if err != nil {
		o.log.Warn("email draft failed", zap.Error(err))
	}
	return email, err
}

// Report renders the PDF report for the analyzed contract.
func (o *Orchestrator) Report() ([]byte, error) {
	if err := requireAnalyzed(o.sess, "download report"); err != nil {
		return nil, err
	}
	return report.PDF(o.sess.Document().Name, o.sess.Risks())
}

// Result summarizes the analyzed contract for the text report writers.
func (o *Orchestrator) Result() report.Result {
	snap := o.sess.Snapshot()
	return report.Result{
		DocumentName: snap.DocumentName,
		Risks:        snap.Risks,
		Warnings:     snap.Warnings,
		Model:        o.modelName,
	}
}

// Reset discards the document and returns the session to idle.
func (o *Orchestrator) Reset() error {
	release, err := o.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := o.sess.Reset(); err != nil {
		return err
	}
	o.log.Debug("session reset")
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
