// Package tui implements the Bubble Tea terminal user interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/lexisafe/internal/model"
	"github.com/sprite-ai/lexisafe/internal/review"
	"github.com/sprite-ai/lexisafe/internal/session"
)

// Options configures the dashboard.
type Options struct {
	// ReportPath is where "save report" writes the PDF. Empty derives a name
	// from the document.
	ReportPath string
}

// Model is the top-level Bubble Tea model for lexisafe.
type Model struct {
	orch *review.Orchestrator
	ctx  context.Context
	opts Options

	// UI state
	width  int
	height int

	// Risk list selection
	bucket int // index into model.Severities
	item   int // index within the bucket

	// Status line
	status    string
	statusErr bool

	analyzing bool
	spinner   spinner.Model

	showHelp bool

	// Chat modal
	chatInput   textinput.Model
	chatView    viewport.Model
	chatWaiting bool
	pending     string
	md          *glamour.TermRenderer

	// Email modal
	email       []highlightedLine
	emailScroll int
	drafting    bool

	// Path prompt for checking another file
	pathInput textinput.Model
	opening   bool
}

type analysisDoneMsg struct {
	result review.Analysis
	err    error
}

type chatReplyMsg struct {
	answer string
	err    error
}

type emailDraftMsg struct {
	text string
	err  error
}

type fileOpenedMsg struct {
	name string
	err  error
}

type reportSavedMsg struct {
	path string
	err  error
}

// New creates a dashboard over orch. If a document is loaded but not yet
// analyzed, analysis starts when the program starts.
func New(ctx context.Context, orch *review.Orchestrator, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Placeholder = "Ask about this contract..."
	ti.CharLimit = 2000
	ti.Prompt = "> "

	pi := textinput.New()
	pi.Placeholder = "path/to/contract.pdf"
	pi.Prompt = "Open: "

	m := Model{
		orch:      orch,
		ctx:       ctx,
		opts:      opts,
		spinner:   sp,
		chatInput: ti,
		pathInput: pi,
		chatView:  viewport.New(80, 20),
		analyzing: orch.Session().State() == session.StateDocumentLoaded,
	}
	m.md = newMarkdownRenderer(80)
	m.selectFirstRisk()
	return m
}

func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.analyzing {
		return tea.Batch(m.spinner.Tick, m.analyzeCmd())
	}
	return nil
}

func (m Model) analyzeCmd() tea.Cmd {
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		res, err := orch.RunAnalysis(ctx)
		return analysisDoneMsg{result: res, err: err}
	}
}

func (m Model) chatCmd(question string) tea.Cmd {
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		answer, err := orch.SendChat(ctx, question)
		return chatReplyMsg{answer: answer, err: err}
	}
}

func (m Model) emailCmd() tea.Cmd {
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		text, err := orch.DraftEmail(ctx)
		return emailDraftMsg{text: text, err: err}
	}
}

// openFileCmd resets the session and loads the contract at path.
func (m Model) openFileCmd(path string) tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		content, err := os.ReadFile(path)
		if err != nil {
			return fileOpenedMsg{err: err}
		}
		if orch.Session().State() != session.StateIdle {
			if err := orch.Reset(); err != nil {
				return fileOpenedMsg{err: err}
			}
		}
		name := filepath.Base(path)
		if _, err := orch.Upload(name, content); err != nil {
			return fileOpenedMsg{err: err}
		}
		return fileOpenedMsg{name: name}
	}
}

func (m Model) saveReportCmd() tea.Cmd {
	orch, path := m.orch, m.reportPath()
	return func() tea.Msg {
		data, err := orch.Report()
		if err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
		return reportSavedMsg{path: path, err: err}
	}
}

func (m Model) reportPath() string {
	if m.opts.ReportPath != "" {
		return m.opts.ReportPath
	}
	name := m.orch.Session().Document().Name
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = "contract"
	}
	return base + "_risk_report.pdf"
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chatView.Width = max(m.width-6, 10)
		m.chatView.Height = max(m.height-8, 3)
		m.chatInput.Width = max(m.width-10, 10)
		m.md = newMarkdownRenderer(max(m.chatView.Width-2, 20))
		m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.chatWaiting {
			m.refreshTranscript()
		}
		return m, cmd

	case analysisDoneMsg:
		m.analyzing = false
		if msg.err != nil {
			m.setError(msg.err, msg.result.Raw)
			return m, nil
		}
		m.selectFirstRisk()
		m.setStatus("Analysis: " + msg.result.Risks.Summary())
		return m, nil

	case chatReplyMsg:
		m.chatWaiting = false
		m.pending = ""
		if msg.err != nil && msg.answer == "" {
			m.setError(msg.err, "")
		}
		m.refreshTranscript()
		return m, nil

	case emailDraftMsg:
		m.drafting = false
		m.email = highlightMarkdown(msg.text)
		m.emailScroll = 0
		if msg.err != nil {
			m.setError(msg.err, "")
		}
		return m, nil

	case fileOpenedMsg:
		if msg.err != nil {
			m.setError(msg.err, "")
			return m, nil
		}
		m.opts.ReportPath = ""
		m.email = nil
		m.emailScroll = 0
		m.bucket, m.item = 0, 0
		m.refreshTranscript()
		m.analyzing = true
		m.setStatus("Analyzing " + msg.name + "...")
		return m, tea.Batch(m.spinner.Tick, m.analyzeCmd())

	case reportSavedMsg:
		if msg.err != nil {
			m.setError(msg.err, "")
		} else {
			m.setStatus("Report saved to " + msg.path)
		}
		return m, nil

	case tea.KeyMsg:
		if m.opening {
			return m.updateOpen(msg)
		}
		switch m.orch.Session().ActiveModal() {
		case model.ModalChat:
			return m.updateChat(msg)
		case model.ModalEmail:
			return m.updateEmail(msg)
		default:
			return m.updateDashboard(msg)
		}
	}

	return m, nil
}

func (m Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, keys.Down):
		if m.item < len(m.currentBucket())-1 {
			m.item++
		}

	case key.Matches(msg, keys.Up):
		if m.item > 0 {
			m.item--
		}

	case key.Matches(msg, keys.NextBucket):
		if m.bucket < len(model.Severities)-1 {
			m.bucket++
			m.item = 0
		}

	case key.Matches(msg, keys.PrevBucket):
		if m.bucket > 0 {
			m.bucket--
			m.item = 0
		}

	case key.Matches(msg, keys.Analyze):
		if m.analyzing {
			return m, nil
		}
		m.analyzing = true
		m.setStatus("Analyzing contract...")
		return m, tea.Batch(m.spinner.Tick, m.analyzeCmd())

	case key.Matches(msg, keys.Chat):
		if err := m.orch.OpenModal(model.ModalChat); err != nil {
			m.setError(err, "")
			return m, nil
		}
		m.refreshTranscript()
		cmd := m.chatInput.Focus()
		return m, cmd

	case key.Matches(msg, keys.Email):
		if err := m.orch.OpenModal(model.ModalEmail); err != nil {
			m.setError(err, "")
			return m, nil
		}
		if m.email != nil {
			return m, nil
		}
		m.drafting = true
		return m, tea.Batch(m.spinner.Tick, m.emailCmd())

	case key.Matches(msg, keys.Save):
		if m.orch.Session().State() != session.StateAnalyzed {
			m.setError(errors.New("nothing to save until the contract is analyzed"), "")
			return m, nil
		}
		return m, m.saveReportCmd()

	case key.Matches(msg, keys.Open):
		if m.busy() {
			return m, nil
		}
		m.opening = true
		m.pathInput.SetValue("")
		cmd := m.pathInput.Focus()
		return m, cmd
	}

	return m, nil
}

func (m Model) updateOpen(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, keys.Close):
		m.opening = false
		m.pathInput.Blur()
		return m, nil

	case key.Matches(msg, keys.Send):
		path := strings.TrimSpace(m.pathInput.Value())
		if path == "" {
			return m, nil
		}
		m.opening = false
		m.pathInput.Blur()
		return m, m.openFileCmd(path)
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, keys.Close):
		m.closeModal()
		m.chatInput.Blur()
		return m, nil

	case key.Matches(msg, keys.Send):
		question := strings.TrimSpace(m.chatInput.Value())
		if question == "" || m.chatWaiting {
			return m, nil
		}
		m.chatInput.SetValue("")
		m.chatWaiting = true
		m.pending = question
		m.refreshTranscript()
		return m, tea.Batch(m.spinner.Tick, m.chatCmd(question))

	case msg.Type == tea.KeyPgUp, msg.Type == tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m Model) updateEmail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, keys.Close):
		m.closeModal()

	case key.Matches(msg, keys.Down):
		if m.emailScroll < len(m.email)-1 {
			m.emailScroll++
		}

	case key.Matches(msg, keys.Up):
		if m.emailScroll > 0 {
			m.emailScroll--
		}

	case key.Matches(msg, keys.Regenerate):
		if m.drafting {
			return m, nil
		}
		m.drafting = true
		return m, tea.Batch(m.spinner.Tick, m.emailCmd())
	}
	return m, nil
}

func (m *Model) closeModal() {
	if err := m.orch.CloseModal(); err != nil {
		m.setError(err, "")
	}
}

func (m Model) busy() bool {
	return m.analyzing || m.chatWaiting || m.drafting
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

// setError shows display if set, else err.
func (m *Model) setError(err error, display string) {
	if display == "" {
		display = err.Error()
	}
	m.status = display
	m.statusErr = true
}

func (m Model) currentBucket() []model.RiskRecord {
	return m.orch.Session().Risks().Bucket(model.Severities[m.bucket])
}

// selectFirstRisk moves the selection to the most severe non-empty bucket.
func (m *Model) selectFirstRisk() {
	risks := m.orch.Session().Risks()
	m.bucket, m.item = 0, 0
	for i, s := range model.Severities {
		if len(risks.Bucket(s)) > 0 {
			m.bucket = i
			return
		}
	}
}

func (m *Model) refreshTranscript() {
	m.chatView.SetContent(m.renderTranscript(m.chatView.Width))
	m.chatView.GotoBottom()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	switch m.orch.Session().ActiveModal() {
	case model.ModalChat:
		return m.renderChat()
	case model.ModalEmail:
		return m.renderEmail()
	}

	listWidth := m.listWidth()
	detailWidth := m.width - listWidth - 1

	list := m.renderRiskList(listWidth, m.height-2)
	detail := m.renderDetail(detailWidth, m.height-2)

	main := lipgloss.JoinHorizontal(lipgloss.Top, list, " ", detail)
	if m.opening {
		return lipgloss.JoinVertical(lipgloss.Left, main, m.pathInput.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) listWidth() int {
	maxLen := 24
	for _, r := range m.orch.Session().Risks().All() {
		if n := lipgloss.Width(r.Title); n > maxLen {
			maxLen = n
		}
	}
	w := maxLen + 8
	if w > m.width/3 {
		w = m.width / 3
	}
	if w < 24 {
		w = 24
	}
	return w
}

// Run starts the TUI application.
func Run(ctx context.Context, orch *review.Orchestrator, opts Options) error {
	m := New(ctx, orch, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
