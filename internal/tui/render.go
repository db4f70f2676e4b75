package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/lexisafe/internal/model"
	"github.com/sprite-ai/lexisafe/internal/session"
)

func (m Model) renderRiskList(width, height int) string {
	var b strings.Builder
	risks := m.orch.Session().Risks()
	innerWidth := width - 4

	for bi, sev := range model.Severities {
		items := risks.Bucket(sev)
		header := fmt.Sprintf("%s (%d)", sev.Label(), len(items))
		b.WriteString(severityStyle(sev).Render(header))
		b.WriteByte('\n')

		if len(items) == 0 {
			b.WriteString(emptyBucketStyle.Render("  No risks found"))
			b.WriteByte('\n')
		}

		for i, r := range items {
			title := truncate(r.Title, innerWidth-2)
			style := itemStyle
			if bi == m.bucket && i == m.item {
				style = itemSelectedStyle
			}
			b.WriteString(style.Width(innerWidth).Render("  " + title))
			b.WriteByte('\n')
		}

		if bi < len(model.Severities)-1 {
			b.WriteByte('\n')
		}
	}

	return listStyle.Width(width).Height(height - 2).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderDetail(width, height int) string {
	innerWidth := width - 4
	innerHeight := height - 2
	snap := m.orch.Session().Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render(snap.DocumentName))
	b.WriteByte('\n')

	for _, w := range snap.Warnings {
		b.WriteString(warningStyle.Width(innerWidth).Render("Warning: " + w))
		b.WriteString("\n\n")
	}

	switch {
	case m.analyzing:
		b.WriteString(m.spinner.View() + " AI is reading the contract...")
	case snap.State != session.StateAnalyzed:
		b.WriteString(helpBarStyle.Render("Not analyzed yet. Press a to analyze."))
	default:
		items := m.currentBucket()
		if len(items) == 0 || m.item >= len(items) {
			b.WriteString(emptyBucketStyle.Render("No risks found"))
			break
		}
		r := items[m.item]
		b.WriteString(severityStyle(r.Severity).Render(strings.ToUpper(r.Severity.String()) + " RISK"))
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render(r.Title))
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Width(innerWidth).Render(r.Explanation))
		if r.RecommendedFix != "" {
			b.WriteString("\n\n")
			b.WriteString(labelStyle.Render("Recommended fix"))
			b.WriteByte('\n')
			b.WriteString(fixStyle.Width(innerWidth).Render(r.RecommendedFix))
		}
	}

	return detailStyle.Width(width).Height(innerHeight).Render(b.String())
}

func (m Model) renderStatusBar() string {
	left := " " + m.orch.Session().Document().Name
	if m.status != "" {
		status := m.status
		if m.statusErr {
			status = errorStyle.Render(status)
		}
		left += "  " + status
	}

	right := "c chat  e email  s save  o open  ? help "
	if m.busy() {
		right = m.spinner.View() + " working  " + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderTranscript(width int) string {
	conv := m.orch.Session().Conversation()
	if len(conv) == 0 && m.pending == "" {
		return helpBarStyle.Render("Ask anything about the contract or the risks on the dashboard.")
	}

	var b strings.Builder
	for _, msg := range conv {
		if msg.Role == model.RoleUser {
			b.WriteString(userMsgStyle.Render("You"))
			b.WriteByte('\n')
			b.WriteString(lipgloss.NewStyle().Width(width).Render(msg.Content))
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(assistantMsgStyle.Render("LexiSafe"))
		b.WriteByte('\n')
		b.WriteString(m.renderMarkdown(msg.Content, width))
		b.WriteString("\n\n")
	}

	if m.pending != "" {
		b.WriteString(userMsgStyle.Render("You"))
		b.WriteByte('\n')
		b.WriteString(lipgloss.NewStyle().Width(width).Render(m.pending))
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + " thinking...")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderMarkdown(text string, width int) string {
	if m.md != nil {
		if out, err := m.md.Render(text); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}

func (m Model) renderChat() string {
	var b strings.Builder
	b.WriteString(modalTitleStyle.Render("Chat with LexiSafe"))
	b.WriteByte('\n')
	b.WriteString(m.chatView.View())
	b.WriteString("\n\n")
	b.WriteString(m.chatInput.View())
	b.WriteByte('\n')
	b.WriteString(helpBarStyle.Render("enter send  pgup/pgdn scroll  esc close"))

	return modalStyle.Width(m.width - 2).Height(m.height - 2).Render(b.String())
}

func (m Model) renderEmail() string {
	var b strings.Builder
	b.WriteString(modalTitleStyle.Render("Negotiation Email Draft"))
	b.WriteByte('\n')

	if m.drafting {
		b.WriteString(m.spinner.View() + " drafting email...")
	} else {
		visible := max(m.height-8, 1)
		end := min(m.emailScroll+visible, len(m.email))
		for i := m.emailScroll; i < end; i++ {
			b.WriteString(m.email[i].render())
			b.WriteByte('\n')
		}
	}

	b.WriteByte('\n')
	b.WriteString(helpBarStyle.Render("↑/↓ scroll  r regenerate  esc close"))

	return modalStyle.Width(m.width - 2).Height(m.height - 2).Render(b.String())
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("lexisafe: Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, binding := range []struct{ key, desc string }{
		{"↑/k", "Previous risk"},
		{"↓/j", "Next risk"},
		{"n/Tab", "Next severity"},
		{"N/S-Tab", "Previous severity"},
		{"a", "Run analysis again"},
		{"c", "Open chat"},
		{"e", "Open email draft"},
		{"s", "Save PDF report"},
		{"o", "Check another file"},
		{"esc", "Close chat or email"},
		{"?", "Toggle this help"},
		{"q", "Quit"},
	} {
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			helpKeyStyle.Width(12).Render(binding.key),
			binding.desc,
		))
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))

	return b.String()
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return string(r) + "…"
}
