package tui

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

// token is a highlighted chunk of text.
type token struct {
	Text  string
	Color string // hex color, empty for default
}

// highlightedLine is one display line of highlighted tokens.
type highlightedLine []token

func (hl highlightedLine) plain() string {
	var b strings.Builder
	for _, t := range hl {
		b.WriteString(t.Text)
	}
	return b.String()
}

func (hl highlightedLine) render() string {
	var b strings.Builder
	for _, t := range hl {
		if t.Color == "" {
			b.WriteString(t.Text)
			continue
		}
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color)).Render(t.Text))
	}
	return b.String()
}

// highlightMarkdown tokenizes text with the markdown lexer, returning one
// highlightedLine per input line. Email drafts are markdown-ish: a subject
// line, emphasis, and bullet lists.
func highlightMarkdown(text string) []highlightedLine {
	lines := strings.Split(text, "\n")

	lexer := lexers.Get("markdown")
	if lexer == nil {
		return plainLines(lines)
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return plainLines(lines)
	}

	style := styles.Get("dracula")
	if style == nil {
		style = styles.Fallback
	}

	result := make([]highlightedLine, 0, len(lines))
	var current highlightedLine

	for _, tok := range iterator.Tokens() {
		// Tokens may span lines.
		parts := strings.Split(tok.Value, "\n")
		for i, part := range parts {
			if i > 0 {
				result = append(result, current)
				current = nil
			}
			if part != "" {
				current = append(current, token{Text: part, Color: tokenColor(style, tok.Type)})
			}
		}
	}
	result = append(result, current)

	for len(result) < len(lines) {
		result = append(result, highlightedLine{})
	}
	return result[:len(lines)]
}

func plainLines(lines []string) []highlightedLine {
	result := make([]highlightedLine, len(lines))
	for i, line := range lines {
		result[i] = highlightedLine{{Text: line}}
	}
	return result
}

func tokenColor(style *chroma.Style, tt chroma.TokenType) string {
	entry := style.Get(tt)
	if entry.Colour.IsSet() {
		return entry.Colour.String()
	}
	return ""
}
