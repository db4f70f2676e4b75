package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/sprite-ai/lexisafe/internal/llm"
	"github.com/sprite-ai/lexisafe/internal/model"
)

// ChatRequest is one question about an analyzed contract.
type ChatRequest struct {
	Question string
	Contract string
	Risks    model.RiskCollection
	History  []model.Message
}

// ChatResponder answers questions about a contract, grounded in the risks
// already shown on the dashboard.
type ChatResponder struct {
	gen         llm.Generator
	temperature float64
	maxChars    int
}

// NewChatResponder creates a ChatResponder. The contract is truncated to
// maxChars in every prompt.
func NewChatResponder(gen llm.Generator, temperature float64, maxChars int) *ChatResponder {
	return &ChatResponder{gen: gen, temperature: temperature, maxChars: maxChars}
}

// Respond returns the assistant's answer. On failure the returned text is a
// displayable error message to append to the transcript in place of an answer.
func (c *ChatResponder) Respond(ctx context.Context, req ChatRequest) (string, error) {
	prompt, err := render(chatTmpl, struct {
		Contract  string
		Dashboard string
		History   string
		Question  string
	}{
		Contract:  Truncate(req.Contract, c.maxChars),
		Dashboard: DashboardSummary(req.Risks),
		History:   FormatHistory(req.History),
		Question:  req.Question,
	})
	if err != nil {
		return DisplayError(err), err
	}

	answer, err := c.gen.Generate(ctx, prompt, llm.Options{Temperature: c.temperature})
	if err != nil {
		err = transportError("chat", err)
		return DisplayError(err), err
	}
	return strings.TrimSpace(answer), nil
}

// DashboardSummary lists detected risks, most severe first.
func DashboardSummary(risks model.RiskCollection) string {
	if risks.IsEmpty() {
		return "No risks detected."
	}
	var b strings.Builder
	for _, r := range risks.All() {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", r.Severity, r.Title, r.Explanation)
	}
	return b.String()
}

// FormatHistory renders prior turns one per line.
func FormatHistory(history []model.Message) string {
	if len(history) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
