// Package assistant turns contract text and detected risks into model prompts
// and back: the risk extraction call, contract chat, and negotiation emails.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/sprite-ai/lexisafe/internal/llm"
)

// Default generation settings.
const (
	DefaultMaxChars            = 25000
	DefaultAnalysisTemperature = 0.3
	DefaultChatTemperature     = 0.3
	DefaultEmailTemperature    = 0.7
)

// DisplayErrorPrefix marks model failures shown in place of an answer.
const DisplayErrorPrefix = "⚠️ AI Error: "

// DisplayError renders err as text that can stand in for a model response.
func DisplayError(err error) string {
	return DisplayErrorPrefix + err.Error()
}

// Truncate cuts text to at most maxChars characters on a rune boundary.
// A non-positive maxChars leaves text unchanged.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}

// transportError makes sure err is recognizable as a transport failure.
func transportError(op string, err error) error {
	if errors.Is(err, llm.ErrTransport) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, llm.ErrTransport, err)
}

// RiskClient asks the model to list contract risks in the delimiter protocol
// understood by analysis.Parse.
type RiskClient struct {
	gen         llm.Generator
	temperature float64
}

// NewRiskClient creates a RiskClient.
func NewRiskClient(gen llm.Generator, temperature float64) *RiskClient {
	return &RiskClient{gen: gen, temperature: temperature}
}

// Analyze sends one request with text truncated to maxChars and returns the
// raw response. On failure the returned text is a displayable error message
// and err wraps llm.ErrTransport, so the text can still be parsed.
func (c *RiskClient) Analyze(ctx context.Context, text string, maxChars int) (string, error) {
	prompt, err := render(analysisTmpl, struct{ Text string }{Truncate(text, maxChars)})
	if err != nil {
		return DisplayError(err), err
	}

	raw, err := c.gen.Generate(ctx, prompt, llm.Options{Temperature: c.temperature})
	if err != nil {
		err = transportError("analyze", err)
		return DisplayError(err), err
	}
	return raw, nil
}
