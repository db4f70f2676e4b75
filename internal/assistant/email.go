package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/sprite-ai/lexisafe/internal/llm"
	"github.com/sprite-ai/lexisafe/internal/model"
)

// ReadyToSignEmail is sent when nothing needs negotiating.
const ReadyToSignEmail = "Subject: Contract Review - Ready to Sign\n\n" +
	"Dear Team,\n\n" +
	"We have reviewed the contract and found no significant risks. We are ready to proceed.\n\n" +
	"Best regards,\nLegal Team"

// EmailErrorPrefix marks a failed draft.
const EmailErrorPrefix = "Error generating email: "

// EmailDrafter writes negotiation emails for High and Medium risks.
type EmailDrafter struct {
	gen         llm.Generator
	temperature float64
}

// NewEmailDrafter creates an EmailDrafter.
func NewEmailDrafter(gen llm.Generator, temperature float64) *EmailDrafter {
	return &EmailDrafter{gen: gen, temperature: temperature}
}

// Draft returns an email for contractName. With no High or Medium risks it
// returns ReadyToSignEmail without calling the model.
func (d *EmailDrafter) Draft(ctx context.Context, contractName string, risks model.RiskCollection) (string, error) {
	issues := IssueSummary(risks)
	if issues == "" {
		return ReadyToSignEmail, nil
	}

	prompt, err := render(emailTmpl, struct {
		ContractName string
		Issues       string
	}{contractName, issues})
	if err != nil {
		return EmailErrorPrefix + err.Error(), err
	}

	email, err := d.gen.Generate(ctx, prompt, llm.Options{Temperature: d.temperature})
	if err != nil {
		err = transportError("email", err)
		return EmailErrorPrefix + err.Error(), err
	}
	return strings.TrimSpace(email), nil
}

// IssueSummary lists High risks as critical issues and Medium risks as
// concerns, one line each. Low risks are omitted.
func IssueSummary(risks model.RiskCollection) string {
	var b strings.Builder
	for _, r := range risks.High {
		fmt.Fprintf(&b, "- Critical Issue: %s. Reason: %s. Proposed Fix: %s\n", r.Title, r.Explanation, r.RecommendedFix)
	}
	for _, r := range risks.Medium {
		fmt.Fprintf(&b, "- Concern: %s. Reason: %s. Proposed Fix: %s\n", r.Title, r.Explanation, r.RecommendedFix)
	}
	return b.String()
}
