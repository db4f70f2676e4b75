package assistant

import (
	"fmt"
	"strings"
	"text/template"
)

var analysisTmpl = template.Must(template.New("analysis").Parse(`You are an expert legal risk analyzer for commercial contracts.
Analyze the following contract text strictly.

Identify the key clauses that might be risky for the signing party (for example data privacy,
termination, indemnity, liability, jurisdiction, payment terms). Also list clauses that are
standard and safe.

For each clause output exactly one record in this format:
Clause Title | Risk Level | Simple Explanation | Recommended Fix

Rules:
- Risk Level must be one of: High, Medium, Low.
- Separate records with ###.
- Do not use the | character anywhere except as the field separator.
- Do not add headings, numbering, or any text outside the records.

Example:
Unilateral Termination | High | The vendor may terminate at any time without notice. | Require 30 days written notice for either party.###Governing Law | Low | Disputes are heard in the customer's home courts. | No change needed.

Contract text:
{{.Text}}
`))

var chatTmpl = template.Must(template.New("chat").Parse(`You are LexiSafe, an intelligent legal assistant.

1. THE CONTRACT TEXT:
{{.Contract}}

2. RISKS ALREADY DETECTED BY SYSTEM (Dashboard Data):
{{.Dashboard}}

3. CONVERSATION HISTORY:
{{.History}}

USER QUESTION:
{{.Question}}

INSTRUCTIONS:
- Explain the contract and the risks listed in the Dashboard Data.
- If the user asks about risks, refer to the Dashboard Data above.
- Do not contradict the system's analysis.
- Keep answers short, professional, and easy to understand.
`))

var emailTmpl = template.Must(template.New("email").Parse(`You are a professional corporate lawyer representing a client.
Draft a polite but firm negotiation email to the counterparty regarding the contract: "{{.ContractName}}".

The following issues were identified in the contract:
{{.Issues}}
INSTRUCTIONS:
- Subject line: professional and clear.
- Tone: collaborative and professional, yet firm on protecting the client's interests.
- Structure:
  1. Opening that references the contract review.
  2. The ask: list the clauses that need changes and briefly explain why, using the proposed fixes.
  3. Closing that looks forward to finalizing.
- Do not use placeholders like [Your Name]; sign off as "Legal Team".
`))

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}
