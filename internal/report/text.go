package report

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/sprite-ai/lexisafe/internal/model"
)

// Format is an output format for Write.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatMarkdown, FormatHTML, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json, markdown, html, or pdf)", s)
	}
}

// Result is what a report describes.
type Result struct {
	DocumentName string
	Risks        model.RiskCollection
	Warnings     []string
	Model        string
}

// Write renders r to w in the given format.
func Write(w io.Writer, format Format, r Result) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatMarkdown:
		return writeMarkdown(w, r)
	case FormatHTML:
		return writeHTML(w, r)
	case FormatPDF:
		return WritePDF(w, r.DocumentName, r.Risks)
	default:
		return writeText(w, r)
	}
}

// ExitCode maps a result to a process exit code: 2 when any High risk was
// found, 1 when the worst is Medium, 0 otherwise.
func ExitCode(risks model.RiskCollection) int {
	maxSev, ok := risks.MaxSeverity()
	switch {
	case !ok:
		return 0
	case maxSev >= model.SeverityHigh:
		return 2
	case maxSev >= model.SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Icon is a short marker for a severity in plain text output.
func Icon(s model.Severity) string {
	switch s {
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "! "
	default:
		return "- "
	}
}

func writeText(w io.Writer, r Result) error {
	fmt.Fprintf(w, "Contract: %s\n", r.DocumentName)
	fmt.Fprintf(w, "Analysis: %s\n", r.Risks.Summary())
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warn)
	}
	fmt.Fprintln(w)

	for _, sev := range model.Severities {
		items := r.Risks.Bucket(sev)
		fmt.Fprintf(w, "%s (%d)\n", sev.Label(), len(items))
		if len(items) == 0 {
			fmt.Fprintln(w, "    No risks found")
		}
		for _, it := range items {
			fmt.Fprintf(w, "  %s %s: %s\n", Icon(sev), it.Title, it.Explanation)
			if it.RecommendedFix != "" {
				fmt.Fprintf(w, "     Fix: %s\n", it.RecommendedFix)
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeJSON(w io.Writer, r Result) error {
	type jsonOutput struct {
		Document    string               `json:"document"`
		Summary     string               `json:"summary"`
		MaxSeverity string               `json:"max_severity,omitempty"`
		Total       int                  `json:"total"`
		Model       string               `json:"model,omitempty"`
		Warnings    []string             `json:"warnings,omitempty"`
		Risks       model.RiskCollection `json:"risks"`
	}

	out := jsonOutput{
		Document: r.DocumentName,
		Summary:  r.Risks.Summary(),
		Total:    r.Risks.Total(),
		Model:    r.Model,
		Warnings: r.Warnings,
		Risks:    NonNil(r.Risks),
	}
	if s, ok := r.Risks.MaxSeverity(); ok {
		out.MaxSeverity = s.String()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// NonNil returns c with empty buckets as empty slices, so they encode as [].
func NonNil(c model.RiskCollection) model.RiskCollection {
	if c.High == nil {
		c.High = []model.RiskRecord{}
	}
	if c.Medium == nil {
		c.Medium = []model.RiskRecord{}
	}
	if c.Low == nil {
		c.Low = []model.RiskRecord{}
	}
	return c
}

func writeMarkdown(w io.Writer, r Result) error {
	fmt.Fprintf(w, "## Risk Assessment: %s\n\n", r.DocumentName)
	fmt.Fprintf(w, "**Summary:** %s\n\n", r.Risks.Summary())
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "> Warning: %s\n\n", warn)
	}

	if r.Risks.IsEmpty() {
		fmt.Fprintln(w, "No risks found.")
		return nil
	}

	fmt.Fprintln(w, "| Severity | Clause | Explanation | Recommended Fix |")
	fmt.Fprintln(w, "|----------|--------|-------------|-----------------|")
	for _, it := range r.Risks.All() {
		fmt.Fprintf(w, "| %s | %s | %s | %s |\n", it.Severity, mdCell(it.Title), mdCell(it.Explanation), mdCell(it.RecommendedFix))
	}
	return nil
}

func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func writeHTML(w io.Writer, r Result) error {
	h, m, l := r.Risks.Counts()

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>LexiSafe Risk Assessment</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 900px; margin: 40px auto; padding: 0 20px; background: #282a36; color: #f8f8f2; }
  h1 { color: #bd93f9; }
  .summary { background: #343746; padding: 16px; border-radius: 8px; margin-bottom: 24px; }
  .summary span { margin-right: 24px; }
  .sev-high { color: #ff5555; font-weight: bold; }
  .sev-medium { color: #ffb86c; }
  .sev-low { color: #50fa7b; }
  .warn { color: #f1fa8c; }
  table { width: 100%%; border-collapse: collapse; }
  th { text-align: left; padding: 8px 12px; background: #44475a; color: #f8f8f2; }
  td { padding: 8px 12px; border-bottom: 1px solid #44475a; vertical-align: top; }
  tr:hover { background: #343746; }
  .fix { color: #8be9fd; }
  .clean { color: #50fa7b; font-size: 1.2em; }
  footer { margin-top: 32px; color: #6272a4; font-size: 0.85em; }
</style>
</head>
<body>
<h1>Risk Assessment: %s</h1>
<div class="summary">
  <span class="sev-high">%d Critical Risks</span>
  <span class="sev-medium">%d Warnings</span>
  <span class="sev-low">%d Safe Clauses</span>
</div>
`, html.EscapeString(r.DocumentName), h, m, l)

	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "<p class=\"warn\">Warning: %s</p>\n", html.EscapeString(warn))
	}

	if r.Risks.IsEmpty() {
		fmt.Fprintln(w, `<p class="clean">No risks found.</p>`)
	} else {
		fmt.Fprintln(w, `<table>
<thead><tr><th>Severity</th><th>Clause</th><th>Explanation</th><th>Recommended Fix</th></tr></thead>
<tbody>`)
		for _, it := range r.Risks.All() {
			fmt.Fprintf(w, "<tr><td class=\"sev-%s\">%s</td><td>%s</td><td>%s</td><td class=\"fix\">%s</td></tr>\n",
				strings.ToLower(it.Severity.String()), it.Severity,
				html.EscapeString(it.Title), html.EscapeString(it.Explanation), html.EscapeString(it.RecommendedFix))
		}
		fmt.Fprintln(w, `</tbody></table>`)
	}

	fmt.Fprintln(w, `<footer>Generated by <strong>LexiSafe</strong></footer>
</body>
</html>`)
	return nil
}
