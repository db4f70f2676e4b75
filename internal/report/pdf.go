// Package report renders analyzed contracts for people: a paginated PDF for
// download and text, JSON, Markdown, or HTML for terminals and pipelines.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/sprite-ai/lexisafe/internal/model"
)

// ReportTitle heads every page of the PDF report.
const ReportTitle = "LexiSafe AI - Risk Assessment Report"

type rgb struct{ r, g, b int }

type section struct {
	title    string
	severity model.Severity
	color    rgb
}

var sections = []section{
	{"Critical Risks (High Priority)", model.SeverityHigh, rgb{255, 75, 75}},
	{"Warnings (Medium Priority)", model.SeverityMedium, rgb{255, 165, 0}},
	{"Safe Clauses", model.SeverityLow, rgb{0, 180, 100}},
}

// WritePDF renders the risk report for documentName as a PDF to w. Empty
// severity sections are omitted.
func WritePDF(w io.Writer, documentName string, risks model.RiskCollection) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(ReportTitle, false)
	pdf.SetAutoPageBreak(true, 15)

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.SetTextColor(50, 50, 200)
		pdf.CellFormat(0, 10, ReportTitle, "", 1, "C", false, 0, "")
		pdf.Ln(5)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, latin1("Contract Analyzed: "+documentName), "", 1, "L", false, 0, "")
	pdf.Ln(5)

	h, m, l := risks.Counts()
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 10, fmt.Sprintf("Summary: %d Critical Risks, %d Warnings, %d Safe Clauses", h, m, l), "", 1, "L", false, 0, "")
	pdf.Ln(5)

	for _, s := range sections {
		items := risks.Bucket(s.severity)
		if len(items) == 0 {
			continue
		}

		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetTextColor(s.color.r, s.color.g, s.color.b)
		pdf.CellFormat(0, 10, latin1(strings.ToUpper(s.title)), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)

		for _, item := range items {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(0, 8, latin1("- "+item.Title), "", 1, "L", false, 0, "")

			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, latin1("Analysis: "+item.Explanation), "", "L", false)

			pdf.SetFont("Helvetica", "I", 9)
			pdf.SetTextColor(80, 80, 80)
			pdf.MultiCell(0, 5, latin1("Recommendation: "+item.RecommendedFix), "", "L", false)

			pdf.Ln(3)
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.Ln(5)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("rendering pdf: %w", err)
	}
	return nil
}

// PDF renders the report and returns the bytes.
func PDF(documentName string, risks model.RiskCollection) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, documentName, risks); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
