package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrPDFToTextNotFound indicates the pdftotext binary is not on PATH.
var ErrPDFToTextNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner executes an external command with stdin.
type CommandRunner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// PDFToTextExtractor shells out to poppler's pdftotext.
type PDFToTextExtractor struct {
	runner CommandRunner
}

// NewPDFToTextExtractor creates an extractor using the system pdftotext.
func NewPDFToTextExtractor() *PDFToTextExtractor {
	return &PDFToTextExtractor{runner: execRunner{}}
}

// NewPDFToTextExtractorWithRunner creates an extractor with a custom runner.
func NewPDFToTextExtractorWithRunner(runner CommandRunner) *PDFToTextExtractor {
	return &PDFToTextExtractor{runner: runner}
}

// CheckPDFToText reports whether pdftotext is installed.
func CheckPDFToText() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToTextNotFound
	}
	return nil
}

// Extract implements Extractor. pdftotext separates pages with form feeds.
func (e *PDFToTextExtractor) Extract(ctx context.Context, content []byte) (string, error) {
	out, err := e.runner.Run(ctx, content, "pdftotext", "-layout", "-enc", "UTF-8", "-", "-")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return joinPages(strings.Split(string(out), "\f")), nil
}
