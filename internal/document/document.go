// Package document handles uploaded contracts: identity and text extraction.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrorPrefix marks extraction output that is an error message rather than
// document text. Extraction failures are reported this way so callers can show
// a warning and carry on.
const ErrorPrefix = "Error reading PDF: "

// ErrUnreadable is returned by extractors when the document cannot be opened.
var ErrUnreadable = errors.New("document unreadable")

// IdentityMode selects how two uploads are judged to be the same document.
type IdentityMode string

const (
	// IdentityContent compares a SHA-256 of the document bytes.
	IdentityContent IdentityMode = "content"
	// IdentityFilename compares file names only.
	IdentityFilename IdentityMode = "filename"
)

// ParseIdentityMode validates a configured identity mode. Empty means content.
func ParseIdentityMode(s string) (IdentityMode, error) {
	switch IdentityMode(strings.ToLower(s)) {
	case "", IdentityContent:
		return IdentityContent, nil
	case IdentityFilename:
		return IdentityFilename, nil
	default:
		return "", fmt.Errorf("unknown identity mode %q (want content or filename)", s)
	}
}

// Document is an uploaded contract.
type Document struct {
	Name    string // display name, usually the base file name
	ID      string // identity used to detect a changed upload
	Content []byte
}

// New builds a Document and computes its identity.
func New(name string, content []byte, mode IdentityMode) Document {
	return Document{
		Name:    name,
		ID:      Identity(name, content, mode),
		Content: content,
	}
}

// Load reads a document from disk.
func Load(path string, mode IdentityMode) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return New(filepath.Base(path), data, mode), nil
}

// Identity derives the document identity for the given mode.
func Identity(name string, content []byte, mode IdentityMode) string {
	if mode == IdentityFilename {
		return name
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Extractor converts a binary document into plain text.
type Extractor interface {
	// Extract returns the document text with pages in order, separated by
	// newlines. Pages without text contribute nothing.
	Extract(ctx context.Context, content []byte) (string, error)
}

// ExtractText runs ex and folds a failure into sentinel-prefixed text, so the
// result is always displayable. Cancellation of ctx is not a document failure
// and is returned as an error.
func ExtractText(ctx context.Context, ex Extractor, content []byte) (string, error) {
	text, err := ex.Extract(ctx, content)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return ErrorPrefix + err.Error(), nil
	}
	return text, nil
}

// IsSoftError reports whether text is an extraction failure message.
func IsSoftError(text string) bool {
	return strings.HasPrefix(text, ErrorPrefix)
}

// joinPages concatenates non-empty page texts with newlines.
func joinPages(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p)
	}
	return b.String()
}

// Backend names an extractor implementation.
type Backend string

const (
	BackendNative    Backend = "native"
	BackendPDFToText Backend = "pdftotext"
)

// NewExtractor returns the extractor for a configured backend.
func NewExtractor(backend string) (Extractor, error) {
	switch Backend(strings.ToLower(backend)) {
	case "", BackendNative:
		return NewPDFExtractor(), nil
	case BackendPDFToText:
		if err := CheckPDFToText(); err != nil {
			return nil, err
		}
		return NewPDFToTextExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown extractor backend %q", backend)
	}
}
