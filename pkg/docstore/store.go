// Package docstore reads word-processing documents from disk and extracts
// their plain text, transparently converting the legacy binary format when a
// LibreOffice install is available.
package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	apperrors "github.com/policyops/regamend/pkg/errors"
)

// Store reads policy and regulation documents from the configured
// directories. It is safe for concurrent use; all state is immutable after
// construction.
type Store struct {
	policyDir    string
	sofficePaths []string
	logger       *slog.Logger
}

// NewStore creates a document store rooted at policyDir.
func NewStore(policyDir string, sofficePaths []string) *Store {
	return &Store{
		policyDir:    policyDir,
		sofficePaths: sofficePaths,
		logger:       slog.Default().With("component", "docstore"),
	}
}

// IsSupported reports whether the file extension is a readable format.
func (s *Store) IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx", ".doc", ".pdf", ".txt":
		return true
	}
	return false
}

// ExtractDocument extracts the structured content of a document at an
// absolute or working-directory-relative path. Legacy .doc files are
// converted to .docx first and the temporary artifact is removed afterward.
func (s *Store) ExtractDocument(ctx context.Context, path string) (*Extracted, error) {
	if needsConversion(path) {
		converted, err := convertDocToDocx(ctx, s.sofficePaths, path, s.logger)
		if err != nil {
			return nil, apperrors.WrapInternal(err, "failed to convert legacy document %s", filepath.Base(path))
		}
		defer cleanupConverted(converted, s.logger)
		path = converted
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open document: %w", err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat document: %w", err)
		}
		return ParseDocx(f, info.Size())

	case ".pdf":
		text, err := s.extractPDF(path)
		if err != nil {
			return nil, err
		}
		return &Extracted{Text: text}, nil

	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
		return &Extracted{Text: string(data)}, nil
	}

	return nil, apperrors.NewValidation("unsupported document format: %s", filepath.Ext(path))
}

// ExtractText returns the plain text of a document.
func (s *Store) ExtractText(ctx context.Context, path string) (string, error) {
	doc, err := s.ExtractDocument(ctx, path)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// ReadPolicyDocument returns the full plain text of a policy document
// addressed by its display filename. Used by the context assembler to build
// full-document prompts.
func (s *Store) ReadPolicyDocument(ctx context.Context, name string) (string, error) {
	// Reject traversal; names come from index metadata but may echo user input.
	if name != filepath.Base(name) {
		return "", apperrors.NewValidation("invalid document name %q", name)
	}
	path := filepath.Join(s.policyDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", apperrors.NewNotFound("policy document %s not found", name)
	}
	return s.ExtractText(ctx, path)
}

// ListPolicyDocuments returns the names of all supported documents in the
// policy directory.
func (s *Store) ListPolicyDocuments() ([]string, error) {
	entries, err := os.ReadDir(s.policyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !s.IsSupported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *Store) extractPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat PDF: %w", err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			s.logger.Warn("failed to extract text from page", "page", i, "error", err)
			continue
		}
		text.WriteString(content)
		text.WriteString("\n")
	}

	return text.String(), nil
}
