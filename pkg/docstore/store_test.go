package docstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/policyops/regamend/pkg/errors"
)

func TestIsSupported(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	assert.True(t, s.IsSupported("policy.docx"))
	assert.True(t, s.IsSupported("policy.DOC"))
	assert.True(t, s.IsSupported("policy.pdf"))
	assert.True(t, s.IsSupported("policy.txt"))
	assert.False(t, s.IsSupported("policy.xlsx"))
	assert.False(t, s.IsSupported("policy"))
}

func TestReadPolicyDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.txt"), []byte("Chapter 1 Scope\nApplies to all."), 0o644))

	s := NewStore(dir, nil)
	text, err := s.ReadPolicyDocument(context.Background(), "policy.txt")
	require.NoError(t, err)
	assert.Equal(t, "Chapter 1 Scope\nApplies to all.", text)
}

func TestReadPolicyDocumentRejectsTraversal(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	_, err := s.ReadPolicyDocument(context.Background(), "../secrets.txt")
	assert.True(t, apperrors.IsValidation(err))
}

func TestReadPolicyDocumentNotFound(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	_, err := s.ReadPolicyDocument(context.Background(), "missing.txt")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListPolicyDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.docx"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.csv"), []byte("c"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	s := NewStore(dir, nil)
	names, err := s.ListPolicyDocuments()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b.docx"}, names)
}

func TestExtractDocumentUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b"), 0o644))

	s := NewStore(dir, nil)
	_, err := s.ExtractDocument(context.Background(), path)
	assert.True(t, apperrors.IsValidation(err))
}
