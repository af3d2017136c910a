package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusCode(NewValidation("bad input")))
	assert.Equal(t, http.StatusNotFound, StatusCode(NewNotFound("missing")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(NewInternal("boom")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("plain")))
}

func TestWrappedErrorsKeepClassification(t *testing.T) {
	cause := NewNotFound("document %s not found", "a.docx")
	wrapped := fmt.Errorf("loading context: %w", cause)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, http.StatusNotFound, StatusCode(wrapped))
}

func TestWrapInternalPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapInternal(cause, "vector index unreachable")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "vector index unreachable")
	assert.Contains(t, err.Error(), "connection refused")
}
