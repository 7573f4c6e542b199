package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeExecutionErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewNodeExecutionError("Http1", "httpRequest", "exec-1", 1, "request failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Http1")
	assert.True(t, IsRetryable(err))
}

func TestTransportErrorIsRetryable(t *testing.T) {
	err := NewTransportError("Http1", "exec-1", "http://example.com", 1, errors.New("dial tcp: timeout"))
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "Http1")
}

func TestValidationErrorNotRetryable(t *testing.T) {
	err := NewValidationError("url", "required")
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "url")
}

func TestCancellationError(t *testing.T) {
	err := NewCancellationError("exec-9")
	assert.Contains(t, err.Error(), "exec-9")
}

func TestUnknownNodeTypeError(t *testing.T) {
	err := NewUnknownNodeTypeError("doesNotExist")
	assert.Contains(t, err.Error(), "doesNotExist")
}
