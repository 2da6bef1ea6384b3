package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := fmt.Errorf("outer: %w", Wrap(CodeStorageFailure, cause, "insert job"))

	assert.Equal(t, CodeStorageFailure, CodeOf(err))
	assert.True(t, stdErrors.Is(err, cause))
	assert.True(t, stdErrors.Is(err, New(CodeStorageFailure, "")))
	assert.False(t, stdErrors.Is(err, New(CodeQueueFailure, "")))
	assert.True(t, RetryableError(err))
	assert.Equal(t, SeverityCritical, SeverityOf(err))
	assert.Contains(t, err.Error(), "[STORAGE_FAILURE] insert job: connection refused")
}

func TestRegisterAndOverrides(t *testing.T) {
	const code Code = "TEST_REGISTERED"
	Register(code, Attributes{Message: "registered", Severity: SeverityWarning, Retryable: true})

	err := New(code, "", WithRetryable(false), WithMetadata("agent_id", "x"))
	require.Equal(t, "registered", err.Message())
	require.False(t, err.Retryable())
	require.Equal(t, SeverityWarning, err.Severity())
	require.Equal(t, map[string]string{"agent_id": "x"}, err.Metadata())
}

func TestUnknownFallbacks(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(stdErrors.New("plain")))
	assert.Equal(t, AttributesOf(CodeUnknown), AttributesOf("NOPE"))
	var nilErr *Error
	assert.Equal(t, "", nilErr.Error())
	assert.Equal(t, CodeUnknown, nilErr.Code())
}
