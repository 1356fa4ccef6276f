package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ErrorFormat(t *testing.T) {
	err := Validation("manifest has neither globs nor files", nil)
	assert.Equal(t, "[ERR_VALIDATION] manifest has neither globs nor files", err.Error())

	wrapped := Fetch("GET https://example.com/doc.md", stderrors.New("connection refused"))
	assert.Contains(t, wrapped.Error(), "ERR_FETCH")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Store("replace chunks", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestError_IsMatchesByCode(t *testing.T) {
	a := Fetch("first", nil)
	b := Fetch("second", nil)

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, Validation("other", nil))
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"not found", NotFound("no such collection"), CategoryNotFound},
		{"validation", Validation("bad manifest", nil), CategoryValidation},
		{"fetch", Fetch("timeout", nil), CategoryFetch},
		{"store", Store("tx failed", nil), CategoryStore},
		{"provider", Provider("embed failed", nil), CategoryProvider},
		{"wrapped", fmt.Errorf("sync: %w", Fetch("timeout", nil)), CategoryFetch},
		{"plain error", stderrors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCategory(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Fetch("timeout", nil)))
	assert.True(t, IsRetryable(Provider("embed failed", nil)))
	assert.False(t, IsRetryable(Validation("bad manifest", nil)))
	assert.False(t, IsRetryable(Store("tx failed", nil)))
	assert.False(t, IsRetryable(nil))
}

func TestCategoryHelpers(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("gone")))
	assert.False(t, IsNotFound(Store("tx failed", nil)))
	assert.True(t, IsValidation(fmt.Errorf("outer: %w", Validation("bad", nil))))
}
