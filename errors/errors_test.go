package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapToHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   Code
	}{
		{"validation", fmt.Errorf("%w: empty message", ErrValidation), http.StatusBadRequest, CodeValidation},
		{"weak password", ErrInvalidPassword, http.StatusBadRequest, CodeValidation},
		{"not authenticated", ErrNotAuthenticated, http.StatusUnauthorized, CodeNotAuthenticated},
		{"bad credentials", ErrInvalidCredentials, http.StatusUnauthorized, CodeNotAuthenticated},
		{"unknown user", ErrUserNotFound, http.StatusNotFound, CodeNotFound},
		{"duplicate user", ErrUserAlreadyExists, http.StatusConflict, CodeConflict},
		{"upload", fmt.Errorf("%w: disk full", ErrUploadFailed), http.StatusBadGateway, CodeUploadFailed},
		{"store", fmt.Errorf("%w: append: boom", ErrStoreUnavailable), http.StatusServiceUnavailable, CodeStoreUnavailable},
		{"anything else", fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			status, code := MapToHTTPStatus(tt.err)
			req.Equal(tt.status, status)
			req.Equal(tt.code, code)
		})
	}
}

func TestIsPushFailure(t *testing.T) {
	req := require.New(t)
	req.True(IsPushFailure(ErrSessionClosed))
	req.True(IsPushFailure(fmt.Errorf("session 42: %w", ErrSlowConsumer)))
	req.False(IsPushFailure(ErrStoreUnavailable))
}
