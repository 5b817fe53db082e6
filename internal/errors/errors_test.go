package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", fmt.Errorf("%w: email is invalid", ErrValidation), http.StatusBadRequest, CodeValidation},
		{"mismatch", ErrPasswordMismatch, http.StatusBadRequest, CodePasswordMismatch},
		{"credentials", ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredential},
		{"auth required", ErrAuthenticationRequired, http.StatusUnauthorized, CodeAuthRequired},
		{"conflict", ErrUserAlreadyExists, http.StatusConflict, CodeUserExists},
		{"rate limited", ErrTooManyAttempts, http.StatusTooManyRequests, CodeRateLimited},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.code, httpErr.Code)
		})
	}
}

func TestMapErrorToHTTP_HidesInternalDetail(t *testing.T) {
	httpErr := MapErrorToHTTP(errors.New("dial tcp 10.0.0.3:5432: refused"))
	assert.Equal(t, "internal server error", httpErr.ToErrorResponse().Error)
}

func TestMapErrorToHTTP_ValidationKeepsFieldDetail(t *testing.T) {
	httpErr := MapErrorToHTTP(fmt.Errorf("%w: firstName is required", ErrValidation))
	assert.Contains(t, httpErr.Message, "firstName is required")
}
