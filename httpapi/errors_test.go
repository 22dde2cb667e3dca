package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
)

func TestAsErrorMapsSentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{binarystore.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", binarystore.ErrLoginRateLimited), http.StatusTooManyRequests},
		{binarystore.ErrResetTokenInvalid, http.StatusBadRequest},
		{binarystore.ErrAccountExists, http.StatusConflict},
		{binarystore.ErrForbidden, http.StatusForbidden},
		{binarystore.ErrListingUnsupported, http.StatusNotImplemented},
		{errors.New("boom"), http.StatusInternalServerError},
		{NewError(http.StatusTeapot, "short and stout", nil), http.StatusTeapot},
	}
	for _, tt := range tests {
		require.Equal(t, tt.status, asError(tt.err).Status, tt.err.Error())
	}
}

func TestErrorBodyHidesDetailsInProduction(t *testing.T) {
	e := NewError(http.StatusInternalServerError, "db exploded", errors.New("dial tcp: refused"))

	dev := e.body(false)
	require.Equal(t, genericMessage, dev.Message)
	require.Equal(t, "dial tcp: refused", dev.Details)

	prod := e.body(true)
	require.Equal(t, genericMessage, prod.Message)
	require.Empty(t, prod.Details)
}
