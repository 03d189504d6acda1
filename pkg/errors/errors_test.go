package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestE_CarriesOpAndSentinel(t *testing.T) {
	err := E("search", ErrInvalidArgument, "top_k must be positive, got %d", 0)

	assert.True(t, Is(err, ErrInvalidArgument))
	assert.Equal(t, "search: invalid argument: top_k must be positive, got 0", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not initialized", E("search", ErrNotInitialized, "no index"), http.StatusServiceUnavailable},
		{"wrapped not found", fmt.Errorf("dispatch: %w", ErrNotFound), http.StatusNotFound},
		{"source", fmt.Errorf("fetch: %w", ErrSourceUnavailable), http.StatusBadGateway},
		{"explicit status", New(ErrInternal, http.StatusTeapot, "odd"), http.StatusTeapot},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppError_UnwrapThroughFmt(t *testing.T) {
	base := E("build", ErrConfiguration, "text_fields is empty")
	wrapped := fmt.Errorf("creating index: %w", base)

	var appErr *AppError
	assert.True(t, As(wrapped, &appErr))
	assert.Equal(t, "build", appErr.Op)
	assert.True(t, Is(wrapped, ErrConfiguration))
}
