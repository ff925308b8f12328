package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"store unreachable", fmt.Errorf("find persons: %w", ErrStoreUnreachable), http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"app error wins", New(ErrInternal, http.StatusTeapot, "brew"), http.StatusTeapot},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "query too long: %d", 4096)
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected AppError to unwrap to its sentinel")
	}
	if err.Error() != "invalid input: query too long: 4096" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(fmt.Errorf("wrap: %w", ErrStoreUnreachable)) {
		t.Error("store unreachable should be transient")
	}
	if IsTransient(ErrInvalidInput) {
		t.Error("invalid input should not be transient")
	}
}
