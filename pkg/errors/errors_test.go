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
		{"invalid argument", ErrInvalidArgument, http.StatusBadRequest},
		{"wrapped invalid argument", fmt.Errorf("search: %w", ErrInvalidArgument), http.StatusBadRequest},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"ambiguous", ErrAmbiguous, http.StatusConflict},
		{"empty corpus", ErrEmptyCorpus, http.StatusServiceUnavailable},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"app error wins", New(ErrNotFound, http.StatusTeapot, "odd"), http.StatusTeapot},
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

func TestInvalidArgumentUnwraps(t *testing.T) {
	err := InvalidArgument("top_k must be within [%d, %d]", 1, 20)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err.Error() != "invalid argument: top_k must be within [1, 20]" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{InvalidArgument("bad filter"), "invalid_argument"},
		{fmt.Errorf("glossary: %w", ErrNotFound), "not_found"},
		{ErrAmbiguous, "ambiguous"},
		{ErrRateLimited, "rate_limited"},
		{ErrEmptyCorpus, "unavailable"},
		{fmt.Errorf("health-check: %w", ErrTimeout), "unavailable"},
		{ErrDuplicateID, "internal"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestAppErrorWithoutStatusFallsBackToClass(t *testing.T) {
	err := &AppError{Err: ErrNotFound, Message: "no such term"}
	if got := HTTPStatusCode(err); got != http.StatusNotFound {
		t.Errorf("HTTPStatusCode() = %d, want 404", got)
	}
}
