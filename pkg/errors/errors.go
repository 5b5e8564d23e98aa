// Package errors is the error taxonomy shared by the retrieval core and the
// tool layer. Each sentinel has an HTTP status and a wire code, so the HTTP
// and RPC surfaces report the same failure the same way.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrAmbiguous       = errors.New("ambiguous")
	ErrEmptyCorpus     = errors.New("empty corpus")
	ErrDuplicateID     = errors.New("duplicate document id")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

type class struct {
	sentinel error
	status   int
	code     string
}

// classes is checked in order; the first sentinel err wraps decides.
var classes = []class{
	{ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrAmbiguous, http.StatusConflict, "ambiguous"},
	{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{ErrEmptyCorpus, http.StatusServiceUnavailable, "unavailable"},
	{ErrTimeout, http.StatusServiceUnavailable, "unavailable"},
}

func classify(err error) (class, bool) {
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c, true
		}
	}
	return class{}, false
}

// AppError attaches a caller-facing message and an explicit HTTP status to
// a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// InvalidArgument builds a 400 wrapping ErrInvalidArgument.
func InvalidArgument(format string, args ...any) *AppError {
	return Newf(ErrInvalidArgument, http.StatusBadRequest, format, args...)
}

// HTTPStatusCode prefers an AppError's explicit status, then the sentinel
// class, then 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	if c, ok := classify(err); ok {
		return c.status
	}
	return http.StatusInternalServerError
}

// Code is the stable machine-readable name for err's class, "internal"
// when err matches no sentinel.
func Code(err error) string {
	if c, ok := classify(err); ok {
		return c.code
	}
	return "internal"
}
