package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed completion call.
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindServer     ErrorKind = "server"
	KindBadRequest ErrorKind = "bad_request"
	KindEmpty      ErrorKind = "empty"
)

var errEmptyCompletion = errors.New("completion contained no text")

// RemoteError is returned by completers for any failure of the remote call.
type RemoteError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s error: %v", e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// UserMessage is the short explanation shown in the overlay.
func (e *RemoteError) UserMessage() string {
	switch e.Kind {
	case KindAuth:
		return "the API key was rejected"
	case KindRateLimit:
		return "rate limited by the AI service, will retry on the next cycle"
	case KindServer:
		return "the AI service is unavailable right now"
	case KindBadRequest:
		return "the AI service rejected the request"
	case KindEmpty:
		return "the AI returned an empty reply"
	default:
		return "could not reach the AI service"
	}
}

// IsRemoteError reports whether err is, or wraps, a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// UserMessage renders any completion failure as text for the overlay.
func UserMessage(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return "Error analyzing game state: " + re.UserMessage()
	}
	return "Error analyzing game state: " + err.Error()
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		return KindBadRequest
	}
}

func transportError(err error) *RemoteError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteError{Kind: KindNetwork, Err: fmt.Errorf("request timed out: %w", err)}
	}
	return &RemoteError{Kind: KindNetwork, Err: err}
}
