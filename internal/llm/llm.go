// Package llm adapts text completion backends to a single narrow interface.
package llm

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type Request struct {
	System      string
	History     []Message // oldest first, without the current user text
	User        string
	MaxTokens   int
	Temperature float32
}

// Completer turns a prompt and history into generated text.
// Output is not repeatable for identical input.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

var (
	// ErrUnavailable covers transport failures and timeouts.
	ErrUnavailable = errors.New("completion service unavailable")
	// ErrEmptyCompletion is returned when the backend answered without usable text.
	ErrEmptyCompletion = errors.New("completion service returned an empty payload")
)

// StatusError reports a non-success response from the backend.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Classify labels a Complete error for logs and metrics.
func Classify(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, ErrEmptyCompletion):
		return "empty"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func unavailable(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, ErrUnavailable, err)
}
