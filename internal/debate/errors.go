package debate

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTopic is returned when a debate is started without a topic.
	ErrEmptyTopic = errors.New("debate topic is required")

	// ErrDebateNotFound is returned for an unknown debate ID.
	ErrDebateNotFound = errors.New("debate not found")

	// ErrStepInProgress is returned when a step is requested while another
	// step of the same debate is still waiting for its completion.
	ErrStepInProgress = errors.New("a step is already in progress for this debate")

	// ErrInvalidConfig is returned by New for an unusable Config.
	ErrInvalidConfig = errors.New("invalid debate config")
)

// CompletionError wraps a failure of the completion collaborator. The
// debate state is left untouched, so the step can be retried.
type CompletionError struct {
	Bot string
	Err error
}

// Error implements the error interface.
func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion for %s failed: %v", e.Bot, e.Err)
}

// Unwrap returns the underlying error.
func (e *CompletionError) Unwrap() error {
	return e.Err
}
