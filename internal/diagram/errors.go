package diagram

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration: the API key is missing, declined or unreadable. Never retried.
	ErrConfiguration = errors.New("diagram generator configuration is incomplete")

	// ErrTransport: network failure or non-2xx status. Retried.
	ErrTransport = errors.New("completion request failed")

	// ErrResponseShape: the completion body lacks the expected fields. Never retried.
	ErrResponseShape = errors.New("no output received from the model")

	// ErrValidation: the model answered but the text is not a usable diagram. Retried.
	ErrValidation = errors.New("model output is not a valid diagram")
)

// GenerationError is returned once attempts stop, carrying the last cause.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate diagram after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
