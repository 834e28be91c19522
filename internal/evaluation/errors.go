package evaluation

import "errors"

var (
	// ErrModelUnavailable is returned by a Categorizer when the model call fails
	// or times out. Evaluate recovers from it.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrNotFound marks an unknown lesson, section or question reference.
	ErrNotFound = errors.New("question not found")
	// ErrPreconditionViolation marks an evaluation attempted on a resolved state.
	ErrPreconditionViolation = errors.New("attempt state already resolved")
	// ErrInvalidInput marks an empty answer or a question without an expected answer.
	ErrInvalidInput = errors.New("invalid input")
)
