package portal

import "errors"

// Error kinds. Match with errors.Is; the API maps each to a status code.
var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("not authenticated")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)

// Error is a failure with a message that is safe to show to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func validationError(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func authError(msg string) error {
	return &Error{Kind: ErrAuth, Message: msg}
}

func conflictError(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

func notFoundError(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}
