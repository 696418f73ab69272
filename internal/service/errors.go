package service

import (
	"errors"
	"fmt"
	"strings"

	"billing/internal/validation"
)

// Sentinel errors mapped to HTTP status codes by the handlers.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidState       = errors.New("invalid state")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError carries the pre-submit checklist of a rejected draft.
type ValidationError struct {
	Problems validation.Result
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems.Fields(), ", ")
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
