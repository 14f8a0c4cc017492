// Package service provides business logic for the booking site and live chat.
package service

import (
	"errors"
	"fmt"

	"github.com/dhowcruise/booking-platform/internal/store"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConversationClosed = errors.New("conversation is closed")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrDiscountInvalid    = errors.New("discount not applicable")
)

// invalid reports bad caller input with a human-readable reason.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// storeErr translates store errors about what into service errors.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s %w", what, ErrNotFound)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	case errors.Is(err, store.ErrReference):
		return fmt.Errorf("%w: %s references or is referenced by other records", ErrConflict, what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
