package notification

import "errors"

var (
	// ErrNotFound is returned when the referenced notification does not exist.
	ErrNotFound = errors.New("notification not found")

	// ErrNoRecipients is returned when the audience resolves to zero active
	// users; nothing is persisted in that case.
	ErrNoRecipients = errors.New("no valid recipients found")

	// ErrValidation wraps malformed or out-of-range input.
	ErrValidation = errors.New("invalid notification data")
)
