package domain

import "errors"

var (
	// ErrNotFound means the export id is unknown.
	ErrNotFound = errors.New("export not found")

	// ErrForbidden means the caller's role lacks the requested action, or
	// an owner-only action was attempted by a non-owner. Denied attempts
	// leave no history record.
	ErrForbidden = errors.New("action not permitted for role")

	// ErrInvalidTransition means the action is not a legal edge from the
	// export's current status. A stale or racing client lands here.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation means the action payload is missing required fields.
	ErrValidation = errors.New("invalid transition payload")
)
