package repository

import "errors"

var (
	// ErrInvalidArgument reports a missing required reference argument.
	// It is returned before any network call is made.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict reports a create for a user name that already has a
	// document in the index.
	ErrConflict = errors.New("user already exists")

	// ErrInvalidName reports an index or entity name outside the allowed
	// charset (lowercase letters, digits, hyphen, underscore).
	ErrInvalidName = errors.New("invalid index or entity name")
)
