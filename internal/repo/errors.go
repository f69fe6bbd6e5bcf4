package repo

import "errors"

var (
	// ErrNotFound is returned when no row matches the query.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when an insert hits the unique email index.
	ErrDuplicateEmail = errors.New("email already registered")
)
