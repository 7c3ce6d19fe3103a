package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateLogin is returned when an insert violates the per-role
// login uniqueness constraint.
var ErrDuplicateLogin = errors.New("login already exists")
