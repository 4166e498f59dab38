package store

import "errors"

// ErrNotFound is returned when a registry key has no value.
var ErrNotFound = errors.New("registry key not found")
