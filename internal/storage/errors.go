package storage

import "errors"

// ErrNotFound is returned when a requested collection does not exist.
var ErrNotFound = errors.New("storage: not found")
