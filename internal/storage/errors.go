package storage

import "errors"

// Common storage errors
var (
	ErrOutOfOrder    = errors.New("call sequence out of order")
	ErrInvalidCursor = errors.New("invalid cursor")
)
