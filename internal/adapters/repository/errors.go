package repository

import "errors"

// Sentinel kinds for session errors.
var (
	ErrInvalidLimit = errors.New("invalid limit")
)
