package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist. The drive
	// resolver maps this onto its not-connected error.
	ErrNotFound = errors.New("record not found")
)
