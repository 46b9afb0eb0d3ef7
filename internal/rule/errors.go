package rule

import "errors"

var (
	// ErrInvalidScope is returned when site or tenant identifiers are invalid
	ErrInvalidScope = errors.New("invalid rule scope")
)
