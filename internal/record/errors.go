package record

import "errors"

var (
	// ErrInvalidEntry is returned when an ingestion call is missing its
	// connector or action classification
	ErrInvalidEntry = errors.New("invalid entry: connector and action are required")

	// ErrColumnNotAllowed is returned when a column outside the allow-list
	// is requested for distinct-value listing
	ErrColumnNotAllowed = errors.New("column not allowed")

	// ErrHandlerRegistered is returned when a notification handler name is
	// registered twice
	ErrHandlerRegistered = errors.New("notification handler already registered")
)
