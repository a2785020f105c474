package ingestion

import "errors"

var (
	// ErrNoValidData marks a file whose parser produced zero accepted records.
	ErrNoValidData = errors.New("ingestion: no valid data")
	// ErrInvalidDateRange marks a file whose first/last timestamps did not resolve.
	ErrInvalidDateRange = errors.New("ingestion: invalid date range")
	// ErrInsufficientData marks a session candidate with fewer than two sensor kinds.
	ErrInsufficientData = errors.New("ingestion: insufficient data")
	// ErrSessionExists marks a candidate already represented in the store.
	ErrSessionExists = errors.New("ingestion: session already exists")
	// ErrUnknownKind marks a file whose type marker maps to no sensor family.
	ErrUnknownKind = errors.New("ingestion: unknown sensor kind")
)
