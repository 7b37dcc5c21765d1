// Package services implements the business logic of the sitemap engine:
// distribution planning, batch ingestion, sync hooks, regeneration, and
// statistics. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; mapping
// to user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

// Validation errors. No state is mutated when one of these is returned.
var (
	// ErrInvalidCount is returned when a distribution plan is requested
	// for a non-positive item count.
	ErrInvalidCount = errors.New("count must be positive")

	// ErrEmptyCandidates is returned when an ingestion request carries no
	// candidate ids.
	ErrEmptyCandidates = errors.New("no candidates to ingest")

	// ErrInvalidPriority is returned when a priority lies outside [0.0, 1.0].
	ErrInvalidPriority = errors.New("priority must be between 0.0 and 1.0")

	// ErrInvalidChangeFreq is returned for an unknown change frequency value.
	ErrInvalidChangeFreq = errors.New("invalid change frequency")

	// ErrInvalidFamily is returned for an unknown content family.
	ErrInvalidFamily = errors.New("unknown content family")

	// ErrInvalidURL is returned when a candidate URL is not absolute.
	ErrInvalidURL = errors.New("url must be absolute")

	// ErrInvalidMode is returned for an unknown rebuild mode.
	ErrInvalidMode = errors.New("rebuild mode must be full or incremental")
)

// Lookup errors.
var (
	// ErrEntityNotFound indicates that a referenced catalog entity does
	// not exist.
	ErrEntityNotFound = errors.New("catalog entity not found")

	// ErrEntityInactive indicates that branch generation was requested
	// against a deactivated catalog entity.
	ErrEntityInactive = errors.New("catalog entity is inactive")

	// ErrSegmentNotFound indicates that a named segment does not exist.
	ErrSegmentNotFound = errors.New("segment not found")
)
