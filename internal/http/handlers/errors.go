// Package handlers defines HTTP-layer error codes used across all API
// endpoints. The constants give clients a stable, machine-readable taxonomy
// that supplements human-readable messages: generic codes mirror common HTTP
// status semantics, the domain-specific ones cover business failures a
// status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodeIngestFailed     = "ingest_failed"
	ErrCodeRebuildFailed    = "rebuild_failed"
	ErrCodeSyncFailed       = "sync_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
