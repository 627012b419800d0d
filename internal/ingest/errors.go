package ingest

import "errors"

// Failure taxonomy for ingest calls. Callers classify with errors.Is.
var (
	// ErrInvalidPayload marks a request that is neither a valid absolute
	// http(s) URL payload nor a non-empty binary upload.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUpstream marks non-2xx/3xx responses, redirect loops, exhausted
	// hop budgets, and network failures during the walk.
	ErrUpstream = errors.New("upstream failure")

	// ErrStorage marks undecodable images, encode failures, and backing
	// store write errors.
	ErrStorage = errors.New("storage failure")

	// ErrLimitExceeded marks a declared or streamed byte count over the cap.
	ErrLimitExceeded = errors.New("byte limit exceeded")
)
