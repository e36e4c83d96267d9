package model

import "errors"

// Failure kinds shared across services. Index and network errors are
// converted to one of these at the component boundary so raw transport
// errors never reach a handler.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("page not found")
	ErrNoRelevantContent   = errors.New("no relevant content found for this question")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrInconsistentState   = errors.New("page partially deleted: lexical entry removed but chunk cleanup failed")
)
