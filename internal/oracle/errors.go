// Package oracle defines domain types and interfaces for the qnoracle
// caching proxy. This package has no project imports -- it is the
// dependency root.
package oracle

import "errors"

// Sentinel errors for the coordinator's error taxonomy (see fetch coordinator
// design: BadConfig, RateLimited, UpstreamUnavailable, Canceled, Storage).
var (
	ErrBadConfig           = errors.New("bad config")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrCanceled            = errors.New("canceled")
	ErrStorage             = errors.New("storage error")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")
)
