// Package services defines the business logic for importing identities into
// the directory and for reading it back. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into exit codes or HTTP status codes is performed by the
// command and handler layers.
package services

import "errors"

// Ingest errors.
var (
	// ErrMissingFile indicates that a required input file does not exist.
	// It is a precondition failure: the run stops before the store is opened.
	ErrMissingFile = errors.New("required file not found")

	// ErrUnresolvedDomain indicates that a record's domain could not be
	// mapped to a domain id even after the upsert. It signals a logic
	// inconsistency, not bad input, and aborts the run.
	ErrUnresolvedDomain = errors.New("domain could not be resolved to an id")
)

// Directory errors.
var (
	// ErrDomainNotFound indicates that the requested domain does not exist.
	ErrDomainNotFound = errors.New("domain not found")
)
