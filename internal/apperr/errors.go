// Package apperr holds the sentinel errors shared across the build pipeline.
package apperr

import "errors"

var (
	// ErrParse marks a source line that is not a valid record.
	ErrParse = errors.New("parse error")
	// ErrMissingField marks a classified record that lacks a required field.
	ErrMissingField = errors.New("missing field")
	// ErrNotFound marks a relationship whose endpoint node does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidLabel marks a label or relationship type outside the known vocabularies.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrStoreWrite marks a node or relationship write rejected by the store.
	ErrStoreWrite = errors.New("store write failed")
	// ErrStoreUnavailable marks a store that cannot be reached at all.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ErrRejected marks a write the store refused deterministically; retrying cannot help.
var ErrRejected = errors.New("rejected by store")

var (
	// ErrBuildInProgress marks a build request made while another build is running.
	ErrBuildInProgress = errors.New("build in progress")
	// ErrNoBuild marks a status request made before any build finished.
	ErrNoBuild = errors.New("no build yet")
)
