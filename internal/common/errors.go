// Package common defines shared constants, sentinel errors and context
// helpers used across the edge cache components. Callers should use
// errors.Is to match the sentinel values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrorNotFound = errors.New("not found")

	// Deployment errors: a required setting or binding is absent.
	ErrorConfiguration = errors.New("configuration error")

	// Request-level errors.
	ErrorMissingCredential = errors.New("missing credential")
)
