package authz

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an authorization or prefix-resolution outcome that must reach
// the client with Status. Silent errors carry no body.
type Error struct {
	Status  int
	Message string
	Silent  bool
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authz: status %d", e.Status)
	}
	return fmt.Sprintf("authz: status %d: %s", e.Status, e.Message)
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

const (
	MessageMissingCredential = "Missing Authorization header"
	MessageNotAccessible     = "Project not found or not accessible"
	MessageUnauthorized      = "Unauthorized"
	MessageOriginUnavailable = "Failed to reach the authorization server"
)

var errMissingCredential = &Error{Status: http.StatusUnauthorized, Message: MessageMissingCredential}

// normalizeStatus hides whether a project the caller cannot see exists.
func normalizeStatus(status int) int {
	if status == http.StatusForbidden {
		return http.StatusNotFound
	}
	return status
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
