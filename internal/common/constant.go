package common

// Header names read from inbound requests and forwarded to origin.
const (
	AuthorizationHeaderName = "Authorization"
	RequestIDHeaderName     = "x-request-id"
)

// Query parameters identifying the project every cache request is scoped to.
const (
	AccountHandleParam = "account_handle"
	ProjectHandleParam = "project_handle"
)
