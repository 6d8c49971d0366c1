// Package httpx holds the request parsing and response writing shared by the
// cache handlers. Every error body is {"message": "..."}.
package httpx

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/casedge/internal/common"
	"github.com/dmitrijs2005/casedge/internal/server/authz"
)

const MessageMissingProjectParams = "Missing account_handle or project_handle query parameter"

type ErrorBody struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Message: message})
}

// WriteAuthzError answers with the status carried by an authorization
// failure. Silent failures get the status alone, with an empty body; any
// other error is a 500.
func WriteAuthzError(w http.ResponseWriter, err error) {
	e, ok := authz.AsError(err)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if e.Silent {
		w.WriteHeader(e.Status)
		return
	}
	WriteError(w, e.Status, e.Message)
}

// ProjectParams returns the account and project handles from the query.
func ProjectParams(r *http.Request) (account, project string, ok bool) {
	q := r.URL.Query()
	account = q.Get(common.AccountHandleParam)
	project = q.Get(common.ProjectHandleParam)
	return account, project, account != "" && project != ""
}

// Credential returns the raw Authorization header value.
func Credential(r *http.Request) string {
	return r.Header.Get(common.AuthorizationHeaderName)
}

// PathParam returns the decoded value of a chi route parameter. chi matches
// on the raw path only when the request path needed escaping, so only then
// is there anything left to decode.
func PathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return raw, nil
	}
	return url.PathUnescape(raw)
}
