package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// OriginReply is a canned origin response.
type OriginReply struct {
	Status int
	Body   any
}

// FakeOrigin answers the two origin endpoints the edge cache consumes.
// Replies are keyed by the raw Authorization header; unknown credentials
// get 401.
type FakeOrigin struct {
	*httptest.Server

	mu         sync.Mutex
	projects   map[string]OriginReply
	prefixes   map[string]OriginReply
	calls      map[string]int
	requestIDs []string
}

func NewFakeOrigin(t *testing.T) *FakeOrigin {
	t.Helper()
	f := &FakeOrigin{
		projects: map[string]OriginReply{},
		prefixes: map[string]OriginReply{},
		calls:    map[string]int{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// Allow grants credential access to the given "account/project" handles
// and makes the prefix lookup succeed with prefix for each of them.
func (f *FakeOrigin) Allow(credential, prefix string, handles ...string) {
	projects := make([]map[string]string, 0, len(handles))
	for _, h := range handles {
		projects = append(projects, map[string]string{"full_name": h})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[credential] = OriginReply{Status: http.StatusOK, Body: map[string]any{"projects": projects}}
	f.prefixes[credential] = OriginReply{Status: http.StatusOK, Body: map[string]string{"prefix": prefix}}
}

func (f *FakeOrigin) SetProjects(credential string, reply OriginReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[credential] = reply
}

func (f *FakeOrigin) SetPrefix(credential string, reply OriginReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes[credential] = reply
}

// Calls returns how many times path was requested.
func (f *FakeOrigin) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *FakeOrigin) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// RequestIDs returns the x-request-id header of every call, in order.
func (f *FakeOrigin) RequestIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requestIDs...)
}

func (f *FakeOrigin) serve(w http.ResponseWriter, r *http.Request) {
	credential := r.Header.Get("Authorization")

	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.requestIDs = append(f.requestIDs, r.Header.Get("x-request-id"))

	var (
		reply OriginReply
		ok    bool
	)
	switch {
	case r.URL.Path == "/api/projects":
		reply, ok = f.projects[credential]
	case r.URL.Path == "/api/cache/prefix":
		if r.URL.Query().Get("account_handle") == "" || r.URL.Query().Get("project_handle") == "" {
			reply, ok = OriginReply{Status: http.StatusBadRequest, Body: map[string]string{"message": "missing handles"}}, true
		} else {
			reply, ok = f.prefixes[credential]
		}
	default:
		reply, ok = OriginReply{Status: http.StatusNotFound}, true
	}
	f.mu.Unlock()

	if !ok {
		reply = OriginReply{Status: http.StatusUnauthorized, Body: map[string]string{"message": "Unauthorized"}}
	}

	if raw, isRaw := reply.Body.(string); isRaw {
		w.WriteHeader(reply.Status)
		_, _ = w.Write([]byte(raw))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	if reply.Body != nil {
		_ = json.NewEncoder(w).Encode(reply.Body)
	}
}
