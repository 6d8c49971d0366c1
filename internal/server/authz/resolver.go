// Package authz answers the two questions every cache request asks the
// origin: may this credential access the project, and under which storage
// prefix do the project's blobs live. Both answers are memoized in the hot
// cache under keys derived from the raw credential, successes for longer
// than 401/403 rejections. Other origin failures are never cached.
package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/casedge/internal/common"
	"github.com/dmitrijs2005/casedge/internal/hashx"
	"github.com/dmitrijs2005/casedge/internal/logging"
	"github.com/dmitrijs2005/casedge/internal/server/kvcache"
	"github.com/dmitrijs2005/casedge/internal/server/origin"
)

const (
	projectsPath = "/api/projects"
	prefixPath   = "/api/cache/prefix"
)

// Policy holds the memoization TTLs.
type Policy struct {
	ProjectsSuccessTTL time.Duration
	ProjectsFailureTTL time.Duration
	PrefixSuccessTTL   time.Duration
	PrefixFailureTTL   time.Duration
}

// DefaultPolicy returns the production TTLs: 600s/300s for project sets and
// 3600s/300s for prefixes.
func DefaultPolicy() Policy {
	return Policy{
		ProjectsSuccessTTL: 600 * time.Second,
		ProjectsFailureTTL: 300 * time.Second,
		PrefixSuccessTTL:   3600 * time.Second,
		PrefixFailureTTL:   300 * time.Second,
	}
}

// ProjectsCacheKey is where the accessible-project set for credential lives.
func ProjectsCacheKey(credential string) string {
	return "accessible-projects:" + hashx.Digest(credential)
}

// PrefixCacheKey binds a prefix to the credential that proved access, not
// just to the project.
func PrefixCacheKey(account, project, credential string) string {
	return "cas:" + hashx.Digest(account+":"+project+":"+credential)
}

// cachedResult is the JSON stored in the hot cache. A zero Status means
// success.
type cachedResult struct {
	Projects []string `json:"projects,omitempty"`
	Prefix   string   `json:"prefix,omitempty"`
	Error    string   `json:"error,omitempty"`
	Status   int      `json:"status,omitempty"`
}

func (c cachedResult) failed() bool {
	return c.Status != 0
}

func (c cachedResult) err() error {
	return &Error{Status: c.Status, Message: c.Error}
}

type Resolver struct {
	origin origin.Caller
	cache  kvcache.Store
	policy Policy
	logger logging.Logger
	group  singleflight.Group
}

func NewResolver(o origin.Caller, cache kvcache.Store, policy Policy, logger logging.Logger) *Resolver {
	return &Resolver{
		origin: o,
		cache:  cache,
		policy: policy,
		logger: logger.With("module", "authz"),
	}
}

// EnsureAccessible returns the credential once the origin (or a memoized
// answer) confirms it can access "{account}/{project}". Handles compare
// case-insensitively. Failures are *Error values.
func (r *Resolver) EnsureAccessible(ctx context.Context, account, project, credential string) (string, error) {
	if credential == "" {
		return "", errMissingCredential
	}

	res, err := r.lookup(ctx, ProjectsCacheKey(credential), r.policy.ProjectsSuccessTTL, r.policy.ProjectsFailureTTL,
		func(ctx context.Context) (cachedResult, error) {
			return r.fetchProjects(ctx, credential)
		})
	if err != nil {
		return "", err
	}

	handle := account + "/" + project
	for _, p := range res.Projects {
		if strings.EqualFold(p, handle) {
			return credential, nil
		}
	}
	return "", &Error{Status: http.StatusNotFound, Message: MessageNotAccessible}
}

// ResolvePrefix returns the storage key prefix of an authorized project. A
// 404 from origin comes back as a Silent *Error: nothing has been cached
// for the project yet.
func (r *Resolver) ResolvePrefix(ctx context.Context, account, project, credential string) (string, error) {
	if credential == "" {
		return "", errMissingCredential
	}

	res, err := r.lookup(ctx, PrefixCacheKey(account, project, credential), r.policy.PrefixSuccessTTL, r.policy.PrefixFailureTTL,
		func(ctx context.Context) (cachedResult, error) {
			return r.fetchPrefix(ctx, account, project, credential)
		})
	if err != nil {
		return "", err
	}
	return res.Prefix, nil
}

// lookup serves key from the hot cache, or calls fetch and memoizes what it
// returns. fetch reports cacheable outcomes (success and 401/403) as a
// result and everything else as an error.
func (r *Resolver) lookup(ctx context.Context, key string, successTTL, failureTTL time.Duration, fetch func(context.Context) (cachedResult, error)) (cachedResult, error) {
	if res, ok := r.cached(ctx, key); ok {
		if res.failed() {
			return res, res.err()
		}
		return res, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		// Shared by every waiter, so one caller going away must not fail
		// the others.
		fctx := context.WithoutCancel(ctx)
		res, err := fetch(fctx)
		if err != nil {
			return cachedResult{}, err
		}

		ttl := successTTL
		if res.failed() {
			ttl = failureTTL
		}
		r.store(fctx, key, res, ttl)
		return res, nil
	})
	if err != nil {
		return cachedResult{}, err
	}

	res := v.(cachedResult)
	if res.failed() {
		return res, res.err()
	}
	return res, nil
}

func (r *Resolver) cached(ctx context.Context, key string) (cachedResult, bool) {
	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn(ctx, "hot cache read failed", "key", key, "error", err)
		return cachedResult{}, false
	}
	if !ok {
		return cachedResult{}, false
	}

	var res cachedResult
	if err := json.Unmarshal(raw, &res); err != nil {
		r.logger.Warn(ctx, "discarding undecodable cache entry", "key", key, "error", err)
		return cachedResult{}, false
	}
	return res, true
}

func (r *Resolver) store(ctx context.Context, key string, res cachedResult, ttl time.Duration) {
	raw, err := json.Marshal(res)
	if err != nil {
		r.logger.Warn(ctx, "encode cache entry", "key", key, "error", err)
		return
	}
	if err := r.cache.Put(ctx, key, raw, ttl); err != nil {
		r.logger.Warn(ctx, "hot cache write failed", "key", key, "error", err)
	}
}

func (r *Resolver) fetchProjects(ctx context.Context, credential string) (cachedResult, error) {
	resp, err := r.origin.Call(ctx, http.MethodGet, projectsPath, nil, credential)
	if err != nil {
		r.logger.Error(ctx, "accessible projects request failed", "error", err)
		return cachedResult{}, &Error{Status: http.StatusInternalServerError, Message: MessageOriginUnavailable}
	}
	defer drain(resp.Body)

	if isAuthFailure(resp.StatusCode) {
		return authFailure(resp), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return cachedResult{}, unexpectedStatus(resp.StatusCode)
	}

	var body struct {
		Projects []struct {
			FullName string `json:"full_name"`
		} `json:"projects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return cachedResult{}, &Error{Status: http.StatusInternalServerError, Message: "Invalid accessible projects response"}
	}

	names := make([]string, 0, len(body.Projects))
	for _, p := range body.Projects {
		names = append(names, p.FullName)
	}
	return cachedResult{Projects: names}, nil
}

func (r *Resolver) fetchPrefix(ctx context.Context, account, project, credential string) (cachedResult, error) {
	query := url.Values{
		common.AccountHandleParam: {account},
		common.ProjectHandleParam: {project},
	}
	resp, err := r.origin.Call(ctx, http.MethodGet, prefixPath, query, credential)
	if err != nil {
		r.logger.Error(ctx, "prefix request failed", "error", err)
		return cachedResult{}, &Error{Status: http.StatusInternalServerError, Message: MessageOriginUnavailable}
	}
	defer drain(resp.Body)

	switch {
	case isAuthFailure(resp.StatusCode):
		return authFailure(resp), nil
	case resp.StatusCode == http.StatusNotFound:
		return cachedResult{}, &Error{Status: http.StatusNotFound, Silent: true}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return cachedResult{}, unexpectedStatus(resp.StatusCode)
	}

	var body struct {
		Prefix string `json:"prefix"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return cachedResult{}, &Error{Status: http.StatusInternalServerError, Message: "Invalid prefix response"}
	}
	return cachedResult{Prefix: body.Prefix}, nil
}

// authFailure turns a 401/403 into the negative cache entry. 403 becomes
// 404 and never echoes the origin's wording.
func authFailure(resp *http.Response) cachedResult {
	status := normalizeStatus(resp.StatusCode)
	if status == http.StatusNotFound {
		return cachedResult{Error: MessageNotAccessible, Status: status}
	}
	return cachedResult{Error: originMessage(resp.Body, MessageUnauthorized), Status: status}
}

func unexpectedStatus(status int) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf("Authorization server responded with status %d", status),
	}
}

func originMessage(body io.Reader, fallback string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 64<<10)).Decode(&payload); err != nil || payload.Message == "" {
		return fallback
	}
	return payload.Message
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

// IsSilent reports whether err should be answered with a bare status.
func IsSilent(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Silent
}
