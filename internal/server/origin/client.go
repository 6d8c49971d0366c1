// Package origin calls the authoritative server that decides which projects
// a credential may access and where each project's blobs live.
package origin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/casedge/internal/common"
)

const DefaultBaseURL = "https://tuist.dev"

// Caller performs a single authenticated origin request. The caller owns the
// response body. There are no retries.
type Caller interface {
	Call(ctx context.Context, method, path string, query url.Values, credential string) (*http.Response, error)
}

type Client struct {
	base *url.URL
	http *http.Client
}

var _ Caller = (*Client)(nil)

// NewClient resolves every call against baseURL, or DefaultBaseURL when it
// is empty. httpClient may be nil.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse origin url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("origin url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: base, http: httpClient}, nil
}

func (c *Client) Call(ctx context.Context, method, path string, query url.Values, credential string) (*http.Response, error) {
	target := c.base.JoinPath(strings.TrimPrefix(path, "/"))
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build origin request: %w", err)
	}
	req.Header.Set(common.AuthorizationHeaderName, credential)
	req.Header.Set("Accept", "application/json")
	if id := common.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(common.RequestIDHeaderName, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("origin %s %s: %w", method, path, err)
	}
	return resp, nil
}
