// Package cas proxies content-addressed blobs between build clients and the
// object store, keeping small blobs in the hot tier.
package cas

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/casedge/internal/logging"
	"github.com/dmitrijs2005/casedge/internal/server/httpx"
	"github.com/dmitrijs2005/casedge/internal/server/kvcache"
	"github.com/dmitrijs2005/casedge/internal/server/objectstore"
)

const (
	MessageS3Error        = "S3 error"
	MessageNotFound       = "Artifact does not exist"
	MessageInvalidID      = "Missing or invalid artifact id"
	MessageBodyReadFailed = "Failed to read request body"

	contentTypeBlob = "application/octet-stream"
)

type Resolver interface {
	EnsureAccessible(ctx context.Context, account, project, credential string) (string, error)
	ResolvePrefix(ctx context.Context, account, project, credential string) (string, error)
}

// BlobStore is the authoritative object store. Get and Put return the raw
// response; a non-2xx status is not an error.
type BlobStore interface {
	Exists(ctx context.Context, key string) bool
	Get(ctx context.Context, key string) (*http.Response, error)
	Put(ctx context.Context, key string, body []byte, contentType string) (*http.Response, error)
}

type Options struct {
	// HotBlobMaxBytes is the largest body written to the hot tier.
	HotBlobMaxBytes int64
	HotBlobTTL      time.Duration
}

type Handler struct {
	resolver Resolver
	blobs    BlobStore
	hot      kvcache.Store
	opts     Options
	logger   logging.Logger
}

func NewHandler(resolver Resolver, blobs BlobStore, hot kvcache.Store, opts Options, logger logging.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		blobs:    blobs,
		hot:      hot,
		opts:     opts,
		logger:   logger.With("module", "cas"),
	}
}

// objectKey authorizes the request and returns the full object key. On
// failure the response has already been written.
func (h *Handler) objectKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()

	account, project, ok := httpx.ProjectParams(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, httpx.MessageMissingProjectParams)
		return "", false
	}

	credential, err := h.resolver.EnsureAccessible(ctx, account, project, httpx.Credential(r))
	if err != nil {
		httpx.WriteAuthzError(w, err)
		return "", false
	}

	prefix, err := h.resolver.ResolvePrefix(ctx, account, project, credential)
	if err != nil {
		httpx.WriteAuthzError(w, err)
		return "", false
	}

	id, err := httpx.PathParam(r, "id")
	if err != nil || id == "" {
		httpx.WriteError(w, http.StatusBadRequest, MessageInvalidID)
		return "", false
	}
	return prefix + objectstore.BuildKey(id), true
}

// Get serves a blob from the hot tier, falling back to the object store.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := h.objectKey(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if blob, hit := h.hotGet(ctx, key); hit {
		writeBlob(w, blob)
		return
	}

	resp, err := h.blobs.Get(ctx, key)
	if err != nil {
		h.logger.Error(ctx, "object store get", "key", key, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, MessageS3Error)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		httpx.WriteError(w, http.StatusNotFound, MessageNotFound)
		return
	}

	w.Header().Set("Content-Type", contentTypeBlob)
	if resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn(ctx, "stream blob", "key", key, "error", err)
	}
}

// Save stores the request body under the blob id unless a copy already
// exists. Bodies up to HotBlobMaxBytes are also written to the hot tier
// once the object store has accepted them.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	key, ok := h.objectKey(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, hit := h.hotGet(ctx, key); hit {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if h.blobs.Exists(ctx, key) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn(ctx, "read request body", "key", key, "error", err)
		httpx.WriteError(w, http.StatusBadRequest, MessageBodyReadFailed)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeBlob
	}

	resp, err := h.blobs.Put(ctx, key, body, contentType)
	if err != nil {
		h.logger.Error(ctx, "object store put", "key", key, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, MessageS3Error)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.logger.Warn(ctx, "object store rejected put", "key", key, "status", resp.StatusCode)
		forward(w, resp)
		return
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	// Only cache what the object store has accepted.
	if int64(len(body)) <= h.opts.HotBlobMaxBytes {
		if err := h.hot.Put(ctx, key, body, h.opts.HotBlobTTL); err != nil {
			h.logger.Warn(ctx, "hot tier put", "key", key, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) hotGet(ctx context.Context, key string) ([]byte, bool) {
	blob, ok, err := h.hot.Get(ctx, key)
	if err != nil {
		h.logger.Warn(ctx, "hot tier get", "key", key, "error", err)
		return nil, false
	}
	return blob, ok
}

func writeBlob(w http.ResponseWriter, blob []byte) {
	w.Header().Set("Content-Type", contentTypeBlob)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

// forward copies an object store response to the client unchanged.
func forward(w http.ResponseWriter, resp *http.Response) {
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
