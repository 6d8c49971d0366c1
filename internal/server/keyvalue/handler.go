package keyvalue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/casedge/internal/common"
	"github.com/dmitrijs2005/casedge/internal/logging"
	"github.com/dmitrijs2005/casedge/internal/server/httpx"
	"github.com/dmitrijs2005/casedge/internal/server/kvcache"
)

const (
	MessageInvalidCasID       = "Missing or invalid cas_id"
	MessageInvalidJSON        = "Invalid JSON body"
	MessageMissingFields      = "Request body must include cas_id and entries"
	MessageNoValidEntries     = "Entries array must include at least one entry with id and value"
	MessageStoreNotConfigured = "Key-value store is not configured"
	MessageStoreWriteFailed   = "Failed to store entries"
	MessageStoreReadFailed    = "Failed to read entries"
	maxBodyBytes              = 10 << 20
)

// Authorizer confirms a credential may access a project.
type Authorizer interface {
	EnsureAccessible(ctx context.Context, account, project, credential string) (string, error)
}

type Handler struct {
	authz       Authorizer
	repo        Repository
	responses   kvcache.Store
	responseTTL time.Duration
	logger      logging.Logger
}

// NewHandler builds the key-value endpoints. repo may be nil, in which case
// every store access answers 500.
func NewHandler(a Authorizer, repo Repository, responses kvcache.Store, responseTTL time.Duration, logger logging.Logger) *Handler {
	return &Handler{
		authz:       a,
		repo:        repo,
		responses:   responses,
		responseTTL: responseTTL,
		logger:      logger.With("module", "keyvalue"),
	}
}

// Get returns the entry list stored for the cas_id path parameter.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, project, ok := httpx.ProjectParams(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, httpx.MessageMissingProjectParams)
		return
	}
	if _, err := h.authz.EnsureAccessible(ctx, account, project, httpx.Credential(r)); err != nil {
		httpx.WriteAuthzError(w, err)
		return
	}

	casID, err := httpx.PathParam(r, "cas_id")
	if err != nil || casID == "" {
		httpx.WriteError(w, http.StatusBadRequest, MessageInvalidCasID)
		return
	}

	cacheKey := responseCacheKey(account, project, casID)
	if cached, hit := h.cachedResponse(ctx, cacheKey); hit {
		writeRawJSON(w, http.StatusOK, cached)
		return
	}

	if h.repo == nil {
		h.logger.Error(ctx, "key-value store binding missing")
		httpx.WriteError(w, http.StatusInternalServerError, MessageStoreNotConfigured)
		return
	}

	stored, err := h.repo.Get(ctx, StoreKey(account, project, casID))
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		h.logger.Error(ctx, "read entries", "cas_id", casID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, MessageStoreReadFailed)
		return
	}

	var entries []Entry
	if err == nil {
		var raw []json.RawMessage
		if jsonErr := json.Unmarshal(stored, &raw); jsonErr != nil {
			h.logger.Warn(ctx, "stored entries are not a JSON array", "cas_id", casID, "error", jsonErr)
		}
		entries = filterEntries(raw)
	}
	if len(entries) == 0 {
		httpx.WriteError(w, http.StatusNotFound, fmt.Sprintf("No entries found for CAS ID %s.", casID))
		return
	}

	body, err := json.Marshal(entriesResponse{Entries: entries})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, MessageStoreReadFailed)
		return
	}
	h.cacheResponse(ctx, cacheKey, body)
	writeRawJSON(w, http.StatusOK, body)
}

// Put replaces the entry list named by the body's cas_id.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, project, ok := httpx.ProjectParams(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, httpx.MessageMissingProjectParams)
		return
	}
	if _, err := h.authz.EnsureAccessible(ctx, account, project, httpx.Credential(r)); err != nil {
		httpx.WriteAuthzError(w, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, MessageInvalidJSON)
		return
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil || body == nil {
		httpx.WriteError(w, http.StatusBadRequest, MessageInvalidJSON)
		return
	}

	var casID string
	var rawEntries []json.RawMessage
	if json.Unmarshal(body["cas_id"], &casID) != nil || casID == "" ||
		json.Unmarshal(body["entries"], &rawEntries) != nil || rawEntries == nil {
		httpx.WriteError(w, http.StatusBadRequest, MessageMissingFields)
		return
	}

	entries := filterEntries(rawEntries)
	if len(entries) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, MessageNoValidEntries)
		return
	}

	if h.repo == nil {
		h.logger.Error(ctx, "key-value store binding missing")
		httpx.WriteError(w, http.StatusInternalServerError, MessageStoreNotConfigured)
		return
	}

	encoded, err := json.Marshal(entries)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, MessageStoreWriteFailed)
		return
	}
	if err := h.repo.Put(ctx, StoreKey(account, project, casID), encoded); err != nil {
		h.logger.Error(ctx, "write entries", "cas_id", casID, "error", err)
		msg := err.Error()
		if msg == "" {
			msg = MessageStoreWriteFailed
		}
		httpx.WriteError(w, http.StatusInternalServerError, msg)
		return
	}

	if resp, err := json.Marshal(entriesResponse{Entries: entries}); err == nil {
		h.cacheResponse(ctx, responseCacheKey(account, project, casID), resp)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cachedResponse(ctx context.Context, key string) ([]byte, bool) {
	body, ok, err := h.responses.Get(ctx, key)
	if err != nil {
		h.logger.Warn(ctx, "response cache read failed", "error", err)
		return nil, false
	}
	return body, ok
}

func (h *Handler) cacheResponse(ctx context.Context, key string, body []byte) {
	if err := h.responses.Put(ctx, key, body, h.responseTTL); err != nil {
		h.logger.Warn(ctx, "response cache write failed", "error", err)
	}
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
