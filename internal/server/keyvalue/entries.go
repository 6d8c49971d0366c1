// Package keyvalue serves small entry lists keyed by a caller-chosen CAS id
// within a project. Writes replace the whole list; reads go through a
// response cache in the hot tier before reaching the durable repository.
package keyvalue

import (
	"bytes"
	"encoding/json"
	"net/url"

	"github.com/dmitrijs2005/casedge/internal/common"
)

type Entry struct {
	Value string `json:"value"`
}

type entriesResponse struct {
	Entries []Entry `json:"entries"`
}

// StoreKey is the durable key of one entry list.
func StoreKey(account, project, casID string) string {
	return "keyvalue:" + account + ":" + project + ":" + casID
}

// responseCacheKey identifies the GET response for an entry list. Query
// parameters are canonicalised so equivalent URLs share one entry and a
// PUT can refresh the entry a later GET will read.
func responseCacheKey(account, project, casID string) string {
	q := url.Values{
		common.AccountHandleParam: {account},
		common.ProjectHandleParam: {project},
	}
	return "keyvalue-response:/api/cache/keyvalue/" + url.PathEscape(casID) + "?" + q.Encode()
}

// filterEntries keeps the elements that are objects with a string "value".
// Anything else (null, numbers, objects without a string value) is dropped.
func filterEntries(raw []json.RawMessage) []Entry {
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			continue
		}
		v := bytes.TrimSpace(obj["value"])
		if len(v) == 0 || v[0] != '"' {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		out = append(out, Entry{Value: s})
	}
	return out
}
