package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeS3 serves path-style object requests ("/{bucket}/{key}") from memory.
// Signatures are not verified, only required to be present.
type FakeS3 struct {
	*httptest.Server

	Bucket string

	mu      sync.Mutex
	objects map[string][]byte
	calls   map[string]int

	// PutStatus, when non-zero, makes every PUT fail with that status and
	// PutBody as the response body.
	PutStatus int
	PutBody   string
}

func NewFakeS3(t *testing.T, bucket string) *FakeS3 {
	t.Helper()
	f := &FakeS3{
		Bucket:  bucket,
		objects: map[string][]byte{},
		calls:   map[string]int{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeS3) serve(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "AWS4-HMAC-SHA256") {
		http.Error(w, "missing signature", http.StatusForbidden)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.Bucket {
		http.Error(w, "NoSuchBucket", http.StatusNotFound)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[r.Method]++

	if key == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodHead:
		obj, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(obj)))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			http.Error(w, "NoSuchKey", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "binary/octet-stream")
		_, _ = w.Write(obj)
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if f.PutStatus != 0 {
			w.Header().Set("Content-Type", "application/xml")
			w.Header().Set("X-Amz-Request-Id", "fake-request")
			w.WriteHeader(f.PutStatus)
			_, _ = io.WriteString(w, f.PutBody)
			return
		}
		f.objects[key] = body
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SetPutFailure makes later PUTs answer status with body. A zero status
// lets PUTs succeed again.
func (f *FakeS3) SetPutFailure(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutStatus = status
	f.PutBody = body
}

func (f *FakeS3) Object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	return obj, ok
}

func (f *FakeS3) SetObject(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *FakeS3) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// Calls returns how many requests with method reached an object key or
// the bucket.
func (f *FakeS3) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeS3) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}
