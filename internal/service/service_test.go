package service

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/credential"
)

// fakeAPI is a minimal router that counts hits per "METHOD path".
type fakeAPI struct {
	mu     sync.Mutex
	hits   map[string]int
	routes map[string]http.HandlerFunc
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		hits:   make(map[string]int),
		routes: make(map[string]http.HandlerFunc),
	}
}

func (f *fakeAPI) handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	f.routes[method+" "+path] = h
	f.mu.Unlock()
}

func (f *fakeAPI) json(method, path, body string) {
	f.handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func (f *fakeAPI) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[method+" "+path]
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.hits[key]++
	h, ok := f.routes[key]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found: ` + key + `"}`))
		return
	}
	h(w, r)
}

func newClient(t *testing.T, f *fakeAPI, tokens credential.TokenStore) *api.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	if tokens == nil {
		tokens = credential.NewMemoryStore("test-token")
	}
	return api.NewClient(srv.URL, tokens)
}
