package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"reina/internal/session"
)

// fakeAPI is a scripted remote API. Authorized routes accept only
// validHeader.
type fakeAPI struct {
	t *testing.T

	mu           sync.Mutex
	validHeader  string
	refreshReply func(refreshToken string) (int, any)
	login        http.HandlerFunc
	handlers     map[string]http.HandlerFunc
	calls        map[string]int
	headers      map[string][]string
	refreshForms []string
	unauthorized int

	server *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:           t,
		validHeader: "Bearer A1",
		handlers:    map[string]http.HandlerFunc{},
		calls:       map[string]int{},
		headers:     map[string][]string{},
	}

	r := mux.NewRouter()
	r.HandleFunc("/refresh", f.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/login", f.handleLogin).Methods(http.MethodPost)
	r.PathPrefix("/").HandlerFunc(f.handleAuthorized)

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) route(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method+" "+path] = h
}

func (f *fakeAPI) acceptHeader(h string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validHeader = h
}

func (f *fakeAPI) onLogin(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.login = h
}

func (f *fakeAPI) onRefresh(fn func(refreshToken string) (int, any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshReply = fn
}

func (f *fakeAPI) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+path]
}

func (f *fakeAPI) refreshCount() int {
	return f.count(http.MethodPost, "/refresh")
}

func (f *fakeAPI) refreshTokensSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshForms...)
}

func (f *fakeAPI) seenHeaders(method, path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.headers[method+" "+path]...)
}

func (f *fakeAPI) unauthorizedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unauthorized
}

func (f *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	token := r.PostForm.Get("refresh_token")

	f.mu.Lock()
	f.calls["POST /refresh"]++
	f.refreshForms = append(f.refreshForms, token)
	reply := f.refreshReply
	f.mu.Unlock()

	if reply == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid refresh token"})
		return
	}
	status, body := reply(token)
	writeJSON(w, status, body)
}

func (f *fakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls["POST /login"]++
	h := f.login
	f.mu.Unlock()

	if h == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid credentials"})
		return
	}
	h(w, r)
}

func (f *fakeAPI) handleAuthorized(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	f.mu.Lock()
	f.calls[key]++
	f.headers[key] = append(f.headers[key], r.Header.Get("Authorization"))
	valid := f.validHeader
	h, ok := f.handlers[key]
	if r.Header.Get("Authorization") != valid {
		f.unauthorized++
	}
	f.mu.Unlock()

	if r.Header.Get("Authorization") != valid {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// recordingStore wraps a MemoryStore and counts writes.
type recordingStore struct {
	*session.MemoryStore
	mu     sync.Mutex
	writes []session.Session
}

func newRecordingStore(s session.Session) *recordingStore {
	rs := &recordingStore{MemoryStore: session.NewMemoryStore()}
	rs.MemoryStore.Set(s)
	rs.MemoryStore.Subscribe(func(s session.Session) {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		rs.writes = append(rs.writes, s)
	})
	return rs
}

func (r *recordingStore) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}
