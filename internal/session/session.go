// Package session holds the in-memory authentication state shared by every
// API call: the current tokens and the display name of the signed-in user.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FallbackDisplayName is used when a refresh happens before the user's name is known.
const FallbackDisplayName = "User"

// Session is the full credential record. Empty strings mean "absent".
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenKind    string `json:"token_type"`
	DisplayName  string `json:"display_name"`
}

// IsZero reports whether every field is absent.
func (s Session) IsZero() bool {
	return s == Session{}
}

// Authenticated reports whether an access token is present.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// AuthorizationHeader renders "{tokenKind} {accessToken}". It is derived on
// every call and never stored.
func (s Session) AuthorizationHeader() string {
	return s.TokenKind + " " + s.AccessToken
}

// NameOrFallback returns the display name, or FallbackDisplayName when absent.
func (s Session) NameOrFallback() string {
	if strings.TrimSpace(s.DisplayName) == "" {
		return FallbackDisplayName
	}
	return s.DisplayName
}

// AccessTokenExpiry reads the exp claim of a JWT access token without
// verifying it. The boolean is false when the token is not a JWT or has no exp.
func (s Session) AccessTokenExpiry() (time.Time, bool) {
	if s.AccessToken == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Store is the process-wide holder of the current Session. Writes always
// replace the whole record.
type Store interface {
	Get() Session
	Set(Session)
	Clear()
	// Subscribe registers fn to run after every change. The returned
	// function removes the subscription.
	Subscribe(fn func(Session)) (unsubscribe func())
}

// Reloader is implemented by stores whose session may be changed by another
// process. Reload replaces the in-memory session with the persisted one; the
// boolean is false when nothing could be read.
type Reloader interface {
	Reload(ctx context.Context) (Session, bool)
}

// MemoryStore is the default Store.
type MemoryStore struct {
	// notifyMu orders writes and their notifications, so subscribers see
	// changes in the order they were applied.
	notifyMu sync.Mutex

	mu      sync.RWMutex
	current Session
	nextID  int
	subs    map[int]func(Session)
	order   []int
	reload  func(context.Context) (Session, error)
}

var (
	_ Store    = (*MemoryStore)(nil)
	_ Reloader = (*MemoryStore)(nil)
)

// NewMemoryStore returns a store holding an empty Session.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[int]func(Session))}
}

func (m *MemoryStore) Get() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Set replaces the session and notifies subscribers. Subscribers must not
// write to the store.
func (m *MemoryStore) Set(s Session) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.current = s
	subs := m.snapshotLocked()
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

func (m *MemoryStore) Clear() {
	m.Set(Session{})
}

func (m *MemoryStore) Subscribe(fn func(Session)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.order = append(m.order, id)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
		for i, v := range m.order {
			if v == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
}

// Reload reads the session through the hook installed by Bind. Without a
// hook it returns the current session and false.
func (m *MemoryStore) Reload(ctx context.Context) (Session, bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.RLock()
	reload := m.reload
	m.mu.RUnlock()
	if reload == nil {
		return m.Get(), false
	}

	s, err := reload(ctx)
	if err != nil {
		return m.Get(), false
	}
	m.load(s)
	return s, true
}

func (m *MemoryStore) setReloader(fn func(context.Context) (Session, error)) {
	m.mu.Lock()
	m.reload = fn
	m.mu.Unlock()
}

// load replaces the current session without notifying subscribers.
func (m *MemoryStore) load(s Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}

func (m *MemoryStore) snapshotLocked() []func(Session) {
	out := make([]func(Session), 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.subs[id])
	}
	return out
}
