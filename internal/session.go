package internal

import (
	"fmt"
	"sort"
	"time"
)

// Session is a registered working context owning the "session/<name>" scope.
// A nil ExpiresAt means the session lives until explicitly deleted.
type Session struct {
	Name      string     `json:"name" yaml:"name"`
	Scope     Scope      `json:"scope" yaml:"scope"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// SessionManager tracks registrations by name. Like the index and graph it
// carries no lock of its own; the engine serializes access.
type SessionManager struct {
	sessions map[string]Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]Session)}
}

// Create registers a session. Reusing the name of a live session is a
// conflict; an expired registration that was never cleaned up is replaced.
func (m *SessionManager) Create(name string, ttl *time.Duration, now time.Time) (Session, error) {
	scope, err := SessionScope(name)
	if err != nil {
		return Session{}, err
	}
	if ttl != nil && *ttl < 0 {
		return Session{}, invalidf("ttl", "must not be negative")
	}
	if existing, ok := m.sessions[name]; ok && !existing.Expired(now) {
		return Session{}, &ConflictError{Reason: fmt.Sprintf("session %q already exists", name)}
	}

	s := Session{Name: name, Scope: scope, CreatedAt: now}
	if ttl != nil {
		exp := now.Add(*ttl)
		s.ExpiresAt = &exp
	}
	m.sessions[name] = s
	return s, nil
}

func (m *SessionManager) Get(name string) (Session, bool) {
	s, ok := m.sessions[name]
	return s, ok
}

func (m *SessionManager) Delete(name string) {
	delete(m.sessions, name)
}

// Restore re-registers a session loaded from the record store.
func (m *SessionManager) Restore(s Session) {
	m.sessions[s.Name] = s
}

func (m *SessionManager) List() []Session {
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ExpiredSessions returns every registration whose expiry has passed.
func (m *SessionManager) ExpiredSessions(now time.Time) []Session {
	var out []Session
	for _, s := range m.sessions {
		if s.Expired(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
