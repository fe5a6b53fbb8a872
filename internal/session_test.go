package internal

import (
	"testing"
	"time"
)

func TestSessionCreate(t *testing.T) {
	m := NewSessionManager()
	now := time.Now().UTC()

	s, err := m.Create("sprint-42", nil, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Scope != "session/sprint-42" {
		t.Errorf("scope = %q", s.Scope)
	}
	if s.ExpiresAt != nil {
		t.Error("nil ttl must mean no expiry")
	}
	if s.Expired(now.Add(100 * 365 * 24 * time.Hour)) {
		t.Error("session without ttl expired")
	}
}

func TestSessionCreateWithTTL(t *testing.T) {
	m := NewSessionManager()
	now := time.Now().UTC()
	ttl := time.Hour

	s, err := m.Create("short", &ttl, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ExpiresAt == nil || !s.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expires_at = %v", s.ExpiresAt)
	}
	if s.Expired(now.Add(59 * time.Minute)) {
		t.Error("expired before its time")
	}
	if !s.Expired(now.Add(time.Hour)) {
		t.Error("not expired at the deadline")
	}
}

func TestSessionZeroTTLExpiresImmediately(t *testing.T) {
	m := NewSessionManager()
	now := time.Now().UTC()
	ttl := time.Duration(0)

	s, err := m.Create("instant", &ttl, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !s.Expired(now) {
		t.Error("zero ttl session must be expired at creation time")
	}
}

func TestSessionNegativeTTL(t *testing.T) {
	m := NewSessionManager()
	ttl := -time.Minute
	if _, err := m.Create("backwards", &ttl, time.Now()); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSessionNameConflict(t *testing.T) {
	m := NewSessionManager()
	now := time.Now().UTC()

	if _, err := m.Create("taken", nil, now); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Create("taken", nil, now); !IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestSessionExpiredNameReusable(t *testing.T) {
	m := NewSessionManager()
	now := time.Now().UTC()
	ttl := time.Minute

	if _, err := m.Create("recycle", &ttl, now); err != nil {
		t.Fatalf("create: %v", err)
	}
	later := now.Add(2 * time.Minute)
	s, err := m.Create("recycle", nil, later)
	if err != nil {
		t.Fatalf("expected expired name to be reusable, got %v", err)
	}
	if s.ExpiresAt != nil {
		t.Error("replacement session kept the old expiry")
	}
}

func TestSessionInvalidName(t *testing.T) {
	m := NewSessionManager()
	for _, name := range []string{"", "a/b", "bad name"} {
		if _, err := m.Create(name, nil, time.Now()); !IsValidation(err) {
			t.Errorf("Create(%q) expected validation error, got %v", name, err)
		}
	}
}

func TestSessionListAndExpired(t *testing.T) {
	m := NewSessionManager()
	now := time.Now().UTC()
	short := time.Minute
	long := time.Hour

	m.Create("zeta", &short, now)
	m.Create("alpha", &long, now)
	m.Create("mid", nil, now)

	list := m.List()
	if len(list) != 3 {
		t.Fatalf("list = %v", list)
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if list[i].Name != want {
			t.Errorf("list[%d] = %s, want %s", i, list[i].Name, want)
		}
	}

	expired := m.ExpiredSessions(now.Add(30 * time.Minute))
	if len(expired) != 1 || expired[0].Name != "zeta" {
		t.Errorf("expired = %v", expired)
	}

	m.Delete("zeta")
	if _, ok := m.Get("zeta"); ok {
		t.Error("zeta still present after delete")
	}
}
