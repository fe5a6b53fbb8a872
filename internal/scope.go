package internal

import (
	"regexp"
	"sort"
	"strings"
)

// SessionRoot is the reserved first segment for session-owned scopes.
const SessionRoot = "session"

var segmentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Scope is a hierarchical path such as "project/alpha/notes". Segments are
// separated by "/", every segment non-empty. A Scope is always valid once
// parsed; raw strings go through ParseScope first.
type Scope string

func ParseScope(s string) (Scope, error) {
	if s == "" {
		return "", invalidf("scope", "empty")
	}
	for _, seg := range strings.Split(s, "/") {
		if seg == "" {
			return "", invalidf("scope", "empty segment in %q", s)
		}
		if !segmentPattern.MatchString(seg) {
			return "", invalidf("scope", "bad segment %q in %q", seg, s)
		}
	}
	return Scope(s), nil
}

// ParseScopePrefix accepts "" (meaning everything) or a valid scope.
func ParseScopePrefix(s string) (Scope, error) {
	if s == "" {
		return "", nil
	}
	return ParseScope(s)
}

func (s Scope) String() string { return string(s) }

func (s Scope) Segments() []string {
	if s == "" {
		return nil
	}
	return strings.Split(string(s), "/")
}

// Under reports whether s equals prefix or lies in its subtree. The match is
// segment-aware: "workshop" is not under "work".
func (s Scope) Under(prefix Scope) bool {
	if prefix == "" {
		return true
	}
	if s == prefix {
		return true
	}
	return strings.HasPrefix(string(s), string(prefix)+"/")
}

// Join appends one segment, which must already be valid.
func (s Scope) Join(segment string) Scope {
	if s == "" {
		return Scope(segment)
	}
	return Scope(string(s) + "/" + segment)
}

// IsSession reports whether the scope belongs to the session subtree.
func (s Scope) IsSession() bool {
	return s.Under(SessionRoot)
}

// SessionScope builds "session/<name>". The name must be a single segment.
func SessionScope(name string) (Scope, error) {
	if name == "" || strings.Contains(name, "/") || !segmentPattern.MatchString(name) {
		return "", invalidf("session name", "must be a single path segment, got %q", name)
	}
	return Scope(SessionRoot).Join(name), nil
}

// childSegments collects the distinct immediate child segments of prefix
// among the given scopes, sorted. A scope equal to the prefix contributes
// nothing. An empty prefix lists root segments.
func childSegments(prefix Scope, scopes []Scope) []string {
	seen := make(map[string]struct{})
	for _, sc := range scopes {
		if !sc.Under(prefix) || sc == prefix {
			continue
		}
		rest := string(sc)
		if prefix != "" {
			rest = strings.TrimPrefix(rest, string(prefix)+"/")
		}
		head, _, _ := strings.Cut(rest, "/")
		seen[head] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for seg := range seen {
		out = append(out, seg)
	}
	sort.Strings(out)
	return out
}
