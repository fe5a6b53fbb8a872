package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Memory is one stored record. IDs are opaque, unique and immutable; every
// other field may change through Update or Move.
type Memory struct {
	ID        string    `json:"id" yaml:"id"`
	Content   string    `json:"content" yaml:"content"`
	Scope     Scope     `json:"scope" yaml:"scope"`
	Embedding []float32 `json:"embedding" yaml:"embedding,flow"`
	Metadata  Metadata  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

func NewMemory(content string, scope Scope, md Metadata, embedding []float32) *Memory {
	now := time.Now().UTC()
	return &Memory{
		ID:        uuid.NewString(),
		Content:   content,
		Scope:     scope,
		Embedding: embedding,
		Metadata:  md,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ContentHash is the duplicate-detection key half: hex sha256 of the exact
// content text. Two memories are duplicates when hash and scope both match.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (m *Memory) dupKey() dupKey {
	return dupKey{hash: ContentHash(m.Content), scope: m.Scope}
}

type dupKey struct {
	hash  string
	scope Scope
}

func (m *Memory) clone() *Memory {
	c := *m
	c.Embedding = append([]float32(nil), m.Embedding...)
	c.Metadata = m.Metadata.clone()
	return &c
}

// Metadata holds user key/value annotations. Values are restricted to
// strings, bools, numbers and string arrays; NormalizeMetadata enforces that
// and canonicalizes representations so records compare equal after any
// store/export/import cycle.
type Metadata map[string]any

func NormalizeMetadata(md Metadata) (Metadata, error) {
	if len(md) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return nil, invalidf("metadata", "not serializable: %v", err)
	}
	var out Metadata
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, invalidf("metadata", "not serializable: %v", err)
	}
	for k, v := range out {
		if k == "" {
			return nil, invalidf("metadata", "empty key")
		}
		switch arr := v.(type) {
		case string, bool, float64:
		case []any:
			for _, el := range arr {
				if _, ok := el.(string); !ok {
					return nil, invalidf("metadata", "key %q: arrays may only hold strings", k)
				}
			}
		default:
			return nil, invalidf("metadata", "key %q holds unsupported type %T", k, v)
		}
	}
	return out, nil
}

func (m Metadata) clone() Metadata {
	if m == nil {
		return nil
	}
	c := make(Metadata, len(m))
	for k, v := range m {
		if arr, ok := v.([]any); ok {
			c[k] = append([]any(nil), arr...)
			continue
		}
		c[k] = v
	}
	return c
}

// Tags reads the conventional "tags" key, tolerating both decoded forms.
func (m Metadata) Tags() []string {
	switch v := m["tags"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, el := range v {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (m Metadata) setTags(tags []string) {
	vals := make([]any, len(tags))
	for i, t := range tags {
		vals[i] = t
	}
	m["tags"] = vals
}
