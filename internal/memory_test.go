package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemory(t *testing.T) {
	vec := []float32{1, 0, 0}
	mem := NewMemory("hello", "notes", Metadata{"tags": []any{"a"}}, vec)

	require.NotEmpty(t, mem.ID)
	assert.Equal(t, "hello", mem.Content)
	assert.Equal(t, Scope("notes"), mem.Scope)
	assert.Equal(t, vec, mem.Embedding)
	assert.False(t, mem.CreatedAt.IsZero())
	assert.Equal(t, mem.CreatedAt, mem.UpdatedAt)

	other := NewMemory("hello", "notes", nil, vec)
	assert.NotEqual(t, mem.ID, other.ID)
}

func TestContentHash(t *testing.T) {
	a := ContentHash("same text")
	b := ContentHash("same text")
	c := ContentHash("different text")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestDupKey(t *testing.T) {
	a := NewMemory("same", "scope/one", nil, nil)
	b := NewMemory("same", "scope/one", nil, nil)
	c := NewMemory("same", "scope/two", nil, nil)

	assert.Equal(t, a.dupKey(), b.dupKey())
	assert.NotEqual(t, a.dupKey(), c.dupKey())
}

func TestMemoryCloneIsIndependent(t *testing.T) {
	mem := NewMemory("text", "notes", Metadata{"tags": []any{"x"}}, []float32{1, 2})
	c := mem.clone()

	c.Embedding[0] = 9
	c.Metadata["tags"].([]any)[0] = "y"
	c.Content = "changed"

	assert.Equal(t, float32(1), mem.Embedding[0])
	assert.Equal(t, "x", mem.Metadata["tags"].([]any)[0])
	assert.Equal(t, "text", mem.Content)
}

func TestNormalizeMetadata(t *testing.T) {
	md, err := NormalizeMetadata(Metadata{
		"name":  "alice",
		"count": 3,
		"ratio": 0.5,
		"live":  true,
		"tags":  []string{"a", "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", md["name"])
	assert.Equal(t, float64(3), md["count"])
	assert.Equal(t, 0.5, md["ratio"])
	assert.Equal(t, true, md["live"])
	assert.Equal(t, []any{"a", "b"}, md["tags"])
}

func TestNormalizeMetadataEmpty(t *testing.T) {
	md, err := NormalizeMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, md)

	md, err = NormalizeMetadata(Metadata{})
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestNormalizeMetadataRejects(t *testing.T) {
	bad := []Metadata{
		{"nested": map[string]any{"a": 1}},
		{"mixed": []any{"ok", 1}},
		{"ints": []int{1, 2}},
		{"": "empty key"},
		{"fn": func() {}},
	}

	for _, md := range bad {
		if _, err := NormalizeMetadata(md); !IsValidation(err) {
			t.Errorf("NormalizeMetadata(%v) expected validation error, got %v", md, err)
		}
	}
}

func TestMetadataTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Metadata{"tags": []any{"a", "b"}}.Tags())
	assert.Equal(t, []string{"a"}, Metadata{"tags": []string{"a"}}.Tags())
	assert.Nil(t, Metadata{}.Tags())

	md := Metadata{}
	md.setTags([]string{"x", "y"})
	assert.Equal(t, []string{"x", "y"}, md.Tags())
}
