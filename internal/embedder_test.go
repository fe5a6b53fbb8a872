package internal

import (
	"context"
	"math"
	"reflect"
	"testing"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "python is great for scripting")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, err := e.Embed(ctx, "python is great for scripting")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Error("same text produced different vectors")
	}
	if len(a) != 64 {
		t.Errorf("dimension = %d, want 64", len(a))
	}
	if math.Abs(float64(norm(a)-1)) > 1e-5 {
		t.Errorf("vector not unit length, norm = %v", norm(a))
	}
}

func TestHashEmbedderSharedVocabulary(t *testing.T) {
	e := NewHashEmbedder(256)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "python is great for scripting")
	b, _ := e.Embed(ctx, "python is great for automation")
	c, _ := e.Embed(ctx, "quantum entanglement violates locality")

	if Cosine(a, b) <= Cosine(a, c) {
		t.Errorf("overlapping texts scored %v, disjoint scored %v", Cosine(a, b), Cosine(a, c))
	}
}

func TestHashEmbedderBatchMatchesSingle(t *testing.T) {
	e := NewHashEmbedder(32)
	ctx := context.Background()
	texts := []string{"one fish", "two fish", "red fish"}

	batch, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(batch) != len(texts) {
		t.Fatalf("batch returned %d vectors", len(batch))
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		if !reflect.DeepEqual(batch[i], single) {
			t.Errorf("batch[%d] differs from single embedding of %q", i, text)
		}
	}
}

func TestNewEmbedderBackends(t *testing.T) {
	e, err := NewEmbedder(EmbeddingsConfig{Backend: BackendHash, Dimension: 16})
	if err != nil {
		t.Fatalf("hash backend: %v", err)
	}
	if e.Dimension() != 16 || e.Name() != BackendHash {
		t.Errorf("unexpected embedder %s/%d", e.Name(), e.Dimension())
	}

	if _, err := NewEmbedder(EmbeddingsConfig{Backend: "telepathy"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("Hello, World! x2")
	want := []string{"hello", "world", "x2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokenize = %v, want %v", got, want)
	}
}
