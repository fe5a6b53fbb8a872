package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupStore(t *testing.T) (*GitStore, string) {
	t.Helper()
	dir := t.TempDir()
	if err := InitStore(dir); err != nil {
		t.Fatalf("init store: %v", err)
	}
	store, err := NewGitStore(dir, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store, dir
}

func TestInitStoreLayout(t *testing.T) {
	store, dir := setupStore(t)

	for _, name := range []string{initMarker, ".gitignore"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	ignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatalf("read gitignore: %v", err)
	}
	if !strings.Contains(string(ignore), "loci.yaml") {
		t.Errorf("gitignore = %q", ignore)
	}

	commits, err := store.History(context.Background(), 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("commits = %d, want the initial one", len(commits))
	}
	if commits[0].Message != "init: initialize loci store" {
		t.Errorf("message = %q", commits[0].Message)
	}
	if commits[0].Author != DefaultAuthor {
		t.Errorf("author = %q", commits[0].Author)
	}
}

func TestNewGitStoreRequiresInit(t *testing.T) {
	if _, err := NewGitStore(t.TempDir(), nil); err == nil {
		t.Fatal("expected error opening an uninitialized directory")
	}
}

func TestGitStoreSaveLoadRoundTrip(t *testing.T) {
	store, dir := setupStore(t)
	ctx := context.Background()

	tagged := NewMemory("first record", "notes/daily", Metadata{
		"tags":   []any{"a", "b"},
		"count":  float64(3),
		"pinned": true,
	}, []float32{0.1, 0.2, 0.3})
	bare := NewMemory("second record", "notes", nil, []float32{1, 0, 0})

	if err := store.SaveMemory(ctx, tagged); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveMemory(ctx, bare); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, memoriesDir, tagged.ID+".yaml")); err != nil {
		t.Errorf("record file missing: %v", err)
	}

	mems, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(mems) != 2 {
		t.Fatalf("loaded %d records", len(mems))
	}
	byID := make(map[string]*Memory, len(mems))
	for _, m := range mems {
		byID[m.ID] = m
	}

	got, ok := byID[tagged.ID]
	if !ok {
		t.Fatalf("record %s not loaded", tagged.ID)
	}
	if got.Content != tagged.Content || got.Scope != tagged.Scope {
		t.Errorf("got %+v", got)
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != 0.2 {
		t.Errorf("embedding = %v", got.Embedding)
	}
	if got.Metadata["count"] != float64(3) || got.Metadata["pinned"] != true {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if tags := got.Metadata.Tags(); len(tags) != 2 || tags[0] != "a" {
		t.Errorf("tags = %v", tags)
	}
	if !got.CreatedAt.Equal(tagged.CreatedAt) {
		t.Errorf("created_at drifted: %v vs %v", got.CreatedAt, tagged.CreatedAt)
	}
	if byID[bare.ID].Metadata != nil {
		t.Errorf("nil metadata came back as %v", byID[bare.ID].Metadata)
	}
}

func TestGitStoreCommitMessages(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	mem := NewMemory("alpha", "notes/daily", nil, []float32{1})
	if err := store.SaveMemory(ctx, mem); err != nil {
		t.Fatalf("save: %v", err)
	}
	commits, _ := store.History(ctx, 1)
	want := "store " + shortID(mem.ID) + ": notes/daily"
	if commits[0].Message != want {
		t.Errorf("message = %q, want %q", commits[0].Message, want)
	}

	mem.Content = "beta"
	if err := store.SaveMemory(ctx, mem); err != nil {
		t.Fatalf("update: %v", err)
	}
	commits, _ = store.History(ctx, 1)
	want = "update " + shortID(mem.ID) + ": +1 -1"
	if commits[0].Message != want {
		t.Errorf("message = %q, want %q", commits[0].Message, want)
	}

	mem.Scope = "archive"
	if err := store.SaveMemory(ctx, mem); err != nil {
		t.Fatalf("move: %v", err)
	}
	commits, _ = store.History(ctx, 1)
	want = "update " + shortID(mem.ID) + ": archive"
	if commits[0].Message != want {
		t.Errorf("message = %q, want %q", commits[0].Message, want)
	}
}

func TestGitStoreDeleteIdempotent(t *testing.T) {
	store, dir := setupStore(t)
	ctx := context.Background()

	mem := NewMemory("short lived", "tmp", nil, []float32{1})
	if err := store.SaveMemory(ctx, mem); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.DeleteMemory(ctx, mem.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, memoriesDir, mem.ID+".yaml")); !os.IsNotExist(err) {
		t.Errorf("record file survived delete: %v", err)
	}

	commits, _ := store.History(ctx, 0)
	before := len(commits)
	if commits[0].Message != "delete "+shortID(mem.ID) {
		t.Errorf("message = %q", commits[0].Message)
	}

	// Deleting again, or deleting an id that never existed, changes nothing.
	if err := store.DeleteMemory(ctx, mem.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if err := store.DeleteMemory(ctx, "never-written"); err != nil {
		t.Errorf("unknown delete: %v", err)
	}
	commits, _ = store.History(ctx, 0)
	if len(commits) != before {
		t.Errorf("no-op deletes added commits: %d -> %d", before, len(commits))
	}
}

func TestGitStoreSessionsPersist(t *testing.T) {
	store, dir := setupStore(t)
	ctx := context.Background()

	expiry := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	sessions := []Session{
		{Name: "beta", Scope: "session/beta", CreatedAt: time.Now().UTC()},
		{Name: "alpha", Scope: "session/alpha", CreatedAt: time.Now().UTC(), ExpiresAt: &expiry},
	}
	for _, s := range sessions {
		if err := store.SaveSession(ctx, s); err != nil {
			t.Fatalf("save session %s: %v", s.Name, err)
		}
	}

	// A fresh handle reads them back from sessions.yaml, sorted by name.
	reopened, err := NewGitStore(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_, got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].Name != "alpha" || got[1].Name != "beta" {
		t.Fatalf("sessions = %+v", got)
	}
	if got[0].ExpiresAt == nil || !got[0].ExpiresAt.Equal(expiry) {
		t.Errorf("expiry lost: %v", got[0].ExpiresAt)
	}
	if got[1].ExpiresAt != nil {
		t.Errorf("unexpected expiry: %v", got[1].ExpiresAt)
	}

	if err := store.DeleteSession(ctx, "alpha"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	reopened, err = NewGitStore(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_, got, _ = reopened.Load(ctx)
	if len(got) != 1 || got[0].Name != "beta" {
		t.Errorf("sessions after delete = %+v", got)
	}
}

func TestGitStoreBatchSingleCommit(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	commits, _ := store.History(ctx, 0)
	before := len(commits)

	batch := []*Memory{
		NewMemory("one", "s", nil, []float32{1}),
		NewMemory("two", "s", nil, []float32{2}),
		NewMemory("three", "s", nil, []float32{3}),
	}
	if err := store.SaveMemories(ctx, batch); err != nil {
		t.Fatalf("save batch: %v", err)
	}

	commits, _ = store.History(ctx, 0)
	if len(commits) != before+1 {
		t.Errorf("batch produced %d commits, want 1", len(commits)-before)
	}
	if commits[0].Message != "store batch: 3 memories" {
		t.Errorf("message = %q", commits[0].Message)
	}

	mems, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(mems) != 3 {
		t.Errorf("loaded %d records", len(mems))
	}
}

func TestGitStoreLoadSkipsUnreadable(t *testing.T) {
	store, dir := setupStore(t)
	ctx := context.Background()

	good := NewMemory("healthy record", "s", nil, []float32{1})
	if err := store.SaveMemory(ctx, good); err != nil {
		t.Fatalf("save: %v", err)
	}
	garbage := filepath.Join(dir, memoriesDir, "broken.yaml")
	if err := os.WriteFile(garbage, []byte("not: [valid"), 0644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	readme := filepath.Join(dir, memoriesDir, "README.md")
	if err := os.WriteFile(readme, []byte("notes"), 0644); err != nil {
		t.Fatalf("write readme: %v", err)
	}

	mems, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(mems) != 1 || mems[0].ID != good.ID {
		t.Errorf("loaded %+v", mems)
	}
}

func TestGitStoreHistoryLimit(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		if err := store.SaveMemory(ctx, NewMemory(text, "s", nil, []float32{1})); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	commits, err := store.History(ctx, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("commits = %d, want 2", len(commits))
	}
	if !commits[0].Timestamp.After(commits[1].Timestamp) && !commits[0].Timestamp.Equal(commits[1].Timestamp) {
		t.Errorf("history not newest first: %v, %v", commits[0].Timestamp, commits[1].Timestamp)
	}
}
