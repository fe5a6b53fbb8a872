package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// runCLI executes one invocation against the given data directory, the way a
// user would run the binary.
func runCLI(t *testing.T, a *app, dataDir string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd("test", a)
	root.SetArgs(append(args, "--data-dir", dataDir))

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)

	err := root.Execute()
	return out.String(), err
}

// setupCLI initializes a store in a temp directory with the default hash
// embedding config, so tests run without network.
func setupCLI(t *testing.T) (string, *app) {
	t.Helper()
	dir := t.TempDir()

	out, err := runCLI(t, &app{}, dir, "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Initialized loci store") {
		t.Errorf("init output = %q", out)
	}
	return dir, &app{}
}

func countLines(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return len(strings.Split(s, "\n"))
}

func TestE2EFullWorkflow(t *testing.T) {
	dir, a := setupCLI(t)

	// 1. Store memories across scopes
	var firstID string
	for i, tc := range []struct {
		content, scope string
	}{
		{"Go interfaces are satisfied implicitly", "project/notes"},
		{"Git stores snapshots not diffs", "project/notes"},
		{"Buy milk and eggs", "personal"},
	} {
		out, err := runCLI(t, a, dir, "store", tc.content, "--scope", tc.scope)
		if err != nil {
			t.Fatalf("store %q: %v", tc.content, err)
		}
		fields := strings.Fields(out)
		if len(fields) != 2 || fields[1] != tc.scope {
			t.Fatalf("store output = %q, want shortid and scope", out)
		}
		if i == 0 {
			firstID = fields[0]
		}
	}

	// 2. Get by short id prefix
	out, err := runCLI(t, a, dir, "get", firstID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "Go interfaces are satisfied implicitly") {
		t.Errorf("get output missing content: %q", out)
	}
	if !strings.Contains(out, "scope:   project/notes") {
		t.Errorf("get output missing scope: %q", out)
	}

	// 3. List all, then by scope
	out, err = runCLI(t, a, dir, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if n := countLines(out); n != 3 {
		t.Errorf("list: expected 3 lines, got %d: %q", n, out)
	}

	out, err = runCLI(t, a, dir, "list", "project")
	if err != nil {
		t.Fatalf("list project: %v", err)
	}
	if n := countLines(out); n != 2 {
		t.Errorf("list project: expected 2 lines, got %d: %q", n, out)
	}

	// 4. Search finds the exact stored text first
	out, err = runCLI(t, a, dir, "search", "Go interfaces are satisfied implicitly")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 || !strings.Contains(lines[0], "Go interfaces") {
		t.Errorf("search top hit = %q, want the stored text", out)
	}

	// 5. Search restricted to a scope
	out, err = runCLI(t, a, dir, "search", "Buy milk and eggs", "--scope", "personal")
	if err != nil {
		t.Fatalf("search scoped: %v", err)
	}
	if strings.Contains(out, "Go interfaces") {
		t.Errorf("scoped search leaked other scopes: %q", out)
	}
	if !strings.Contains(out, "Buy milk") {
		t.Errorf("scoped search missing personal hit: %q", out)
	}

	// 6. Scope listing
	out, err = runCLI(t, a, dir, "scopes")
	if err != nil {
		t.Fatalf("scopes: %v", err)
	}
	if !strings.Contains(out, "project/notes") || !strings.Contains(out, "personal") {
		t.Errorf("scopes output = %q", out)
	}

	// 7. Edit rewrites content
	out, err = runCLI(t, a, dir, "edit", firstID, "Go interfaces are structural")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	out, err = runCLI(t, a, dir, "get", firstID)
	if err != nil {
		t.Fatalf("get after edit: %v", err)
	}
	if !strings.Contains(out, "Go interfaces are structural") {
		t.Errorf("edit did not stick: %q", out)
	}

	// 8. Delete one and recount
	out, err = runCLI(t, a, dir, "rm", firstID)
	if err != nil {
		t.Fatalf("rm: %v", err)
	}
	if !strings.Contains(out, "deleted "+firstID) {
		t.Errorf("rm output = %q", out)
	}

	out, err = runCLI(t, a, dir, "list")
	if err != nil {
		t.Fatalf("list after rm: %v", err)
	}
	if n := countLines(out); n != 2 {
		t.Errorf("list after rm: expected 2 lines, got %d: %q", n, out)
	}

	// 9. The git log remembers all of it
	out, err = runCLI(t, a, dir, "log")
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	// init + 3 stores + 1 update + 1 delete
	if n := countLines(out); n < 6 {
		t.Errorf("log: expected at least 6 commits, got %d: %q", n, out)
	}
	if !strings.Contains(out, "delete") {
		t.Errorf("log missing delete commit: %q", out)
	}

	// 10. Status summarizes the store
	out, err = runCLI(t, a, dir, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "backend    hash") {
		t.Errorf("status missing backend line: %q", out)
	}
	if !strings.Contains(out, "memories   2") {
		t.Errorf("status memory count: %q", out)
	}
}

func TestE2ESessionWorkflow(t *testing.T) {
	dir, a := setupCLI(t)

	out, err := runCLI(t, a, dir, "session", "create", "scratch")
	if err != nil {
		t.Fatalf("session create: %v", err)
	}
	if !strings.Contains(out, "session scratch (session/scratch)") {
		t.Errorf("session create output = %q", out)
	}

	// Duplicate names are rejected
	if _, err := runCLI(t, a, dir, "session", "create", "scratch"); err == nil {
		t.Error("expected error creating duplicate session")
	}

	if _, err := runCLI(t, a, dir, "store", "temporary thought", "--scope", "session/scratch"); err != nil {
		t.Fatalf("store in session: %v", err)
	}

	out, err = runCLI(t, a, dir, "session", "list")
	if err != nil {
		t.Fatalf("session list: %v", err)
	}
	if !strings.Contains(out, "scratch") || !strings.Contains(out, "never") {
		t.Errorf("session list output = %q", out)
	}

	out, err = runCLI(t, a, dir, "session", "rm", "scratch")
	if err != nil {
		t.Fatalf("session rm: %v", err)
	}
	if !strings.Contains(out, "1 memories removed") {
		t.Errorf("session rm output = %q", out)
	}

	out, err = runCLI(t, a, dir, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if n := countLines(out); n != 0 {
		t.Errorf("expected empty store after session rm, got %q", out)
	}
}

func TestE2ESessionCleanup(t *testing.T) {
	dir, a := setupCLI(t)

	out, err := runCLI(t, a, dir, "session", "create", "ephemeral", "--ttl", "10ms")
	if err != nil {
		t.Fatalf("session create: %v", err)
	}
	if !strings.Contains(out, "expires") {
		t.Errorf("session create output = %q", out)
	}

	if _, err := runCLI(t, a, dir, "store", "gone soon", "--scope", "session/ephemeral"); err != nil {
		t.Fatalf("store: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	out, err = runCLI(t, a, dir, "session", "cleanup")
	if err != nil {
		t.Fatalf("session cleanup: %v", err)
	}
	if !strings.Contains(out, "removed 1 memories") {
		t.Errorf("cleanup output = %q", out)
	}
}

func TestE2EMoveWorkflow(t *testing.T) {
	dir, a := setupCLI(t)

	out, err := runCLI(t, a, dir, "store", "quarterly report draft", "--scope", "inbox")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	id := strings.Fields(out)[0]

	out, err = runCLI(t, a, dir, "move", id, "--to", "archive/2026")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !strings.Contains(out, "moved "+id+" -> archive/2026") {
		t.Errorf("move output = %q", out)
	}

	out, err = runCLI(t, a, dir, "list", "archive")
	if err != nil {
		t.Fatalf("list archive: %v", err)
	}
	if !strings.Contains(out, "quarterly report draft") {
		t.Errorf("moved memory not under archive: %q", out)
	}
}

func TestE2EExportImport(t *testing.T) {
	dir, a := setupCLI(t)

	for _, content := range []string{"first note", "second note"} {
		if _, err := runCLI(t, a, dir, "store", content, "--scope", "docs"); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	manifest := filepath.Join(t.TempDir(), "backup.json")
	out, err := runCLI(t, a, dir, "export", "--output", manifest)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "exported 2 memories") {
		t.Errorf("export output = %q", out)
	}

	// Import into a brand new store
	dir2, a2 := setupCLI(t)
	out, err = runCLI(t, a2, dir2, "import", manifest)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "imported 2") {
		t.Errorf("import output = %q", out)
	}

	out, err = runCLI(t, a2, dir2, "list", "docs")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if n := countLines(out); n != 2 {
		t.Errorf("expected 2 imported memories, got %d: %q", n, out)
	}

	// Importing the same manifest again skips duplicates
	out, err = runCLI(t, a2, dir2, "import", manifest)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if !strings.Contains(out, "skipped 2") {
		t.Errorf("re-import output = %q", out)
	}
}

func TestE2EAssocWorkflow(t *testing.T) {
	dir, a := setupCLI(t)

	out, err := runCLI(t, a, dir, "store", "the capybara is the largest living rodent", "--scope", "animals")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	id := strings.Fields(out)[0]

	// A close paraphrase shares enough n-grams to form an edge
	if _, err := runCLI(t, a, dir, "store", "the capybara is the largest rodent alive", "--scope", "animals"); err != nil {
		t.Fatalf("store paraphrase: %v", err)
	}

	out, err = runCLI(t, a, dir, "assoc", id)
	if err != nil {
		t.Fatalf("assoc: %v", err)
	}
	if !strings.Contains(out, "hop 1") || !strings.Contains(out, "largest rodent alive") {
		t.Errorf("assoc output = %q", out)
	}
}

func TestE2EUninitializedStore(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, &app{}, dir, "list")
	if err == nil {
		t.Fatal("expected error for uninitialized store")
	}
	if !strings.Contains(err.Error(), "loci init") {
		t.Errorf("error should point at init: %v", err)
	}
}

func TestE2EInitTwice(t *testing.T) {
	dir, _ := setupCLI(t)

	_, err := runCLI(t, &app{}, dir, "init")
	if err == nil {
		t.Fatal("expected error initializing twice")
	}
	if !strings.Contains(err.Error(), "already initialized") {
		t.Errorf("error = %v", err)
	}
}
