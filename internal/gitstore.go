package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBranch = "main"
	DefaultAuthor = "loci"
	DefaultEmail  = "loci@local"

	memoriesDir  = "memories"
	sessionsFile = "sessions.yaml"
	initMarker   = ".loci-init"
)

// GitStore persists records as YAML files in a go-git repository, one commit
// per mutation. Every memory lives at memories/<id>.yaml; session
// registrations share sessions.yaml. The full history of the memory set is
// the git log.
type GitStore struct {
	mu       sync.Mutex
	repo     *git.Repository
	worktree *git.Worktree
	root     string
	sessions map[string]Session
	logger   *log.Logger
}

var _ RecordStore = (*GitStore)(nil)

// InitStore bootstraps a data directory: a fresh repository with an initial
// commit and ignore rules for the local config and index snapshots.
func InitStore(root string) error {
	gitDir := filepath.Join(root, ".git")
	if err := os.MkdirAll(gitDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	fs := osfs.New(gitDir)
	storage := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())
	wt := osfs.New(root)

	repo, err := git.Init(storage, wt)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("get config: %w", err)
	}
	cfg.Init.DefaultBranch = DefaultBranch
	if err := repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("set config: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}

	files := map[string]string{
		initMarker:   "loci store initialized\n",
		".gitignore": "loci.yaml\nindex.ann\nmapping.json\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		if _, err := worktree.Add(name); err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
	}

	if _, err := worktree.Commit("init: initialize loci store", commitOptions()); err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}
	return nil
}

func NewGitStore(root string, logger *log.Logger) (*GitStore, error) {
	gitDir := filepath.Join(root, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("store not initialized: %s", root)
	}

	fs := osfs.New(gitDir)
	storage := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())
	wt := osfs.New(root)

	repo, err := git.Open(storage, wt)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &GitStore{
		repo:     repo,
		worktree: worktree,
		root:     root,
		sessions: make(map[string]Session),
		logger:   logger,
	}
	if err := s.readSessions(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GitStore) Load(ctx context.Context) ([]*Memory, []Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, memoriesDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, s.sessionList(), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read memories directory: %w", err)
	}

	var mems []*Memory
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, ent.Name()))
		if err != nil {
			return nil, nil, fmt.Errorf("read record: %w", err)
		}
		var mem Memory
		if err := yaml.Unmarshal(data, &mem); err != nil {
			s.logger.Warn("skipping unreadable record", "file", ent.Name(), "err", err)
			continue
		}
		md, err := NormalizeMetadata(mem.Metadata)
		if err != nil {
			s.logger.Warn("dropping bad metadata", "id", mem.ID, "err", err)
			md = nil
		}
		mem.Metadata = md
		mems = append(mems, &mem)
	}
	return mems, s.sessionList(), nil
}

func (s *GitStore) SaveMemory(ctx context.Context, mem *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.stageMemory(mem)
	if err != nil {
		return err
	}
	return s.commit(msg)
}

func (s *GitStore) SaveMemories(ctx context.Context, mems []*Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mem := range mems {
		if _, err := s.stageMemory(mem); err != nil {
			return err
		}
	}
	return s.commit(fmt.Sprintf("store batch: %d memories", len(mems)))
}

func (s *GitStore) DeleteMemory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stageRemoval(id); err != nil {
		return err
	}
	return s.commit(fmt.Sprintf("delete %s", shortID(id)))
}

func (s *GitStore) DeleteMemories(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if err := s.stageRemoval(id); err != nil {
			return err
		}
	}
	return s.commit(fmt.Sprintf("cleanup: %d memories", len(ids)))
}

func (s *GitStore) SaveSession(ctx context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.Name] = sess
	if err := s.stageSessions(); err != nil {
		return err
	}
	return s.commit(fmt.Sprintf("session %s: registered", sess.Name))
}

func (s *GitStore) DeleteSession(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, name)
	if err := s.stageSessions(); err != nil {
		return err
	}
	return s.commit(fmt.Sprintf("session %s: removed", name))
}

func (s *GitStore) Close() error { return nil }

// History returns recent commits, newest first.
func (s *GitStore) History(ctx context.Context, limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	defer iter.Close()

	var commits []CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(commits) >= limit {
			return io.EOF
		}
		commits = append(commits, CommitInfo{
			Hash:      c.Hash.String(),
			Message:   strings.TrimSpace(c.Message),
			Author:    c.Author.Name,
			Timestamp: c.Author.When,
		})
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, err
	}
	return commits, nil
}

type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// helpers

func (s *GitStore) stageMemory(mem *Memory) (string, error) {
	path := s.memoryPath(mem.ID)
	action := "store"
	detail := mem.Scope.String()
	if prev, err := os.ReadFile(path); err == nil {
		var old Memory
		if yaml.Unmarshal(prev, &old) == nil && old.Content != mem.Content {
			action, detail = "update", DiffStat(old.Content, mem.Content)
		} else {
			action, detail = "update", mem.Scope.String()
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create memories directory: %w", err)
	}
	data, err := yaml.Marshal(mem)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	if _, err := s.worktree.Add(s.memoryRel(mem.ID)); err != nil {
		return "", fmt.Errorf("stage record: %w", err)
	}
	return fmt.Sprintf("%s %s: %s", action, shortID(mem.ID), detail), nil
}

// stageRemoval is a no-op for records that were never written, which keeps
// deletes idempotent across restarts.
func (s *GitStore) stageRemoval(id string) error {
	if _, err := os.Stat(s.memoryPath(id)); os.IsNotExist(err) {
		return nil
	}
	if _, err := s.worktree.Remove(s.memoryRel(id)); err != nil {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

func (s *GitStore) stageSessions() error {
	data, err := yaml.Marshal(sessionsDoc{Sessions: s.sessionList()})
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.root, sessionsFile), data, 0644); err != nil {
		return fmt.Errorf("write sessions: %w", err)
	}
	if _, err := s.worktree.Add(sessionsFile); err != nil {
		return fmt.Errorf("stage sessions: %w", err)
	}
	return nil
}

func (s *GitStore) readSessions() error {
	data, err := os.ReadFile(filepath.Join(s.root, sessionsFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sessions: %w", err)
	}
	var doc sessionsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse sessions: %w", err)
	}
	for _, sess := range doc.Sessions {
		s.sessions[sess.Name] = sess
	}
	return nil
}

func (s *GitStore) sessionList() []Session {
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *GitStore) commit(msg string) error {
	status, err := s.worktree.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	if _, err := s.worktree.Commit(msg, commitOptions()); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("committed", "msg", msg)
	return nil
}

func (s *GitStore) memoryPath(id string) string {
	return filepath.Join(s.root, memoriesDir, id+".yaml")
}

func (s *GitStore) memoryRel(id string) string {
	return memoriesDir + "/" + id + ".yaml"
}

func commitOptions() *git.CommitOptions {
	return &git.CommitOptions{
		Author: &object.Signature{
			Name:  DefaultAuthor,
			Email: DefaultEmail,
			When:  time.Now(),
		},
	}
}

type sessionsDoc struct {
	Sessions []Session `yaml:"sessions"`
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
