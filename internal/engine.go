package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var ErrNoProvider = errors.New("no language model provider configured")

const (
	DefaultTopK          = 10
	DefaultDiscoverDepth = 2
	DefaultDiscoverLimit = 10
)

// Engine is the facade over the record table, similarity index, association
// graph and session registry. One RWMutex guards all four so a mutation lands
// in every structure or none; embedding calls go through the cache outside
// any lock, so a slow provider never blocks readers.
type Engine struct {
	cfg    *Config
	logger *log.Logger

	embedder Embedder
	cache    *EmbeddingCache
	store    RecordStore
	provider Provider

	mu       sync.RWMutex
	table    map[string]*Memory
	index    *ExactIndex
	graph    *AssociationGraph
	sessions *SessionManager
	ann      *AnnoyIndex
}

type EngineOption func(*Engine)

func WithLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithProvider attaches a language model for summaries and tag suggestions.
func WithProvider(p Provider) EngineOption {
	return func(e *Engine) { e.provider = p }
}

// NewEngine builds an engine over the given embedder and store, loads every
// record the store holds and rebuilds the index and graph from the persisted
// embeddings. No provider calls happen during load.
func NewEngine(ctx context.Context, cfg *Config, embedder Embedder, store RecordStore, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = NullStore{}
	}

	e := &Engine{
		cfg:      cfg,
		logger:   log.New(io.Discard),
		embedder: embedder,
		store:    store,
		cache: NewEmbeddingCache(embedder, cfg.Cache.Capacity, cfg.Cache.TTL.Std(),
			cfg.Retry.Concurrency, cfg.RetryPolicy(), cfg.Embeddings.BatchSize),
	}
	for _, opt := range opts {
		opt(e)
	}

	mems, sessions, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	e.reset(mems, sessions)
	return e, nil
}

// reset rebuilds the in-memory structures from stored records. Callers hold
// the write lock, except the constructor before the engine is shared.
func (e *Engine) reset(mems []*Memory, sessions []Session) {
	e.table = make(map[string]*Memory, len(mems))
	e.index = NewExactIndex(e.cfg.Embeddings.Dimension)
	e.graph = NewAssociationGraph(e.cfg.Graph.LinkThreshold, e.cfg.Graph.MaxEdges)
	e.sessions = NewSessionManager()

	stale := 0
	for _, mem := range mems {
		e.table[mem.ID] = mem
		if err := e.index.Add(mem.ID, mem.Scope, mem.Embedding); err != nil {
			// Wrong dimension, typically after an embedding model change.
			// The record stays readable; rebuild re-embeds and reindexes it.
			stale++
			continue
		}
		e.graph.Link(mem.ID, nil)
	}
	for id := range e.table {
		if entry, ok := e.index.entries[id]; ok {
			e.relink(id, entry.vec)
		}
	}
	for _, s := range sessions {
		e.sessions.Restore(s)
	}

	if stale > 0 {
		e.logger.Warn("records excluded from index, run rebuild", "count", stale,
			"dimension", e.cfg.Embeddings.Dimension)
	}
	nodes, edges := e.graph.Size()
	e.logger.Debug("engine loaded", "memories", len(e.table), "sessions", len(sessions),
		"nodes", nodes, "edges", edges)
}

// relink recomputes id's association edges from its current index neighbors.
func (e *Engine) relink(id string, vec []float32) {
	k := e.cfg.Graph.TopKNeighbors + 1 // the nearest neighbor is id itself
	neighbors, err := e.index.TopK(vec, k, "")
	if err != nil {
		return
	}
	e.graph.Link(id, neighbors)
}

// admit indexes mem in every structure. Caller holds the write lock.
func (e *Engine) admit(mem *Memory) error {
	if err := e.index.Add(mem.ID, mem.Scope, mem.Embedding); err != nil {
		return err
	}
	e.table[mem.ID] = mem
	e.graph.Link(mem.ID, nil)
	e.relink(mem.ID, mem.Embedding)
	return nil
}

// drop removes id from every structure. Caller holds the write lock.
func (e *Engine) drop(id string) {
	delete(e.table, id)
	e.index.Remove(id)
	e.graph.Remove(id)
	if e.ann != nil {
		e.ann.Remove(id)
	}
}

// Store embeds content and indexes it as a new memory under scope. The vector
// is computed before the write lock is taken; if persistence fails the
// in-memory structures are rolled back, so the memory is either fully indexed
// and durable or absent.
func (e *Engine) Store(ctx context.Context, content, scope string, md Metadata) (*Memory, error) {
	if strings.TrimSpace(content) == "" {
		return nil, invalidf("content", "must not be empty")
	}
	sc, err := ParseScope(scope)
	if err != nil {
		return nil, err
	}
	meta, err := NormalizeMetadata(md)
	if err != nil {
		return nil, err
	}

	vec, err := e.cache.Vector(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if limit := e.cfg.Index.MaxMemories; limit > 0 && len(e.table) >= limit {
		return nil, &CapacityError{Limit: limit, Size: len(e.table)}
	}
	mem := NewMemory(content, sc, meta, vec)
	if err := e.admit(mem); err != nil {
		return nil, err
	}
	if err := e.store.SaveMemory(ctx, mem); err != nil {
		e.drop(mem.ID)
		return nil, fmt.Errorf("persist memory: %w", err)
	}

	e.logger.Debug("stored", "id", shortID(mem.ID), "scope", sc)
	return mem.clone(), nil
}

func (e *Engine) Get(id string) (*Memory, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	mem, ok := e.table[id]
	if !ok {
		return nil, notFound("memory", id)
	}
	return mem.clone(), nil
}

// ResolveID expands an id prefix to the full memory id, git-style.
func (e *Engine) ResolveID(prefix string) (string, error) {
	if prefix == "" {
		return "", invalidf("id", "must not be empty")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.table[prefix]; ok {
		return prefix, nil
	}
	var match string
	for id := range e.table {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if match != "" {
			return "", &ConflictError{Reason: fmt.Sprintf("id prefix %q is ambiguous", prefix)}
		}
		match = id
	}
	if match == "" {
		return "", notFound("memory", prefix)
	}
	return match, nil
}

type UpdateRequest struct {
	Content  *string
	Scope    *string
	Metadata *Metadata
}

// Update rewrites the given fields of a memory. A content change re-embeds
// (outside the lock) and recomputes association edges; a scope change moves
// the memory without touching vector or edges.
func (e *Engine) Update(ctx context.Context, id string, req UpdateRequest) (*Memory, error) {
	e.mu.RLock()
	cur, ok := e.table[id]
	var curContent string
	if ok {
		curContent = cur.Content
	}
	e.mu.RUnlock()
	if !ok {
		return nil, notFound("memory", id)
	}

	var newScope *Scope
	if req.Scope != nil {
		sc, err := ParseScope(*req.Scope)
		if err != nil {
			return nil, err
		}
		newScope = &sc
	}
	var newMD Metadata
	mdSet := false
	if req.Metadata != nil {
		md, err := NormalizeMetadata(*req.Metadata)
		if err != nil {
			return nil, err
		}
		newMD, mdSet = md, true
	}

	var newVec []float32
	contentSet := req.Content != nil && *req.Content != curContent
	if contentSet {
		if strings.TrimSpace(*req.Content) == "" {
			return nil, invalidf("content", "must not be empty")
		}
		vec, err := e.cache.Vector(ctx, *req.Content)
		if err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		newVec = vec
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	mem, ok := e.table[id]
	if !ok {
		return nil, notFound("memory", id)
	}
	prev := mem.clone()

	if contentSet {
		mem.Content = *req.Content
		mem.Embedding = newVec
		if err := e.index.Add(id, mem.Scope, newVec); err != nil {
			e.table[id] = prev
			return nil, err
		}
		e.graph.Unlink(id)
		e.relink(id, newVec)
	}
	if newScope != nil && *newScope != mem.Scope {
		mem.Scope = *newScope
		e.index.SetScope(id, *newScope)
	}
	if mdSet {
		mem.Metadata = newMD
	}
	mem.UpdatedAt = time.Now().UTC()

	if err := e.store.SaveMemory(ctx, mem); err != nil {
		e.drop(id)
		if aerr := e.admit(prev); aerr != nil {
			e.logger.Error("restore after failed persist", "id", shortID(id), "err", aerr)
		}
		return nil, fmt.Errorf("persist memory: %w", err)
	}
	return mem.clone(), nil
}

func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	mem, ok := e.table[id]
	if !ok {
		return notFound("memory", id)
	}
	e.drop(id)
	if err := e.store.DeleteMemory(ctx, id); err != nil {
		if aerr := e.admit(mem); aerr != nil {
			e.logger.Error("restore after failed delete", "id", shortID(id), "err", aerr)
		}
		return fmt.Errorf("delete memory: %w", err)
	}
	e.logger.Debug("deleted", "id", shortID(id))
	return nil
}

// List returns every memory under prefix, ordered by scope, creation time
// and id. An empty prefix lists the whole corpus.
func (e *Engine) List(prefix string) ([]*Memory, error) {
	p, err := ParseScopePrefix(prefix)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Memory, 0)
	for _, mem := range e.table {
		if mem.Scope.Under(p) {
			out = append(out, mem.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Scopes returns every distinct scope in use, including registered session
// scopes that hold no memories yet.
func (e *Engine) Scopes() []Scope {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scopesLocked()
}

func (e *Engine) scopesLocked() []Scope {
	seen := make(map[Scope]struct{})
	for _, mem := range e.table {
		seen[mem.Scope] = struct{}{}
	}
	for _, s := range e.sessions.List() {
		seen[s.Scope] = struct{}{}
	}
	out := make([]Scope, 0, len(seen))
	for sc := range seen {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Children lists the immediate child segments below prefix.
func (e *Engine) Children(prefix string) ([]string, error) {
	p, err := ParseScopePrefix(prefix)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return childSegments(p, e.scopesLocked()), nil
}

type SearchMode string

const (
	SearchStandard    SearchMode = "standard"
	SearchDiversified SearchMode = "diversified"
)

func ParseSearchMode(s string) (SearchMode, error) {
	switch s {
	case "", string(SearchStandard):
		return SearchStandard, nil
	case string(SearchDiversified):
		return SearchDiversified, nil
	}
	return "", invalidf("mode", "unknown %q", s)
}

type SearchRequest struct {
	Query string
	Scope string
	TopK  int
	Mode  SearchMode
	// Lambda is the relevance/diversity trade-off for diversified mode;
	// nil takes the configured default, 1 is pure relevance.
	Lambda *float64
}

type SearchResult struct {
	Memory *Memory `json:"memory"`
	Score  float32 `json:"score"`
}

// Search embeds the query and ranks the corpus against it. Standard mode is
// the index's exact top-k; diversified mode over-fetches a candidate pool and
// applies maximal marginal relevance. Scores are query relevance either way.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, invalidf("query", "must not be empty")
	}
	prefix, err := ParseScopePrefix(req.Scope)
	if err != nil {
		return nil, err
	}
	mode, err := ParseSearchMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	k := req.TopK
	if k == 0 {
		k = DefaultTopK
	}
	if k < 1 {
		return nil, invalidf("top_k", "must be at least 1, got %d", k)
	}
	lambda := e.cfg.Search.DefaultLambda
	if req.Lambda != nil {
		lambda = *req.Lambda
	}

	qvec, err := e.cache.Vector(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var hits []Hit
	switch mode {
	case SearchStandard:
		hits, err = e.index.TopK(qvec, k, prefix)
	case SearchDiversified:
		pool := k * e.cfg.Search.CandidateFactor
		var cands []Candidate
		cands, err = e.index.TopCandidates(qvec, pool, prefix)
		if err == nil {
			hits, err = RerankMMR(cands, k, lambda)
		}
	}
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		if mem, ok := e.table[h.ID]; ok {
			results = append(results, SearchResult{Memory: mem.clone(), Score: h.Score})
		}
	}
	return results, nil
}

type DiscoverResult struct {
	Association
	Memory *Memory `json:"memory,omitempty"`
}

// Discover walks the association graph from id and returns the reachable
// memories, strongest association first. Zero depth or limit take defaults.
func (e *Engine) Discover(id string, depth, limit int) ([]DiscoverResult, error) {
	if depth == 0 {
		depth = DefaultDiscoverDepth
	}
	if limit == 0 {
		limit = DefaultDiscoverLimit
	}
	if depth < 1 {
		return nil, invalidf("depth", "must be at least 1, got %d", depth)
	}
	if limit < 1 {
		return nil, invalidf("limit", "must be at least 1, got %d", limit)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.table[id]; !ok {
		return nil, notFound("memory", id)
	}
	assocs := e.graph.Discover(id, depth, limit)
	out := make([]DiscoverResult, 0, len(assocs))
	for _, a := range assocs {
		r := DiscoverResult{Association: a}
		if mem, ok := e.table[a.ID]; ok {
			r.Memory = mem.clone()
		}
		out = append(out, r)
	}
	return out, nil
}

type MoveReport struct {
	Moved  []string      `json:"moved"`
	Failed []MoveFailure `json:"failed,omitempty"`
}

type MoveFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Move reassigns memories to the target scope. Unknown ids are reported in
// the result, not fatal to the batch; association edges are untouched since
// vectors do not change.
func (e *Engine) Move(ctx context.Context, ids []string, target string) (*MoveReport, error) {
	sc, err := ParseScope(target)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	report := &MoveReport{}
	now := time.Now().UTC()
	var moved []*Memory
	prevScopes := make(map[string]Scope)
	for _, id := range ids {
		mem, ok := e.table[id]
		if !ok {
			report.Failed = append(report.Failed, MoveFailure{ID: id, Reason: "memory not found"})
			continue
		}
		if _, dup := prevScopes[id]; !dup && mem.Scope != sc {
			prevScopes[id] = mem.Scope
			mem.Scope = sc
			mem.UpdatedAt = now
			e.index.SetScope(id, sc)
			moved = append(moved, mem)
		}
		report.Moved = append(report.Moved, id)
	}

	if len(moved) > 0 {
		if err := e.store.SaveMemories(ctx, moved); err != nil {
			for id, prev := range prevScopes {
				if mem, ok := e.table[id]; ok {
					mem.Scope = prev
					e.index.SetScope(id, prev)
				}
			}
			return nil, fmt.Errorf("persist move: %w", err)
		}
	}
	return report, nil
}

// CreateSession registers a named session owning the session/<name> scope.
// A nil ttl means the session never expires on its own.
func (e *Engine) CreateSession(ctx context.Context, name string, ttl *time.Duration) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.sessions.Create(name, ttl, time.Now().UTC())
	if err != nil {
		return Session{}, err
	}
	if err := e.store.SaveSession(ctx, s); err != nil {
		e.sessions.Delete(name)
		return Session{}, fmt.Errorf("persist session: %w", err)
	}
	e.logger.Debug("session created", "name", name, "scope", s.Scope)
	return s, nil
}

func (e *Engine) Sessions() []Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessions.List()
}

// DeleteSession removes the registration and every memory under its scope,
// expired or not. It returns the number of memories removed.
func (e *Engine) DeleteSession(ctx context.Context, name string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions.Get(name)
	if !ok {
		return 0, notFound("session", name)
	}
	n, err := e.retireSession(ctx, s)
	if err != nil {
		return n, err
	}
	e.logger.Debug("session deleted", "name", name, "memories", n)
	return n, nil
}

// CleanupSessions removes every session expired as of now, cascading to the
// memories under each session scope. Running it twice is harmless; the second
// pass finds nothing. It returns the number of memories removed.
func (e *Engine) CleanupSessions(ctx context.Context, now time.Time) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for _, s := range e.sessions.ExpiredSessions(now) {
		n, err := e.retireSession(ctx, s)
		removed += n
		if err != nil {
			return removed, err
		}
		e.logger.Info("session expired", "name", s.Name, "memories", n)
	}
	return removed, nil
}

// retireSession drops a session and its memories. Caller holds the write lock.
func (e *Engine) retireSession(ctx context.Context, s Session) (int, error) {
	var ids []string
	for id, mem := range e.table {
		if mem.Scope.Under(s.Scope) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		e.drop(id)
	}
	if len(ids) > 0 {
		if err := e.store.DeleteMemories(ctx, ids); err != nil {
			return len(ids), fmt.Errorf("delete session memories: %w", err)
		}
	}
	e.sessions.Delete(s.Name)
	if err := e.store.DeleteSession(ctx, s.Name); err != nil {
		return len(ids), fmt.Errorf("delete session: %w", err)
	}
	return len(ids), nil
}

// Export writes every memory under prefix to w as a manifest. The id list is
// snapshotted once, then records are copied one at a time so writers are
// never blocked for the whole export.
func (e *Engine) Export(ctx context.Context, w io.Writer, prefix string, compress bool) (int, error) {
	p, err := ParseScopePrefix(prefix)
	if err != nil {
		return 0, err
	}

	e.mu.RLock()
	ids := make([]string, 0, len(e.table))
	for id, mem := range e.table {
		if mem.Scope.Under(p) {
			ids = append(ids, id)
		}
	}
	e.mu.RUnlock()

	mems := make([]*Memory, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		e.mu.RLock()
		if mem, ok := e.table[id]; ok {
			mems = append(mems, mem.clone())
		}
		e.mu.RUnlock()
	}
	sort.Slice(mems, func(i, j int) bool {
		if mems[i].Scope != mems[j].Scope {
			return mems[i].Scope < mems[j].Scope
		}
		if !mems[i].CreatedAt.Equal(mems[j].CreatedAt) {
			return mems[i].CreatedAt.Before(mems[j].CreatedAt)
		}
		return mems[i].ID < mems[j].ID
	})

	if err := WriteManifest(w, mems, compress); err != nil {
		return 0, err
	}
	return len(mems), nil
}

// Import merges a manifest into the corpus. Records are processed one at a
// time, each under its own brief write lock, so a big import does not starve
// other operations; a bad record lands in the report and the rest proceed.
// Every imported record gets a fresh id. Records shipped without an embedding
// are embedded here.
func (e *Engine) Import(ctx context.Context, r io.Reader, strategy MergeStrategy) (*ImportReport, error) {
	man, err := ReadManifest(r)
	if err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = MergeSkipDuplicates
	}

	report := &ImportReport{}
	for i, rec := range man.Memories {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := e.importRecord(ctx, rec, strategy)
		if err != nil {
			report.Failed = append(report.Failed, ImportFailure{Index: i, ID: rec.ID, Reason: err.Error()})
			continue
		}
		switch outcome {
		case outcomeImported:
			report.Imported++
		case outcomeSkipped:
			report.Skipped++
		case outcomeOverwritten:
			report.Overwritten++
		case outcomeVersioned:
			report.Versioned++
		}
	}
	e.logger.Debug("import finished", "imported", report.Imported, "skipped", report.Skipped,
		"overwritten", report.Overwritten, "versioned", report.Versioned, "failed", len(report.Failed))
	return report, nil
}

type importOutcome int

const (
	outcomeImported importOutcome = iota
	outcomeSkipped
	outcomeOverwritten
	outcomeVersioned
)

func (e *Engine) importRecord(ctx context.Context, rec *Memory, strategy MergeStrategy) (importOutcome, error) {
	if rec == nil {
		return 0, invalidf("record", "null entry")
	}
	if strings.TrimSpace(rec.Content) == "" {
		return 0, invalidf("content", "must not be empty")
	}
	sc, err := ParseScope(string(rec.Scope))
	if err != nil {
		return 0, err
	}
	md, err := NormalizeMetadata(rec.Metadata)
	if err != nil {
		return 0, err
	}

	vec := rec.Embedding
	if len(vec) == 0 {
		vec, err = e.cache.Vector(ctx, rec.Content)
		if err != nil {
			return 0, fmt.Errorf("embed content: %w", err)
		}
	} else if len(vec) != e.cfg.Embeddings.Dimension {
		return 0, invalidf("embedding", "dimension %d, engine expects %d", len(vec), e.cfg.Embeddings.Dimension)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	outcome := outcomeImported
	hash := ContentHash(rec.Content)
	dups := e.dupMatches(hash, sc)
	if len(dups) > 0 {
		switch strategy {
		case MergeSkipDuplicates:
			return outcomeSkipped, nil
		case MergeOverwrite:
			if len(dups) > 1 {
				return 0, &ConflictError{
					Reason: fmt.Sprintf("%d memories in scope %s share this content", len(dups), sc),
				}
			}
			old := dups[0]
			e.drop(old.ID)
			if err := e.store.DeleteMemory(ctx, old.ID); err != nil {
				if aerr := e.admit(old); aerr != nil {
					e.logger.Error("restore after failed overwrite", "id", shortID(old.ID), "err", aerr)
				}
				return 0, fmt.Errorf("overwrite: %w", err)
			}
			outcome = outcomeOverwritten
		case MergeVersion:
			sc = e.freeVersionScope(sc, hash)
			outcome = outcomeVersioned
		}
	}

	if limit := e.cfg.Index.MaxMemories; limit > 0 && len(e.table) >= limit {
		return 0, &CapacityError{Limit: limit, Size: len(e.table)}
	}

	mem := NewMemory(rec.Content, sc, md, vec)
	if !rec.CreatedAt.IsZero() {
		mem.CreatedAt = rec.CreatedAt
	}
	if !rec.UpdatedAt.IsZero() {
		mem.UpdatedAt = rec.UpdatedAt
	}
	if err := e.admit(mem); err != nil {
		return 0, err
	}
	if err := e.store.SaveMemory(ctx, mem); err != nil {
		e.drop(mem.ID)
		return 0, fmt.Errorf("persist memory: %w", err)
	}
	return outcome, nil
}

// dupMatches finds memories with the same content hash in the same scope.
// Caller holds a lock.
func (e *Engine) dupMatches(hash string, sc Scope) []*Memory {
	key := dupKey{hash: hash, scope: sc}
	var out []*Memory
	for _, mem := range e.table {
		if mem.dupKey() == key {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// freeVersionScope finds the first scope/vN child not already holding this
// content. Caller holds the write lock.
func (e *Engine) freeVersionScope(sc Scope, hash string) Scope {
	for n := 2; ; n++ {
		candidate := sc.Join(fmt.Sprintf("v%d", n))
		if len(e.dupMatches(hash, candidate)) == 0 {
			return candidate
		}
	}
}

// Rebuild re-embeds the whole corpus through the batch path and relinks the
// association graph. This is the recovery route after changing the embedding
// model or dimension.
func (e *Engine) Rebuild(ctx context.Context) (int, error) {
	e.mu.RLock()
	ids := make([]string, 0, len(e.table))
	for id := range e.table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	texts := make([]string, len(ids))
	for i, id := range ids {
		texts[i] = e.table[id].Content
	}
	e.mu.RUnlock()

	vecs, err := e.cache.VectorBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed corpus: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	var updated []*Memory
	for i, id := range ids {
		mem, ok := e.table[id]
		if !ok {
			continue // deleted while embedding
		}
		mem.Embedding = vecs[i]
		mem.UpdatedAt = now
		if err := e.index.Add(id, mem.Scope, vecs[i]); err != nil {
			return 0, err
		}
		updated = append(updated, mem)
	}
	for _, mem := range updated {
		e.graph.Unlink(mem.ID)
	}
	for _, mem := range updated {
		e.relink(mem.ID, mem.Embedding)
	}

	if err := e.store.SaveMemories(ctx, updated); err != nil {
		return 0, fmt.Errorf("persist rebuild: %w", err)
	}
	e.logger.Info("rebuilt", "memories", len(updated))
	return len(updated), nil
}

// Refresh reloads the corpus from the record store and rebuilds the index and
// graph from persisted embeddings. No provider calls are made; this is what
// the file watcher runs after an out-of-band change to the data directory.
func (e *Engine) Refresh(ctx context.Context) error {
	mems, sessions, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset(mems, sessions)
	return nil
}

// BuildAnn builds the approximate index over the current corpus and saves it
// next to the data. It is an opt-in companion; the exact index keeps serving
// search either way.
func (e *Engine) BuildAnn(trees int) (int, error) {
	if e.cfg.DataDir == "" {
		return 0, invalidf("data_dir", "not set, approximate index needs a home on disk")
	}
	if trees <= 0 {
		trees = e.cfg.Index.AnnoyTrees
	}

	e.mu.RLock()
	type pair struct {
		id  string
		vec []float32
	}
	pairs := make([]pair, 0, len(e.table))
	for id := range e.table {
		if entry, ok := e.index.entries[id]; ok {
			pairs = append(pairs, pair{id: id, vec: entry.vec})
		}
	}
	e.mu.RUnlock()
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	ann, err := NewAnnoyIndex(e.cfg.DataDir, e.cfg.Embeddings.Dimension)
	if err != nil {
		return 0, err
	}
	for _, p := range pairs {
		if err := ann.Add(p.id, p.vec); err != nil {
			return 0, err
		}
	}
	ann.Build(trees)
	if err := ann.Save(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	e.ann = ann
	e.mu.Unlock()
	e.logger.Info("approximate index built", "items", len(pairs), "trees", trees)
	return len(pairs), nil
}

// AnnSearch queries the approximate index, loading it from disk on first use.
// Scope filtering happens after the candidate fetch, so it over-fetches to
// compensate.
func (e *Engine) AnnSearch(ctx context.Context, query string, k int, scope string) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidf("query", "must not be empty")
	}
	prefix, err := ParseScopePrefix(scope)
	if err != nil {
		return nil, err
	}
	if k == 0 {
		k = DefaultTopK
	}
	if k < 1 {
		return nil, invalidf("top_k", "must be at least 1, got %d", k)
	}

	if err := e.ensureAnn(); err != nil {
		return nil, err
	}

	qvec, err := e.cache.Vector(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	fetch := k * 4
	if prefix == "" {
		fetch = k
	}
	hits, err := e.ann.Search(qvec, fetch)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, k)
	for _, h := range hits {
		mem, ok := e.table[h.ID]
		if !ok || !mem.Scope.Under(prefix) {
			continue
		}
		results = append(results, SearchResult{Memory: mem.clone(), Score: h.Score})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

func (e *Engine) ensureAnn() error {
	e.mu.RLock()
	loaded := e.ann != nil
	e.mu.RUnlock()
	if loaded {
		return nil
	}

	if e.cfg.DataDir == "" {
		return invalidf("data_dir", "not set, approximate index needs a home on disk")
	}
	ann, err := NewAnnoyIndex(e.cfg.DataDir, e.cfg.Embeddings.Dimension)
	if err != nil {
		return err
	}
	if err := ann.Load(); err != nil {
		return fmt.Errorf("load approximate index (run index build first): %w", err)
	}

	e.mu.Lock()
	if e.ann == nil {
		e.ann = ann
	}
	e.mu.Unlock()
	return nil
}

// SummarizeScope asks the language model provider for a structured summary of
// the memories under prefix, most recent first, capped to keep prompts sane.
func (e *Engine) SummarizeScope(ctx context.Context, prefix string) (*ScopeSummary, error) {
	if e.provider == nil {
		return nil, ErrNoProvider
	}
	mems, err := e.List(prefix)
	if err != nil {
		return nil, err
	}
	if len(mems) == 0 {
		return nil, notFound("scope", prefix)
	}

	sort.Slice(mems, func(i, j int) bool { return mems[i].CreatedAt.After(mems[j].CreatedAt) })
	const maxEntries = 50
	if len(mems) > maxEntries {
		mems = mems[:maxEntries]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following %d notes", len(mems))
	if prefix != "" {
		fmt.Fprintf(&b, " from the %q collection", prefix)
	}
	b.WriteString(". Produce a short title, a one-paragraph overview, the key points, and a handful of topic tags.\n\n")
	for _, mem := range mems {
		fmt.Fprintf(&b, "[%s] %s\n", mem.Scope, mem.Content)
	}

	var summary ScopeSummary
	if err := e.provider.GenerateObject(ctx, b.String(), &summary); err != nil {
		return nil, fmt.Errorf("summarize scope: %w", err)
	}
	return &summary, nil
}

// SuggestTags asks the provider for tags describing one memory. Applying them
// is a separate step so the caller can review first.
func (e *Engine) SuggestTags(ctx context.Context, id string) (*TagSuggestion, error) {
	if e.provider == nil {
		return nil, ErrNoProvider
	}
	mem, err := e.Get(id)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Suggest concise lowercase tags for this note, plus a single category and your confidence (0 to 1).\n\nScope: %s\n\n%s",
		mem.Scope, mem.Content)

	var suggestion TagSuggestion
	if err := e.provider.GenerateObject(ctx, prompt, &suggestion); err != nil {
		return nil, fmt.Errorf("suggest tags: %w", err)
	}
	return &suggestion, nil
}

// ApplyTags merges tags into a memory's metadata, deduplicated, sorted.
func (e *Engine) ApplyTags(ctx context.Context, id string, tags []string) (*Memory, error) {
	if len(tags) == 0 {
		return nil, invalidf("tags", "must not be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	mem, ok := e.table[id]
	if !ok {
		return nil, notFound("memory", id)
	}
	prev := mem.clone()

	merged := append(mem.Metadata.Tags(), tags...)
	seen := make(map[string]struct{}, len(merged))
	distinct := merged[:0]
	for _, t := range merged {
		t = strings.TrimSpace(strings.ToLower(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		distinct = append(distinct, t)
	}
	sort.Strings(distinct)

	if mem.Metadata == nil {
		mem.Metadata = Metadata{}
	}
	mem.Metadata.setTags(distinct)
	mem.UpdatedAt = time.Now().UTC()

	if err := e.store.SaveMemory(ctx, mem); err != nil {
		e.table[id] = prev
		return nil, fmt.Errorf("persist memory: %w", err)
	}
	return mem.clone(), nil
}

type EngineStats struct {
	Memories   int        `json:"memories"`
	Sessions   int        `json:"sessions"`
	Scopes     int        `json:"scopes"`
	GraphNodes int        `json:"graph_nodes"`
	GraphEdges int        `json:"graph_edges"`
	AnnItems   int        `json:"ann_items,omitempty"`
	Cache      CacheStats `json:"cache"`
}

func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	nodes, edges := e.graph.Size()
	st := EngineStats{
		Memories:   len(e.table),
		Sessions:   len(e.sessions.List()),
		Scopes:     len(e.scopesLocked()),
		GraphNodes: nodes,
		GraphEdges: edges,
		Cache:      e.cache.Stats(),
	}
	if e.ann != nil {
		st.AnnItems = e.ann.Len()
	}
	return st
}

func (e *Engine) CacheStats() CacheStats { return e.cache.Stats() }

func (e *Engine) Config() *Config { return e.cfg }

func (e *Engine) Close() error {
	return errors.Join(e.store.Close(), e.embedder.Close())
}
