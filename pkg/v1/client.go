package v1

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/loci-dev/loci/internal"
)

// Client provides programmatic access to a memory store.
type Client struct {
	eng   *internal.Engine
	store *internal.GitStore
	scope string
}

// Init creates a store at dataDir with the default configuration. It is the
// programmatic equivalent of "loci init".
func Init(dataDir string) error {
	if _, err := os.Stat(filepath.Join(dataDir, ".git")); err == nil {
		return fmt.Errorf("already initialized at %s", dataDir)
	}
	if err := internal.InitStore(dataDir); err != nil {
		return err
	}
	return internal.SaveConfig(dataDir, internal.DefaultConfig())
}

// New opens an initialized store. Configuration comes from the store's
// loci.yaml; options override it.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{scope: "inbox"}
	for _, opt := range opts {
		opt(cfg)
	}

	dataDir := cfg.dataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".loci")
	}

	conf, err := internal.LoadConfig(dataDir)
	if err != nil {
		return nil, err
	}
	if cfg.dimension > 0 {
		conf.Embeddings.Dimension = cfg.dimension
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	store, err := internal.NewGitStore(dataDir, logger)
	if err != nil {
		return nil, err
	}
	embedder, err := internal.NewEmbedder(conf.Embeddings)
	if err != nil {
		return nil, err
	}
	eng, err := internal.NewEngine(context.Background(), conf, embedder, store,
		internal.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &Client{eng: eng, store: store, scope: cfg.scope}, nil
}

// Store embeds content and saves it as a new memory. An empty scope takes the
// client's default.
func (c *Client) Store(ctx context.Context, content, scope string) (Memory, error) {
	if scope == "" {
		scope = c.scope
	}
	mem, err := c.eng.Store(ctx, content, scope, nil)
	if err != nil {
		return Memory{}, fmt.Errorf("store: %w", err)
	}
	return fromInternal(mem), nil
}

// Get retrieves a memory by id or unique id prefix.
func (c *Client) Get(ctx context.Context, id string) (Memory, error) {
	full, err := c.eng.ResolveID(id)
	if err != nil {
		return Memory{}, err
	}
	mem, err := c.eng.Get(full)
	if err != nil {
		return Memory{}, err
	}
	return fromInternal(mem), nil
}

// Delete removes a memory and its associations.
func (c *Client) Delete(ctx context.Context, id string) error {
	full, err := c.eng.ResolveID(id)
	if err != nil {
		return err
	}
	if err := c.eng.Delete(ctx, full); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// List returns memories under the scope prefix, grouped by scope. An empty
// prefix returns everything.
func (c *Client) List(ctx context.Context, prefix string) ([]Memory, error) {
	mems, err := c.eng.List(prefix)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	out := make([]Memory, 0, len(mems))
	for _, m := range mems {
		out = append(out, fromInternal(m))
	}
	return out, nil
}

// Search ranks memories against the query by meaning.
func (c *Client) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	results, err := c.eng.Search(ctx, internal.SearchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{Memory: fromInternal(r.Memory), Score: r.Score})
	}
	return out, nil
}

// Discover walks the association graph from a memory. Zero depth or limit
// take the engine defaults.
func (c *Client) Discover(ctx context.Context, id string, depth, limit int) ([]Association, error) {
	full, err := c.eng.ResolveID(id)
	if err != nil {
		return nil, err
	}
	results, err := c.eng.Discover(full, depth, limit)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	out := make([]Association, 0, len(results))
	for _, r := range results {
		assoc := Association{Weight: r.Weight, Hops: r.Hops}
		if r.Memory != nil {
			assoc.Memory = fromInternal(r.Memory)
		}
		out = append(out, assoc)
	}
	return out, nil
}

// History returns recent store commits, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]Commit, error) {
	commits, err := c.store.History(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	out := make([]Commit, 0, len(commits))
	for _, ci := range commits {
		out = append(out, Commit{Hash: ci.Hash, Message: ci.Message, Timestamp: ci.Timestamp})
	}
	return out, nil
}

// Close releases the engine and its store.
func (c *Client) Close() error {
	return c.eng.Close()
}

func fromInternal(m *internal.Memory) Memory {
	return Memory{
		ID:        m.ID,
		Content:   m.Content,
		Scope:     string(m.Scope),
		Tags:      m.Metadata.Tags(),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
