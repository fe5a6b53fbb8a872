package internal

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// EmbeddingCache fronts the Embedder with a content-addressed cache. Entries
// are keyed by sha256 of the text, evicted LRU past capacity and expired TTL
// after insertion; a hit bumps recency but never extends the expiry.
//
// All provider traffic funnels through here: calls are bounded by a weighted
// semaphore, retried per the policy, and concurrent requests for the same
// content collapse into a single upstream call. Failures are never cached.
type EmbeddingCache struct {
	embedder Embedder
	entries  *expirable.LRU[string, []float32]
	flight   singleflight.Group
	sem      *semaphore.Weighted
	retry    RetryPolicy
	batchMax int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	calls     atomic.Uint64
}

type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Calls     uint64
	Entries   int
}

func NewEmbeddingCache(embedder Embedder, capacity int, ttl time.Duration, concurrency int, retry RetryPolicy, batchMax int) *EmbeddingCache {
	if concurrency < 1 {
		concurrency = 1
	}
	if batchMax < 1 {
		batchMax = 64
	}
	c := &EmbeddingCache{
		embedder: embedder,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		retry:    retry,
		batchMax: batchMax,
	}
	c.entries = expirable.NewLRU[string, []float32](capacity,
		func(string, []float32) { c.evictions.Add(1) }, ttl)
	return c
}

// Vector returns the embedding for text, from cache when possible.
func (c *EmbeddingCache) Vector(ctx context.Context, text string) ([]float32, error) {
	key := ContentHash(text)
	if vec, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return vec, nil
	}
	c.misses.Add(1)

	v, err, _ := c.flight.Do(key, func() (any, error) {
		if vec, ok := c.entries.Get(key); ok {
			return vec, nil
		}
		var vec []float32
		err := withRetry(ctx, c.retry, func(ctx context.Context) error {
			var err error
			vec, err = c.embed(ctx, text)
			return err
		})
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// VectorBatch resolves texts in order, embedding only cache misses. Misses
// are deduplicated within the batch and sent upstream in chunks.
func (c *EmbeddingCache) VectorBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missing := make([]string, 0)
	slots := make(map[string][]int, len(texts))

	for i, t := range texts {
		key := ContentHash(t)
		if vec, ok := c.entries.Get(key); ok {
			c.hits.Add(1)
			out[i] = vec
			continue
		}
		c.misses.Add(1)
		if _, queued := slots[key]; !queued {
			missing = append(missing, t)
		}
		slots[key] = append(slots[key], i)
	}

	for start := 0; start < len(missing); start += c.batchMax {
		end := min(start+c.batchMax, len(missing))
		chunk := missing[start:end]

		var vecs [][]float32
		err := withRetry(ctx, c.retry, func(ctx context.Context) error {
			var err error
			vecs, err = c.embedBatch(ctx, chunk)
			return err
		})
		if err != nil {
			return nil, err
		}
		for j, t := range chunk {
			key := ContentHash(t)
			c.entries.Add(key, vecs[j])
			for _, idx := range slots[key] {
				out[idx] = vecs[j]
			}
		}
	}
	return out, nil
}

func (c *EmbeddingCache) embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)
	c.calls.Add(1)

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.checkDim(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (c *EmbeddingCache) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)
	c.calls.Add(1)

	vecs, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, providerErr(c.embedder.Name(), false,
			fmt.Errorf("batch returned %d vectors for %d inputs", len(vecs), len(texts)))
	}
	for _, v := range vecs {
		if err := c.checkDim(v); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

func (c *EmbeddingCache) checkDim(vec []float32) error {
	if d := c.embedder.Dimension(); d > 0 && len(vec) != d {
		return providerErr(c.embedder.Name(), false,
			fmt.Errorf("returned dimension %d, configured %d", len(vec), d))
	}
	return nil
}

func (c *EmbeddingCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Calls:     c.calls.Load(),
		Entries:   c.entries.Len(),
	}
}
