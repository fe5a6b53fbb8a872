package internal

import "sort"

// ExactIndex ranks by exhaustive cosine scan. At the corpus sizes this engine
// serves, the scan beats approximate structures on both accuracy and
// simplicity; results are exact and deterministic (score descending, id
// ascending on ties). The engine's RWMutex guards it alongside the record
// table and graph so multi-structure mutations stay atomic.
type ExactIndex struct {
	dim     int
	entries map[string]*indexEntry
}

type indexEntry struct {
	scope Scope
	vec   []float32
	norm  float32
}

func NewExactIndex(dim int) *ExactIndex {
	return &ExactIndex{
		dim:     dim,
		entries: make(map[string]*indexEntry),
	}
}

// Add registers or replaces the vector for id.
func (ix *ExactIndex) Add(id string, scope Scope, vec []float32) error {
	if len(vec) != ix.dim {
		return invalidf("embedding", "dimension %d, index expects %d", len(vec), ix.dim)
	}
	ix.entries[id] = &indexEntry{scope: scope, vec: vec, norm: norm(vec)}
	return nil
}

func (ix *ExactIndex) Remove(id string) {
	delete(ix.entries, id)
}

// SetScope rewrites the scope without re-embedding; used by move.
func (ix *ExactIndex) SetScope(id string, scope Scope) {
	if e, ok := ix.entries[id]; ok {
		e.scope = scope
	}
}

func (ix *ExactIndex) Contains(id string) bool {
	_, ok := ix.entries[id]
	return ok
}

func (ix *ExactIndex) Len() int { return len(ix.entries) }

// TopK returns up to k hits under prefix, best first.
func (ix *ExactIndex) TopK(vec []float32, k int, prefix Scope) ([]Hit, error) {
	cands, err := ix.TopCandidates(vec, k, prefix)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(cands))
	for i, c := range cands {
		hits[i] = Hit{ID: c.ID, Score: c.Score}
	}
	return hits, nil
}

// TopCandidates is TopK with vectors attached, feeding the diversified
// ranker and the graph linker.
func (ix *ExactIndex) TopCandidates(vec []float32, k int, prefix Scope) ([]Candidate, error) {
	if len(vec) != ix.dim {
		return nil, invalidf("query", "dimension %d, index expects %d", len(vec), ix.dim)
	}
	if k < 1 {
		return nil, invalidf("top_k", "must be at least 1, got %d", k)
	}

	qnorm := norm(vec)
	cands := make([]Candidate, 0, len(ix.entries))
	for id, e := range ix.entries {
		if !e.scope.Under(prefix) {
			continue
		}
		cands = append(cands, Candidate{
			ID:    id,
			Vec:   e.vec,
			Norm:  e.norm,
			Score: cosineWithNorms(vec, e.vec, qnorm, e.norm),
		})
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].ID < cands[j].ID
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands, nil
}
