package internal

// RerankMMR applies greedy maximal marginal relevance to a candidate pool.
// Candidates must arrive sorted as the index returns them (score descending,
// id ascending). The first pick is the most relevant candidate; every later
// pick maximizes
//
//	lambda*relevance - (1-lambda)*maxSimilarityToSelected
//
// with ties going to the lowest id. lambda 1 reduces the formula to plain
// relevance, so the result order matches the index exactly; lambda 0 ignores
// relevance beyond the first pick and spreads the selection out. Scores in
// the returned hits are always the relevance to the query, not the marginal
// score, so callers see comparable numbers in both search modes.
func RerankMMR(cands []Candidate, k int, lambda float64) ([]Hit, error) {
	if lambda < 0 || lambda > 1 {
		return nil, invalidf("lambda", "must be in [0, 1], got %g", lambda)
	}
	if k < 1 {
		return nil, invalidf("top_k", "must be at least 1, got %d", k)
	}
	if len(cands) == 0 {
		return nil, nil
	}

	lam := float32(lambda)
	remaining := append([]Candidate(nil), cands...)

	selected := make([]Hit, 0, min(k, len(remaining)))
	chosen := make([]Candidate, 0, min(k, len(remaining)))

	pick := func(i int) {
		c := remaining[i]
		selected = append(selected, Hit{ID: c.ID, Score: c.Score})
		chosen = append(chosen, c)
		remaining = append(remaining[:i], remaining[i+1:]...)
	}
	pick(0)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		var bestScore float32
		for i, c := range remaining {
			s := lam*c.Score - (1-lam)*maxSimilarity(c, chosen)
			switch {
			case i == 0:
				bestScore = s
			case s > bestScore:
				bestIdx, bestScore = i, s
			case s == bestScore && c.ID < remaining[bestIdx].ID:
				bestIdx = i
			}
		}
		pick(bestIdx)
	}
	return selected, nil
}

func maxSimilarity(c Candidate, chosen []Candidate) float32 {
	var best float32
	for i, s := range chosen {
		sim := cosineWithNorms(c.Vec, s.Vec, c.Norm, s.Norm)
		if i == 0 || sim > best {
			best = sim
		}
	}
	return best
}
