package internal

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Hit is one similarity result: a memory id and its cosine score against the
// query, higher is better.
type Hit struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// Candidate carries the vector and cached norm alongside the score so the
// diversified ranker reproduces index scores bit for bit.
type Candidate struct {
	ID    string
	Vec   []float32
	Norm  float32
	Score float32
}

func norm(v []float32) float32 {
	return float32(math.Sqrt(float64(vek32.Dot(v, v))))
}

func cosineWithNorms(a, b []float32, na, nb float32) float32 {
	if na == 0 || nb == 0 {
		return 0
	}
	return vek32.Dot(a, b) / (na * nb)
}

// Cosine is the similarity measure used everywhere: index ranking, edge
// weights, diversification penalties.
func Cosine(a, b []float32) float32 {
	return cosineWithNorms(a, b, norm(a), norm(b))
}

func normalize(v []float32) {
	n := norm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] /= n
	}
}
