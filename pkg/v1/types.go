package v1

import "time"

// Memory is one stored record.
type Memory struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Scope     string    `json:"scope"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult is a semantic search hit.
type SearchResult struct {
	Memory Memory  `json:"memory"`
	Score  float32 `json:"score"`
}

// Association is a graph neighbor reached from a memory.
type Association struct {
	Memory Memory  `json:"memory"`
	Weight float32 `json:"weight"`
	Hops   int     `json:"hops"`
}

// Commit is one entry in the store's git history.
type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
