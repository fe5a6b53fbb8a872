package internal

import "context"

// Provider is the optional language model hook behind scope summaries and
// tag suggestions. The engine runs fine without one; operations that need it
// say so when it is missing.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GenerateObject(ctx context.Context, prompt string, target any) error
}

// Structured output types for provider-backed features

type ScopeSummary struct {
	Title     string   `json:"title"`
	Overview  string   `json:"overview"`
	KeyPoints []string `json:"key_points"`
	Tags      []string `json:"tags"`
}

type TagSuggestion struct {
	Tags       []string `json:"tags"`
	Category   string   `json:"category"`
	Confidence float32  `json:"confidence"`
}
