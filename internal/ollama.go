package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

var _ Embedder = (*OllamaEmbedder)(nil)

type OllamaEmbedder struct {
	client *api.Client
	model  string
	dim    int
}

func NewOllamaEmbedder(cfg EmbeddingsConfig) (*OllamaEmbedder, error) {
	var client *api.Client
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse ollama base url: %w", err)
		}
		client = api.NewClient(base, http.DefaultClient)
	} else {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		client = c
	}
	return &OllamaEmbedder{client: client, model: cfg.Model, dim: cfg.Dimension}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, providerErr("ollama", ollamaRetryable(err), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, providerErr("ollama", false,
			errors.New("embedding count does not match input count"))
	}
	return resp.Embeddings, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.dim }
func (e *OllamaEmbedder) Name() string   { return BackendOllama }
func (e *OllamaEmbedder) Close() error   { return nil }

func ollamaRetryable(err error) bool {
	var serr api.StatusError
	if errors.As(err, &serr) {
		return serr.StatusCode == http.StatusTooManyRequests || serr.StatusCode >= 500
	}
	// Connection-level failures against a local daemon are worth retrying.
	return true
}
