package retrieval

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/config"
	"ragchat/internal/logging"

	acl "github.com/cloudwego/eino-ext/libs/acl/openai"
	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"
)

// Embedder turns text into one vector. An empty result signals failure.
type Embedder struct {
	inner  embedding.Embedder
	logger *zap.Logger
}

// newEmbeddingClient is swapped in tests.
var newEmbeddingClient = func(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	dims := cfg.Dimensions
	return acl.NewEmbeddingClient(ctx, &acl.EmbeddingConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Dimensions: &dims,
	})
}

// NewOpenAIEmbedder builds an Embedder backed by the OpenAI embeddings API.
func NewOpenAIEmbedder(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (*Embedder, error) {
	inner, err := newEmbeddingClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init embedding client: %w", err)
	}
	return NewEmbedder(inner, logger), nil
}

func NewEmbedder(inner embedding.Embedder, logger *zap.Logger) *Embedder {
	return &Embedder{inner: inner, logger: logging.OrNop(logger)}
}

// Embed returns the vector for text. Blank text and upstream errors both yield nil;
// callers treat an empty vector as failure. There are no retries.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	vectors, err := e.inner.EmbedStrings(ctx, []string{text})
	if err != nil {
		e.logger.Warn("embedding request failed", zap.Error(err))
		return nil
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		e.logger.Warn("embedding response was empty")
		return nil
	}
	out := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		out[i] = float32(v)
	}
	return out
}
