package embedding

import (
	"context"
	"log/slog"

	"collabrag/internal/logger"
)

type VectorCache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool, error)
	Set(ctx context.Context, model, text string, vec []float32) error
}

// Cached serves single-text query embeddings from a cache. Index mode and
// batches always go to the provider. Cache faults are logged and bypassed.
type Cached struct {
	next  Gateway
	cache VectorCache
	model string
	log   *slog.Logger
}

func NewCached(next Gateway, cache VectorCache, model string, log *slog.Logger) *Cached {
	return &Cached{next: next, cache: cache, model: model, log: logger.OrDiscard(log)}
}

func (c *Cached) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if mode != ModeQuery || len(texts) != 1 {
		return c.next.Embed(ctx, texts, mode)
	}

	text := texts[0]
	vec, ok, err := c.cache.Get(ctx, c.model, text)
	if err != nil {
		c.log.Warn("embedding cache read failed", "error", err)
	} else if ok {
		return [][]float32{vec}, nil
	}

	vecs, err := c.next.Embed(ctx, texts, mode)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, c.model, text, vecs[0]); err != nil {
		c.log.Warn("embedding cache write failed", "error", err)
	}
	return vecs, nil
}
