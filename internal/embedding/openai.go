package embedding

import (
	"context"

	"collabrag/internal/ai"
)

type batchEmbedder interface {
	EmbedBatch(ctx context.Context, cfg ai.EmbeddingConfig, texts []string) ([][]float32, error)
}

// OpenAI embeds through an OpenAI-compatible endpoint. These models are
// symmetric so mode does not change the request.
type OpenAI struct {
	client        batchEmbedder
	cfg           ai.EmbeddingConfig
	batchSize     int
	maxInputChars int
}

func NewOpenAI(client batchEmbedder, cfg ai.EmbeddingConfig, batchSize, maxInputChars int) *OpenAI {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &OpenAI{client: client, cfg: cfg, batchSize: batchSize, maxInputChars: maxInputChars}
}

func (o *OpenAI) Embed(ctx context.Context, texts []string, _ Mode) ([][]float32, error) {
	if err := validate(texts, o.maxInputChars); err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for _, b := range batches(len(texts), o.batchSize) {
		vecs, err := o.client.EmbedBatch(ctx, o.cfg, texts[b[0]:b[1]])
		if err != nil {
			return nil, providerErr(err)
		}
		if err := checkCount(len(vecs), b[1]-b[0]); err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}
