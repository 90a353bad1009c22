package embedding

import (
	"context"

	"collabrag/internal/ai"
)

type taskEmbedder interface {
	Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

// Gemini uses retrieval task types: documents are embedded for storage and
// questions for search.
type Gemini struct {
	client        taskEmbedder
	batchSize     int
	maxInputChars int
}

func NewGemini(client taskEmbedder, batchSize, maxInputChars int) *Gemini {
	if batchSize <= 0 || batchSize > 100 {
		batchSize = 100
	}
	return &Gemini{client: client, batchSize: batchSize, maxInputChars: maxInputChars}
}

func TaskType(mode Mode) string {
	if mode == ModeQuery {
		return ai.TaskRetrievalQuery
	}
	return ai.TaskRetrievalDocument
}

func (g *Gemini) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if err := validate(texts, g.maxInputChars); err != nil {
		return nil, err
	}
	task := TaskType(mode)
	out := make([][]float32, 0, len(texts))
	for _, b := range batches(len(texts), g.batchSize) {
		vecs, err := g.client.Embed(ctx, texts[b[0]:b[1]], task)
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
