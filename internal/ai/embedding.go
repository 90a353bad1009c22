package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

type EmbeddingConfig struct {
	Model      string
	Dimensions int
}

// EmbedBatch embeds texts in one request. The result is aligned with texts.
func (c *OpenAICompatibleClient) EmbedBatch(ctx context.Context, cfg EmbeddingConfig, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := map[string]interface{}{
		"model": cfg.Model,
		"input": texts,
	}
	if cfg.Dimensions > 0 {
		reqBody["dimensions"] = cfg.Dimensions
	}
	resp, err := c.post(ctx, "/embeddings", reqBody)
	if err != nil {
		return nil, fmt.Errorf("embedding batch request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding batch response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Op: "embedding batch response", StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding batch json failed: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding batch returned %d vectors for %d inputs", len(parsed.Data), len(texts))
	}
	result := make([][]float32, len(texts))
	for i, d := range parsed.Data {
		idx := d.Index
		if idx < 0 || idx >= len(texts) || result[idx] != nil {
			idx = i
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", idx)
		}
		result[idx] = d.Embedding
	}
	return result, nil
}
