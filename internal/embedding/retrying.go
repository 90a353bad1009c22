package embedding

import (
	"context"

	"collabrag/internal/ai"
	"collabrag/internal/pkg/retry"
)

// Retrying retries transient provider failures with backoff.
type Retrying struct {
	next   Gateway
	policy retry.Policy
}

func NewRetrying(next Gateway, policy retry.Policy) *Retrying {
	return &Retrying{next: next, policy: policy}
}

func (r *Retrying) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	return retry.Do(ctx, r.policy, ai.IsTransient, "embed."+mode.String(), func(ctx context.Context) ([][]float32, error) {
		return r.next.Embed(ctx, texts, mode)
	})
}
