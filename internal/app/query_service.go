package app

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"collabrag/internal/ai"
	"collabrag/internal/embedding"
	"collabrag/internal/logger"
	"collabrag/internal/metrics"
	"collabrag/internal/pkg/retry"
	"collabrag/internal/vectorindex"
)

const defaultTopK = 5

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Passage struct {
	ChunkID  string  `json:"chunk_id"`
	FileID   string  `json:"file_id"`
	Sequence int     `json:"sequence"`
	Content  string  `json:"content"`
	Score    float32 `json:"score"`
}

// Answer is produced lazily. Tokens can be ranged over once; it ends after the
// last fragment or with one error wrapping ErrIncompleteAnswer.
type Answer struct {
	Passages []Passage
	Tokens   iter.Seq2[string, error]
}

type QueryDeps struct {
	Embedder embedding.Gateway
	Index    vectorindex.Index
	Chat     ai.ChatModel
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type QueryOptions struct {
	TopK            int
	MaxHistoryTurns int
	Retry           retry.Policy
}

type QueryService struct {
	embedder embedding.Gateway
	index    vectorindex.Index
	chat     ai.ChatModel
	metrics  *metrics.Metrics
	log      *slog.Logger
	opts     QueryOptions
}

func NewQueryService(deps QueryDeps, opts QueryOptions) *QueryService {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	return &QueryService{
		embedder: deps.Embedder,
		index:    deps.Index,
		chat:     deps.Chat,
		metrics:  deps.Metrics,
		log:      logger.OrDiscard(deps.Logger),
		opts:     opts,
	}
}

// Ask retrieves the passages of scopeID closest to the last user turn and
// starts a grounded answer. Retrieval failures are returned before any
// generation starts.
func (s *QueryService) Ask(ctx context.Context, scopeID string, history []Turn) (*Answer, error) {
	if strings.TrimSpace(scopeID) == "" {
		return nil, ErrInvalidInput
	}
	question, prior, err := splitHistory(history)
	if err != nil {
		return nil, err
	}
	log := s.log.With("scope", scopeID)

	start := time.Now()
	vectors, err := s.embedder.Embed(ctx, []string{question}, embedding.ModeQuery)
	if err != nil {
		s.metrics.ObserveQuery("retrieval_error")
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	matches, err := retry.Do(ctx, s.opts.Retry, vectorindex.IsTransient, "query vectors", func(ctx context.Context) ([]vectorindex.Match, error) {
		return s.index.Query(ctx, vectors[0], s.opts.TopK, scopeID)
	})
	if err != nil {
		s.metrics.ObserveQuery("retrieval_error")
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	s.metrics.ObserveStage("retrieve", start)
	s.metrics.ObservePassages(len(matches))

	passages := make([]Passage, len(matches))
	for i, m := range matches {
		passages[i] = Passage{
			ChunkID:  m.ID,
			FileID:   m.FileID,
			Sequence: m.Sequence,
			Content:  m.Content,
			Score:    m.Score,
		}
	}
	log.Debug("passages retrieved", "count", len(passages))

	messages := buildMessages(passages, trimHistory(prior, s.opts.MaxHistoryTurns), question)
	return &Answer{
		Passages: passages,
		Tokens:   s.generate(ctx, log, messages),
	}, nil
}

func (s *QueryService) generate(ctx context.Context, log *slog.Logger, messages []ai.ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()
		fragments := 0
		for text, err := range s.chat.Stream(ctx, messages) {
			if err != nil {
				log.Warn("answer generation failed", "fragments", fragments, "error", err)
				s.metrics.ObserveQuery("incomplete")
				yield("", fmt.Errorf("%w: %w", ErrIncompleteAnswer, err))
				return
			}
			fragments++
			if !yield(text, nil) {
				s.metrics.ObserveQuery("cancelled")
				return
			}
		}
		if err := ctx.Err(); err != nil {
			s.metrics.ObserveQuery("incomplete")
			yield("", fmt.Errorf("%w: %w", ErrIncompleteAnswer, err))
			return
		}
		s.metrics.ObserveStage("generate", start)
		s.metrics.ObserveQuery("ok")
	}
}

// splitHistory validates the conversation and separates the active question
// from the turns before it.
func splitHistory(history []Turn) (string, []Turn, error) {
	if len(history) == 0 {
		return "", nil, fmt.Errorf("%w: empty conversation", ErrInvalidInput)
	}
	for _, t := range history {
		if t.Role != ai.RoleUser && t.Role != ai.RoleAssistant {
			return "", nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, t.Role)
		}
	}
	last := history[len(history)-1]
	question := strings.TrimSpace(last.Content)
	if last.Role != ai.RoleUser || question == "" {
		return "", nil, fmt.Errorf("%w: last turn must be a user question", ErrInvalidInput)
	}
	return question, history[:len(history)-1], nil
}
