package ai

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// Gemini task types for asymmetric retrieval embeddings.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

type GeminiConfig struct {
	APIKey         string
	Model          string
	VisionModel    string
	EmbeddingModel string
	Dimensions     int
}

type GeminiClient struct {
	client *genai.Client
	cfg    GeminiConfig
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg}, nil
}

// Stream maps system messages to the system instruction and the rest to
// user/model turns.
func (g *GeminiClient) Stream(ctx context.Context, messages []ChatMessage) iter.Seq2[string, error] {
	contents, system := toGeminiContents(messages)
	config := &genai.GenerateContentConfig{SystemInstruction: system}

	return func(yield func(string, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.cfg.Model, contents, config) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream failed: %w", err))
				return
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func (g *GeminiClient) Transcribe(ctx context.Context, image []byte, mediaType, instruction string) (string, error) {
	contents := []*genai.Content{{
		Role: string(genai.RoleUser),
		Parts: []*genai.Part{
			{Text: instruction},
			{InlineData: &genai.Blob{MIMEType: mediaType, Data: image}},
		},
	}}
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.VisionModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini transcription failed: %w", err)
	}
	return resp.Text(), nil
}

// Embed returns one vector per text using the given retrieval task type.
func (g *GeminiClient) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	config := &genai.EmbedContentConfig{TaskType: taskType}
	if g.cfg.Dimensions > 0 {
		config.OutputDimensionality = genai.Ptr(int32(g.cfg.Dimensions))
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.cfg.EmbeddingModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("empty gemini embedding at index %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

func toGeminiContents(messages []ChatMessage) ([]*genai.Content, *genai.Content) {
	var (
		contents []*genai.Content
		system   []string
	)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) == 0 {
		return contents, nil
	}
	return contents, &genai.Content{
		Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		Role:  string(genai.RoleUser),
	}
}
