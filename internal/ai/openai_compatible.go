package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"
)

type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	VisionModel string
	Timeout     time.Duration
}

// OpenAICompatibleClient talks to any endpoint implementing the OpenAI
// chat completions and embeddings APIs.
type OpenAICompatibleClient struct {
	cfg        ChatConfig
	httpClient *http.Client
	// streamClient bounds only the wait for response headers; the body is
	// bounded by the caller's context.
	streamClient *http.Client
}

func NewOpenAICompatibleClient(cfg ChatConfig) *OpenAICompatibleClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &OpenAICompatibleClient{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{Transport: transport},
	}
}

func (c *OpenAICompatibleClient) complete(ctx context.Context, model string, messages any) (string, error) {
	reqBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}
	resp, err := c.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", &StatusError{Op: "llm response", StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream yields content deltas from an SSE chat completion.
func (c *OpenAICompatibleClient) Stream(ctx context.Context, messages []ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		reqBody := map[string]interface{}{
			"model":    c.cfg.Model,
			"messages": messages,
			"stream":   true,
		}
		resp, err := c.send(ctx, c.streamClient, "/chat/completions", reqBody)
		if err != nil {
			yield("", fmt.Errorf("llm stream request failed: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(resp.Body)
			yield("", &StatusError{Op: "llm stream", StatusCode: resp.StatusCode, Body: string(raw)})
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

		done := false
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				done = true
				break
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
					FinishReason *string `json:"finish_reason"`
				} `json:"choices"`
				Error *struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				yield("", fmt.Errorf("llm stream error: %s", chunk.Error.Message))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if chunk.Choices[0].FinishReason != nil {
				done = true
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("scan llm stream failed: %w", err))
			return
		}
		if !done {
			yield("", fmt.Errorf("llm stream ended before completion: %w", io.ErrUnexpectedEOF))
		}
	}
}

// Transcribe sends the image inline as a data URL to the vision model.
func (c *OpenAICompatibleClient) Transcribe(ctx context.Context, image []byte, mediaType, instruction string) (string, error) {
	dataURL := "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(image)
	messages := []map[string]any{{
		"role": RoleUser,
		"content": []map[string]any{
			{"type": "text", "text": instruction},
			{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
		},
	}}
	text, err := c.complete(ctx, c.cfg.VisionModel, messages)
	if err != nil {
		return "", fmt.Errorf("vision transcription failed: %w", err)
	}
	return text, nil
}

func (c *OpenAICompatibleClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.send(ctx, c.httpClient, path, body)
}

func (c *OpenAICompatibleClient) send(ctx context.Context, client *http.Client, path string, body any) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	return client.Do(req)
}
