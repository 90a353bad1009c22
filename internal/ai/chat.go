package ai

import (
	"context"
	"iter"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatModel streams a completion. The sequence ends after the last fragment,
// or with a single non-nil error. Stopping iteration early releases the
// upstream connection.
type ChatModel interface {
	Stream(ctx context.Context, messages []ChatMessage) iter.Seq2[string, error]
}

// VisionModel transcribes an image following instruction.
type VisionModel interface {
	Transcribe(ctx context.Context, image []byte, mediaType, instruction string) (string, error)
}
