package app

import (
	"strings"

	"collabrag/internal/ai"
)

const systemInstruction = `You are an assistant for a shared collaboration workspace. Answer the user's questions using only the context provided below.
Do not tell the user that you are answering from the context.
Never make up information. If the context does not contain the answer, say so.
If the question is not related to the context, explain politely that you are not able to answer it and keep the conversation going in a friendly manner.
If the context is only partly relevant, ask the user for more information that would lead you to the answer.`

const noContextMarker = "(no relevant context was found in this workspace)"

// buildMessages lays out the system instruction with the retrieved context,
// the prior turns, and the active question last.
func buildMessages(passages []Passage, history []Turn, question string) []ai.ChatMessage {
	var ctxBlock string
	if len(passages) == 0 {
		ctxBlock = noContextMarker
	} else {
		parts := make([]string, len(passages))
		for i, p := range passages {
			parts[i] = p.Content
		}
		ctxBlock = strings.Join(parts, "\n\n")
	}

	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.ChatMessage{
		Role:    ai.RoleSystem,
		Content: systemInstruction + "\n\nContext:\n" + ctxBlock,
	})
	for _, t := range history {
		messages = append(messages, ai.ChatMessage{Role: t.Role, Content: t.Content})
	}
	return append(messages, ai.ChatMessage{Role: ai.RoleUser, Content: question})
}

// trimHistory keeps the most recent max turns, starting on a user turn.
func trimHistory(history []Turn, max int) []Turn {
	if max <= 0 || len(history) <= max {
		return history
	}
	trimmed := history[len(history)-max:]
	for len(trimmed) > 0 && trimmed[0].Role != ai.RoleUser {
		trimmed = trimmed[1:]
	}
	return trimmed
}
