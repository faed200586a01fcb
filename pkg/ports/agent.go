package ports

import (
	"context"
)

// Role tags a turn of the conversation history.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged entry of the history sent to the agent.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AgentRequest is a fallback completion request.
type AgentRequest struct {
	SystemPrompt string
	History      []Turn
}

// AgentChunk is one streamed piece of the completion.
// A chunk with Err set ends the stream abnormally.
type AgentChunk struct {
	Delta string
	Err   error
}

// DialogAgent streams free-text completions.
// Stream returns an error when no stream could be obtained. Otherwise the
// channel yields chunks and is closed at the end marker; cancelling ctx
// aborts the stream and closes the channel.
type DialogAgent interface {
	Stream(ctx context.Context, req AgentRequest) (<-chan AgentChunk, error)
}
