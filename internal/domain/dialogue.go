package domain

import "context"

// Role is the author of one turn in a dialogue.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one entry of the ordered dialogue history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DialogueRequest starts one streaming session.
type DialogueRequest struct {
	Messages       []Turn `json:"messages"`
	Provider       string `json:"providerName"`
	Model          string `json:"selectedModel"`
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// UniversalChunk is the normalized unit of streamed output.
type UniversalChunk struct {
	IsEnd   bool   `json:"isEnd"`
	IsError bool   `json:"isError,omitempty"`
	Result  string `json:"result"`
}

// StreamChunk is one item of a provider stream: either a chunk or the error
// that ended the stream.
type StreamChunk struct {
	UniversalChunk
	Err error
}

// DialogueBack is the event pushed to subscribers of a message id.
type DialogueBack struct {
	MessageID string         `json:"messageId"`
	Data      UniversalChunk `json:"data"`
}

// ChatProvider is one vendor backend normalized to the chunk contract.
type ChatProvider interface {
	Name() string
	// ChatStream starts a streaming completion. The channel is closed after a
	// chunk with IsEnd set or an item carrying Err.
	ChatStream(ctx context.Context, turns []Turn, model string) (<-chan StreamChunk, error)
}

// ProviderFactory resolves a provider by name from current configuration.
// It performs no network I/O.
type ProviderFactory interface {
	Create(name string) (ChatProvider, error)
}
