package domain

import (
	"context"
	"time"
)

// MessageType distinguishes user questions from model answers.
type MessageType string

const (
	MessageQuestion MessageType = "question"
	MessageAnswer   MessageType = "answer"
)

// Role maps a message type to its dialogue role.
func (t MessageType) Role() Role {
	if t == MessageQuestion {
		return RoleUser
	}
	return RoleAssistant
}

// MessageStatus is the lifecycle state of an answer.
type MessageStatus string

const (
	StatusLoading   MessageStatus = "loading"
	StatusStreaming MessageStatus = "streaming"
	StatusSuccess   MessageStatus = "success"
	StatusError     MessageStatus = "error"
)

// StatusOf derives the message status carried by a chunk.
func StatusOf(c UniversalChunk) MessageStatus {
	switch {
	case c.IsError:
		return StatusError
	case c.IsEnd:
		return StatusSuccess
	default:
		return StatusStreaming
	}
}

// Pending reports whether a message is still waiting for its stream to end.
func (s MessageStatus) Pending() bool {
	return s == StatusLoading || s == StatusStreaming
}

// Message is one persisted chat bubble.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Type           MessageType   `json:"type"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Conversation groups messages under one provider and model selection.
type Conversation struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	ProviderID    string    `json:"providerId"`
	SelectedModel string    `json:"selectedModel"`
	Pinned        bool      `json:"pinned"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Provider is the persisted descriptor of an LLM vendor the user can pick.
type Provider struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Description string    `json:"desc,omitempty"`
	Models      []string  `json:"models"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MessageStore persists messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	// UpdateMessageContent replaces content and status and bumps UpdatedAt.
	UpdateMessageContent(ctx context.Context, id, content string, status MessageStatus) error
	UpdateMessageStatus(ctx context.Context, id string, status MessageStatus) error
	DeleteMessage(ctx context.Context, id string) error
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
}

// ConversationStore persists conversations.
type ConversationStore interface {
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	UpdateConversation(ctx context.Context, c *Conversation) error
	TouchConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error
	ListConversations(ctx context.Context) ([]*Conversation, error)
}

// ProviderStore persists provider descriptors.
type ProviderStore interface {
	CreateProvider(ctx context.Context, p *Provider) error
	GetProvider(ctx context.Context, id string) (*Provider, error)
	UpdateProvider(ctx context.Context, p *Provider) error
	DeleteProvider(ctx context.Context, id string) error
	ListProviders(ctx context.Context) ([]*Provider, error)
}
