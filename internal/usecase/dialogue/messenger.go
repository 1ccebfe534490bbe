package dialogue

import (
	"context"
	"fmt"
	"log/slog"

	"noelle/internal/domain"
)

// Starter is the session-start side of Manager.
type Starter interface {
	StartDialogue(req domain.DialogueRequest) error
}

// Messenger ties persisted conversations to streaming sessions: it records
// the question, opens a loading answer, and streams into it.
type Messenger struct {
	sessions      Starter
	recorder      *Recorder
	messages      domain.MessageStore
	conversations domain.ConversationStore
	providers     domain.ProviderStore
	logger        *slog.Logger
}

// MessengerConfig holds Messenger dependencies.
type MessengerConfig struct {
	Sessions      Starter
	Recorder      *Recorder
	Messages      domain.MessageStore
	Conversations domain.ConversationStore
	Providers     domain.ProviderStore
	Logger        *slog.Logger
}

// NewMessenger creates a Messenger.
func NewMessenger(cfg MessengerConfig) *Messenger {
	return &Messenger{
		sessions:      cfg.Sessions,
		recorder:      cfg.Recorder,
		messages:      cfg.Messages,
		conversations: cfg.Conversations,
		providers:     cfg.Providers,
		logger:        cfg.Logger,
	}
}

// SendMessage persists content as a question in conversationID, opens a
// loading answer and starts streaming into it. It returns the answer id.
// Each watch func runs with the answer id before the stream starts.
func (s *Messenger) SendMessage(ctx context.Context, conversationID, content string, watch ...func(answerID string)) (string, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return "", domain.WrapOp("Messenger.Send", err)
	}
	provider, err := s.providers.GetProvider(ctx, conv.ProviderID)
	if err != nil {
		return "", domain.WrapOp("Messenger.Send", fmt.Errorf("conversation provider %s: %w", conv.ProviderID, err))
	}

	question := &domain.Message{
		ConversationID: conversationID,
		Type:           domain.MessageQuestion,
		Content:        content,
		Status:         domain.StatusSuccess,
	}
	if err := s.messages.CreateMessage(ctx, question); err != nil {
		return "", domain.WrapOp("Messenger.Send", err)
	}
	answer := &domain.Message{
		ConversationID: conversationID,
		Type:           domain.MessageAnswer,
		Status:         domain.StatusLoading,
	}
	if err := s.messages.CreateMessage(ctx, answer); err != nil {
		return "", domain.WrapOp("Messenger.Send", err)
	}
	if err := s.conversations.TouchConversation(ctx, conversationID); err != nil {
		s.logger.Warn("touch conversation failed", "conversation_id", conversationID, "error", err)
	}

	history, err := s.messages.ListMessages(ctx, conversationID)
	if err != nil {
		return "", domain.WrapOp("Messenger.Send", err)
	}

	s.recorder.Record(answer.ID, nil)
	for _, fn := range watch {
		fn(answer.ID)
	}
	req := domain.DialogueRequest{
		Messages:       Turns(history),
		Provider:       provider.Name,
		Model:          conv.SelectedModel,
		MessageID:      answer.ID,
		ConversationID: conversationID,
	}
	if err := s.sessions.StartDialogue(req); err != nil {
		s.recorder.Stop(answer.ID)
		_ = s.messages.UpdateMessageContent(ctx, answer.ID, err.Error(), domain.StatusError)
		return "", domain.WrapOp("Messenger.Send", err)
	}

	s.logger.Info("message sent", "conversation_id", conversationID, "message_id", answer.ID, "provider", provider.Name)
	return answer.ID, nil
}

// StopMessage detaches the message's stream. With update the message is
// marked successful with whatever text has arrived.
func (s *Messenger) StopMessage(ctx context.Context, messageID string, update bool) error {
	s.recorder.Stop(messageID)
	if !update {
		return nil
	}
	if err := s.messages.UpdateMessageStatus(ctx, messageID, domain.StatusSuccess); err != nil {
		return domain.WrapOp("Messenger.Stop", err)
	}
	return nil
}

// DeleteMessage stops and removes a message and touches its conversation.
func (s *Messenger) DeleteMessage(ctx context.Context, messageID string) error {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return domain.WrapOp("Messenger.Delete", err)
	}
	if err := s.StopMessage(ctx, messageID, false); err != nil {
		return err
	}
	if err := s.messages.DeleteMessage(ctx, messageID); err != nil {
		return domain.WrapOp("Messenger.Delete", err)
	}
	if err := s.conversations.TouchConversation(ctx, msg.ConversationID); err != nil {
		s.logger.Warn("touch conversation failed", "conversation_id", msg.ConversationID, "error", err)
	}
	return nil
}

// LoadingIDs lists the messages of conversationID still waiting on a stream.
func (s *Messenger) LoadingIDs(ctx context.Context, conversationID string) ([]string, error) {
	msgs, err := s.messages.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, domain.WrapOp("Messenger.LoadingIDs", err)
	}
	var ids []string
	for _, m := range msgs {
		if m.Status.Pending() {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// Turns builds the dialogue history from persisted messages, skipping
// answers that are still loading or streaming.
func Turns(msgs []*domain.Message) []domain.Turn {
	turns := make([]domain.Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.Status.Pending() {
			continue
		}
		turns = append(turns, domain.Turn{Role: m.Type.Role(), Content: m.Content})
	}
	return turns
}
