package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"noelle/internal/domain"
)

// subscriptions tracks the dialogue-back subscriptions each connection holds
// so they can be dropped when it disconnects.
type subscriptions struct {
	mu       sync.Mutex
	byClient map[*ClientInfo]map[string]func()
}

func newSubscriptions() *subscriptions {
	return &subscriptions{byClient: make(map[*ClientInfo]map[string]func())}
}

// watch subscribes client to messageID, pushing every chunk to its content.
// A second watch on the same pair is a no-op.
func (t *subscriptions) watch(s *Server, d Dialogues, client *ClientInfo, messageID string) {
	t.mu.Lock()
	if _, ok := t.byClient[client][messageID]; ok {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	unsub := d.OnDialogueBack(messageID, func(ev domain.DialogueBack) {
		s.SendTo(client.ContentID, ChannelDialogueBack, ev)
		if ev.Data.IsEnd || ev.Data.IsError {
			t.release(client, messageID)
		}
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.byClient[client]
	if !ok {
		m = make(map[string]func())
		t.byClient[client] = m
	}
	if _, dup := m[messageID]; dup {
		unsub()
		return
	}
	m[messageID] = unsub
}

func (t *subscriptions) release(client *ClientInfo, messageID string) {
	t.mu.Lock()
	unsub, ok := t.byClient[client][messageID]
	if ok {
		delete(t.byClient[client], messageID)
		if len(t.byClient[client]) == 0 {
			delete(t.byClient, client)
		}
	}
	t.mu.Unlock()
	if ok {
		unsub()
	}
}

// releaseMessage drops every connection's subscription to messageID.
func (t *subscriptions) releaseMessage(messageID string) {
	var unsubs []func()
	t.mu.Lock()
	for client, m := range t.byClient {
		if unsub, ok := m[messageID]; ok {
			unsubs = append(unsubs, unsub)
			delete(m, messageID)
			if len(m) == 0 {
				delete(t.byClient, client)
			}
		}
	}
	t.mu.Unlock()
	for _, fn := range unsubs {
		fn()
	}
}

func (t *subscriptions) releaseClient(client *ClientInfo) {
	t.mu.Lock()
	m := t.byClient[client]
	delete(t.byClient, client)
	t.mu.Unlock()
	for _, unsub := range m {
		unsub()
	}
}

func (t *subscriptions) count(client *ClientInfo) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byClient[client])
}

// --- dialogue streaming ---

type messageRef struct {
	MessageID string `json:"messageId"`
}

func startDialogueHandler(s *Server, deps HandlerDeps, subs *subscriptions) RPCHandler {
	return func(_ context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req domain.DialogueRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.MessageID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		// Subscribe first so the caller cannot miss early chunks.
		subs.watch(s, deps.Dialogues, client, req.MessageID)
		if err := deps.Dialogues.StartDialogue(req); err != nil {
			subs.release(client, req.MessageID)
			return nil, err
		}
		return json.Marshal(messageRef{MessageID: req.MessageID})
	}
}

func dialogueSubscribeHandler(s *Server, deps HandlerDeps, subs *subscriptions) RPCHandler {
	return func(_ context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req messageRef
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.MessageID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		subs.watch(s, deps.Dialogues, client, req.MessageID)
		return okResult, nil
	}
}

func dialogueUnsubscribeHandler(subs *subscriptions) RPCHandler {
	return func(_ context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req messageRef
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		subs.release(client, req.MessageID)
		return okResult, nil
	}
}

// --- messages ---

type messageSendRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

func messageSendHandler(s *Server, deps HandlerDeps, subs *subscriptions) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req messageSendRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.ConversationID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		var watched string
		id, err := deps.Messages.SendMessage(ctx, req.ConversationID, req.Content, func(answerID string) {
			watched = answerID
			subs.watch(s, deps.Dialogues, client, answerID)
		})
		if err != nil {
			if watched != "" {
				subs.release(client, watched)
			}
			return nil, err
		}
		return json.Marshal(messageRef{MessageID: id})
	}
}

type messageStopRequest struct {
	MessageID string `json:"messageId"`
	Update    bool   `json:"update"`
}

func messageStopHandler(deps HandlerDeps, subs *subscriptions) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req messageStopRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.MessageID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		subs.releaseMessage(req.MessageID)
		if err := deps.Messages.StopMessage(ctx, req.MessageID, req.Update); err != nil {
			return nil, err
		}
		return okResult, nil
	}
}

func messageDeleteHandler(deps HandlerDeps, subs *subscriptions) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req messageRef
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.MessageID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		subs.releaseMessage(req.MessageID)
		if err := deps.Messages.DeleteMessage(ctx, req.MessageID); err != nil {
			return nil, err
		}
		return okResult, nil
	}
}

type conversationRef struct {
	ConversationID string `json:"conversationId"`
}

type loadingResponse struct {
	MessageIDs []string `json:"messageIds"`
}

func messageLoadingHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req conversationRef
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.ConversationID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		ids, err := deps.Messages.LoadingIDs(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []string{}
		}
		return json.Marshal(loadingResponse{MessageIDs: ids})
	}
}
